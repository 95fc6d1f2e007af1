package model

import (
	"time"
)

const (
	ReservationStatusBooked    = "booked"
	ReservationStatusInUse     = "in_use"
	ReservationStatusCompleted = "completed"
	ReservationStatusCancelled = "cancelled"
)

// Reservation is a time window during which one co-owner holds the vehicle.
// The [StartTime, EndTime) interval is half-open: a reservation ending at
// 12:00 does not conflict with one starting at 12:00.
type Reservation struct {
	ID          string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	VehicleID   string    `json:"vehicle_id" bson:"vehicle_id" validate:"required,mongodb"`
	GroupID     string    `json:"group_id" bson:"group_id" validate:"required,mongodb"`
	UserID      string    `json:"user_id" bson:"user_id" validate:"required,mongodb"`
	StartTime   time.Time `json:"start_time" bson:"start_time" validate:"required"`
	EndTime     time.Time `json:"end_time" bson:"end_time" validate:"required,gtfield=StartTime"`
	Purpose     string    `json:"purpose,omitempty" bson:"purpose,omitempty" validate:"omitempty,max=200"`
	Status      string    `json:"status" bson:"status" validate:"required,oneof=booked in_use completed cancelled"`
	Kilometers  float64   `json:"kilometers,omitempty" bson:"kilometers,omitempty" validate:"omitempty,gte=0"`
	Cost        float64   `json:"cost,omitempty" bson:"cost,omitempty" validate:"omitempty,gte=0"`
	CancelledBy string    `json:"cancelled_by,omitempty" bson:"cancelled_by,omitempty" validate:"omitempty,mongodb"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty" bson:"updated_at,omitempty" validate:"omitempty"`
}

// Overlaps reports whether the reservation window intersects [start, end)
// under half-open semantics.
func (r *Reservation) Overlaps(start, end time.Time) bool {
	return r.StartTime.Before(end) && r.EndTime.After(start)
}

// IsActive reports whether the reservation still occupies the timeline.
func (r *Reservation) IsActive() bool {
	return r.Status == ReservationStatusBooked || r.Status == ReservationStatusInUse
}

// IsTerminal reports whether no further status transitions are possible.
func (r *Reservation) IsTerminal() bool {
	return r.Status == ReservationStatusCompleted || r.Status == ReservationStatusCancelled
}

// ReservationCompletion carries the usage totals recorded when a
// reservation finishes.
type ReservationCompletion struct {
	Kilometers float64 `json:"kilometers" validate:"gte=0"`
	Cost       float64 `json:"cost" validate:"gte=0"`
}
