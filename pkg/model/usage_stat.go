package model

import "time"

// UsageStat is an append-only snapshot of one owner's realized usage of a
// vehicle over an analysis period. Recomputations insert new rows; prior
// snapshots are kept for audit.
type UsageStat struct {
	ID                string    `json:"id,omitempty" bson:"_id,omitempty"`
	UserID            string    `json:"user_id" bson:"user_id"`
	VehicleID         string    `json:"vehicle_id" bson:"vehicle_id"`
	GroupID           string    `json:"group_id" bson:"group_id"`
	PeriodStart       time.Time `json:"period_start" bson:"period_start"`
	PeriodEnd         time.Time `json:"period_end" bson:"period_end"`
	TotalHoursUsed    float64   `json:"total_hours_used" bson:"total_hours_used"`
	TotalKilometers   float64   `json:"total_kilometers" bson:"total_kilometers"`
	BookingCount      int       `json:"booking_count" bson:"booking_count"`
	CancellationCount int       `json:"cancellation_count" bson:"cancellation_count"`
	CostIncurred      float64   `json:"cost_incurred" bson:"cost_incurred"`
	UsagePercentage   float64   `json:"usage_percentage" bson:"usage_percentage"`
	ComputedAt        time.Time `json:"computed_at" bson:"computed_at"`
}

// CancellationRate returns cancellations as a fraction of all booking
// activity in the period, zero-guarded.
func (u *UsageStat) CancellationRate() float64 {
	total := u.BookingCount + u.CancellationCount
	if total == 0 {
		return 0
	}
	return float64(u.CancellationCount) / float64(total)
}
