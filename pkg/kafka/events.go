package kafka

import "time"

// Topics used across fleetshare services.
const (
	TopicReservations    = "fleetshare.reservations"
	TopicCheckpoints     = "fleetshare.checkpoints"
	TopicRecommendations = "fleetshare.recommendations"

	TopicReservationsDLQ    = "fleetshare.reservations.dlq"
	TopicCheckpointsDLQ     = "fleetshare.checkpoints.dlq"
	TopicRecommendationsDLQ = "fleetshare.recommendations.dlq"
)

// Event types carried in the event-type header.
const (
	EventReservationCreated    = "reservation.created"
	EventReservationCancelled  = "reservation.cancelled"
	EventReservationCompleted  = "reservation.completed"
	EventCheckpointCompleted   = "checkpoint.completed"
	EventRecommendationCreated = "recommendation.created"
)

// ReservationEvent is published on reservation lifecycle changes. Keyed by
// vehicle ID so consumers see per-vehicle events in order.
type ReservationEvent struct {
	ReservationID string    `json:"reservation_id"`
	VehicleID     string    `json:"vehicle_id"`
	GroupID       string    `json:"group_id"`
	UserID        string    `json:"user_id"`
	Status        string    `json:"status"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// CheckpointEvent is published when a handover checkpoint reaches a
// terminal state.
type CheckpointEvent struct {
	CheckpointID  string    `json:"checkpoint_id"`
	ReservationID string    `json:"reservation_id"`
	VehicleID     string    `json:"vehicle_id"`
	Kind          string    `json:"kind"`
	Status        string    `json:"status"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// RecommendationEvent is published when the fairness engine emits a new
// recommendation for a group.
type RecommendationEvent struct {
	RecommendationID string    `json:"recommendation_id"`
	GroupID          string    `json:"group_id"`
	Type             string    `json:"type"`
	Severity         string    `json:"severity"`
	TargetUserID     string    `json:"target_user_id,omitempty"`
	OccurredAt       time.Time `json:"occurred_at"`
}
