package model

import "time"

const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"

	RecommendationStatusActive    = "active"
	RecommendationStatusRead      = "read"
	RecommendationStatusResolved  = "resolved"
	RecommendationStatusDismissed = "dismissed"

	RecommendationTypeImbalance     = "usage_imbalance"
	RecommendationTypeCancellations = "excessive_cancellations"
	RecommendationTypeUnderuse      = "underuse_nudge"
)

// Recommendation is an advisory record produced by the fairness rules and
// consumed by external notification/UI layers. The core only persists;
// consumers poll and mark read/resolved.
type Recommendation struct {
	ID           string     `json:"id,omitempty" bson:"_id,omitempty"`
	GroupID      string     `json:"group_id" bson:"group_id"`
	VehicleID    string     `json:"vehicle_id" bson:"vehicle_id"`
	Type         string     `json:"type" bson:"type"`
	Title        string     `json:"title" bson:"title"`
	Description  string     `json:"description" bson:"description"`
	Severity     string     `json:"severity" bson:"severity"`
	TargetUserID string     `json:"target_user_id,omitempty" bson:"target_user_id,omitempty"`
	Status       string     `json:"status" bson:"status"`
	PeriodStart  time.Time  `json:"period_start" bson:"period_start"`
	PeriodEnd    time.Time  `json:"period_end" bson:"period_end"`
	CreatedAt    time.Time  `json:"created_at" bson:"created_at"`
	ReadAt       *time.Time `json:"read_at,omitempty" bson:"read_at,omitempty"`
}

// RecommendationStatusUpdate is the consumer-side mutation payload.
type RecommendationStatusUpdate struct {
	Status string `json:"status" validate:"required,oneof=read resolved dismissed"`
}
