package model

import "time"

const (
	PriorityHigh   = "high"
	PriorityNormal = "normal"
	PriorityLow    = "low"
)

// FairnessScore measures how closely one owner's realized usage tracks
// their ownership stake over an analysis period. Difference is
// usage percentage minus ownership percentage: negative means under-use.
// Rows are immutable once calculated; a new period produces new rows.
type FairnessScore struct {
	ID                  string    `json:"id,omitempty" bson:"_id,omitempty"`
	UserID              string    `json:"user_id" bson:"user_id"`
	VehicleID           string    `json:"vehicle_id" bson:"vehicle_id"`
	GroupID             string    `json:"group_id" bson:"group_id"`
	OwnershipPercentage float64   `json:"ownership_percentage" bson:"ownership_percentage"`
	UsagePercentage     float64   `json:"usage_percentage" bson:"usage_percentage"`
	Difference          float64   `json:"difference" bson:"difference"`
	FairnessScore       float64   `json:"fairness_score" bson:"fairness_score"`
	Priority            string    `json:"priority" bson:"priority"`
	PeriodStart         time.Time `json:"period_start" bson:"period_start"`
	PeriodEnd           time.Time `json:"period_end" bson:"period_end"`
	CalculatedAt        time.Time `json:"calculated_at" bson:"calculated_at"`
}

// FairnessMember is one row of a group summary, enriched with the display
// name served by the identity collaborator.
type FairnessMember struct {
	UserID              string  `json:"user_id"`
	DisplayName         string  `json:"display_name,omitempty"`
	OwnershipPercentage float64 `json:"ownership_percentage"`
	UsagePercentage     float64 `json:"usage_percentage"`
	Difference          float64 `json:"difference"`
	FairnessScore       float64 `json:"fairness_score"`
	Priority            string  `json:"priority"`
}

// FairnessSummary is the group-level read model consumed by notification
// and UI collaborators.
type FairnessSummary struct {
	GroupID            string           `json:"group_id"`
	VehicleID          string           `json:"vehicle_id"`
	GroupFairnessScore float64          `json:"group_fairness_score"`
	Members            []FairnessMember `json:"members"`
	PeriodStart        time.Time        `json:"period_start"`
	PeriodEnd          time.Time        `json:"period_end"`
	CalculatedAt       time.Time        `json:"calculated_at"`
}

// PriorityLookup is the scheduler-facing answer for one user's current
// standing on a vehicle. Degraded lookups report normal priority with no
// score attached.
type PriorityLookup struct {
	UserID    string   `json:"user_id"`
	VehicleID string   `json:"vehicle_id"`
	GroupID   string   `json:"group_id"`
	Priority  string   `json:"priority"`
	Score     *float64 `json:"score,omitempty"`
	Degraded  bool     `json:"degraded,omitempty"`
}
