package model

// OwnershipRecord is a co-owner's contractual stake in a vehicle, supplied
// by the ownership collaborator. Percentages for a (vehicle, group) pair
// should sum to 100, but stored values can drift; consumers must zero-guard
// and never normalize on read.
type OwnershipRecord struct {
	UserID     string  `json:"user_id" bson:"user_id"`
	VehicleID  string  `json:"vehicle_id" bson:"vehicle_id"`
	GroupID    string  `json:"group_id" bson:"group_id"`
	Percentage float64 `json:"percentage" bson:"percentage"`
	Role       string  `json:"role,omitempty" bson:"role,omitempty"`
}

// UserProfile is the presentation subset served by the identity
// collaborator. Never used for authorization decisions.
type UserProfile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
}
