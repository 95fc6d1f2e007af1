package model

import "time"

const (
	CheckpointTypeCheckIn  = "check_in"
	CheckpointTypeCheckOut = "check_out"

	CheckpointStatusPending   = "pending"
	CheckpointStatusScanned   = "scanned"
	CheckpointStatusSigned    = "signed"
	CheckpointStatusCompleted = "completed"
	CheckpointStatusExpired   = "expired"
)

// Checkpoint is a single-use, time-boxed token gating a physical handover.
// The token is scanned at the vehicle, signed by the receiving party, and
// completed to confirm the handover.
type Checkpoint struct {
	ID             string     `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	ReservationID  string     `json:"reservation_id" bson:"reservation_id" validate:"required,mongodb"`
	Type           string     `json:"type" bson:"type" validate:"required,oneof=check_in check_out"`
	Status         string     `json:"status" bson:"status" validate:"required,oneof=pending scanned signed completed expired"`
	Token          string     `json:"token" bson:"token" validate:"required"`
	IssuedBy       string     `json:"issued_by" bson:"issued_by" validate:"required,mongodb"`
	IssuedAt       time.Time  `json:"issued_at" bson:"issued_at"`
	ExpiresAt      time.Time  `json:"expires_at" bson:"expires_at"`
	ScannedAt      *time.Time `json:"scanned_at,omitempty" bson:"scanned_at,omitempty"`
	SignedAt       *time.Time `json:"signed_at,omitempty" bson:"signed_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
	SignerName     string     `json:"signer_name,omitempty" bson:"signer_name,omitempty"`
	SignerIDNumber string     `json:"signer_id_number,omitempty" bson:"signer_id_number,omitempty"`
	SignatureData  string     `json:"signature_data,omitempty" bson:"signature_data,omitempty"`
	Latitude       *float64   `json:"latitude,omitempty" bson:"latitude,omitempty"`
	Longitude      *float64   `json:"longitude,omitempty" bson:"longitude,omitempty"`
	Notes          string     `json:"notes,omitempty" bson:"notes,omitempty"`
}

// IsTerminal reports whether the checkpoint can no longer change state.
func (c *Checkpoint) IsTerminal() bool {
	return c.Status == CheckpointStatusCompleted || c.Status == CheckpointStatusExpired
}

// IsPastExpiry reports whether the token deadline has passed at the given
// instant. Terminal checkpoints never re-expire.
func (c *Checkpoint) IsPastExpiry(now time.Time) bool {
	return !c.IsTerminal() && now.After(c.ExpiresAt)
}

// CheckpointIssueRequest is the payload for issuing a new handover token.
type CheckpointIssueRequest struct {
	Type         string `json:"type" validate:"required,oneof=check_in check_out"`
	IssuedBy     string `json:"issued_by" validate:"required,mongodb"`
	ValidMinutes int    `json:"valid_minutes,omitempty" validate:"omitempty,min=1,max=1440"`
	Notes        string `json:"notes,omitempty" validate:"omitempty,max=500"`
}

// CheckpointScanRequest is the payload sent when the QR code is scanned at
// the vehicle.
type CheckpointScanRequest struct {
	Token     string   `json:"token" validate:"required"`
	Latitude  *float64 `json:"latitude,omitempty" validate:"omitempty,latitude"`
	Longitude *float64 `json:"longitude,omitempty" validate:"omitempty,longitude"`
}

// CheckpointSignRequest carries the receiving party's identity and signature.
type CheckpointSignRequest struct {
	Token          string `json:"token" validate:"required"`
	SignerName     string `json:"signer_name" validate:"required,min=2,max=100"`
	SignerIDNumber string `json:"signer_id_number" validate:"required,min=4,max=30"`
	SignatureData  string `json:"signature_data" validate:"required,base64"`
}

// CheckpointCompleteRequest confirms a signed handover.
type CheckpointCompleteRequest struct {
	Token string `json:"token" validate:"required"`
}
