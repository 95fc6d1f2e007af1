package model

import "time"

// VehicleLock is an advisory lock serializing booking attempts for a single
// vehicle. The lock document uses a deterministic _id so a concurrent insert
// fails with a duplicate key error, and a TTL index reclaims stale locks.
type VehicleLock struct {
	ID        string    `bson:"_id" json:"id"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
