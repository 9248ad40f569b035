package model

import "time"

// SlotLock is an advisory lock document keyed by (giver_id, date). Inserting
// it with a unique _id serializes concurrent check-and-write sequences for
// the same giver and date; a TTL index on expires_at reaps abandoned locks.
type SlotLock struct {
	ID        string    `bson:"_id" json:"id"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
