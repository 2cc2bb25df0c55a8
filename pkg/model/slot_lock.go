package model

import "time"

// SlotLock is an advisory lock serializing reservation writes per
// professional. Uniqueness of _id is what makes acquisition atomic; the
// expires_at TTL index reclaims locks abandoned by crashed writers.
type SlotLock struct {
	ID        string    `bson:"_id" json:"id"`
	Owner     string    `bson:"owner" json:"owner"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
