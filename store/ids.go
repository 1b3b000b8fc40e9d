package store

import "github.com/google/uuid"

// IDGenerator returns a new, globally unique entity identifier.
type IDGenerator func() string

// NewID returns a random (version 4) UUID string.
func NewID() string {
	return uuid.NewString()
}
