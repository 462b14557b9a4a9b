// Package id provides unique ID generation utilities.
//
//	rowID := id.NewULID()  // e.g., "01ARZ3NDEKTSV4RRFFQ69G5FAV"
//	reqID := id.NewUUID()  // e.g., "550e8400-e29b-41d4-a716-446655440000"
package id

import (
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewULID returns a new lexicographically sortable ULID string.
// Safe for concurrent use.
func NewULID() string {
	return ulid.Make().String()
}

// ParseULID validates a ULID string.
func ParseULID(s string) error {
	if _, err := ulid.ParseStrict(s); err != nil {
		return ErrInvalidULID
	}
	return nil
}

// NewUUID generates a new UUID v4 string.
func NewUUID() string {
	return uuid.NewString()
}

// ParseUUID validates a UUID string.
func ParseUUID(s string) error {
	if _, err := uuid.Parse(s); err != nil {
		return ErrInvalidUUID
	}
	return nil
}
