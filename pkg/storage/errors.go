package storage

import "errors"

// Sentinel errors for store operations.
var (
	// ErrNotFound is returned when a conversation does not exist.
	ErrNotFound = errors.New("conversation not found")

	// ErrConflict is returned when a save carries a stale version.
	// The caller must reload and retry.
	ErrConflict = errors.New("conversation version conflict")
)
