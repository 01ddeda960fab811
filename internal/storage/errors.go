package storage

import "errors"

// Common storage errors. Implementations return these sentinels (possibly
// wrapped) so callers can branch with errors.Is.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when attempting to record a key that
	// already exists in a store that does not allow re-recording it.
	ErrDuplicateKey = errors.New("duplicate key: already recorded")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)
