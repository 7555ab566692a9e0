package storage

import "errors"

// Storage errors.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when one batch carries the same key twice.
	// History stores ignore conflicts with existing rows, but a batch that
	// contradicts itself is rejected as a whole.
	ErrDuplicateKey = errors.New("duplicate key within batch")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)
