package storage

import "errors"

// Storage errors shared by all store implementations.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when attempting to insert a record
	// whose unique key already exists. The idempotency guard relies on
	// this as the race-breaker between concurrent duplicate prepares.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidTransition is returned when a goal status change is not
	// allowed from the goal's current status.
	ErrInvalidTransition = errors.New("invalid status transition")
)
