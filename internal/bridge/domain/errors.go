package domain

import "errors"

var (
	// ErrUnknownJob is returned when a store operation names a job id that was never issued
	ErrUnknownJob = errors.New("job not found")

	// ErrPersist is returned when the store could not write its state; the mutation is rolled back
	ErrPersist = errors.New("failed to persist job state")

	// ErrInvalidSignature is returned when a signed payload does not match its signature
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrInvalidCursor is returned when a listing cursor does not point at a known job
	ErrInvalidCursor = errors.New("invalid cursor")
)
