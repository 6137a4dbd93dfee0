package tools

import (
	"errors"
	"fmt"
)

var (
	// ErrForbidden is returned when the caller lacks the required scope
	ErrForbidden = errors.New("forbidden")
	// ErrRequestNotFound is returned when no job matches a request id
	ErrRequestNotFound = errors.New("request_not_found")
)

// ValidationError describes the first input field that failed validation
type ValidationError struct {
	Field string
	Rule  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Rule)
}
