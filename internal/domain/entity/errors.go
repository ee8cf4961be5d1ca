package entity

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain layer operations.
var (
	// ErrNotFound indicates that a requested entity was not found
	ErrNotFound = errors.New("entity not found")

	// ErrInvalidInput indicates that the provided input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrValidationFailed indicates that validation checks have failed
	ErrValidationFailed = errors.New("validation failed")
)

// ValidationError represents a validation error with detailed field information.
// It implements the error interface and provides context about which field failed validation.
type ValidationError struct {
	Field   string
	Message string
}

// Error returns a formatted error message for the validation error.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// ParseError reports a queue message body that could not be turned into a
// Notification. NotificationID is set when the id was recovered before the
// failure, so the ledger can still record the outcome.
type ParseError struct {
	NotificationID string
	Reason         string
	Err            error
}

func (e *ParseError) Error() string {
	if e.NotificationID != "" {
		return fmt.Sprintf("parse notification %s: %s", e.NotificationID, e.Reason)
	}
	return "parse notification: " + e.Reason
}

// Unwrap exposes ErrInvalidInput plus the underlying cause, if any.
func (e *ParseError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrInvalidInput, e.Err}
	}
	return []error{ErrInvalidInput}
}
