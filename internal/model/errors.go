package model

import (
	"errors"
	"fmt"
)

var (
	// ErrSlotUnavailable means the requested interval is outside open availability
	// or the staff member is already at capacity. Callers should re-fetch the grid.
	ErrSlotUnavailable = errors.New("slot unavailable")

	// ErrNotFound covers unknown booking, staff, service, and rule ids.
	ErrNotFound = errors.New("not found")

	// ErrTenantMismatch means the entity exists but belongs to another tenant.
	ErrTenantMismatch = errors.New("tenant mismatch")

	// ErrInvalidTransition means the booking state machine forbids the requested change.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// ValidationError rejects malformed input before anything is persisted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
