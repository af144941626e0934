package ride

import (
	"errors"
	"fmt"
)

var (
	ErrValidation      = errors.New("validation failed")
	ErrNotFound        = errors.New("ride not found")
	ErrForbidden       = errors.New("caller is not allowed to act on this ride")
	ErrConflict        = errors.New("ride state conflict")
	ErrInvalidPasscode = errors.New("invalid passcode")

	// ErrDriverNotFound matches ErrNotFound under errors.Is.
	ErrDriverNotFound error = notFoundError("driver not found")
)

type notFoundError string

func (e notFoundError) Error() string { return string(e) }

func (e notFoundError) Is(target error) bool { return target == ErrNotFound }

// ValidationError names the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// StateError is a failed state guard. It carries the status observed at
// the time of the failure.
type StateError struct {
	Op      string
	Current Status
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s ride in status %s", e.Op, e.Current)
}

func (e *StateError) Unwrap() error { return ErrConflict }
