package entity

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means an id did not resolve, or a list the caller treats
	// as mandatory came back empty.
	ErrNotFound = errors.New("not found")

	// ErrConflict means a unique field (user email, team name) is taken.
	ErrConflict = errors.New("already exists")

	// ErrUnauthorized means a credential was missing, malformed, forged or expired.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidCredentials is returned by login for both an unknown email
	// and a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// ValidationError reports the first missing or malformed field of a payload.
type ValidationError struct {
	Field string
	Msg   string
}

// Required returns a ValidationError for a missing field.
func Required(field string) *ValidationError {
	return &ValidationError{Field: field, Msg: "is required"}
}

func (e *ValidationError) Error() string {
	return e.Field + " " + e.Msg
}

// StoreError wraps an unexpected persistence failure with the operation that hit it.
type StoreError struct {
	Op  string
	Err error
}

// Fault wraps err as a StoreError unless it is nil or already classified.
func Fault(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return &StoreError{Op: op, Err: err}
}

func (e *StoreError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *StoreError) Unwrap() error { return e.Err }
