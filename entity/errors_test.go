package entity

import (
	"errors"
	"fmt"
	"testing"
)

func TestFault_PassesClassifiedErrors(t *testing.T) {
	err := Fault("get task", ErrNotFound)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	var se *StoreError
	if errors.As(err, &se) {
		t.Error("not-found should not be reported as a store fault")
	}

	if err := Fault("create team", fmt.Errorf("insert: %w", ErrConflict)); !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

func TestFault_WrapsUnexpectedErrors(t *testing.T) {
	cause := errors.New("disk full")
	err := Fault("insert task", cause)

	var se *StoreError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StoreError, got %T", err)
	}
	if se.Op != "insert task" {
		t.Errorf("Op = %q, want insert task", se.Op)
	}
	if !errors.Is(err, cause) {
		t.Error("StoreError should unwrap to its cause")
	}
	if err.Error() != "insert task: disk full" {
		t.Errorf("Error() = %q", err.Error())
	}
	if Fault("noop", nil) != nil {
		t.Error("Fault(nil) should be nil")
	}
}

func TestValidationError_Message(t *testing.T) {
	err := Required("owners")
	if err.Error() != "owners is required" {
		t.Errorf("Error() = %q", err.Error())
	}
	var ve *ValidationError
	if !errors.As(error(err), &ve) || ve.Field != "owners" {
		t.Errorf("errors.As failed or wrong field: %+v", ve)
	}
}
