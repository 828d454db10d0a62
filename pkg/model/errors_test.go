package model

import (
	"errors"
	"fmt"
	"testing"
)

func TestAPIError_Error(t *testing.T) {
	err := &APIError{Code: ErrNotFound, Message: "job 'job_123' not found"}
	want := "NOT_FOUND: job 'job_123' not found"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestNewNotFoundError(t *testing.T) {
	err := NewNotFoundError("worker", "wrk_abc")
	if err.Code != ErrNotFound {
		t.Errorf("Code = %q, want %q", err.Code, ErrNotFound)
	}
	if err.Message != "worker 'wrk_abc' not found" {
		t.Errorf("Message = %q, want %q", err.Message, "worker 'wrk_abc' not found")
	}
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("Invalid request",
		FieldError{Field: "name", Message: "required"},
		FieldError{Field: "version", Message: "required"},
	)
	if err.Code != ErrValidation {
		t.Errorf("Code = %q, want %q", err.Code, ErrValidation)
	}
	if len(err.Details) != 2 {
		t.Errorf("Details length = %d, want 2", len(err.Details))
	}
}

func TestInvalidTransitionError(t *testing.T) {
	err := &InvalidTransitionError{
		Entity: "job",
		ID:     "job_123",
		From:   "WAITING_UNSCHEDULED",
		To:     "COMPLETED_OK",
	}
	want := "invalid job state transition: WAITING_UNSCHEDULED → COMPLETED_OK (entity job_123)"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrIllegalStateTransition) {
		t.Error("errors.Is(InvalidTransitionError, ErrIllegalStateTransition) = false")
	}
	if errors.Is(err, ErrUnknownEntity) {
		t.Error("errors.Is(InvalidTransitionError, ErrUnknownEntity) = true")
	}
}

func TestSchedulerError_Is(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{"duplicate", NewDuplicateError("worker", "wrk_1"), ErrDuplicateIdentity, true},
		{"unknown", NewUnknownError("job", "job_1"), ErrUnknownEntity, true},
		{"wrapped", fmt.Errorf("add job: %w", NewDuplicateError("job", "job_1")), ErrDuplicateIdentity, true},
		{"kind mismatch", NewUnknownError("job", "job_1"), ErrDuplicateIdentity, false},
		{"plain error", errors.New("boom"), ErrUnknownEntity, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, tt.target); got != tt.want {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.want)
			}
		})
	}
}

func TestSchedulerError_Error(t *testing.T) {
	err := NewDuplicateError("worker", "wrk_1")
	want := "DUPLICATE_IDENTITY: worker 'wrk_1' already exists"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
