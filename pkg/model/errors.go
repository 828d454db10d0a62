package model

import "fmt"

// ErrorCode represents a structured API error code.
type ErrorCode string

const (
	ErrValidation    ErrorCode = "VALIDATION_ERROR"
	ErrNotFound      ErrorCode = "NOT_FOUND"
	ErrConflict      ErrorCode = "CONFLICT"
	ErrUnsatisfiable ErrorCode = "UNSATISFIABLE"
	ErrInternal      ErrorCode = "INTERNAL_ERROR"
)

// APIError is a structured error returned by the mcsched API.
type APIError struct {
	Code    ErrorCode    `json:"code"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// FieldError describes a validation error on a specific field.
type FieldError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// NewValidationError creates an APIError with validation details.
func NewValidationError(msg string, details ...FieldError) *APIError {
	return &APIError{Code: ErrValidation, Message: msg, Details: details}
}

// NewNotFoundError creates a NOT_FOUND APIError.
func NewNotFoundError(resource, id string) *APIError {
	return &APIError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s '%s' not found", resource, id),
	}
}

// NewInternalError creates an INTERNAL_ERROR APIError.
func NewInternalError(msg string) *APIError {
	return &APIError{Code: ErrInternal, Message: msg}
}

// ErrorKind classifies scheduler failures.
type ErrorKind string

const (
	KindDuplicateIdentity        ErrorKind = "DUPLICATE_IDENTITY"
	KindUnknownEntity            ErrorKind = "UNKNOWN_ENTITY"
	KindIllegalStateTransition   ErrorKind = "ILLEGAL_STATE_TRANSITION"
	KindUnsatisfiableRequirement ErrorKind = "UNSATISFIABLE_REQUIREMENT"
	KindOperationNotPermitted    ErrorKind = "OPERATION_NOT_PERMITTED"
	KindInvalidArgument          ErrorKind = "INVALID_ARGUMENT"
)

// Sentinels for errors.Is. Only the Kind is compared.
var (
	ErrDuplicateIdentity        = &SchedulerError{Kind: KindDuplicateIdentity}
	ErrUnknownEntity            = &SchedulerError{Kind: KindUnknownEntity}
	ErrIllegalStateTransition   = &SchedulerError{Kind: KindIllegalStateTransition}
	ErrUnsatisfiableRequirement = &SchedulerError{Kind: KindUnsatisfiableRequirement}
	ErrOperationNotPermitted    = &SchedulerError{Kind: KindOperationNotPermitted}
	ErrInvalidArgument          = &SchedulerError{Kind: KindInvalidArgument}
)

// SchedulerError is returned synchronously by scheduler operations.
type SchedulerError struct {
	Kind    ErrorKind
	Entity  string
	ID      string
	Message string
}

func (e *SchedulerError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	if e.ID != "" {
		return fmt.Sprintf("%s: %s %s", e.Kind, e.Entity, e.ID)
	}
	return string(e.Kind)
}

// Is matches any SchedulerError of the same Kind.
func (e *SchedulerError) Is(target error) bool {
	t, ok := target.(*SchedulerError)
	return ok && t.Kind == e.Kind
}

// NewDuplicateError reports an entity whose ID is already registered.
func NewDuplicateError(entity, id string) *SchedulerError {
	return &SchedulerError{
		Kind:    KindDuplicateIdentity,
		Entity:  entity,
		ID:      id,
		Message: fmt.Sprintf("%s '%s' already exists", entity, id),
	}
}

// NewUnknownError reports an ID that does not refer to a known entity.
func NewUnknownError(entity, id string) *SchedulerError {
	return &SchedulerError{
		Kind:    KindUnknownEntity,
		Entity:  entity,
		ID:      id,
		Message: fmt.Sprintf("%s '%s' not found", entity, id),
	}
}

// InvalidTransitionError is returned when a state transition is invalid.
// It matches ErrIllegalStateTransition.
type InvalidTransitionError struct {
	Entity string
	ID     string
	From   string
	To     string
	Reason string
}

func (e *InvalidTransitionError) Error() string {
	msg := fmt.Sprintf("invalid %s state transition: %s → %s (entity %s)", e.Entity, e.From, e.To, e.ID)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// Is matches ErrIllegalStateTransition.
func (e *InvalidTransitionError) Is(target error) bool {
	return target == error(ErrIllegalStateTransition)
}
