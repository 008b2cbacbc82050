package errors

import (
	"errors"
	"fmt"
)

// ValidationError describes a configuration parameter that failed validation.
// It identifies the module and field along with the offending value so the
// error message is actionable without consulting documentation.
type ValidationError struct {
	// Module is the package or component that rejected the value
	Module string

	// Field is the name of the invalid parameter
	Field string

	// Value is the value that failed validation
	Value interface{}

	// Reason explains why the value was rejected
	Reason string

	// Hint optionally suggests a valid value
	Hint string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("%s: invalid %s=%v (%s)", e.Module, e.Field, e.Value, e.Reason)
	if e.Hint != "" {
		msg += " - " + e.Hint
	}
	return msg
}

// Unwrap returns ErrInvalidConfiguration so callers can match the error kind
// with errors.Is.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidConfiguration
}

// NewValidationError creates a ValidationError for the given module and field.
func NewValidationError(module, field string, value interface{}, reason string) *ValidationError {
	return &ValidationError{
		Module: module,
		Field:  field,
		Value:  value,
		Reason: reason,
	}
}

// WithHint attaches a suggestion to the error and returns the same instance
// for chaining.
func (e *ValidationError) WithHint(hint string) *ValidationError {
	e.Hint = hint
	return e
}

// OperationError describes a runtime operation that failed, preserving the
// underlying cause for errors.Is/errors.As inspection.
type OperationError struct {
	// Module is the package or component where the operation ran
	Module string

	// Operation is the name of the failed operation
	Operation string

	// Cause is the underlying error
	Cause error

	// Context optionally carries additional detail
	Context string
}

// Error implements the error interface.
func (e *OperationError) Error() string {
	msg := fmt.Sprintf("%s.%s failed: %v", e.Module, e.Operation, e.Cause)
	if e.Context != "" {
		msg += " (" + e.Context + ")"
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *OperationError) Unwrap() error {
	return e.Cause
}

// NewOperationError creates an OperationError wrapping the given cause.
func NewOperationError(module, operation string, cause error) *OperationError {
	return &OperationError{
		Module:    module,
		Operation: operation,
		Cause:     cause,
	}
}

// WithContext attaches additional detail to the error and returns the same
// instance for chaining.
func (e *OperationError) WithContext(context string) *OperationError {
	e.Context = context
	return e
}

// IsValidationError returns true if err is or wraps a ValidationError.
func IsValidationError(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}
