package aggregates

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode is the machine-readable failure kind of a flow write or query.
// The HTTP layer maps each code to a status.
type ErrorCode string

const (
	CodeValidation             ErrorCode = "validation"
	CodeNotFound               ErrorCode = "not_found"
	CodeNoActiveVersion        ErrorCode = "no_active_version"
	CodeImmutableVersion       ErrorCode = "immutable_version"
	CodeConcurrentActivation   ErrorCode = "concurrent_activation"
	CodeConcurrentModification ErrorCode = "concurrent_modification"
	CodeConflict               ErrorCode = "conflict"
	CodeInvalidTransition      ErrorCode = "invalid_transition"
	CodeComponentNotInSnapshot ErrorCode = "component_not_in_snapshot"
	CodeStepLocked             ErrorCode = "step_locked"
	CodeStaleInteraction       ErrorCode = "stale_interaction"
	CodeDuplicateAssignment    ErrorCode = "duplicate_assignment"
	CodeInvariantViolation     ErrorCode = "invariant_violation"
	CodePreconditionFailed     ErrorCode = "precondition_failed"
	CodeRetryable              ErrorCode = "retryable"
	CodeInternal               ErrorCode = "internal"
)

// Error is returned by every aggregate write.
//
// EntityID and Transition carry enough context for a transport layer to build
// a user-facing message without parsing Message.
type Error struct {
	Code       ErrorCode
	Op         string
	Message    string
	EntityID   string
	Transition string
	Cause      error
}

// Error renders "op: message [entity] (code)", leaving out empty parts.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
	}
	if e.Message != "" {
		if b.Len() > 0 {
			b.WriteString(": ")
		}
		b.WriteString(e.Message)
	}
	if e.EntityID != "" {
		fmt.Fprintf(&b, " [%s]", e.EntityID)
	}
	if b.Len() == 0 {
		return string(e.Code)
	}
	fmt.Fprintf(&b, " (%s)", e.Code)
	return strings.TrimSpace(b.String())
}

func (e *Error) Unwrap() error { return e.Cause }

// NewError builds an aggregate error with explicit code + operation.
func NewError(code ErrorCode, op, message string, cause error) error {
	return &Error{
		Code:    code,
		Op:      strings.TrimSpace(op),
		Message: strings.TrimSpace(message),
		Cause:   cause,
	}
}

// NewEntityError builds an aggregate error that names the entity it concerns.
func NewEntityError(code ErrorCode, op, entityID, message string) error {
	return &Error{
		Code:     code,
		Op:       strings.TrimSpace(op),
		Message:  strings.TrimSpace(message),
		EntityID: strings.TrimSpace(entityID),
	}
}

// NewTransitionError builds an invalid-transition error for a progress row.
func NewTransitionError(op, entityID, transition string, cause error) error {
	msg := "invalid transition"
	if cause != nil {
		msg = cause.Error()
	}
	return &Error{
		Code:       CodeInvalidTransition,
		Op:         strings.TrimSpace(op),
		Message:    msg,
		EntityID:   strings.TrimSpace(entityID),
		Transition: strings.TrimSpace(transition),
		Cause:      cause,
	}
}

// Wrap annotates an existing error with aggregate error semantics.
func Wrap(code ErrorCode, op string, err error) error {
	if err == nil {
		return nil
	}
	return NewError(code, op, err.Error(), err)
}

// IsCode checks whether err (or wrapped err) carries the given aggregate code.
func IsCode(err error, code ErrorCode) bool {
	var aggErr *Error
	if !errors.As(err, &aggErr) {
		return false
	}
	return aggErr.Code == code
}

// CodeOf extracts the aggregate error code when available.
func CodeOf(err error) ErrorCode {
	var aggErr *Error
	if !errors.As(err, &aggErr) {
		return ""
	}
	return aggErr.Code
}

// Recoverable reports whether the caller can act on the error, as opposed to
// an unexpected store or encoding failure.
func Recoverable(err error) bool {
	switch CodeOf(err) {
	case "", CodeInternal:
		return false
	}
	return true
}
