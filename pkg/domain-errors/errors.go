// Package domainerrors provides code-carrying errors for the compliance engine.
//
// Services translate infrastructure sentinels (pkg/platform/sentinel) into these
// coded errors at the service boundary; transport layers map codes to HTTP
// statuses without inspecting error strings.
package domainerrors

import (
	"errors"
	"fmt"
	"strings"
)

// Code identifies the category of a domain error.
type Code string

const (
	// CodeValidation signals one or more field-rule violations, reported together.
	CodeValidation Code = "validation_failed"
	// CodeNotFound signals that an entity, violation, or alert does not exist.
	CodeNotFound Code = "not_found"
	// CodeInvalidTransition signals a forbidden compliance status transition.
	CodeInvalidTransition Code = "invalid_transition"
	// CodeAlreadyProcessed signals an operation repeated on an already-settled
	// record, such as acknowledging an acknowledged alert.
	CodeAlreadyProcessed Code = "already_processed"
	// CodeConflict signals a lost concurrent-update race or uniqueness clash.
	CodeConflict Code = "conflict"
	// CodeStorage signals a backing store failure.
	CodeStorage Code = "storage_error"
	// CodeTimeout signals a storage or transaction deadline exceeded.
	CodeTimeout Code = "timeout"
	// CodeImmutable signals an attempt to alter an append-only record.
	// This is a programming invariant violation, not a recoverable condition.
	CodeImmutable Code = "immutability_violation"
	// CodeInvariantViolation signals a broken aggregate invariant.
	CodeInvariantViolation Code = "invariant_violation"
	// CodeInvalidInput signals a malformed value at a trust boundary.
	CodeInvalidInput Code = "invalid_input"
	// CodeBadRequest signals an unparseable or incomplete request.
	CodeBadRequest Code = "bad_request"
	// CodeInternal signals an unexpected internal failure.
	CodeInternal Code = "internal_error"
)

// Error is a domain error with a machine-readable code.
// Details carries the ordered per-rule messages for validation errors.
type Error struct {
	Code    Code
	Message string
	Details []string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is/As chains.
func (e *Error) Unwrap() error {
	return e.cause
}

// New constructs a domain error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf constructs a domain error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
// Returns nil if err is nil.
func Wrap(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// Validation constructs a CodeValidation error carrying the ordered rule
// messages. The summary message joins them so plain logging stays readable.
func Validation(messages []string) *Error {
	return &Error{
		Code:    CodeValidation,
		Message: strings.Join(messages, "; "),
		Details: messages,
	}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// Is is a readability alias for HasCode.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf extracts the code from err, or CodeInternal when err carries none.
func CodeOf(err error) Code {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return CodeInternal
}

// DetailsOf extracts the ordered detail messages, if any.
func DetailsOf(err error) []string {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}
