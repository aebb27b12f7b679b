// Package domainerrors provides coded errors for the service layer. Codes
// classify failures for transport mapping and logging; the message carries
// the stable machine-readable identifier surfaced to callers.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error.
type Code string

const (
	CodeValidation         Code = "validation_error"
	CodeInvalidInput       Code = "invalid_input"
	CodeBadRequest         Code = "bad_request"
	CodeNotFound           Code = "not_found"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeConflict           Code = "conflict"
	CodeInvariantViolation Code = "invariant_violation"
	CodeInternal           Code = "internal_error"
)

// Error is a coded domain error. Message is a stable identifier, not prose:
// callers match on it programmatically, so changing one is a breaking change.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is supports errors.Is comparison against another coded error: two errors
// match when code and message identifier agree.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == other.Code && e.Message == other.Message
}

// New constructs a coded error with a stable message identifier.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf constructs a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error, preserving it for
// errors.Is/errors.As chains.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var domainErr *Error
	if !errors.As(err, &domainErr) {
		return false
	}
	return domainErr.Code == code
}

// Is reports whether err carries the same code and message as target.
func Is(err error, target *Error) bool {
	var domainErr *Error
	if !errors.As(err, &domainErr) {
		return false
	}
	return domainErr.Code == target.Code && domainErr.Message == target.Message
}

// CodeOf extracts the code from err, defaulting to CodeInternal for errors
// that did not originate in the domain.
func CodeOf(err error) Code {
	var domainErr *Error
	if !errors.As(err, &domainErr) {
		return CodeInternal
	}
	return domainErr.Code
}

// MessageOf extracts the stable message identifier from err, or empty for
// non-domain errors.
func MessageOf(err error) string {
	var domainErr *Error
	if !errors.As(err, &domainErr) {
		return ""
	}
	return domainErr.Message
}
