// Package errs provides the unified error type used across all of tabled.
//
// Every subsystem (engine, storage, server, …) wraps failures into *errs.Error
// before returning them to callers. Callers use the Is* predicates to handle
// errors without importing subsystem-specific packages; the HTTP layer maps
// kinds to status codes.
//
// Usage:
//
//	// In the engine — construct a domain error:
//	return errs.NotFound("table %q not found", name)
//
//	// In a handler — check error kind:
//	if errs.IsNotFound(err) {
//	    http.Error(w, "not found", http.StatusNotFound)
//	}
package errs

import (
	"errors"
	"fmt"
)

// Kind categorises an error into the domain taxonomy. Anything outside the
// four request-level kinds is KindInternal and surfaces as a server error.
type Kind int

const (
	KindInternal   Kind = iota
	KindNotFound        // unknown table, unknown row, undecodable identity
	KindForbidden       // role lacks the action, read-only table, self-deletion
	KindConflict        // uniqueness violation, duplicate seed attempt
	KindBadRequest      // malformed input, constraint violation, empty update
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindBadRequest:
		return "bad_request"
	default:
		return "internal"
	}
}

// Error is the single error type returned by tabled's domain layers.
// Fields carries the names of the fields the failure is attributed to,
// when the failure can be localised.
type Error struct {
	Kind    Kind
	Message string
	Fields  []string
	Cause   error // original lower-level error, preserved for logging
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is / errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithFields attaches field attribution to the error and returns it.
func (e *Error) WithFields(fields ...string) *Error {
	e.Fields = fields
	return e
}

// --- Constructors ---

// New creates an *Error with the given kind and message and no cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap creates an *Error with the given kind, message, and underlying cause.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// NotFound creates a KindNotFound error with a formatted message.
func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Forbidden creates a KindForbidden error with a formatted message.
func Forbidden(format string, args ...any) *Error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

// Conflict creates a KindConflict error with a formatted message.
func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// BadRequest creates a KindBadRequest error with a formatted message.
func BadRequest(format string, args ...any) *Error {
	return &Error{Kind: KindBadRequest, Message: fmt.Sprintf(format, args...)}
}

// --- Predicates ---

// IsNotFound reports whether err represents a missing table, row, or identity.
func IsNotFound(err error) bool {
	return kindOf(err) == KindNotFound
}

// IsForbidden reports whether err is an access control denial.
func IsForbidden(err error) bool {
	return kindOf(err) == KindForbidden
}

// IsConflict reports whether err is a uniqueness or duplicate-seed conflict.
func IsConflict(err error) bool {
	return kindOf(err) == KindConflict
}

// IsBadRequest reports whether err was caused by bad input from the caller.
func IsBadRequest(err error) bool {
	return kindOf(err) == KindBadRequest
}

// kindOf extracts the Kind from any error in the chain.
func kindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
