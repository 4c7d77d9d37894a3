// Package apperrors defines the error kinds shared by the services and the HTTP API.
package apperrors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind classifies an application error
type Kind string

// Error kinds
const (
	KindAuthentication Kind = "AUTHENTICATION_ERROR"
	KindAuthorization  Kind = "AUTHORIZATION_ERROR"
	KindNotFound       Kind = "NOT_FOUND"
	KindValidation     Kind = "VALIDATION_ERROR"
	KindState          Kind = "STATE_ERROR"
	KindConflict       Kind = "CONFLICT"
)

// Error is an application error carrying a kind and a human-readable message
type Error struct {
	Kind    Kind
	Message string
	// Fields holds per-field messages for validation errors
	Fields map[string]string
	cause  error
}

// Sentinels for errors.Is comparisons; matching is by kind only
var (
	ErrAuthentication = &Error{Kind: KindAuthentication, Message: "authentication required"}
	ErrAuthorization  = &Error{Kind: KindAuthorization, Message: "not allowed"}
	ErrNotFound       = &Error{Kind: KindNotFound, Message: "not found"}
	ErrValidation     = &Error{Kind: KindValidation, Message: "validation failed"}
	ErrState          = &Error{Kind: KindState, Message: "action not allowed in current state"}
	ErrConflict       = &Error{Kind: KindConflict, Message: "conflict"}
)

// Error implements the error interface
func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}

	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return e.Message + " (" + strings.Join(parts, "; ") + ")"
}

// Is matches any *Error of the same kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Unwrap returns the underlying cause, if any
func (e *Error) Unwrap() error {
	return e.cause
}

func newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Authentication reports a missing or invalid session
func Authentication(format string, args ...interface{}) *Error {
	return newf(KindAuthentication, format, args...)
}

// Authorization reports a caller without the right role for an action
func Authorization(format string, args ...interface{}) *Error {
	return newf(KindAuthorization, format, args...)
}

// NotFound reports a missing order, milestone or related record
func NotFound(format string, args ...interface{}) *Error {
	return newf(KindNotFound, format, args...)
}

// Validation reports a constraint violation on input
func Validation(format string, args ...interface{}) *Error {
	return newf(KindValidation, format, args...)
}

// ValidationFields reports constraint violations keyed by field name
func ValidationFields(message string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: message, Fields: fields}
}

// State reports an action that is invalid for the current order status
func State(format string, args ...interface{}) *Error {
	return newf(KindState, format, args...)
}

// Conflict reports a duplicate, such as a second review for an order
func Conflict(format string, args ...interface{}) *Error {
	return newf(KindConflict, format, args...)
}

// WithCause attaches an underlying error
func (e *Error) WithCause(err error) *Error {
	e.cause = err
	return e
}

// KindOf returns the kind of err, or an empty kind for non-application errors
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}
