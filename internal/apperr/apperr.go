// Package apperr defines the error taxonomy surfaced at the API
// boundary. Every failure is classified into exactly one kind so call
// sites can branch on category instead of matching error strings.
package apperr

import (
	"errors"
	"fmt"
)

// Kind discriminates error categories. The string value doubles as the
// wire-level error code.
type Kind string

const (
	KindValidation Kind = "VALIDATION_ERROR"
	KindAuth       Kind = "AUTH_ERROR"
	KindNotFound   Kind = "NOT_FOUND"
	KindExpired    Kind = "BLOCKHASH_EXPIRED"
	KindSlippage   Kind = "SLIPPAGE_EXCEEDED"
	KindNoRoute    Kind = "NO_ROUTE"
	KindInternal   Kind = "INTERNAL_ERROR"
)

// Error carries a discriminated kind alongside the message. Retryable
// marks transient network-state failures the caller may resume from.
type Error struct {
	Kind      Kind
	Message   string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation creates a validation error. Never touches persisted state.
func Validation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// Auth creates an authentication/authorization error.
func Auth(message string) *Error {
	return &Error{Kind: KindAuth, Message: message}
}

// NotFound creates a not-found error.
func NotFound(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Expired creates a retryable anchor-expiry error.
func Expired(message string, err error) *Error {
	return &Error{Kind: KindExpired, Message: message, Retryable: true, Err: err}
}

// Slippage creates a slippage-exceeded error. It is retryable until the
// escalation ladder's ceiling, at which point callers mark it terminal
// via Terminal.
func Slippage(message string, err error) *Error {
	return &Error{Kind: KindSlippage, Message: message, Retryable: true, Err: err}
}

// NoRoute creates a terminal no-viable-route error.
func NoRoute(message string) *Error {
	return &Error{Kind: KindNoRoute, Message: message}
}

// Internal wraps an unclassified failure. The wrapped error is kept for
// the audit trail; callers must not leak it to API responses.
func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// Terminal strips the retryable flag, for retryable kinds that have
// exhausted their budget (e.g. slippage past the ladder ceiling).
func Terminal(e *Error) *Error {
	return &Error{Kind: e.Kind, Message: e.Message, Retryable: false, Err: e.Err}
}

// KindOf extracts the kind of err, defaulting to KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsRetryable reports whether err is a transient-retryable failure.
func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Retryable
}
