// Package apperr defines the error taxonomy shared by every securities-manager
// service. All engine preconditions surface as an *Error with a machine-readable
// code; handlers translate codes to HTTP statuses and never retry internally.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a machine-readable error code.
type Code string

const (
	InvalidArgument     Code = "INVALID_ARGUMENT"
	Unauthorized        Code = "UNAUTHORIZED"
	Forbidden           Code = "FORBIDDEN"
	NotFound            Code = "NOT_FOUND"
	SequenceViolation   Code = "SEQUENCE_VIOLATION"
	NotReady            Code = "NOT_READY"
	WindowClosed        Code = "WINDOW_CLOSED"
	CapacityExceeded    Code = "CAPACITY_EXCEEDED"
	ResourceMismatch    Code = "RESOURCE_MISMATCH"
	InsufficientPayment Code = "INSUFFICIENT_PAYMENT"
	InsufficientFunds   Code = "INSUFFICIENT_FUNDS"
	SupplyUnavailable   Code = "SUPPLY_UNAVAILABLE"
	NoEventAvailable    Code = "NO_EVENT_AVAILABLE"
	UnsupportedAction   Code = "UNSUPPORTED_ACTION"
	Internal            Code = "INTERNAL"
)

// Error carries a code, an operator-facing message, and optional metadata for
// the response envelope.
type Error struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches errors by code so callers can test against sentinel values.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{Code: code, Message: message, Metadata: metadata}
}

// CodeOf returns the code of err, unwrapping as needed, or Internal for
// foreign errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return Internal
}

// HTTPStatus maps a code to the status the HTTP surface responds with.
func (c Code) HTTPStatus() int {
	switch c {
	case InvalidArgument:
		return http.StatusBadRequest
	case Unauthorized:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case SequenceViolation, NotReady, WindowClosed, ResourceMismatch:
		return http.StatusConflict
	case CapacityExceeded, InsufficientPayment, InsufficientFunds, SupplyUnavailable:
		return http.StatusUnprocessableEntity
	case NoEventAvailable:
		return http.StatusConflict
	case UnsupportedAction:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
