package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	// Ingestion taxonomy
	ErrorTypeInput     ErrorType = "input"
	ErrorTypeNetwork   ErrorType = "network"
	ErrorTypeStorage   ErrorType = "storage"
	ErrorTypePartition ErrorType = "partition"
	ErrorTypeConflict  ErrorType = "conflict"

	// Derived from HTTP responses while fetching media
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeAuth        ErrorType = "auth"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeUnknown     ErrorType = "unknown"
)

var (
	// ErrRunInProgress is returned when a run is requested while another is active.
	ErrRunInProgress = &Error{Type: ErrorTypeConflict, Message: "an ingestion run is already in progress"}

	// ErrEmptyMediaURL is returned for candidates without a media URL.
	ErrEmptyMediaURL = &Error{Type: ErrorTypeInput, Message: "candidate has no media url"}

	// ErrUnknownCategory is returned for categories other than post and reel.
	ErrUnknownCategory = &Error{Type: ErrorTypeInput, Message: "unknown content category"}
)

// Error represents an error with type information
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s error", e.Type)
	if e.Code != 0 {
		msg = fmt.Sprintf("%s (code %d)", msg, e.Code)
	}
	msg += ": " + e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a typed error
func New(t ErrorType, message string) *Error {
	return &Error{Type: t, Message: message}
}

// Wrap attaches a type and message to an underlying error
func Wrap(t ErrorType, err error, message string) *Error {
	return &Error{Type: t, Message: message, Err: err}
}

// Storage wraps a persistence failure
func Storage(err error, message string) *Error {
	return Wrap(ErrorTypeStorage, err, message)
}

// Network wraps a fetch failure
func Network(err error, message string) *Error {
	return Wrap(ErrorTypeNetwork, err, message)
}

// FromStatusCode maps an HTTP status code to a typed error
func FromStatusCode(code int) *Error {
	var t ErrorType
	switch {
	case code == 401 || code == 403:
		t = ErrorTypeAuth
	case code == 404 || code == 410:
		t = ErrorTypeNotFound
	case code == 429:
		t = ErrorTypeRateLimit
	case code >= 500:
		t = ErrorTypeServerError
	default:
		t = ErrorTypeUnknown
	}
	return &Error{Type: t, Message: fmt.Sprintf("unexpected status code %d", code), Code: code}
}

// TypeOf returns the error type of err, or ErrorTypeUnknown for untyped errors
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// Is reports whether err carries the given type
func Is(err error, t ErrorType) bool {
	return err != nil && TypeOf(err) == t
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError:
		return true
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // Network error
		return true
	case 429:
		return true
	case 401, 403, 404:
		return false
	default:
		return statusCode >= 500
	}
}
