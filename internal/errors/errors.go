// Package errors provides standardized domain errors that express business intent
// rather than infrastructure details. These errors should be used by use cases
// and mapped to appropriate HTTP status codes by handlers.
package errors

import (
	"errors"
	"fmt"
)

// Standard domain errors that can be used across all domain modules.
var (
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a conflict with existing data (e.g., duplicate key).
	ErrConflict = errors.New("conflict")

	// ErrInvalidInput indicates the input data is invalid or fails validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates the request lacks valid authentication credentials.
	// Gateway 401 responses map here; buffered events are kept, not dropped.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrGatewayUnavailable indicates a transient remote failure (network error,
	// timeout, 5xx). Events that hit this error are buffered and retried.
	ErrGatewayUnavailable = errors.New("gateway unavailable")

	// ErrUnknownEntity indicates the remote side rejected a reference to an
	// entity it does not know (e.g., a locally generated run id).
	ErrUnknownEntity = errors.New("unknown entity")

	// ErrMalformedPayload indicates a buffered payload is missing required data
	// and can never be delivered. Not retryable.
	ErrMalformedPayload = errors.New("malformed payload")
)

// New creates a new error with the given message.
// This is a convenience wrapper around errors.New for consistency.
func New(message string) error {
	return errors.New(message)
}

// Wrap wraps an error with additional context while preserving the error chain.
// Use this to add context at each layer without losing the original error type.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is reports whether any error in err's tree matches target.
// This is a convenience wrapper around errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
// This is a convenience wrapper around errors.As.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// IsRetryable reports whether a delivery failure leaves the buffered event
// eligible for a future flush pass. Only structurally broken payloads are
// permanent; authentication failures keep their events and surface through
// the connection state instead of being retried blindly.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrMalformedPayload) && !errors.Is(err, ErrInvalidInput)
}
