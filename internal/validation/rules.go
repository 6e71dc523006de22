// Package validation provides custom validation rules for the application.
package validation

import (
	"regexp"

	"github.com/google/uuid"
	validation "github.com/jellydator/validation"

	apperrors "github.com/allisson/agentrelay/internal/errors"
)

var (
	// correlationIDRegex limits correlation ids to an opaque but safe charset.
	correlationIDRegex = regexp.MustCompile(`^[a-zA-Z0-9._\-]{1,128}$`)
)

// WrapValidationError wraps validation errors as domain ErrInvalidInput
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

// UUID validates that a string value parses as a UUID.
type UUID struct{}

// Validate checks if the value is a valid UUID string.
func (u UUID) Validate(value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return validation.NewError("validation_uuid", "must be a string")
	}
	if s == "" {
		// Emptiness is the concern of validation.Required, not this rule.
		return nil
	}
	if _, err := uuid.Parse(s); err != nil {
		return validation.NewError("validation_uuid", "must be a valid UUID")
	}
	return nil
}

// CorrelationID validates an opaque client-chosen correlation identifier.
type CorrelationID struct{}

// Validate checks that the value is a short, filesystem- and URL-safe string.
func (c CorrelationID) Validate(value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return validation.NewError("validation_correlation_id", "must be a string")
	}
	if s == "" {
		return nil
	}
	if !correlationIDRegex.MatchString(s) {
		return validation.NewError(
			"validation_correlation_id",
			"must be 1-128 characters of letters, digits, '.', '_' or '-'",
		)
	}
	return nil
}
