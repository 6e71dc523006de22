package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/allisson/agentrelay/internal/errors"
)

func TestUUIDRule(t *testing.T) {
	rule := UUID{}

	t.Run("accepts-valid-uuid", func(t *testing.T) {
		assert.NoError(t, rule.Validate("0195e7a3-1f7a-7bbf-9a1e-2f2f51a7b001"))
	})

	t.Run("accepts-empty-string", func(t *testing.T) {
		assert.NoError(t, rule.Validate(""))
	})

	t.Run("rejects-garbage", func(t *testing.T) {
		assert.Error(t, rule.Validate("not-a-uuid"))
	})

	t.Run("rejects-non-string", func(t *testing.T) {
		assert.Error(t, rule.Validate(42))
	})
}

func TestCorrelationIDRule(t *testing.T) {
	rule := CorrelationID{}

	t.Run("accepts-opaque-ids", func(t *testing.T) {
		assert.NoError(t, rule.Validate("relay-9f86d081884c7d65"))
		assert.NoError(t, rule.Validate("session_42.a"))
	})

	t.Run("rejects-unsafe-characters", func(t *testing.T) {
		assert.Error(t, rule.Validate("has spaces"))
		assert.Error(t, rule.Validate("slash/id"))
	})
}

func TestWrapValidationError(t *testing.T) {
	t.Run("nil-passes-through", func(t *testing.T) {
		assert.NoError(t, WrapValidationError(nil))
	})

	t.Run("wraps-as-invalid-input", func(t *testing.T) {
		err := WrapValidationError(assert.AnError)
		assert.True(t, apperrors.Is(err, apperrors.ErrInvalidInput))
	})
}
