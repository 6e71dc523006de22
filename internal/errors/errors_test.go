package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap(t *testing.T) {
	t.Run("wraps-error-with-context", func(t *testing.T) {
		err := Wrap(ErrNotFound, "loading run record")

		assert.Error(t, err)
		assert.True(t, Is(err, ErrNotFound))
		assert.Equal(t, "loading run record: not found", err.Error())
	})

	t.Run("nil-error-returns-nil", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, "context"))
	})

	t.Run("preserves-chain-across-layers", func(t *testing.T) {
		inner := Wrap(ErrGatewayUnavailable, "posting activity")
		outer := fmt.Errorf("flush pass: %w", inner)

		assert.True(t, Is(outer, ErrGatewayUnavailable))
	})
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"gateway-unavailable", Wrap(ErrGatewayUnavailable, "timeout"), true},
		{"unauthorized", ErrUnauthorized, true},
		{"unknown-entity", ErrUnknownEntity, true},
		{"plain-error", New("boom"), true},
		{"malformed-payload", ErrMalformedPayload, false},
		{"invalid-input", Wrap(ErrInvalidInput, "empty message"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, IsRetryable(tt.err))
		})
	}
}
