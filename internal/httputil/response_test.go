package httputil_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	apperrors "github.com/allisson/agentrelay/internal/errors"
	"github.com/allisson/agentrelay/internal/httputil"
)

func TestHandleErrorGin(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedError  string
	}{
		{
			name:           "not found",
			err:            apperrors.ErrNotFound,
			expectedStatus: http.StatusNotFound,
			expectedError:  "not_found",
		},
		{
			name:           "invalid input",
			err:            apperrors.Wrap(apperrors.ErrInvalidInput, "message is required"),
			expectedStatus: http.StatusUnprocessableEntity,
			expectedError:  "invalid_input",
		},
		{
			name:           "malformed payload",
			err:            apperrors.ErrMalformedPayload,
			expectedStatus: http.StatusUnprocessableEntity,
			expectedError:  "invalid_input",
		},
		{
			name:           "unauthorized",
			err:            apperrors.ErrUnauthorized,
			expectedStatus: http.StatusUnauthorized,
			expectedError:  "unauthorized",
		},
		{
			name:           "unknown entity",
			err:            apperrors.ErrUnknownEntity,
			expectedStatus: http.StatusNotFound,
			expectedError:  "unknown_entity",
		},
		{
			name:           "gateway unavailable",
			err:            apperrors.ErrGatewayUnavailable,
			expectedStatus: http.StatusBadGateway,
			expectedError:  "gateway_unavailable",
		},
		{
			name:           "internal error",
			err:            assert.AnError,
			expectedStatus: http.StatusInternalServerError,
			expectedError:  "internal_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			httputil.HandleErrorGin(c, tt.err, nil)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedError)
		})
	}
}

func TestParseLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newContext := func(url string) *gin.Context {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, url, nil)
		return c
	}

	t.Run("default", func(t *testing.T) {
		limit, err := httputil.ParseLimit(newContext("/"))
		assert.NoError(t, err)
		assert.Equal(t, 50, limit)
	})

	t.Run("custom", func(t *testing.T) {
		limit, err := httputil.ParseLimit(newContext("/?limit=10"))
		assert.NoError(t, err)
		assert.Equal(t, 10, limit)
	})

	t.Run("out of range", func(t *testing.T) {
		_, err := httputil.ParseLimit(newContext("/?limit=0"))
		assert.True(t, apperrors.Is(err, apperrors.ErrInvalidInput))

		_, err = httputil.ParseLimit(newContext("/?limit=201"))
		assert.True(t, apperrors.Is(err, apperrors.ErrInvalidInput))
	})

	t.Run("not an integer", func(t *testing.T) {
		_, err := httputil.ParseLimit(newContext("/?limit=abc"))
		assert.True(t, apperrors.Is(err, apperrors.ErrInvalidInput))
	})
}
