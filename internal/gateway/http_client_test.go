package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/allisson/agentrelay/internal/errors"
	reportingDomain "github.com/allisson/agentrelay/internal/reporting/domain"
)

func testClient(t *testing.T, handler http.Handler) *HTTPClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewHTTPClient(HTTPClientConfig{
		BaseURL: server.URL,
		Token:   "test-token",
		Timeout: 2 * time.Second,
	}, nil)
}

func testReportingContext() reportingDomain.ReportingContext {
	return reportingDomain.ReportingContext{
		InitiativeID:  "0195e7a3-1f7a-7bbf-9a1e-2f2f51a7b001",
		CorrelationID: "session-42",
		SourceClient:  reportingDomain.SourceClaudeCode,
	}
}

func TestEmitActivity(t *testing.T) {
	t.Run("sends-auth-idempotency-and-identity-headers", func(t *testing.T) {
		var gotPath, gotAuth, gotKey, gotCorrelation string
		client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotAuth = r.Header.Get("Authorization")
			gotKey = r.Header.Get("Idempotency-Key")
			gotCorrelation = r.Header.Get("X-Correlation-ID")
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "act-1"})
		}))

		id, err := client.EmitActivity(context.Background(), testReportingContext(), ActivityInput{
			Message:        "compiling",
			IdempotencyKey: "key-1",
		})

		require.NoError(t, err)
		assert.Equal(t, "act-1", id)
		assert.Equal(t, "/v1/initiatives/0195e7a3-1f7a-7bbf-9a1e-2f2f51a7b001/activities", gotPath)
		assert.Equal(t, "Bearer test-token", gotAuth)
		assert.Equal(t, "key-1", gotKey)
		assert.Equal(t, "session-42", gotCorrelation)
		assert.Equal(t, ConnectionStateConnected, client.ConnectionState())
	})

	t.Run("5xx-maps-to-gateway-unavailable", func(t *testing.T) {
		client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))

		_, err := client.EmitActivity(context.Background(), testReportingContext(), ActivityInput{Message: "m"})

		assert.True(t, apperrors.Is(err, apperrors.ErrGatewayUnavailable))
		assert.Equal(t, ConnectionStateUnreachable, client.ConnectionState())
	})

	t.Run("401-maps-to-unauthorized-and-flips-state", func(t *testing.T) {
		client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
		}))

		_, err := client.EmitActivity(context.Background(), testReportingContext(), ActivityInput{Message: "m"})

		assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))
		assert.Equal(t, ConnectionStateUnauthenticated, client.ConnectionState())
	})

	t.Run("404-maps-to-unknown-entity", func(t *testing.T) {
		client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "unknown run"})
		}))

		_, err := client.EmitActivity(context.Background(), testReportingContext(), ActivityInput{Message: "m"})

		assert.True(t, apperrors.Is(err, apperrors.ErrUnknownEntity))
	})

	t.Run("unreachable-server-maps-to-gateway-unavailable", func(t *testing.T) {
		client := NewHTTPClient(HTTPClientConfig{
			BaseURL: "http://127.0.0.1:1",
			Timeout: 500 * time.Millisecond,
		}, nil)

		_, err := client.EmitActivity(context.Background(), testReportingContext(), ActivityInput{Message: "m"})

		assert.True(t, apperrors.Is(err, apperrors.ErrGatewayUnavailable))
		assert.Equal(t, ConnectionStateUnreachable, client.ConnectionState())
	})
}

func TestUpdateEntity(t *testing.T) {
	var gotMethod, gotPath string
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "task-9"})
	}))

	id, err := client.UpdateEntity(context.Background(), testReportingContext(), EntityUpdateInput{
		EntityType: "task",
		EntityID:   "task-9",
		Fields:     map[string]any{"status": "done"},
	})

	require.NoError(t, err)
	assert.Equal(t, "task-9", id)
	assert.Equal(t, http.MethodPatch, gotMethod)
	assert.Equal(t,
		"/v1/initiatives/0195e7a3-1f7a-7bbf-9a1e-2f2f51a7b001/entities/task/task-9",
		gotPath,
	)
}

func TestSnapshot(t *testing.T) {
	t.Run("decodes-entities", func(t *testing.T) {
		client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(Snapshot{
				InitiativeID: "init-1",
				Entities: []SnapshotEntity{
					{Type: "task", ID: "t-1", Status: "in_progress"},
				},
			})
		}))

		snapshot, err := client.Snapshot(context.Background(), "init-1")

		require.NoError(t, err)
		require.Len(t, snapshot.Entities, 1)
		assert.Equal(t, "t-1", snapshot.Entities[0].ID)
		assert.False(t, snapshot.FetchedAt.IsZero())
	})

	t.Run("5xx-is-transient", func(t *testing.T) {
		client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))

		_, err := client.Snapshot(context.Background(), "init-1")
		assert.True(t, apperrors.Is(err, apperrors.ErrGatewayUnavailable))
	})
}
