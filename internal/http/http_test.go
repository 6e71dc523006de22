package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/agentrelay/internal/diagnostics"
	"github.com/allisson/agentrelay/internal/gateway"
	gatewayMocks "github.com/allisson/agentrelay/internal/gateway/mocks"
	outboxDomain "github.com/allisson/agentrelay/internal/outbox/domain"
	outboxRepository "github.com/allisson/agentrelay/internal/outbox/repository"
	outboxUsecase "github.com/allisson/agentrelay/internal/outbox/usecase"
	"github.com/allisson/agentrelay/internal/persistence"
	reportingDomain "github.com/allisson/agentrelay/internal/reporting/domain"
	runsDomain "github.com/allisson/agentrelay/internal/runs/domain"
	runsRepository "github.com/allisson/agentrelay/internal/runs/repository"
	runsUsecase "github.com/allisson/agentrelay/internal/runs/usecase"
	"github.com/allisson/agentrelay/internal/scheduler"
)

type fakeConnection struct {
	state gateway.ConnectionState
}

func (f *fakeConnection) ConnectionState() gateway.ConnectionState {
	return f.state
}

type fakeSyncState struct{}

func (f *fakeSyncState) State() scheduler.State {
	return scheduler.State{}
}

// fakeRunUseCase serves canned run records.
type fakeRunUseCase struct {
	records []*runsDomain.AgentRunRecord
}

func (f *fakeRunUseCase) StartRun(ctx context.Context, input runsUsecase.StartRunInput) (*runsDomain.AgentRunRecord, error) {
	return nil, nil
}

func (f *fakeRunUseCase) StopRun(ctx context.Context, runID string) (*runsDomain.AgentRunRecord, error) {
	return nil, nil
}

func (f *fakeRunUseCase) ListRuns(ctx context.Context) ([]*runsDomain.AgentRunRecord, error) {
	return f.records, nil
}

func (f *fakeRunUseCase) Reconcile(ctx context.Context) (*runsUsecase.ReconcileResult, error) {
	return &runsUsecase.ReconcileResult{}, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := persistence.NewStore(nil)
	queueRepo := outboxRepository.NewFileQueueRepository(t.TempDir(), store, nil)
	runRepo := runsRepository.NewFileRunRepository(t.TempDir()+"/runs.json", store)

	rctx := reportingDomain.ReportingContext{
		InitiativeID:  "0195e7a3-1f7a-7bbf-9a1e-2f2f51a7b001",
		CorrelationID: "session-42",
		SourceClient:  reportingDomain.SourceClaudeCode,
	}
	event, err := outboxDomain.NewOutboxEvent(
		rctx,
		&outboxDomain.ProgressPayload{Message: "compiling", IdempotencyKey: "k-1"},
		outboxDomain.ActivityItem{Title: "Progress update", Detail: "compiling"},
	)
	require.NoError(t, err)
	require.NoError(t, queueRepo.Append(rctx.QueueKey(), event))

	replay := outboxUsecase.NewReplayUseCase(queueRepo, &gatewayMocks.MockClient{}, nil)
	diag := diagnostics.NewService(
		queueRepo,
		replay,
		runRepo,
		&fakeConnection{state: gateway.ConnectionStateUnknown},
		&fakeSyncState{},
	)

	return NewServer(ServerConfig{
		Host:        "127.0.0.1",
		Port:        0,
		Diagnostics: diag,
		Activities:  queueRepo,
		Runs: &fakeRunUseCase{records: []*runsDomain.AgentRunRecord{
			{RunID: "r-1", AgentID: "builder", PID: 4242, Status: runsDomain.RunStatusRunning},
		}},
		Logger: nil,
	})
}

func doRequest(t *testing.T, server *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	server.GetHandler().ServeHTTP(w, req)
	return w
}

func TestDiagnosticsServer(t *testing.T) {
	server := newTestServer(t)

	t.Run("healthz", func(t *testing.T) {
		w := doRequest(t, server, "/healthz")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "healthy")
	})

	t.Run("doctor", func(t *testing.T) {
		w := doRequest(t, server, "/v1/doctor")
		require.Equal(t, http.StatusOK, w.Code)

		var report diagnostics.Report
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
		assert.Equal(t, 1, report.TotalPending)
		assert.Equal(t, gateway.ConnectionStateUnknown, report.Connection)
		assert.Equal(t, outboxDomain.ReplayStatusIdle, report.Replay.Status)
	})

	t.Run("activity-feed", func(t *testing.T) {
		w := doRequest(t, server, "/v1/activity")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Progress update")
	})

	t.Run("activity-feed-rejects-bad-limit", func(t *testing.T) {
		w := doRequest(t, server, "/v1/activity?limit=0")
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("queues", func(t *testing.T) {
		w := doRequest(t, server, "/v1/outbox/queues")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "session-42")
		assert.Contains(t, w.Body.String(), `"total_pending":1`)
	})

	t.Run("runs", func(t *testing.T) {
		w := doRequest(t, server, "/v1/runs")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "r-1")
	})
}

func TestParseOrigins(t *testing.T) {
	assert.Nil(t, parseOrigins(""))
	assert.Equal(t, []string{"http://localhost:3000"}, parseOrigins(" http://localhost:3000 "))
	assert.Equal(t,
		[]string{"http://a.test", "http://b.test"},
		parseOrigins("http://a.test, http://b.test,"),
	)
}

func TestCreateCORSMiddleware(t *testing.T) {
	assert.Nil(t, createCORSMiddleware(false, "http://a.test", nil))
	assert.Nil(t, createCORSMiddleware(true, "", nil))
	assert.NotNil(t, createCORSMiddleware(true, "http://a.test", nil))
}
