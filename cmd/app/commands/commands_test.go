package commands

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/agentrelay/internal/diagnostics"
	"github.com/allisson/agentrelay/internal/gateway"
	outboxDomain "github.com/allisson/agentrelay/internal/outbox/domain"
	reportingUsecase "github.com/allisson/agentrelay/internal/reporting/usecase"
	runsDomain "github.com/allisson/agentrelay/internal/runs/domain"
	runsUsecase "github.com/allisson/agentrelay/internal/runs/usecase"
)

// fakeSyncer records whether Sync was called.
type fakeSyncer struct {
	called bool
	err    error
}

func (f *fakeSyncer) Sync(ctx context.Context) error {
	f.called = true
	return f.err
}

// fakeReplay serves a canned replay state.
type fakeReplay struct {
	flushed bool
	state   outboxDomain.ReplayState
	err     error
}

func (f *fakeReplay) Flush(ctx context.Context) error {
	f.flushed = true
	return f.err
}

func (f *fakeReplay) State() outboxDomain.ReplayState {
	return f.state
}

// fakeRuns serves canned reconcile results and records.
type fakeRuns struct {
	result  *runsUsecase.ReconcileResult
	started *runsDomain.AgentRunRecord
	stopped *runsDomain.AgentRunRecord
	err     error
}

func (f *fakeRuns) StartRun(ctx context.Context, input runsUsecase.StartRunInput) (*runsDomain.AgentRunRecord, error) {
	return f.started, f.err
}

func (f *fakeRuns) StopRun(ctx context.Context, runID string) (*runsDomain.AgentRunRecord, error) {
	return f.stopped, f.err
}

func (f *fakeRuns) ListRuns(ctx context.Context) ([]*runsDomain.AgentRunRecord, error) {
	return nil, nil
}

func (f *fakeRuns) Reconcile(ctx context.Context) (*runsUsecase.ReconcileResult, error) {
	return f.result, f.err
}

// fakeReporter serves a canned doctor report.
type fakeReporter struct {
	report *diagnostics.Report
	err    error
}

func (f *fakeReporter) Report() (*diagnostics.Report, error) {
	return f.report, f.err
}

// fakeEmitter serves a canned confirmation for every emit operation.
type fakeEmitter struct {
	confirmation *reportingUsecase.Confirmation
	err          error
}

func (f *fakeEmitter) EmitActivity(ctx context.Context, input reportingUsecase.EmitActivityInput) (*reportingUsecase.Confirmation, error) {
	return f.confirmation, f.err
}

func (f *fakeEmitter) RecordDecision(ctx context.Context, input reportingUsecase.RecordDecisionInput) (*reportingUsecase.Confirmation, error) {
	return f.confirmation, f.err
}

func (f *fakeEmitter) ApplyChangeset(ctx context.Context, input reportingUsecase.ApplyChangesetInput) (*reportingUsecase.Confirmation, error) {
	return f.confirmation, f.err
}

func (f *fakeEmitter) RegisterArtifact(ctx context.Context, input reportingUsecase.RegisterArtifactInput) (*reportingUsecase.Confirmation, error) {
	return f.confirmation, f.err
}

func (f *fakeEmitter) RecordOutcome(ctx context.Context, input reportingUsecase.RecordOutcomeInput) (*reportingUsecase.Confirmation, error) {
	return f.confirmation, f.err
}

func (f *fakeEmitter) RecordRetro(ctx context.Context, input reportingUsecase.RecordRetroInput) (*reportingUsecase.Confirmation, error) {
	return f.confirmation, f.err
}

func TestRunSync(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()

	t.Run("text-output", func(t *testing.T) {
		syncer := &fakeSyncer{}
		replay := &fakeReplay{state: outboxDomain.ReplayState{Status: outboxDomain.ReplayStatusSuccess}}

		var out bytes.Buffer
		err := RunSync(ctx, syncer, replay, logger, &out, "text")

		require.NoError(t, err)
		assert.True(t, syncer.called)
		assert.Contains(t, out.String(), "Replay status: success")
	})

	t.Run("json-output", func(t *testing.T) {
		replay := &fakeReplay{state: outboxDomain.ReplayState{Status: outboxDomain.ReplayStatusError, LastError: "boom"}}

		var out bytes.Buffer
		err := RunSync(ctx, &fakeSyncer{}, replay, logger, &out, "json")

		require.NoError(t, err)
		assert.Contains(t, out.String(), `"status": "error"`)
		assert.Contains(t, out.String(), `"last_error": "boom"`)
	})

	t.Run("sync-failure", func(t *testing.T) {
		err := RunSync(ctx, &fakeSyncer{err: assert.AnError}, &fakeReplay{}, logger, &bytes.Buffer{}, "text")
		require.Error(t, err)
	})

	t.Run("invalid-format", func(t *testing.T) {
		err := RunSync(ctx, &fakeSyncer{}, &fakeReplay{}, logger, &bytes.Buffer{}, "yaml")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid format")
	})
}

func TestRunFlush(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()

	t.Run("flushes-and-reports-state", func(t *testing.T) {
		replay := &fakeReplay{state: outboxDomain.ReplayState{Status: outboxDomain.ReplayStatusSuccess}}

		var out bytes.Buffer
		err := RunFlush(ctx, replay, logger, &out, "text")

		require.NoError(t, err)
		assert.True(t, replay.flushed)
		assert.Contains(t, out.String(), "success")
	})

	t.Run("flush-failure", func(t *testing.T) {
		err := RunFlush(ctx, &fakeReplay{err: assert.AnError}, logger, &bytes.Buffer{}, "text")
		require.Error(t, err)
	})
}

func TestRunReconcile(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()

	t.Run("text-output", func(t *testing.T) {
		runs := &fakeRuns{result: &runsUsecase.ReconcileResult{Scanned: 3, Reaped: 1}}

		var out bytes.Buffer
		err := RunReconcile(ctx, runs, logger, &out, "text")

		require.NoError(t, err)
		assert.Contains(t, out.String(), "Scanned 3 running record(s), reaped 1 dead run(s)")
	})

	t.Run("json-output", func(t *testing.T) {
		runs := &fakeRuns{result: &runsUsecase.ReconcileResult{Scanned: 2, Reaped: 2}}

		var out bytes.Buffer
		err := RunReconcile(ctx, runs, logger, &out, "json")

		require.NoError(t, err)
		assert.Contains(t, out.String(), `"reaped": 2`)
	})
}

func TestRunDoctor(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()
	report := &diagnostics.Report{
		GeneratedAt:  time.Now().UTC(),
		Connection:   gateway.ConnectionStateConnected,
		Replay:       outboxDomain.ReplayState{Status: outboxDomain.ReplayStatusIdle},
		TotalPending: 0,
	}

	t.Run("text-output", func(t *testing.T) {
		var out bytes.Buffer
		err := RunDoctor(ctx, &fakeReporter{report: report}, logger, &out, "text")

		require.NoError(t, err)
		assert.Contains(t, out.String(), "gateway:      connected")
	})

	t.Run("json-output", func(t *testing.T) {
		var out bytes.Buffer
		err := RunDoctor(ctx, &fakeReporter{report: report}, logger, &out, "json")

		require.NoError(t, err)
		assert.Contains(t, out.String(), `"connection": "connected"`)
	})

	t.Run("report-failure", func(t *testing.T) {
		err := RunDoctor(ctx, &fakeReporter{err: assert.AnError}, logger, &bytes.Buffer{}, "text")
		require.Error(t, err)
	})
}

func TestRunEmitActivity(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()

	t.Run("delivered", func(t *testing.T) {
		emitter := &fakeEmitter{confirmation: &reportingUsecase.Confirmation{
			Delivered: true,
			RemoteID:  "act-1",
			Message:   "recorded remotely as act-1",
		}}

		var out bytes.Buffer
		err := RunEmitActivity(ctx, emitter, logger, &out, "compiling", "", "", "session-42", "text")

		require.NoError(t, err)
		assert.Contains(t, out.String(), "Delivered: recorded remotely as act-1")
	})

	t.Run("buffered", func(t *testing.T) {
		emitter := &fakeEmitter{confirmation: &reportingUsecase.Confirmation{
			Delivered: false,
			Message:   "saved locally; will sync when the gateway is reachable",
		}}

		var out bytes.Buffer
		err := RunEmitActivity(ctx, emitter, logger, &out, "compiling", "", "", "session-42", "text")

		require.NoError(t, err)
		assert.Contains(t, out.String(), "Buffered: saved locally")
	})

	t.Run("emit-failure", func(t *testing.T) {
		emitter := &fakeEmitter{err: assert.AnError}
		err := RunEmitActivity(ctx, emitter, logger, &bytes.Buffer{}, "compiling", "", "", "", "text")
		require.Error(t, err)
	})
}

func TestRunStartAndStopRun(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()

	t.Run("start", func(t *testing.T) {
		runs := &fakeRuns{started: &runsDomain.AgentRunRecord{RunID: "r-1", PID: 4242}}

		var out bytes.Buffer
		err := RunStartRun(ctx, runs, logger, &out, "", "builder", "s-1", 4242, "", "", "text")

		require.NoError(t, err)
		assert.Contains(t, out.String(), "Run r-1 registered (pid 4242)")
	})

	t.Run("start-requires-agent-id", func(t *testing.T) {
		err := RunStartRun(ctx, &fakeRuns{}, logger, &bytes.Buffer{}, "", "", "", 4242, "", "", "text")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "agent-id is required")
	})

	t.Run("start-requires-positive-pid", func(t *testing.T) {
		err := RunStartRun(ctx, &fakeRuns{}, logger, &bytes.Buffer{}, "", "builder", "", 0, "", "", "text")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "pid must be a positive number")
	})

	t.Run("stop", func(t *testing.T) {
		runs := &fakeRuns{stopped: &runsDomain.AgentRunRecord{RunID: "r-1", Status: runsDomain.RunStatusStopped}}

		var out bytes.Buffer
		err := RunStopRun(ctx, runs, logger, &out, "r-1", "text")

		require.NoError(t, err)
		assert.Contains(t, out.String(), "Run r-1 stopped")
	})

	t.Run("stop-requires-run-id", func(t *testing.T) {
		err := RunStopRun(ctx, &fakeRuns{}, logger, &bytes.Buffer{}, "", "text")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "run-id is required")
	})
}
