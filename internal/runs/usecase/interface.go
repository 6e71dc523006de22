// Package usecase implements agent-run tracking and the reconciler that
// reaps runs whose OS process died without reporting completion.
package usecase

import (
	"context"

	reportingUsecase "github.com/allisson/agentrelay/internal/reporting/usecase"
	"github.com/allisson/agentrelay/internal/runs/domain"
	"github.com/allisson/agentrelay/internal/transcript"
)

// RunRepository defines the run record persistence operations.
type RunRepository interface {
	Save(record *domain.AgentRunRecord) error
	Get(runID string) (*domain.AgentRunRecord, error)
	List() ([]*domain.AgentRunRecord, error)
	ListByStatus(status domain.RunStatus) ([]*domain.AgentRunRecord, error)
}

// ProcessProbe reports whether a pid identifies a live OS process. It must
// not fail for already-dead pids; absence is an answer, not an error.
type ProcessProbe interface {
	IsAlive(pid int) bool
}

// TranscriptSummarizer aggregates a local session transcript.
type TranscriptSummarizer interface {
	Summarize(sessionID string) (*transcript.Summary, error)
}

// CompletionEmitter is the slice of the reporting emitter the reconciler
// needs to submit synthesized completion events.
type CompletionEmitter interface {
	RecordOutcome(ctx context.Context, input reportingUsecase.RecordOutcomeInput) (*reportingUsecase.Confirmation, error)
	RecordRetro(ctx context.Context, input reportingUsecase.RecordRetroInput) (*reportingUsecase.Confirmation, error)
}

// StartRunInput is the input for registering a started agent run.
type StartRunInput struct {
	RunID        string
	AgentID      string
	SessionID    string
	PID          int
	InitiativeID string
	TaskID       string
}

// ReconcileResult summarizes one reconcile pass.
type ReconcileResult struct {
	Scanned int `json:"scanned"`
	Reaped  int `json:"reaped"`
}

// RunUseCase defines run lifecycle operations plus reconciliation.
type RunUseCase interface {
	StartRun(ctx context.Context, input StartRunInput) (*domain.AgentRunRecord, error)
	StopRun(ctx context.Context, runID string) (*domain.AgentRunRecord, error)
	ListRuns(ctx context.Context) ([]*domain.AgentRunRecord, error)
	Reconcile(ctx context.Context) (*ReconcileResult, error)
}
