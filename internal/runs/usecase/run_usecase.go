package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/allisson/agentrelay/internal/errors"
	reportingUsecase "github.com/allisson/agentrelay/internal/reporting/usecase"
	"github.com/allisson/agentrelay/internal/runs/domain"
	"github.com/allisson/agentrelay/internal/transcript"
)

// runUseCase implements RunUseCase.
type runUseCase struct {
	runRepo    RunRepository
	probe      ProcessProbe
	transcript TranscriptSummarizer
	emitter    CompletionEmitter
	logger     *slog.Logger
}

// NewRunUseCase creates the run tracking and reconciliation use case.
func NewRunUseCase(
	runRepo RunRepository,
	probe ProcessProbe,
	summarizer TranscriptSummarizer,
	emitter CompletionEmitter,
	logger *slog.Logger,
) RunUseCase {
	return &runUseCase{
		runRepo:    runRepo,
		probe:      probe,
		transcript: summarizer,
		emitter:    emitter,
		logger:     logger,
	}
}

// StartRun registers a started agent run. A missing run id is generated so
// shell hooks can call this without minting UUIDs themselves.
func (uc *runUseCase) StartRun(ctx context.Context, input StartRunInput) (*domain.AgentRunRecord, error) {
	runID := input.RunID
	if runID == "" {
		runID = uuid.Must(uuid.NewV7()).String()
	}

	record := &domain.AgentRunRecord{
		RunID:        runID,
		AgentID:      input.AgentID,
		SessionID:    input.SessionID,
		PID:          input.PID,
		Status:       domain.RunStatusRunning,
		StartedAt:    time.Now().UTC(),
		InitiativeID: input.InitiativeID,
		TaskID:       input.TaskID,
	}
	if err := uc.runRepo.Save(record); err != nil {
		return nil, err
	}

	if uc.logger != nil {
		uc.logger.Info("agent run registered",
			slog.String("run_id", record.RunID),
			slog.String("agent_id", record.AgentID),
			slog.Int("pid", record.PID),
		)
	}
	return record, nil
}

// StopRun marks a run stopped via the agent's own shutdown hook. Stopping
// an already-stopped run is a no-op.
func (uc *runUseCase) StopRun(ctx context.Context, runID string) (*domain.AgentRunRecord, error) {
	record, err := uc.runRepo.Get(runID)
	if err != nil {
		return nil, err
	}
	if !record.IsRunning() {
		return record, nil
	}

	record.MarkStopped(time.Now().UTC())
	if err := uc.runRepo.Save(record); err != nil {
		return nil, err
	}
	return record, nil
}

// ListRuns returns all tracked runs, oldest first.
func (uc *runUseCase) ListRuns(ctx context.Context) ([]*domain.AgentRunRecord, error) {
	return uc.runRepo.List()
}

// Reconcile scans running records and reaps the ones whose pid is dead:
// the record is marked stopped exactly once, then a synthesized outcome and
// retrospective are submitted through the live-path emitter so they are
// either delivered immediately or durably buffered.
func (uc *runUseCase) Reconcile(ctx context.Context) (*ReconcileResult, error) {
	running, err := uc.runRepo.ListByStatus(domain.RunStatusRunning)
	if err != nil {
		return nil, err
	}

	result := &ReconcileResult{Scanned: len(running)}
	for _, record := range running {
		if uc.probe.IsAlive(record.PID) {
			continue
		}

		// Persist the transition before emitting, so a crash between the
		// two never reaps the same run twice.
		record.MarkStopped(time.Now().UTC())
		if err := uc.runRepo.Save(record); err != nil {
			return result, apperrors.Wrap(err, "marking run "+record.RunID+" stopped")
		}
		result.Reaped++

		if uc.logger != nil {
			uc.logger.Info("reaping run with dead process",
				slog.String("run_id", record.RunID),
				slog.Int("pid", record.PID),
			)
		}
		uc.emitCompletion(ctx, record)
	}
	return result, nil
}

// emitCompletion synthesizes outcome and retro events for a reaped run.
// Emitter failures are already absorbed by the buffer-on-failure path, so
// anything surfacing here is local and only logged.
func (uc *runUseCase) emitCompletion(ctx context.Context, record *domain.AgentRunRecord) {
	summary := uc.summarize(record)

	caller := reportingUsecase.CallerContext{
		InitiativeID: record.InitiativeID,
		RunID:        record.RunID,
	}
	outcome := reportingUsecase.RecordOutcomeInput{
		CallerContext: caller,
		Success:       !summary.ErrorDetected,
		Summary:       completionSummaryText(record, summary),
		TokensUsed:    summary.TotalTokens,
		CostUSD:       summary.TotalCostUSD,
	}
	if _, err := uc.emitter.RecordOutcome(ctx, outcome); err != nil && uc.logger != nil {
		uc.logger.Error("recording synthesized outcome",
			slog.String("run_id", record.RunID),
			slog.Any("error", err),
		)
	}

	retro := reportingUsecase.RecordRetroInput{
		CallerContext: caller,
		Summary: fmt.Sprintf(
			"Run %s was reconciled after its process (pid %d) exited without reporting completion.",
			record.RunID, record.PID,
		),
	}
	if summary.ErrorDetected {
		retro.FollowUps = []string{
			"Investigate why the agent process exited in an error state",
			fmt.Sprintf("Review the transcript for session %s", record.SessionID),
		}
	}
	if _, err := uc.emitter.RecordRetro(ctx, retro); err != nil && uc.logger != nil {
		uc.logger.Error("recording synthesized retro",
			slog.String("run_id", record.RunID),
			slog.Any("error", err),
		)
	}
}

// summarize reads the session transcript, degrading to an empty summary
// when the transcript is missing or unreadable.
func (uc *runUseCase) summarize(record *domain.AgentRunRecord) *transcript.Summary {
	if record.SessionID == "" {
		return &transcript.Summary{}
	}
	summary, err := uc.transcript.Summarize(record.SessionID)
	if err != nil {
		if uc.logger != nil && !apperrors.Is(err, apperrors.ErrNotFound) {
			uc.logger.Warn("reading session transcript",
				slog.String("session_id", record.SessionID),
				slog.Any("error", err),
			)
		}
		return &transcript.Summary{}
	}
	return summary
}

func completionSummaryText(record *domain.AgentRunRecord, summary *transcript.Summary) string {
	state := "cleanly"
	if summary.ErrorDetected {
		state = "in an error state"
	}
	return fmt.Sprintf(
		"Agent process for run %s exited %s without reporting completion (%d transcript entries).",
		record.RunID, state, summary.Entries,
	)
}
