package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	runsUsecase "github.com/allisson/agentrelay/internal/runs/usecase"
)

// RunStartRun registers a started agent run, printing the run id so shell
// hooks can capture it.
func RunStartRun(
	ctx context.Context,
	runs runsUsecase.RunUseCase,
	logger *slog.Logger,
	w io.Writer,
	runID, agentID, sessionID string,
	pid int,
	initiativeID, taskID, format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}
	if agentID == "" {
		return fmt.Errorf("agent-id is required")
	}
	if pid <= 0 {
		return fmt.Errorf("pid must be a positive number, got: %d", pid)
	}

	record, err := runs.StartRun(ctx, runsUsecase.StartRunInput{
		RunID:        runID,
		AgentID:      agentID,
		SessionID:    sessionID,
		PID:          pid,
		InitiativeID: initiativeID,
		TaskID:       taskID,
	})
	if err != nil {
		return fmt.Errorf("failed to register run: %w", err)
	}

	if format == "json" {
		return writeJSON(w, record)
	}
	fmt.Fprintf(w, "Run %s registered (pid %d)\n", record.RunID, record.PID)
	return nil
}

// RunStopRun marks a run stopped via the agent's shutdown hook.
func RunStopRun(
	ctx context.Context,
	runs runsUsecase.RunUseCase,
	logger *slog.Logger,
	w io.Writer,
	runID, format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}
	if runID == "" {
		return fmt.Errorf("run-id is required")
	}

	record, err := runs.StopRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to stop run: %w", err)
	}

	if format == "json" {
		return writeJSON(w, record)
	}
	fmt.Fprintf(w, "Run %s stopped\n", record.RunID)
	return nil
}
