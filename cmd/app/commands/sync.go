package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	outboxDomain "github.com/allisson/agentrelay/internal/outbox/domain"
	outboxUsecase "github.com/allisson/agentrelay/internal/outbox/usecase"
)

// Syncer runs one full sync pass.
type Syncer interface {
	Sync(ctx context.Context) error
}

// RunSync executes one reconcile/refresh/flush pass and reports the replay
// outcome.
func RunSync(
	ctx context.Context,
	syncer Syncer,
	replay outboxUsecase.ReplayUseCase,
	logger *slog.Logger,
	w io.Writer,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	logger.Info("running sync pass")
	if err := syncer.Sync(ctx); err != nil {
		return fmt.Errorf("sync pass failed: %w", err)
	}

	state := replay.State()
	if format == "json" {
		return writeJSON(w, state)
	}
	outputReplayStateText(w, state)
	return nil
}

// RunFlush drains the outbox queues once, without reconciling runs first.
func RunFlush(
	ctx context.Context,
	replay outboxUsecase.ReplayUseCase,
	logger *slog.Logger,
	w io.Writer,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	logger.Info("flushing outbox queues")
	if err := replay.Flush(ctx); err != nil {
		return fmt.Errorf("flush failed: %w", err)
	}

	state := replay.State()
	if format == "json" {
		return writeJSON(w, state)
	}
	outputReplayStateText(w, state)
	return nil
}

func outputReplayStateText(w io.Writer, state outboxDomain.ReplayState) {
	fmt.Fprintf(w, "Replay status: %s\n", state.Status)
	if state.LastError != "" {
		fmt.Fprintf(w, "Last error: %s\n", state.LastError)
	}
}
