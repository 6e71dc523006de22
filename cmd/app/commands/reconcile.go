package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	runsUsecase "github.com/allisson/agentrelay/internal/runs/usecase"
)

// RunReconcile scans tracked runs and reaps the ones whose process died
// without reporting completion.
func RunReconcile(
	ctx context.Context,
	runs runsUsecase.RunUseCase,
	logger *slog.Logger,
	w io.Writer,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	logger.Info("reconciling agent runs")
	result, err := runs.Reconcile(ctx)
	if err != nil {
		return fmt.Errorf("reconcile failed: %w", err)
	}

	if format == "json" {
		return writeJSON(w, result)
	}
	fmt.Fprintf(w, "Scanned %d running record(s), reaped %d dead run(s)\n", result.Scanned, result.Reaped)
	return nil
}
