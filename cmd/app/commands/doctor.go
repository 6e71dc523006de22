package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/allisson/agentrelay/internal/diagnostics"
)

// Reporter assembles the doctor report.
type Reporter interface {
	Report() (*diagnostics.Report, error)
}

// RunDoctor renders the diagnostics report: gateway connectivity, replay
// state, pending queues and run counts.
func RunDoctor(
	ctx context.Context,
	reporter Reporter,
	logger *slog.Logger,
	w io.Writer,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	report, err := reporter.Report()
	if err != nil {
		return fmt.Errorf("failed to assemble doctor report: %w", err)
	}

	if format == "json" {
		return report.WriteJSON(w)
	}
	return report.WriteText(w)
}
