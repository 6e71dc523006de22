package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	reportingUsecase "github.com/allisson/agentrelay/internal/reporting/usecase"
)

// RunEmitActivity posts one progress update through the live path.
func RunEmitActivity(
	ctx context.Context,
	emitter reportingUsecase.EmitterUseCase,
	logger *slog.Logger,
	w io.Writer,
	message, initiativeID, runID, correlationID, format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	confirmation, err := emitter.EmitActivity(ctx, reportingUsecase.EmitActivityInput{
		CallerContext: reportingUsecase.CallerContext{
			InitiativeID:  initiativeID,
			RunID:         runID,
			CorrelationID: correlationID,
		},
		Message: message,
	})
	if err != nil {
		return fmt.Errorf("failed to emit activity: %w", err)
	}

	return outputConfirmation(w, confirmation, format)
}

// RunRecordDecision records one decision through the live path.
func RunRecordDecision(
	ctx context.Context,
	emitter reportingUsecase.EmitterUseCase,
	logger *slog.Logger,
	w io.Writer,
	question, decision, reasoning, initiativeID, runID, correlationID, format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	confirmation, err := emitter.RecordDecision(ctx, reportingUsecase.RecordDecisionInput{
		CallerContext: reportingUsecase.CallerContext{
			InitiativeID:  initiativeID,
			RunID:         runID,
			CorrelationID: correlationID,
		},
		Question:  question,
		Decision:  decision,
		Reasoning: reasoning,
	})
	if err != nil {
		return fmt.Errorf("failed to record decision: %w", err)
	}

	return outputConfirmation(w, confirmation, format)
}

// RunRegisterArtifact registers an artifact against a remote entity through
// the live path.
func RunRegisterArtifact(
	ctx context.Context,
	emitter reportingUsecase.EmitterUseCase,
	logger *slog.Logger,
	w io.Writer,
	entityType, entityID, name, uri, mediaType, initiativeID, runID, correlationID, format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	confirmation, err := emitter.RegisterArtifact(ctx, reportingUsecase.RegisterArtifactInput{
		CallerContext: reportingUsecase.CallerContext{
			InitiativeID:  initiativeID,
			RunID:         runID,
			CorrelationID: correlationID,
		},
		EntityType: entityType,
		EntityID:   entityID,
		Name:       name,
		URI:        uri,
		MediaType:  mediaType,
	})
	if err != nil {
		return fmt.Errorf("failed to register artifact: %w", err)
	}

	return outputConfirmation(w, confirmation, format)
}

// outputConfirmation renders a delivery confirmation.
func outputConfirmation(w io.Writer, confirmation *reportingUsecase.Confirmation, format string) error {
	if format == "json" {
		return writeJSON(w, confirmation)
	}
	if confirmation.Delivered {
		fmt.Fprintf(w, "Delivered: %s\n", confirmation.Message)
	} else {
		fmt.Fprintf(w, "Buffered: %s\n", confirmation.Message)
	}
	return nil
}
