package usecase

import (
	"context"
	"time"

	"github.com/allisson/agentrelay/internal/metrics"
)

// emitterUseCaseWithMetrics decorates EmitterUseCase with metrics instrumentation.
type emitterUseCaseWithMetrics struct {
	next    EmitterUseCase
	metrics metrics.BusinessMetrics
}

// NewEmitterUseCaseWithMetrics wraps an EmitterUseCase with metrics recording.
func NewEmitterUseCaseWithMetrics(useCase EmitterUseCase, m metrics.BusinessMetrics) EmitterUseCase {
	return &emitterUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

// record captures count and duration with a delivered/buffered/error status.
func (e *emitterUseCaseWithMetrics) record(
	ctx context.Context,
	operation string,
	start time.Time,
	confirmation *Confirmation,
	err error,
) {
	status := "delivered"
	switch {
	case err != nil:
		status = "error"
	case confirmation != nil && !confirmation.Delivered:
		status = "buffered"
	}

	e.metrics.RecordOperation(ctx, "reporting", operation, status)
	e.metrics.RecordDuration(ctx, "reporting", operation, time.Since(start), status)
}

// EmitActivity records metrics for activity emission.
func (e *emitterUseCaseWithMetrics) EmitActivity(
	ctx context.Context,
	input EmitActivityInput,
) (*Confirmation, error) {
	start := time.Now()
	confirmation, err := e.next.EmitActivity(ctx, input)
	e.record(ctx, "emit_activity", start, confirmation, err)
	return confirmation, err
}

// RecordDecision records metrics for decision recording.
func (e *emitterUseCaseWithMetrics) RecordDecision(
	ctx context.Context,
	input RecordDecisionInput,
) (*Confirmation, error) {
	start := time.Now()
	confirmation, err := e.next.RecordDecision(ctx, input)
	e.record(ctx, "record_decision", start, confirmation, err)
	return confirmation, err
}

// ApplyChangeset records metrics for changeset application.
func (e *emitterUseCaseWithMetrics) ApplyChangeset(
	ctx context.Context,
	input ApplyChangesetInput,
) (*Confirmation, error) {
	start := time.Now()
	confirmation, err := e.next.ApplyChangeset(ctx, input)
	e.record(ctx, "apply_changeset", start, confirmation, err)
	return confirmation, err
}

// RegisterArtifact records metrics for artifact registration.
func (e *emitterUseCaseWithMetrics) RegisterArtifact(
	ctx context.Context,
	input RegisterArtifactInput,
) (*Confirmation, error) {
	start := time.Now()
	confirmation, err := e.next.RegisterArtifact(ctx, input)
	e.record(ctx, "register_artifact", start, confirmation, err)
	return confirmation, err
}

// RecordOutcome records metrics for run-outcome recording.
func (e *emitterUseCaseWithMetrics) RecordOutcome(
	ctx context.Context,
	input RecordOutcomeInput,
) (*Confirmation, error) {
	start := time.Now()
	confirmation, err := e.next.RecordOutcome(ctx, input)
	e.record(ctx, "record_outcome", start, confirmation, err)
	return confirmation, err
}

// RecordRetro records metrics for run-retrospective recording.
func (e *emitterUseCaseWithMetrics) RecordRetro(
	ctx context.Context,
	input RecordRetroInput,
) (*Confirmation, error) {
	start := time.Now()
	confirmation, err := e.next.RecordRetro(ctx, input)
	e.record(ctx, "record_retro", start, confirmation, err)
	return confirmation, err
}
