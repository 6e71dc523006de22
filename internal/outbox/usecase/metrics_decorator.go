package usecase

import (
	"context"
	"time"

	"github.com/allisson/agentrelay/internal/metrics"
	"github.com/allisson/agentrelay/internal/outbox/domain"
)

// replayUseCaseWithMetrics decorates ReplayUseCase with metrics instrumentation.
type replayUseCaseWithMetrics struct {
	next    ReplayUseCase
	metrics metrics.BusinessMetrics
}

// NewReplayUseCaseWithMetrics wraps a ReplayUseCase with metrics recording.
func NewReplayUseCaseWithMetrics(useCase ReplayUseCase, m metrics.BusinessMetrics) ReplayUseCase {
	return &replayUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

// Flush records metrics for a flush pass.
func (r *replayUseCaseWithMetrics) Flush(ctx context.Context) error {
	start := time.Now()
	err := r.next.Flush(ctx)

	status := "success"
	switch {
	case err != nil:
		status = "error"
	case r.next.State().Status == domain.ReplayStatusError:
		status = "partial"
	}
	r.metrics.RecordOperation(ctx, "outbox", "flush", status)
	r.metrics.RecordDuration(ctx, "outbox", "flush", time.Since(start), status)

	return err
}

// State delegates to the wrapped use case.
func (r *replayUseCaseWithMetrics) State() domain.ReplayState {
	return r.next.State()
}
