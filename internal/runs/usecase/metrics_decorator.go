package usecase

import (
	"context"
	"time"

	"github.com/allisson/agentrelay/internal/metrics"
	"github.com/allisson/agentrelay/internal/runs/domain"
)

// runUseCaseWithMetrics decorates RunUseCase with metrics instrumentation.
type runUseCaseWithMetrics struct {
	next    RunUseCase
	metrics metrics.BusinessMetrics
}

// NewRunUseCaseWithMetrics wraps a RunUseCase with metrics recording.
func NewRunUseCaseWithMetrics(useCase RunUseCase, m metrics.BusinessMetrics) RunUseCase {
	return &runUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

func (r *runUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	r.metrics.RecordOperation(ctx, "runs", operation, status)
	r.metrics.RecordDuration(ctx, "runs", operation, time.Since(start), status)
}

// StartRun records metrics for run registration.
func (r *runUseCaseWithMetrics) StartRun(ctx context.Context, input StartRunInput) (*domain.AgentRunRecord, error) {
	start := time.Now()
	record, err := r.next.StartRun(ctx, input)
	r.record(ctx, "start_run", start, err)
	return record, err
}

// StopRun records metrics for run stop.
func (r *runUseCaseWithMetrics) StopRun(ctx context.Context, runID string) (*domain.AgentRunRecord, error) {
	start := time.Now()
	record, err := r.next.StopRun(ctx, runID)
	r.record(ctx, "stop_run", start, err)
	return record, err
}

// ListRuns records metrics for run listing.
func (r *runUseCaseWithMetrics) ListRuns(ctx context.Context) ([]*domain.AgentRunRecord, error) {
	start := time.Now()
	records, err := r.next.ListRuns(ctx)
	r.record(ctx, "list_runs", start, err)
	return records, err
}

// Reconcile records metrics for a reconcile pass.
func (r *runUseCaseWithMetrics) Reconcile(ctx context.Context) (*ReconcileResult, error) {
	start := time.Now()
	result, err := r.next.Reconcile(ctx)
	r.record(ctx, "reconcile", start, err)
	return result, err
}
