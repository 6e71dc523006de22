// Package scheduler drives the periodic sync pass: reconcile stopped runs,
// refresh the remote snapshot best-effort, then flush the outbox queues.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/allisson/agentrelay/internal/gateway"
	runsUsecase "github.com/allisson/agentrelay/internal/runs/usecase"
)

// Reconciler reaps runs whose process died without reporting completion.
type Reconciler interface {
	Reconcile(ctx context.Context) (*runsUsecase.ReconcileResult, error)
}

// Flusher drains the outbox queues.
type Flusher interface {
	Flush(ctx context.Context) error
}

// SnapshotFetcher fetches the remote initiative snapshot.
type SnapshotFetcher interface {
	Snapshot(ctx context.Context, initiativeID string) (*gateway.Snapshot, error)
}

// State is the scheduler's observable sync bookkeeping, read by the
// diagnostics surface.
type State struct {
	LastSyncAt     *time.Time `json:"last_sync_at,omitempty"`
	LastSnapshotAt *time.Time `json:"last_snapshot_at,omitempty"`
}

// Scheduler owns its sync state; two scheduler instances never interfere.
// Overlapping Sync calls join the in-flight pass instead of starting a
// second one.
type Scheduler struct {
	reconciler   Reconciler
	snapshots    SnapshotFetcher
	flusher      Flusher
	initiativeID string
	interval     time.Duration
	logger       *slog.Logger

	group singleflight.Group

	mu    sync.Mutex
	state State
}

// New creates a Scheduler. initiativeID may be empty, in which case the
// snapshot refresh step is skipped.
func New(
	reconciler Reconciler,
	snapshots SnapshotFetcher,
	flusher Flusher,
	initiativeID string,
	interval time.Duration,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		reconciler:   reconciler,
		snapshots:    snapshots,
		flusher:      flusher,
		initiativeID: initiativeID,
		interval:     interval,
		logger:       logger,
	}
}

// Sync runs one pass: reconcile, snapshot refresh, flush. Concurrent
// callers share a single in-flight pass and its result.
func (s *Scheduler) Sync(ctx context.Context) error {
	_, err, _ := s.group.Do("sync", func() (any, error) {
		return nil, s.syncPass(ctx)
	})
	return err
}

// State returns a copy of the current sync bookkeeping.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start runs Sync once immediately, then on every interval tick until the
// context is canceled.
func (s *Scheduler) Start(ctx context.Context) {
	if s.logger != nil {
		s.logger.Info("sync scheduler started", slog.Duration("interval", s.interval))
	}

	if err := s.Sync(ctx); err != nil && s.logger != nil {
		s.logger.Error("sync pass failed", slog.Any("error", err))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if s.logger != nil {
				s.logger.Info("sync scheduler stopped")
			}
			return
		case <-ticker.C:
			if err := s.Sync(ctx); err != nil && s.logger != nil {
				s.logger.Error("sync pass failed", slog.Any("error", err))
			}
		}
	}
}

// syncPass sequences reconcile, snapshot refresh and flush. The snapshot
// refresh is best effort; reconcile and flush failures surface because they
// indicate local problems.
func (s *Scheduler) syncPass(ctx context.Context) error {
	result, err := s.reconciler.Reconcile(ctx)
	if err != nil {
		return err
	}
	if s.logger != nil && result.Reaped > 0 {
		s.logger.Info("reconcile pass reaped dead runs",
			slog.Int("scanned", result.Scanned),
			slog.Int("reaped", result.Reaped),
		)
	}

	s.refreshSnapshot(ctx)

	if err := s.flusher.Flush(ctx); err != nil {
		return err
	}

	now := time.Now().UTC()
	s.mu.Lock()
	s.state.LastSyncAt = &now
	s.mu.Unlock()
	return nil
}

func (s *Scheduler) refreshSnapshot(ctx context.Context) {
	if s.initiativeID == "" {
		return
	}

	if _, err := s.snapshots.Snapshot(ctx, s.initiativeID); err != nil {
		if s.logger != nil {
			s.logger.Warn("snapshot refresh failed", slog.Any("error", err))
		}
		return
	}

	now := time.Now().UTC()
	s.mu.Lock()
	s.state.LastSnapshotAt = &now
	s.mu.Unlock()
}
