// Package diagnostics assembles the operator-facing doctor report: what is
// still pending locally, how the last flush went, and whether the gateway
// is reachable.
package diagnostics

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/allisson/agentrelay/internal/gateway"
	outboxDomain "github.com/allisson/agentrelay/internal/outbox/domain"
	runsDomain "github.com/allisson/agentrelay/internal/runs/domain"
	"github.com/allisson/agentrelay/internal/scheduler"
)

// QueueInspector exposes per-queue pending statistics.
type QueueInspector interface {
	Stats() ([]outboxDomain.QueueStats, error)
}

// ReplayStateReader exposes the state of the most recent flush pass.
type ReplayStateReader interface {
	State() outboxDomain.ReplayState
}

// RunCounter exposes run records grouped by status.
type RunCounter interface {
	ListByStatus(status runsDomain.RunStatus) ([]*runsDomain.AgentRunRecord, error)
}

// SyncStateReader exposes the scheduler's sync bookkeeping.
type SyncStateReader interface {
	State() scheduler.State
}

// Report is the doctor report.
type Report struct {
	GeneratedAt    time.Time                 `json:"generated_at"`
	Connection     gateway.ConnectionState   `json:"connection"`
	Replay         outboxDomain.ReplayState  `json:"replay"`
	Queues         []outboxDomain.QueueStats `json:"queues"`
	TotalPending   int                       `json:"total_pending"`
	RunsRunning    int                       `json:"runs_running"`
	RunsStopped    int                       `json:"runs_stopped"`
	LastSyncAt     *time.Time                `json:"last_sync_at,omitempty"`
	LastSnapshotAt *time.Time                `json:"last_snapshot_at,omitempty"`
}

// Service assembles doctor reports.
type Service struct {
	queues     QueueInspector
	replay     ReplayStateReader
	runs       RunCounter
	connection gateway.StateReporter
	sync       SyncStateReader
}

// NewService creates the diagnostics service.
func NewService(
	queues QueueInspector,
	replay ReplayStateReader,
	runs RunCounter,
	connection gateway.StateReporter,
	sync SyncStateReader,
) *Service {
	return &Service{
		queues:     queues,
		replay:     replay,
		runs:       runs,
		connection: connection,
		sync:       sync,
	}
}

// Report builds the current doctor report.
func (s *Service) Report() (*Report, error) {
	stats, err := s.queues.Stats()
	if err != nil {
		return nil, err
	}

	running, err := s.runs.ListByStatus(runsDomain.RunStatusRunning)
	if err != nil {
		return nil, err
	}
	stopped, err := s.runs.ListByStatus(runsDomain.RunStatusStopped)
	if err != nil {
		return nil, err
	}

	report := &Report{
		GeneratedAt: time.Now().UTC(),
		Connection:  s.connection.ConnectionState(),
		Replay:      s.replay.State(),
		Queues:      stats,
		RunsRunning: len(running),
		RunsStopped: len(stopped),
	}
	for _, stat := range stats {
		report.TotalPending += stat.Pending
	}
	if s.sync != nil {
		syncState := s.sync.State()
		report.LastSyncAt = syncState.LastSyncAt
		report.LastSnapshotAt = syncState.LastSnapshotAt
	}
	return report, nil
}

// WriteText renders the report for terminal consumption.
func (r *Report) WriteText(w io.Writer) error {
	fmt.Fprintf(w, "agentrelay doctor (%s)\n", r.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "  gateway:      %s\n", r.Connection)
	fmt.Fprintf(w, "  last flush:   %s%s\n", r.Replay.Status, formatLastError(r.Replay.LastError))
	fmt.Fprintf(w, "  pending:      %d event(s) in %d queue(s)\n", r.TotalPending, len(r.Queues))
	for _, queue := range r.Queues {
		fmt.Fprintf(w, "    %-24s %d pending (oldest %s)\n",
			queue.Key, queue.Pending, queue.OldestAt.Format(time.RFC3339))
	}
	fmt.Fprintf(w, "  runs:         %d running, %d stopped\n", r.RunsRunning, r.RunsStopped)
	if r.LastSyncAt != nil {
		fmt.Fprintf(w, "  last sync:    %s\n", r.LastSyncAt.Format(time.RFC3339))
	}
	if r.LastSnapshotAt != nil {
		fmt.Fprintf(w, "  last snapshot: %s\n", r.LastSnapshotAt.Format(time.RFC3339))
	}
	return nil
}

// WriteJSON renders the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}

func formatLastError(lastError string) string {
	if lastError == "" {
		return ""
	}
	return fmt.Sprintf(" (last error: %s)", lastError)
}
