// Package gateway defines the reporting gateway boundary: the remote API
// that live-path emitters and the replay engine target. Calls accept a
// resolved ReportingContext and return either a remote identifier or a
// structured error with an HTTP-like status.
package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	outboxDomain "github.com/allisson/agentrelay/internal/outbox/domain"
	reportingDomain "github.com/allisson/agentrelay/internal/reporting/domain"
)

// ActivityInput is the body of an activity emission call.
type ActivityInput struct {
	Message        string `json:"message"`
	IdempotencyKey string `json:"-"`
}

// ChangesetInput applies a batch of typed operations under one idempotency key.
type ChangesetInput struct {
	Operations     []outboxDomain.Operation `json:"operations"`
	IdempotencyKey string                   `json:"-"`
}

// ArtifactInput registers an artifact against a remote entity.
type ArtifactInput struct {
	EntityType     string `json:"entity_type"`
	EntityID       string `json:"entity_id"`
	Name           string `json:"name,omitempty"`
	URI            string `json:"uri"`
	MediaType      string `json:"media_type,omitempty"`
	IdempotencyKey string `json:"-"`
}

// OutcomeInput records how a run ended.
type OutcomeInput struct {
	Success        bool    `json:"success"`
	Summary        string  `json:"summary"`
	TokensUsed     int64   `json:"tokens_used,omitempty"`
	CostUSD        float64 `json:"cost_usd,omitempty"`
	IdempotencyKey string  `json:"-"`
}

// RetroInput records a run retrospective.
type RetroInput struct {
	Summary        string   `json:"summary"`
	FollowUps      []string `json:"follow_ups,omitempty"`
	IdempotencyKey string   `json:"-"`
}

// EntityUpdateInput is the narrower per-entity update call, preferred over a
// generic changeset when a batch contains only status updates.
type EntityUpdateInput struct {
	EntityType     string         `json:"-"`
	EntityID       string         `json:"-"`
	Fields         map[string]any `json:"fields"`
	IdempotencyKey string         `json:"-"`
}

// SnapshotEntity is one remote entity in an initiative snapshot.
type SnapshotEntity struct {
	Type   string `json:"type"`
	ID     string `json:"id"`
	Title  string `json:"title,omitempty"`
	Status string `json:"status,omitempty"`
}

// Snapshot is a best-effort view of the remote initiative state, refreshed
// between reconcile and flush during a scheduled sync pass.
type Snapshot struct {
	InitiativeID string           `json:"initiative_id"`
	Entities     []SnapshotEntity `json:"entities"`
	FetchedAt    time.Time        `json:"fetched_at"`
}

// Client is the set of remote calls this relay makes.
type Client interface {
	EmitActivity(ctx context.Context, rctx reportingDomain.ReportingContext, input ActivityInput) (string, error)
	ApplyChangeset(ctx context.Context, rctx reportingDomain.ReportingContext, input ChangesetInput) (string, error)
	RegisterArtifact(ctx context.Context, rctx reportingDomain.ReportingContext, input ArtifactInput) (string, error)
	RecordOutcome(ctx context.Context, rctx reportingDomain.ReportingContext, input OutcomeInput) (string, error)
	RecordRetro(ctx context.Context, rctx reportingDomain.ReportingContext, input RetroInput) (string, error)
	UpdateEntity(ctx context.Context, rctx reportingDomain.ReportingContext, input EntityUpdateInput) (string, error)
	Snapshot(ctx context.Context, initiativeID string) (*Snapshot, error)
}

// StatusError carries the HTTP-like status of a structured gateway failure.
type StatusError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("gateway returned %d: %s", e.StatusCode, e.Message)
}

// ConnectionState classifies the most recent gateway interaction for the
// diagnostics surface. An unauthenticated state is distinct from an
// unreachable one so the onboarding layer can prompt reconnection.
type ConnectionState string

const (
	ConnectionStateUnknown         ConnectionState = "unknown"
	ConnectionStateConnected       ConnectionState = "connected"
	ConnectionStateUnauthenticated ConnectionState = "unauthenticated"
	ConnectionStateUnreachable     ConnectionState = "unreachable"
)

// StateReporter exposes the current connection state.
type StateReporter interface {
	ConnectionState() ConnectionState
}

// connectionTracker is a thread-safe holder for the last observed state.
type connectionTracker struct {
	mu    sync.RWMutex
	state ConnectionState
}

func newConnectionTracker() *connectionTracker {
	return &connectionTracker{state: ConnectionStateUnknown}
}

func (t *connectionTracker) set(state ConnectionState) {
	t.mu.Lock()
	t.state = state
	t.mu.Unlock()
}

func (t *connectionTracker) get() ConnectionState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}
