// Package usecase implements the live-path emitters: the synchronous
// write-through path that attempts the remote call immediately and degrades
// to durable outbox buffering on any delivery failure.
package usecase

import (
	"context"

	outboxDomain "github.com/allisson/agentrelay/internal/outbox/domain"
)

// Confirmation is the caller-facing result of an emit. The caller never
// needs to know whether delivery was immediate or deferred; Delivered is
// informational.
type Confirmation struct {
	Delivered bool   `json:"delivered"`
	RemoteID  string `json:"remote_id,omitempty"`
	Message   string `json:"message"`
}

// CallerContext is the optional explicit identity supplied by a caller.
// Missing fields are resolved from configured defaults.
type CallerContext struct {
	InitiativeID  string `json:"initiative_id,omitempty"`
	RunID         string `json:"run_id,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// EmitActivityInput emits a free-form progress update.
type EmitActivityInput struct {
	CallerContext
	Message string `json:"message"`
}

// RecordDecisionInput records a decision made during a run.
type RecordDecisionInput struct {
	CallerContext
	Question  string `json:"question"`
	Decision  string `json:"decision"`
	Reasoning string `json:"reasoning,omitempty"`
}

// ApplyChangesetInput applies a batch of typed operations.
type ApplyChangesetInput struct {
	CallerContext
	Operations     []outboxDomain.Operation `json:"operations"`
	IdempotencyKey string                   `json:"idempotency_key,omitempty"`
}

// RegisterArtifactInput registers an artifact against a remote entity.
type RegisterArtifactInput struct {
	CallerContext
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	Name       string `json:"name,omitempty"`
	URI        string `json:"uri"`
	MediaType  string `json:"media_type,omitempty"`
}

// RecordOutcomeInput records how a run ended.
type RecordOutcomeInput struct {
	CallerContext
	Success    bool    `json:"success"`
	Summary    string  `json:"summary"`
	TokensUsed int64   `json:"tokens_used,omitempty"`
	CostUSD    float64 `json:"cost_usd,omitempty"`
}

// RecordRetroInput records a run retrospective.
type RecordRetroInput struct {
	CallerContext
	Summary   string   `json:"summary"`
	FollowUps []string `json:"follow_ups,omitempty"`
}

// OutboxAppender is the durable buffering dependency of the emitters.
type OutboxAppender interface {
	Append(queueKey string, event *outboxDomain.OutboxEvent) error
}

// EmitterUseCase defines the live-path emit operations. Delivery failures
// never propagate to the caller; only local validation and local I/O
// failures return errors.
type EmitterUseCase interface {
	EmitActivity(ctx context.Context, input EmitActivityInput) (*Confirmation, error)
	RecordDecision(ctx context.Context, input RecordDecisionInput) (*Confirmation, error)
	ApplyChangeset(ctx context.Context, input ApplyChangesetInput) (*Confirmation, error)
	RegisterArtifact(ctx context.Context, input RegisterArtifactInput) (*Confirmation, error)
	RecordOutcome(ctx context.Context, input RecordOutcomeInput) (*Confirmation, error)
	RecordRetro(ctx context.Context, input RecordRetroInput) (*Confirmation, error)
}
