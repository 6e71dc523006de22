package domain

import (
	"encoding/json"

	validation "github.com/jellydator/validation"

	appvalidation "github.com/allisson/agentrelay/internal/validation"
)

// OperationKind classifies a single changeset operation.
type OperationKind string

const (
	OperationCreate       OperationKind = "create"
	OperationUpdate       OperationKind = "update"
	OperationStatusUpdate OperationKind = "status_update"
)

// Operation is one typed mutation inside a changeset.
type Operation struct {
	Kind       OperationKind  `json:"kind"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id,omitempty"`
	Fields     map[string]any `json:"fields,omitempty"`
}

// Validate checks the operation fields.
func (o Operation) Validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.Kind, validation.Required, validation.In(
			OperationCreate, OperationUpdate, OperationStatusUpdate,
		)),
		validation.Field(&o.EntityType, validation.Required),
	)
}

// IsStatusOnly reports whether the operation is a simple entity status
// update, which the replay engine can deliver through the narrower
// per-entity update call.
func (o Operation) IsStatusOnly() bool {
	return o.Kind == OperationStatusUpdate && o.EntityID != ""
}

// EventPayload is the tagged union of per-kind payload shapes. Payloads are
// validated at buffering time so the replay engine does not need defensive
// field-presence checks.
type EventPayload interface {
	Kind() EventType
	Validate() error
}

// ProgressPayload carries a free-form progress update message.
type ProgressPayload struct {
	Message        string `json:"message"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

func (p ProgressPayload) Kind() EventType { return EventTypeProgress }

// Validate checks the payload fields.
func (p ProgressPayload) Validate() error {
	err := validation.ValidateStruct(&p,
		validation.Field(&p.Message, validation.Required, validation.Length(1, 20000)),
	)
	return appvalidation.WrapValidationError(err)
}

// DecisionPayload records a decision made during a run.
type DecisionPayload struct {
	Question       string `json:"question"`
	Decision       string `json:"decision"`
	Reasoning      string `json:"reasoning,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

func (p DecisionPayload) Kind() EventType { return EventTypeDecision }

// Validate checks the payload fields.
func (p DecisionPayload) Validate() error {
	err := validation.ValidateStruct(&p,
		validation.Field(&p.Question, validation.Required),
		validation.Field(&p.Decision, validation.Required),
	)
	return appvalidation.WrapValidationError(err)
}

// ChangesetPayload carries a batch of typed operations applied together.
type ChangesetPayload struct {
	Operations     []Operation `json:"operations"`
	IdempotencyKey string      `json:"idempotency_key,omitempty"`
}

func (p ChangesetPayload) Kind() EventType { return EventTypeChangeset }

// Validate checks the payload fields.
func (p ChangesetPayload) Validate() error {
	err := validation.ValidateStruct(&p,
		validation.Field(&p.Operations, validation.Required, validation.Length(1, 100)),
	)
	if err != nil {
		return appvalidation.WrapValidationError(err)
	}
	for _, op := range p.Operations {
		if opErr := op.Validate(); opErr != nil {
			return appvalidation.WrapValidationError(opErr)
		}
	}
	return nil
}

// StatusOnly reports whether every operation in the batch is a simple
// status update.
func (p ChangesetPayload) StatusOnly() bool {
	for _, op := range p.Operations {
		if !op.IsStatusOnly() {
			return false
		}
	}
	return len(p.Operations) > 0
}

// ArtifactPayload registers an artifact against a remote entity. The
// entity-linked shape is canonical; the earlier simplified shape
// (task_id/path) is normalized at decode time.
type ArtifactPayload struct {
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	Name       string `json:"name"`
	URI        string `json:"uri"`
	MediaType  string `json:"media_type,omitempty"`
}

func (p ArtifactPayload) Kind() EventType { return EventTypeArtifact }

// Validate checks the payload fields.
func (p ArtifactPayload) Validate() error {
	err := validation.ValidateStruct(&p,
		validation.Field(&p.EntityType, validation.Required, validation.In(
			"task", "initiative", "decision", "run",
		)),
		validation.Field(&p.EntityID, validation.Required),
		validation.Field(&p.URI, validation.Required),
	)
	return appvalidation.WrapValidationError(err)
}

// UnmarshalJSON decodes the canonical shape and migrates the legacy
// simplified shape (task_id + path, no entity linkage) on the fly.
func (p *ArtifactPayload) UnmarshalJSON(data []byte) error {
	type alias ArtifactPayload
	aux := struct {
		*alias
		LegacyTaskID string `json:"task_id,omitempty"`
		LegacyPath   string `json:"path,omitempty"`
	}{alias: (*alias)(p)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if p.EntityID == "" && aux.LegacyTaskID != "" {
		p.EntityType = "task"
		p.EntityID = aux.LegacyTaskID
	}
	if p.URI == "" && aux.LegacyPath != "" {
		p.URI = aux.LegacyPath
	}
	return nil
}

// OutcomePayload records how a run ended.
type OutcomePayload struct {
	Success        bool    `json:"success"`
	Summary        string  `json:"summary"`
	TokensUsed     int64   `json:"tokens_used,omitempty"`
	CostUSD        float64 `json:"cost_usd,omitempty"`
	IdempotencyKey string  `json:"idempotency_key,omitempty"`
}

func (p OutcomePayload) Kind() EventType { return EventTypeOutcome }

// Validate checks the payload fields.
func (p OutcomePayload) Validate() error {
	err := validation.ValidateStruct(&p,
		validation.Field(&p.Summary, validation.Required),
	)
	return appvalidation.WrapValidationError(err)
}

// UnmarshalJSON decodes the canonical shape and normalizes legacy field
// names (total_tokens, cost) written by earlier revisions.
func (p *OutcomePayload) UnmarshalJSON(data []byte) error {
	type alias OutcomePayload
	aux := struct {
		*alias
		LegacyTokens int64   `json:"total_tokens,omitempty"`
		LegacyCost   float64 `json:"cost,omitempty"`
	}{alias: (*alias)(p)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if p.TokensUsed == 0 && aux.LegacyTokens != 0 {
		p.TokensUsed = aux.LegacyTokens
	}
	if p.CostUSD == 0 && aux.LegacyCost != 0 {
		p.CostUSD = aux.LegacyCost
	}
	return nil
}

// RetroPayload records a run retrospective with optional follow-up items.
type RetroPayload struct {
	Summary        string   `json:"summary"`
	FollowUps      []string `json:"follow_ups,omitempty"`
	IdempotencyKey string   `json:"idempotency_key,omitempty"`
}

func (p RetroPayload) Kind() EventType { return EventTypeRetro }

// Validate checks the payload fields.
func (p RetroPayload) Validate() error {
	err := validation.ValidateStruct(&p,
		validation.Field(&p.Summary, validation.Required),
	)
	return appvalidation.WrapValidationError(err)
}

// UnmarshalJSON decodes the canonical shape and normalizes the legacy
// action_items field name.
func (p *RetroPayload) UnmarshalJSON(data []byte) error {
	type alias RetroPayload
	aux := struct {
		*alias
		LegacyActionItems []string `json:"action_items,omitempty"`
	}{alias: (*alias)(p)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(p.FollowUps) == 0 && len(aux.LegacyActionItems) > 0 {
		p.FollowUps = aux.LegacyActionItems
	}
	return nil
}
