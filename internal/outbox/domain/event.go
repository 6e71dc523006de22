// Package domain defines the core outbox domain entities and types.
package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/allisson/agentrelay/internal/errors"
	reportingDomain "github.com/allisson/agentrelay/internal/reporting/domain"
)

// EventType determines how the replay engine reconstructs a remote call
// from a buffered event.
type EventType string

const (
	EventTypeProgress  EventType = "progress"
	EventTypeDecision  EventType = "decision"
	EventTypeChangeset EventType = "changeset"
	EventTypeArtifact  EventType = "artifact"
	EventTypeOutcome   EventType = "outcome"
	EventTypeRetro     EventType = "retro"
)

// ActivityItem is a denormalized, UI-ready snapshot of an event so a
// disconnected client can render "what happened" without waiting for remote
// acknowledgement.
type ActivityItem struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Title     string    `json:"title"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Pending   bool      `json:"pending"`
}

// OutboxEvent is one buffered unit of work. Events are never mutated in
// place: queues are replaced wholesale on each flush pass, and an event is
// only removed once its remote call succeeded.
type OutboxEvent struct {
	ID        uuid.UUID                        `json:"id"`
	Type      EventType                        `json:"type"`
	Timestamp time.Time                        `json:"timestamp"`
	Context   reportingDomain.ReportingContext `json:"context"`
	Payload   EventPayload                     `json:"payload"`
	Activity  ActivityItem                     `json:"activity_item"`
}

// NewOutboxEvent builds a validated event ready for buffering. The payload
// is validated here, at buffering time, so replay never sees a shape it
// cannot deliver for structural reasons.
func NewOutboxEvent(
	rctx reportingDomain.ReportingContext,
	payload EventPayload,
	activity ActivityItem,
) (*OutboxEvent, error) {
	if payload == nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "payload is required")
	}
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	event := &OutboxEvent{
		ID:        uuid.Must(uuid.NewV7()),
		Type:      payload.Kind(),
		Timestamp: time.Now().UTC(),
		Context:   rctx,
		Payload:   payload,
		Activity:  activity,
	}
	if event.Activity.ID == "" {
		event.Activity.ID = event.ID.String()
	}
	if event.Activity.CreatedAt.IsZero() {
		event.Activity.CreatedAt = event.Timestamp
	}
	event.Activity.Kind = string(event.Type)
	event.Activity.Pending = true

	return event, nil
}

// eventWire is the persisted form of OutboxEvent with an opaque payload.
type eventWire struct {
	ID        uuid.UUID                        `json:"id"`
	Type      EventType                        `json:"type"`
	Timestamp time.Time                        `json:"timestamp"`
	Context   reportingDomain.ReportingContext `json:"context"`
	Payload   json.RawMessage                  `json:"payload"`
	Activity  ActivityItem                     `json:"activity_item"`
}

// MarshalJSON encodes the event with its payload inline.
func (e OutboxEvent) MarshalJSON() ([]byte, error) {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling %s payload: %w", e.Type, err)
	}
	return json.Marshal(eventWire{
		ID:        e.ID,
		Type:      e.Type,
		Timestamp: e.Timestamp,
		Context:   e.Context,
		Payload:   payload,
		Activity:  e.Activity,
	})
}

// UnmarshalJSON decodes the event, selecting the concrete payload shape by
// the type tag.
func (e *OutboxEvent) UnmarshalJSON(data []byte) error {
	var wire eventWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	payload, err := decodePayload(wire.Type, wire.Payload)
	if err != nil {
		return err
	}

	e.ID = wire.ID
	e.Type = wire.Type
	e.Timestamp = wire.Timestamp
	e.Context = wire.Context
	e.Payload = payload
	e.Activity = wire.Activity
	return nil
}

// decodePayload selects the concrete payload type for an event type tag.
func decodePayload(eventType EventType, raw json.RawMessage) (EventPayload, error) {
	unmarshal := func(v EventPayload) (EventPayload, error) {
		if len(raw) == 0 {
			return v, nil
		}
		if err := json.Unmarshal(raw, v); err != nil {
			return nil, fmt.Errorf("decoding %s payload: %w", eventType, err)
		}
		return v, nil
	}

	switch eventType {
	case EventTypeProgress:
		return unmarshal(&ProgressPayload{})
	case EventTypeDecision:
		return unmarshal(&DecisionPayload{})
	case EventTypeChangeset:
		return unmarshal(&ChangesetPayload{})
	case EventTypeArtifact:
		return unmarshal(&ArtifactPayload{})
	case EventTypeOutcome:
		return unmarshal(&OutcomePayload{})
	case EventTypeRetro:
		return unmarshal(&RetroPayload{})
	default:
		return nil, fmt.Errorf("unknown event type %q: %w", eventType, apperrors.ErrMalformedPayload)
	}
}
