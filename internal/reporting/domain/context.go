// Package domain defines reporting identity types shared by the live-path
// emitters and the replay engine.
package domain

import (
	validation "github.com/jellydator/validation"

	appvalidation "github.com/allisson/agentrelay/internal/validation"
)

// SourceClient identifies which local agent runtime produced an event.
type SourceClient string

const (
	SourceClaudeCode SourceClient = "claude_code"
	SourceCodex      SourceClient = "codex"
	SourceCursor     SourceClient = "cursor"
	SourceGemini     SourceClient = "gemini"
	SourceUnknown    SourceClient = "unknown"
)

// ReportingContext is the resolved identity for a remote call. InitiativeID
// is always required. At most one of RunID or CorrelationID is used on the
// wire; CorrelationID wins when both are set, because locally generated run
// ids are not guaranteed to exist as real remote run ids.
type ReportingContext struct {
	InitiativeID  string       `json:"initiative_id"`
	RunID         string       `json:"run_id,omitempty"`
	CorrelationID string       `json:"correlation_id,omitempty"`
	SourceClient  SourceClient `json:"source_client"`
}

// Validate checks the context fields.
func (r ReportingContext) Validate() error {
	err := validation.ValidateStruct(&r,
		validation.Field(&r.InitiativeID, validation.Required, appvalidation.UUID{}),
		validation.Field(&r.RunID, appvalidation.UUID{}),
		validation.Field(&r.CorrelationID, appvalidation.CorrelationID{}),
		validation.Field(&r.SourceClient, validation.Required, validation.In(
			SourceClaudeCode, SourceCodex, SourceCursor, SourceGemini, SourceUnknown,
		)),
	)
	return appvalidation.WrapValidationError(err)
}

// EffectiveRunRef returns the run reference to put on the wire: the
// correlation id when present, otherwise the run id. The second return
// reports whether the reference is a correlation id.
func (r ReportingContext) EffectiveRunRef() (string, bool) {
	if r.CorrelationID != "" {
		return r.CorrelationID, true
	}
	return r.RunID, false
}

// QueueKey returns the outbox queue this context's events are buffered
// under. Queues are grouped by session: correlation id first, then run id,
// then the initiative itself.
func (r ReportingContext) QueueKey() string {
	if r.CorrelationID != "" {
		return r.CorrelationID
	}
	if r.RunID != "" {
		return r.RunID
	}
	return r.InitiativeID
}

// WithDerivedCorrelation returns a copy of the context whose RunID has been
// replaced by a correlation id deterministically derived from it. Used when
// the remote side rejects a locally generated run id.
func (r ReportingContext) WithDerivedCorrelation() ReportingContext {
	out := r
	if out.CorrelationID == "" && out.RunID != "" {
		out.CorrelationID = CorrelationFromRunID(out.RunID)
		out.RunID = ""
	}
	return out
}
