// Package domain defines local bookkeeping types for agent runs.
package domain

import (
	"time"

	validation "github.com/jellydator/validation"

	appvalidation "github.com/allisson/agentrelay/internal/validation"
)

// RunStatus is the lifecycle status of a tracked agent run.
type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusStopped RunStatus = "stopped"
)

// AgentRunRecord tracks one started agent execution. Records are created
// when a run starts and transitioned to stopped either by the agent's own
// shutdown hook or by the reconciler when the pid is found dead. Records
// are never deleted, only superseded.
type AgentRunRecord struct {
	RunID        string     `json:"run_id"`
	AgentID      string     `json:"agent_id"`
	SessionID    string     `json:"session_id"`
	PID          int        `json:"pid"`
	Status       RunStatus  `json:"status"`
	StartedAt    time.Time  `json:"started_at"`
	StoppedAt    *time.Time `json:"stopped_at,omitempty"`
	InitiativeID string     `json:"initiative_id,omitempty"`
	TaskID       string     `json:"task_id,omitempty"`
}

// Validate checks the record fields.
func (r AgentRunRecord) Validate() error {
	err := validation.ValidateStruct(&r,
		validation.Field(&r.RunID, validation.Required),
		validation.Field(&r.AgentID, validation.Required),
		validation.Field(&r.PID, validation.Required, validation.Min(1)),
		validation.Field(&r.Status, validation.Required, validation.In(RunStatusRunning, RunStatusStopped)),
		validation.Field(&r.InitiativeID, appvalidation.UUID{}),
	)
	return appvalidation.WrapValidationError(err)
}

// IsRunning reports whether the run is still marked running.
func (r AgentRunRecord) IsRunning() bool {
	return r.Status == RunStatusRunning
}

// MarkStopped transitions the record to stopped at the given time. The
// transition is idempotent; an already-stopped record keeps its original
// stop time.
func (r *AgentRunRecord) MarkStopped(at time.Time) {
	if r.Status == RunStatusStopped {
		return
	}
	r.Status = RunStatusStopped
	stopped := at.UTC()
	r.StoppedAt = &stopped
}
