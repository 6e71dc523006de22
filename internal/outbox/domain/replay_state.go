package domain

import "time"

// ReplayStatus is the lifecycle status of the most recent flush pass.
type ReplayStatus string

const (
	ReplayStatusIdle    ReplayStatus = "idle"
	ReplayStatusRunning ReplayStatus = "running"
	ReplayStatusSuccess ReplayStatus = "success"
	ReplayStatusError   ReplayStatus = "error"
)

// ReplayState is the process-wide status of the most recent flush pass,
// read by the diagnostics surface.
type ReplayState struct {
	Status        ReplayStatus `json:"status"`
	LastAttemptAt *time.Time   `json:"last_attempt_at,omitempty"`
	LastSuccessAt *time.Time   `json:"last_success_at,omitempty"`
	LastFailureAt *time.Time   `json:"last_failure_at,omitempty"`
	LastError     string       `json:"last_error,omitempty"`
}

// QueueStats summarizes one outbox queue for diagnostics: pending event
// count and the age bounds of what is still waiting to be delivered.
type QueueStats struct {
	Key      string    `json:"key"`
	Pending  int       `json:"pending"`
	OldestAt time.Time `json:"oldest_at"`
	NewestAt time.Time `json:"newest_at"`
}
