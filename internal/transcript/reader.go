// Package transcript reads local agent session transcripts. The relay only
// consumes transcripts read-only, to compute token/cost totals and to detect
// whether a session ended in an error state.
package transcript

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	apperrors "github.com/allisson/agentrelay/internal/errors"
)

// Summary aggregates one session transcript.
type Summary struct {
	SessionID      string    `json:"session_id"`
	Entries        int       `json:"entries"`
	TotalTokens    int64     `json:"total_tokens"`
	TotalCostUSD   float64   `json:"total_cost_usd"`
	ErrorDetected  bool      `json:"error_detected"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// entry is one transcript line. Transcripts are written by external agent
// runtimes, so unknown fields and malformed lines are tolerated.
type entry struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	IsError   bool      `json:"is_error"`
	CostUSD   float64   `json:"cost_usd"`
	Usage     struct {
		InputTokens  int64 `json:"input_tokens"`
		OutputTokens int64 `json:"output_tokens"`
	} `json:"usage"`
}

// Reader scans JSONL session transcripts under a sessions directory.
type Reader struct {
	dir string
}

// NewReader creates a Reader rooted at dir.
func NewReader(dir string) *Reader {
	return &Reader{dir: dir}
}

// Summarize aggregates the transcript for a session id. A missing
// transcript returns ErrNotFound; the caller decides how to degrade.
func (r *Reader) Summarize(sessionID string) (*Summary, error) {
	path := filepath.Join(r.dir, sessionID+".jsonl")
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.Wrap(apperrors.ErrNotFound, "transcript "+sessionID)
		}
		return nil, fmt.Errorf("opening transcript %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	summary := &Summary{SessionID: sessionID}
	scanner := bufio.NewScanner(file)
	// Individual transcript lines can carry large tool outputs.
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var e entry
		if err := json.Unmarshal(line, &e); err != nil {
			// Skip lines this relay does not understand; the transcript
			// belongs to the agent runtime, not to us.
			continue
		}

		summary.Entries++
		summary.TotalTokens += e.Usage.InputTokens + e.Usage.OutputTokens
		summary.TotalCostUSD += e.CostUSD
		if e.Timestamp.After(summary.LastActivityAt) {
			summary.LastActivityAt = e.Timestamp
		}
		// Error state is decided by the session's last activity.
		summary.ErrorDetected = e.IsError || e.Type == "error"
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning transcript %s: %w", path, err)
	}

	return summary, nil
}
