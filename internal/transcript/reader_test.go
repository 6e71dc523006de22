package transcript

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/allisson/agentrelay/internal/errors"
)

func writeTranscript(t *testing.T, dir, sessionID string, lines ...string) {
	t.Helper()
	path := filepath.Join(dir, sessionID+".jsonl")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600))
}

func TestSummarize(t *testing.T) {
	t.Run("aggregates-tokens-and-cost", func(t *testing.T) {
		dir := t.TempDir()
		writeTranscript(t, dir, "session-1",
			`{"type":"assistant","timestamp":"2026-08-25T10:00:00Z","usage":{"input_tokens":100,"output_tokens":50},"cost_usd":0.01}`,
			`{"type":"tool_result","timestamp":"2026-08-25T10:01:00Z"}`,
			`{"type":"assistant","timestamp":"2026-08-25T10:02:00Z","usage":{"input_tokens":200,"output_tokens":80},"cost_usd":0.02}`,
		)

		summary, err := NewReader(dir).Summarize("session-1")

		require.NoError(t, err)
		assert.Equal(t, 3, summary.Entries)
		assert.Equal(t, int64(430), summary.TotalTokens)
		assert.InDelta(t, 0.03, summary.TotalCostUSD, 0.0001)
		assert.False(t, summary.ErrorDetected)
		assert.Equal(t, "2026-08-25T10:02:00Z", summary.LastActivityAt.Format("2006-01-02T15:04:05Z"))
	})

	t.Run("error-state-decided-by-last-activity", func(t *testing.T) {
		dir := t.TempDir()
		writeTranscript(t, dir, "session-2",
			`{"type":"error","timestamp":"2026-08-25T10:00:00Z","is_error":true}`,
			`{"type":"assistant","timestamp":"2026-08-25T10:01:00Z"}`,
		)

		summary, err := NewReader(dir).Summarize("session-2")

		require.NoError(t, err)
		assert.False(t, summary.ErrorDetected)
	})

	t.Run("session-ending-in-error", func(t *testing.T) {
		dir := t.TempDir()
		writeTranscript(t, dir, "session-3",
			`{"type":"assistant","timestamp":"2026-08-25T10:00:00Z"}`,
			`{"type":"error","timestamp":"2026-08-25T10:01:00Z","is_error":true}`,
		)

		summary, err := NewReader(dir).Summarize("session-3")

		require.NoError(t, err)
		assert.True(t, summary.ErrorDetected)
	})

	t.Run("malformed-lines-are-skipped", func(t *testing.T) {
		dir := t.TempDir()
		writeTranscript(t, dir, "session-4",
			`{"type":"assistant","usage":{"input_tokens":10,"output_tokens":5}}`,
			`not json at all`,
			`{"type":"assistant","usage":{"input_tokens":20,"output_tokens":5}}`,
		)

		summary, err := NewReader(dir).Summarize("session-4")

		require.NoError(t, err)
		assert.Equal(t, 2, summary.Entries)
		assert.Equal(t, int64(40), summary.TotalTokens)
	})

	t.Run("missing-transcript-returns-not-found", func(t *testing.T) {
		_, err := NewReader(t.TempDir()).Summarize("absent")
		assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	})
}
