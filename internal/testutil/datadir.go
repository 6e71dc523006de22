// Package testutil provides testing utilities for the file-backed stores.
//
// Data Directory Setup:
//
//	dirs := testutil.SetupDataDir(t)
//	queueRepo := repository.NewFileQueueRepository(dirs.OutboxDir, store, logger)
//
// Transcript Fixtures:
//
//	testutil.WriteTranscript(t, dirs.SessionsDir, "session-1",
//		`{"type":"assistant","usage":{"input_tokens":100,"output_tokens":30}}`,
//		`{"type":"result","cost_usd":0.05}`,
//	)
package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// DataDirs holds the layout of a temporary relay data directory.
type DataDirs struct {
	Root        string
	OutboxDir   string
	SessionsDir string
	RunsFile    string
}

// SetupDataDir creates the full data directory layout under a temp dir that
// is removed when the test finishes.
func SetupDataDir(t *testing.T) DataDirs {
	t.Helper()

	root := t.TempDir()
	dirs := DataDirs{
		Root:        root,
		OutboxDir:   filepath.Join(root, "outbox"),
		SessionsDir: filepath.Join(root, "sessions"),
		RunsFile:    filepath.Join(root, "runs.json"),
	}
	require.NoError(t, os.MkdirAll(dirs.OutboxDir, 0o700))
	require.NoError(t, os.MkdirAll(dirs.SessionsDir, 0o700))
	return dirs
}

// WriteTranscript writes a JSONL session transcript fixture, one line per
// entry.
func WriteTranscript(t *testing.T, sessionsDir, sessionID string, lines ...string) string {
	t.Helper()

	path := filepath.Join(sessionsDir, sessionID+".jsonl")
	content := strings.Join(lines, "\n") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}
