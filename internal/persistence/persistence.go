// Package persistence provides crash-safe write primitives for durable JSON
// state. All relay state files (outbox queues, run records) are written
// through WriteAtomic so a partially written file is never observable: the
// rename over the target is the only externally visible state transition.
package persistence

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	apperrors "github.com/allisson/agentrelay/internal/errors"
)

const (
	dirPerm  = 0o755
	filePerm = 0o600
)

// Store performs atomic reads and writes of JSON files under a root directory.
type Store struct {
	logger *slog.Logger
}

// NewStore creates a new Store.
func NewStore(logger *slog.Logger) *Store {
	return &Store{logger: logger}
}

// WriteAtomic writes data to path by writing a temporary sibling file and
// renaming it over the target. On rename failure due to a locked or
// permission-denied pre-existing target, it removes the stale target and
// retries once before surfacing the error. A failure here is fatal for the
// write: callers must not assume the data was durably recorded.
func (s *Store) WriteAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()

	// Any failure from here on leaves the target untouched; only the temp
	// file needs cleanup.
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("writing temp file %s: %w", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("syncing temp file %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("closing temp file %s: %w", tmpPath, err)
	}
	if err := os.Chmod(tmpPath, filePerm); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("setting permissions on %s: %w", tmpPath, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		// A locked or read-only target can block the rename on some
		// filesystems; only then is removing the stale target and retrying
		// justified. Any other failure must leave the target exactly as
		// it was.
		if os.IsPermission(err) {
			if removeErr := os.Remove(path); removeErr == nil || os.IsNotExist(removeErr) {
				if retryErr := os.Rename(tmpPath, path); retryErr == nil {
					return nil
				}
			}
		}
		_ = os.Remove(tmpPath)
		return fmt.Errorf("renaming %s to %s: %w", tmpPath, path, err)
	}

	return nil
}

// WriteJSON marshals v and writes it atomically to path.
func (s *Store) WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", path, err)
	}
	return s.WriteAtomic(path, data)
}

// ReadJSON reads path and unmarshals it into v. A missing file returns
// ErrNotFound. An unparseable file is quarantined (renamed aside with a
// timestamped suffix) instead of crashing the process, and ErrNotFound is
// returned so the caller starts from a clean slate.
func (s *Store) ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return apperrors.Wrap(apperrors.ErrNotFound, path)
		}
		return fmt.Errorf("reading %s: %w", path, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		quarantined := s.QuarantineCorrupt(path)
		if s.logger != nil {
			s.logger.Warn("quarantined corrupt state file",
				slog.String("path", path),
				slog.String("quarantined_as", quarantined),
				slog.Any("error", err),
			)
		}
		return apperrors.Wrap(apperrors.ErrNotFound, path)
	}

	return nil
}

// QuarantineCorrupt renames an unparseable file out of the way with a
// timestamped suffix, preserving it for forensics rather than deleting it.
// Returns the quarantine path, or empty string if the rename failed.
func (s *Store) QuarantineCorrupt(path string) string {
	quarantined := fmt.Sprintf("%s.corrupt-%s", path, time.Now().UTC().Format("20060102T150405"))
	if err := os.Rename(path, quarantined); err != nil {
		if s.logger != nil {
			s.logger.Error("failed to quarantine corrupt file",
				slog.String("path", path),
				slog.Any("error", err),
			)
		}
		return ""
	}
	return quarantined
}
