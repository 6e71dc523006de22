// Package repository implements durable, file-backed outbox queues. Each
// queue is one JSON array file written exclusively through the atomic
// persistence layer, so the file on disk is always a complete, consistent
// snapshot of the pending events for that key.
package repository

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	apperrors "github.com/allisson/agentrelay/internal/errors"
	"github.com/allisson/agentrelay/internal/outbox/domain"
	"github.com/allisson/agentrelay/internal/persistence"
)

const queueFileSuffix = ".json"

// FileQueueRepository stores one queue per file under a root directory.
// Queue files are created lazily; an empty queue may have no backing file.
type FileQueueRepository struct {
	dir    string
	store  *persistence.Store
	logger *slog.Logger

	// Guards against concurrent in-process writers to the same queue.
	// Cross-process safety comes from atomic replace semantics alone.
	mu sync.Mutex
}

// NewFileQueueRepository creates a repository rooted at dir.
func NewFileQueueRepository(dir string, store *persistence.Store, logger *slog.Logger) *FileQueueRepository {
	return &FileQueueRepository{dir: dir, store: store, logger: logger}
}

// Append durably adds one event to the end of the queue, preserving
// arrival order.
func (r *FileQueueRepository) Append(queueKey string, event *domain.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	events, err := r.readLocked(queueKey)
	if err != nil {
		return err
	}
	events = append(events, event)
	return r.writeLocked(queueKey, events)
}

// Read returns all pending events for the key, oldest first, without side
// effects. A missing queue file reads as an empty queue.
func (r *FileQueueRepository) Read(queueKey string) ([]*domain.OutboxEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.readLocked(queueKey)
}

// Replace atomically overwrites the queue with exactly the given events.
// An empty remainder removes the file.
func (r *FileQueueRepository) Replace(queueKey string, remaining []*domain.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.replaceLocked(queueKey, remaining)
}

// Prune removes the events with the given ids from the queue, keeping
// everything else. The flush pass removes its delivered and permanently
// undeliverable events this way: the queue is re-read under the lock, so an
// event appended between the pass's read and this rewrite survives.
func (r *FileQueueRepository) Prune(queueKey string, removed []uuid.UUID) error {
	if len(removed) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	events, err := r.readLocked(queueKey)
	if err != nil {
		return err
	}

	drop := make(map[uuid.UUID]struct{}, len(removed))
	for _, id := range removed {
		drop[id] = struct{}{}
	}
	var remaining []*domain.OutboxEvent
	for _, event := range events {
		if _, ok := drop[event.ID]; ok {
			continue
		}
		remaining = append(remaining, event)
	}
	return r.replaceLocked(queueKey, remaining)
}

// Keys lists the keys of all queues that currently have a backing file,
// sorted for deterministic flush order.
func (r *FileQueueRepository) Keys() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing outbox directory: %w", err)
	}

	var keys []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, queueFileSuffix) {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, queueFileSuffix))
	}
	sort.Strings(keys)
	return keys, nil
}

// Stats summarizes every non-empty queue for the diagnostics surface.
func (r *FileQueueRepository) Stats() ([]domain.QueueStats, error) {
	keys, err := r.Keys()
	if err != nil {
		return nil, err
	}

	var stats []domain.QueueStats
	for _, key := range keys {
		events, err := r.Read(key)
		if err != nil {
			return nil, err
		}
		if len(events) == 0 {
			continue
		}
		stat := domain.QueueStats{
			Key:      key,
			Pending:  len(events),
			OldestAt: events[0].Timestamp,
			NewestAt: events[0].Timestamp,
		}
		for _, event := range events[1:] {
			if event.Timestamp.Before(stat.OldestAt) {
				stat.OldestAt = event.Timestamp
			}
			if event.Timestamp.After(stat.NewestAt) {
				stat.NewestAt = event.Timestamp
			}
		}
		stats = append(stats, stat)
	}
	return stats, nil
}

// Activities returns the materialized activity items of all pending events,
// newest first, capped at limit. This is the locally visible feed a
// disconnected client renders while delivery is deferred.
func (r *FileQueueRepository) Activities(limit int) ([]domain.ActivityItem, error) {
	keys, err := r.Keys()
	if err != nil {
		return nil, err
	}

	var items []domain.ActivityItem
	for _, key := range keys {
		events, err := r.Read(key)
		if err != nil {
			return nil, err
		}
		for _, event := range events {
			items = append(items, event.Activity)
		}
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (r *FileQueueRepository) readLocked(queueKey string) ([]*domain.OutboxEvent, error) {
	var raw []json.RawMessage
	err := r.store.ReadJSON(r.queuePath(queueKey), &raw)
	if err != nil {
		// Missing and quarantined-corrupt queues both read as empty.
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	// Decode events one at a time: a single undecodable entry (e.g. a type
	// tag written by a newer revision) is skipped with a warning instead of
	// stalling every sibling in the queue. The skipped entry falls out of
	// the file at the next rewrite.
	events := make([]*domain.OutboxEvent, 0, len(raw))
	for _, entry := range raw {
		var event domain.OutboxEvent
		if err := json.Unmarshal(entry, &event); err != nil {
			if r.logger != nil {
				r.logger.Warn("skipping undecodable buffered event",
					slog.String("queue_key", queueKey),
					slog.Any("error", err),
				)
			}
			continue
		}
		events = append(events, &event)
	}
	return events, nil
}

func (r *FileQueueRepository) replaceLocked(queueKey string, events []*domain.OutboxEvent) error {
	if len(events) == 0 {
		if err := os.Remove(r.queuePath(queueKey)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing drained queue %s: %w", queueKey, err)
		}
		return nil
	}
	return r.writeLocked(queueKey, events)
}

func (r *FileQueueRepository) writeLocked(queueKey string, events []*domain.OutboxEvent) error {
	return r.store.WriteJSON(r.queuePath(queueKey), events)
}

// queuePath maps a queue key to its backing file, defanging path separators
// so a hostile key cannot escape the outbox directory.
func (r *FileQueueRepository) queuePath(queueKey string) string {
	safe := strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(queueKey)
	return filepath.Join(r.dir, safe+queueFileSuffix)
}
