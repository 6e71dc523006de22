// Package repository implements the durable agent-run record store: one
// JSON map keyed by run id, written exclusively through the atomic
// persistence layer.
package repository

import (
	"sort"
	"sync"

	apperrors "github.com/allisson/agentrelay/internal/errors"
	"github.com/allisson/agentrelay/internal/persistence"
	"github.com/allisson/agentrelay/internal/runs/domain"
)

// FileRunRepository stores all run records in a single JSON file.
type FileRunRepository struct {
	path  string
	store *persistence.Store
	mu    sync.Mutex
}

// NewFileRunRepository creates a repository backed by the file at path.
func NewFileRunRepository(path string, store *persistence.Store) *FileRunRepository {
	return &FileRunRepository{path: path, store: store}
}

// Save upserts one record. The whole map is rewritten atomically so a crash
// mid-save leaves either the old or the new state, never a torn file.
func (r *FileRunRepository) Save(record *domain.AgentRunRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.loadLocked()
	if err != nil {
		return err
	}
	records[record.RunID] = record
	return r.store.WriteJSON(r.path, records)
}

// Get returns the record for a run id, or ErrNotFound.
func (r *FileRunRepository) Get(runID string) (*domain.AgentRunRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.loadLocked()
	if err != nil {
		return nil, err
	}
	record, ok := records[runID]
	if !ok {
		return nil, apperrors.Wrap(apperrors.ErrNotFound, "run "+runID)
	}
	return record, nil
}

// List returns all records ordered by start time, oldest first.
func (r *FileRunRepository) List() ([]*domain.AgentRunRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.loadLocked()
	if err != nil {
		return nil, err
	}

	out := make([]*domain.AgentRunRecord, 0, len(records))
	for _, record := range records {
		out = append(out, record)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out, nil
}

// ListByStatus returns all records with the given status, oldest first.
func (r *FileRunRepository) ListByStatus(status domain.RunStatus) ([]*domain.AgentRunRecord, error) {
	all, err := r.List()
	if err != nil {
		return nil, err
	}

	var out []*domain.AgentRunRecord
	for _, record := range all {
		if record.Status == status {
			out = append(out, record)
		}
	}
	return out, nil
}

func (r *FileRunRepository) loadLocked() (map[string]*domain.AgentRunRecord, error) {
	records := make(map[string]*domain.AgentRunRecord)
	err := r.store.ReadJSON(r.path, &records)
	if err != nil && !apperrors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}
	return records, nil
}
