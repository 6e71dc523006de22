package repository

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/agentrelay/internal/outbox/domain"
	"github.com/allisson/agentrelay/internal/persistence"
	reportingDomain "github.com/allisson/agentrelay/internal/reporting/domain"
)

func newTestRepository(t *testing.T) *FileQueueRepository {
	t.Helper()
	return NewFileQueueRepository(t.TempDir(), persistence.NewStore(nil), nil)
}

func newTestEvent(t *testing.T, message string) *domain.OutboxEvent {
	t.Helper()
	event, err := domain.NewOutboxEvent(
		reportingDomain.ReportingContext{
			InitiativeID:  "0195e7a3-1f7a-7bbf-9a1e-2f2f51a7b001",
			CorrelationID: "session-42",
			SourceClient:  reportingDomain.SourceClaudeCode,
		},
		&domain.ProgressPayload{Message: message},
		domain.ActivityItem{Title: message},
	)
	require.NoError(t, err)
	return event
}

func TestAppendAndRead(t *testing.T) {
	repo := newTestRepository(t)

	t.Run("empty-queue-reads-as-nil", func(t *testing.T) {
		events, err := repo.Read("session-42")
		require.NoError(t, err)
		assert.Empty(t, events)
	})

	t.Run("preserves-arrival-order", func(t *testing.T) {
		first := newTestEvent(t, "first")
		second := newTestEvent(t, "second")
		third := newTestEvent(t, "third")

		require.NoError(t, repo.Append("session-42", first))
		require.NoError(t, repo.Append("session-42", second))
		require.NoError(t, repo.Append("session-42", third))

		events, err := repo.Read("session-42")
		require.NoError(t, err)
		require.Len(t, events, 3)
		assert.Equal(t, first.ID, events[0].ID)
		assert.Equal(t, second.ID, events[1].ID)
		assert.Equal(t, third.ID, events[2].ID)
	})

	t.Run("queues-are-independent", func(t *testing.T) {
		require.NoError(t, repo.Append("other-session", newTestEvent(t, "elsewhere")))

		events, err := repo.Read("other-session")
		require.NoError(t, err)
		assert.Len(t, events, 1)
	})
}

func TestReplace(t *testing.T) {
	t.Run("keeps-exactly-the-given-subset-in-order", func(t *testing.T) {
		repo := newTestRepository(t)
		first := newTestEvent(t, "first")
		second := newTestEvent(t, "second")
		third := newTestEvent(t, "third")
		for _, event := range []*domain.OutboxEvent{first, second, third} {
			require.NoError(t, repo.Append("q", event))
		}

		require.NoError(t, repo.Replace("q", []*domain.OutboxEvent{first, third}))

		events, err := repo.Read("q")
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, first.ID, events[0].ID)
		assert.Equal(t, third.ID, events[1].ID)
	})

	t.Run("empty-remainder-removes-backing-file", func(t *testing.T) {
		dir := t.TempDir()
		repo := NewFileQueueRepository(dir, persistence.NewStore(nil), nil)
		require.NoError(t, repo.Append("q", newTestEvent(t, "only")))

		require.NoError(t, repo.Replace("q", nil))

		_, err := os.Stat(filepath.Join(dir, "q.json"))
		assert.True(t, os.IsNotExist(err))

		keys, err := repo.Keys()
		require.NoError(t, err)
		assert.Empty(t, keys)
	})
}

func TestPrune(t *testing.T) {
	t.Run("removes-only-the-given-ids", func(t *testing.T) {
		repo := newTestRepository(t)
		first := newTestEvent(t, "first")
		second := newTestEvent(t, "second")
		third := newTestEvent(t, "third")
		for _, event := range []*domain.OutboxEvent{first, second, third} {
			require.NoError(t, repo.Append("q", event))
		}

		require.NoError(t, repo.Prune("q", []uuid.UUID{second.ID}))

		events, err := repo.Read("q")
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, first.ID, events[0].ID)
		assert.Equal(t, third.ID, events[1].ID)
	})

	t.Run("keeps-events-appended-after-the-caller-read", func(t *testing.T) {
		repo := newTestRepository(t)
		first := newTestEvent(t, "first")
		require.NoError(t, repo.Append("q", first))

		// A live-path append lands between the flush's read and its prune.
		late := newTestEvent(t, "late")
		require.NoError(t, repo.Append("q", late))

		require.NoError(t, repo.Prune("q", []uuid.UUID{first.ID}))

		events, err := repo.Read("q")
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, late.ID, events[0].ID)
	})

	t.Run("pruning-everything-removes-the-backing-file", func(t *testing.T) {
		dir := t.TempDir()
		repo := NewFileQueueRepository(dir, persistence.NewStore(nil), nil)
		only := newTestEvent(t, "only")
		require.NoError(t, repo.Append("q", only))

		require.NoError(t, repo.Prune("q", []uuid.UUID{only.ID}))

		_, err := os.Stat(filepath.Join(dir, "q.json"))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("empty-removal-is-a-no-op", func(t *testing.T) {
		repo := newTestRepository(t)
		require.NoError(t, repo.Append("q", newTestEvent(t, "kept")))

		require.NoError(t, repo.Prune("q", nil))

		events, err := repo.Read("q")
		require.NoError(t, err)
		assert.Len(t, events, 1)
	})
}

func TestKeys(t *testing.T) {
	repo := newTestRepository(t)
	require.NoError(t, repo.Append("b-session", newTestEvent(t, "b")))
	require.NoError(t, repo.Append("a-session", newTestEvent(t, "a")))

	keys, err := repo.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"a-session", "b-session"}, keys)
}

func TestStats(t *testing.T) {
	repo := newTestRepository(t)
	first := newTestEvent(t, "first")
	second := newTestEvent(t, "second")
	require.NoError(t, repo.Append("q", first))
	require.NoError(t, repo.Append("q", second))

	stats, err := repo.Stats()
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, "q", stats[0].Key)
	assert.Equal(t, 2, stats[0].Pending)
	assert.False(t, stats[0].OldestAt.After(stats[0].NewestAt))
}

func TestActivities(t *testing.T) {
	repo := newTestRepository(t)
	require.NoError(t, repo.Append("q1", newTestEvent(t, "one")))
	require.NoError(t, repo.Append("q2", newTestEvent(t, "two")))
	require.NoError(t, repo.Append("q2", newTestEvent(t, "three")))

	t.Run("collects-across-queues", func(t *testing.T) {
		items, err := repo.Activities(0)
		require.NoError(t, err)
		assert.Len(t, items, 3)
		for _, item := range items {
			assert.True(t, item.Pending)
		}
	})

	t.Run("respects-limit", func(t *testing.T) {
		items, err := repo.Activities(2)
		require.NoError(t, err)
		assert.Len(t, items, 2)
	})
}

func TestUnknownEventTypeSkipsOnlyThatEvent(t *testing.T) {
	dir := t.TempDir()
	repo := NewFileQueueRepository(dir, persistence.NewStore(nil), nil)
	first := newTestEvent(t, "first")
	second := newTestEvent(t, "second")

	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)
	// An event written by a newer revision with a type tag this build does
	// not know, sitting between two deliverable events.
	unknown := `{"id":"0195e7a3-1f7a-7bbf-9a1e-2f2f51a7b0ff","type":"hologram","payload":{}}`
	content := fmt.Sprintf("[%s,%s,%s]", firstJSON, unknown, secondJSON)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "q.json"), []byte(content), 0o600))

	events, err := repo.Read("q")

	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, first.ID, events[0].ID)
	assert.Equal(t, second.ID, events[1].ID)
	// The siblings stay deliverable: the queue file was not quarantined.
	_, statErr := os.Stat(filepath.Join(dir, "q.json"))
	assert.NoError(t, statErr)
}

func TestCorruptQueueIsQuarantined(t *testing.T) {
	dir := t.TempDir()
	repo := NewFileQueueRepository(dir, persistence.NewStore(nil), nil)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "q.json"), []byte("{torn"), 0o600))

	events, err := repo.Read("q")

	require.NoError(t, err)
	assert.Empty(t, events)
	// The torn file was renamed aside, not deleted.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), "corrupt")
}
