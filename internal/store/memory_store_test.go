package store_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinruoxinchen/one-unlimit-os/internal/store"
)

func newStore(t *testing.T) *store.MemoryStore {
	t.Helper()
	s, err := store.NewMemoryStore(nil)
	require.NoError(t, err)
	return s
}

func TestMemoryStore_AddAndFind(t *testing.T) {
	s := newStore(t)

	rec := s.NewRecord("agent-1", "user prefers dark mode", 0.8, []string{"preference"})
	require.NoError(t, s.Add(rec))
	require.NotEmpty(t, rec.ID)

	got, ok := s.FindByID(rec.ID)
	require.True(t, ok)
	assert.Equal(t, "agent-1", got.AgentID)
	assert.Equal(t, "user prefers dark mode", got.Content)
	assert.Equal(t, 0.8, got.Importance)
	assert.False(t, got.HasEmbedding())
}

func TestMemoryStore_UniqueIDs(t *testing.T) {
	s := newStore(t)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		rec := s.NewRecord("agent-1", fmt.Sprintf("memory %d", i), 0.5, nil)
		require.False(t, seen[rec.ID], "duplicate ID %s", rec.ID)
		seen[rec.ID] = true
	}
}

func TestMemoryStore_ValidatesInput(t *testing.T) {
	s := newStore(t)

	err := s.Add(s.NewRecord("", "content", 0.5, nil))
	assert.ErrorIs(t, err, store.ErrInvalidInput)

	err = s.Add(s.NewRecord("agent-1", "", 0.5, nil))
	assert.ErrorIs(t, err, store.ErrInvalidInput)
}

func TestMemoryStore_ClampsImportance(t *testing.T) {
	s := newStore(t)

	rec := s.NewRecord("agent-1", "too big", 7.5, nil)
	assert.Equal(t, 1.0, rec.Importance)

	rec = s.NewRecord("agent-1", "negative", -1, nil)
	assert.Equal(t, 0.0, rec.Importance)
}

func TestMemoryStore_BucketIsolation(t *testing.T) {
	s := newStore(t)

	require.NoError(t, s.Add(s.NewRecord("agent-a", "a's memory", 0.5, nil)))
	require.NoError(t, s.Add(s.NewRecord("agent-b", "b's memory", 0.5, nil)))
	require.NoError(t, s.Add(s.NewRecord("agent-b", "b's other memory", 0.5, nil)))

	assert.Len(t, s.Records("agent-a"), 1)
	assert.Len(t, s.Records("agent-b"), 2)
	assert.Empty(t, s.Records("agent-c"))
	assert.Equal(t, 3, s.Count())
	assert.ElementsMatch(t, []string{"agent-a", "agent-b"}, s.Agents())
}

func TestMemoryStore_SetEmbedding(t *testing.T) {
	s := newStore(t)

	rec := s.NewRecord("agent-1", "embed me", 0.5, nil)
	require.NoError(t, s.Add(rec))

	ok := s.SetEmbedding(rec.ID, []float64{0.1, 0.2, 0.3})
	require.True(t, ok)

	got, found := s.FindByID(rec.ID)
	require.True(t, found)
	assert.True(t, got.HasEmbedding())
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, got.Embedding)

	// Embedding for a deleted record reports false instead of erroring.
	s.Delete(rec.ID)
	assert.False(t, s.SetEmbedding(rec.ID, []float64{1}))
}

func TestMemoryStore_DeleteIdempotent(t *testing.T) {
	s := newStore(t)

	rec := s.NewRecord("agent-1", "ephemeral", 0.5, nil)
	require.NoError(t, s.Add(rec))

	assert.True(t, s.Delete(rec.ID))
	assert.False(t, s.Delete(rec.ID))

	_, found := s.FindByID(rec.ID)
	assert.False(t, found)
}

func TestMemoryStore_RemoveFromBucket(t *testing.T) {
	s := newStore(t)

	var ids []string
	for i := 0; i < 4; i++ {
		rec := s.NewRecord("agent-1", fmt.Sprintf("memory %d", i), 0.5, nil)
		require.NoError(t, s.Add(rec))
		ids = append(ids, rec.ID)
	}

	removed := s.RemoveFromBucket("agent-1", ids[:2])
	assert.Equal(t, 2, removed)
	assert.Len(t, s.Records("agent-1"), 2)

	// Unknown IDs and wrong buckets remove nothing.
	assert.Equal(t, 0, s.RemoveFromBucket("agent-1", []string{"nope"}))
	assert.Equal(t, 0, s.RemoveFromBucket("agent-2", ids[2:]))
}

func TestMemoryStore_ClearAll(t *testing.T) {
	s := newStore(t)

	require.NoError(t, s.Add(s.NewRecord("agent-a", "one", 0.5, nil)))
	require.NoError(t, s.Add(s.NewRecord("agent-b", "two", 0.5, nil)))

	s.ClearAll()

	assert.Equal(t, 0, s.Count())
	assert.Empty(t, s.Agents())
}

func TestMemoryStore_NormalizesTags(t *testing.T) {
	s := newStore(t)

	rec := s.NewRecord("agent-1", "tagged", 0.5, []string{"b", "a", "b", ""})
	assert.Equal(t, []string{"b", "a"}, rec.Tags)
}

func TestMemoryStore_RecordsReturnsCopy(t *testing.T) {
	s := newStore(t)

	rec := s.NewRecord("agent-1", "original", 0.5, nil)
	require.NoError(t, s.Add(rec))

	records := s.Records("agent-1")
	require.Len(t, records, 1)
	records[0].Content = "mutated"

	got, _ := s.FindByID(rec.ID)
	assert.Equal(t, "original", got.Content)
}
