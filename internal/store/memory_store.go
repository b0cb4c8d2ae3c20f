// Package store implements the authoritative per-agent memory buckets and
// the generic categorical stores. The memory store exclusively owns record
// lifetime; the vector index and relationship graph hold derived views the
// service façade keeps in sync.
package store

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"

	"github.com/jinruoxinchen/one-unlimit-os/internal/persist"
	"github.com/jinruoxinchen/one-unlimit-os/pkg/types"
)

// bucket holds one agent's records behind its own lock so a write to one
// agent never blocks a read of another.
type bucket struct {
	mu      sync.Mutex
	records []types.MemoryRecord
}

// MemoryStore is the authoritative per-agent collection of memory records.
// It owns identity generation; total live record count stays bounded because
// the consolidation engine runs against it.
type MemoryStore struct {
	mu      sync.RWMutex
	buckets map[string]*bucket

	node        *snowflake.Node
	snapshotter persist.Snapshotter // optional; nil = volatile only
}

// NewMemoryStore creates an empty store. The snapshotter is optional: pass
// nil for a purely volatile engine.
func NewMemoryStore(snapshotter persist.Snapshotter) (*MemoryStore, error) {
	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, fmt.Errorf("store: init id generator: %w", err)
	}
	return &MemoryStore{
		buckets:     make(map[string]*bucket),
		node:        node,
		snapshotter: snapshotter,
	}, nil
}

// NewRecord builds a record with a fresh ID, clamped importance, and
// normalized tags. The record is not stored until Add is called.
func (s *MemoryStore) NewRecord(agentID, content string, importance float64, tags []string) types.MemoryRecord {
	return types.MemoryRecord{
		ID:         s.node.Generate().String(),
		AgentID:    agentID,
		Content:    content,
		CreatedAt:  time.Now(),
		Importance: types.ClampImportance(importance),
		Tags:       types.NormalizeTags(tags),
	}
}

// Add appends a record to its agent's bucket and mirrors it to the
// persistence hook. Returns ErrInvalidInput for records missing an agent ID
// or content.
func (s *MemoryStore) Add(rec types.MemoryRecord) error {
	if rec.AgentID == "" {
		return fmt.Errorf("%w: agent ID is required", ErrInvalidInput)
	}
	if rec.Content == "" {
		return fmt.Errorf("%w: content is required", ErrInvalidInput)
	}

	b := s.bucketFor(rec.AgentID)
	b.mu.Lock()
	b.records = append(b.records, rec)
	b.mu.Unlock()

	s.snapshot(rec)
	return nil
}

// FindByID scans across all agent buckets for a record. The scan is
// acceptable because consolidation bounds the total live record count.
func (s *MemoryStore) FindByID(id string) (types.MemoryRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, b := range s.buckets {
		b.mu.Lock()
		for i := range b.records {
			if b.records[i].ID == id {
				rec := b.records[i]
				b.mu.Unlock()
				return rec, true
			}
		}
		b.mu.Unlock()
	}
	return types.MemoryRecord{}, false
}

// SetEmbedding attaches an asynchronously computed embedding to a stored
// record. Returns false when the record was deleted or consolidated away
// while the embedding was in flight.
func (s *MemoryStore) SetEmbedding(id string, embedding []float64) bool {
	var updated types.MemoryRecord
	found := false

	s.mu.RLock()
	for _, b := range s.buckets {
		b.mu.Lock()
		for i := range b.records {
			if b.records[i].ID == id {
				b.records[i].Embedding = embedding
				updated = b.records[i]
				found = true
				break
			}
		}
		b.mu.Unlock()
		if found {
			break
		}
	}
	s.mu.RUnlock()

	if found {
		// Snapshot outside every lock; the hook may hit a database.
		s.snapshot(updated)
	}
	return found
}

// Delete removes a record from its owning bucket. Idempotent: deleting an
// unknown ID reports false with no error. Derived index and graph entries
// are the façade's responsibility.
func (s *MemoryStore) Delete(id string) bool {
	removed := false

	s.mu.RLock()
	for _, b := range s.buckets {
		b.mu.Lock()
		for i := range b.records {
			if b.records[i].ID == id {
				b.records = append(b.records[:i], b.records[i+1:]...)
				removed = true
				break
			}
		}
		b.mu.Unlock()
		if removed {
			break
		}
	}
	s.mu.RUnlock()

	if removed {
		s.unsnapshot(id)
	}
	return removed
}

// RemoveFromBucket removes a set of records from one agent's bucket in a
// single critical section. Consolidation uses this to swap a group for its
// summary record atomically with respect to that bucket.
func (s *MemoryStore) RemoveFromBucket(agentID string, ids []string) int {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	b := s.bucketFor(agentID)
	b.mu.Lock()
	kept := b.records[:0]
	removed := 0
	for _, rec := range b.records {
		if _, gone := drop[rec.ID]; gone {
			removed++
			continue
		}
		kept = append(kept, rec)
	}
	b.records = kept
	b.mu.Unlock()

	for _, id := range ids {
		s.unsnapshot(id)
	}
	return removed
}

// Records returns a copy of one agent's bucket contents in insertion order.
func (s *MemoryStore) Records(agentID string) []types.MemoryRecord {
	s.mu.RLock()
	b, ok := s.buckets[agentID]
	s.mu.RUnlock()
	if !ok {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]types.MemoryRecord, len(b.records))
	copy(out, b.records)
	return out
}

// Agents returns the IDs of all agents with a bucket, including empty ones.
func (s *MemoryStore) Agents() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.buckets))
	for agentID := range s.buckets {
		out = append(out, agentID)
	}
	return out
}

// Count returns the total number of live records across all buckets.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, b := range s.buckets {
		b.mu.Lock()
		total += len(b.records)
		b.mu.Unlock()
	}
	return total
}

// ClearAll wipes every bucket. Available for privacy/reset flows; the
// façade clears the derived indexes alongside.
func (s *MemoryStore) ClearAll() {
	s.mu.Lock()
	old := s.buckets
	s.buckets = make(map[string]*bucket)
	s.mu.Unlock()

	if s.snapshotter == nil {
		return
	}
	var ids []string
	for _, b := range old {
		b.mu.Lock()
		for _, rec := range b.records {
			ids = append(ids, rec.ID)
		}
		b.mu.Unlock()
	}
	for _, id := range ids {
		s.unsnapshot(id)
	}
}

// bucketFor returns the agent's bucket, creating it on first use.
func (s *MemoryStore) bucketFor(agentID string) *bucket {
	s.mu.RLock()
	b, ok := s.buckets[agentID]
	s.mu.RUnlock()
	if ok {
		return b
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok = s.buckets[agentID]; ok {
		return b
	}
	b = &bucket{}
	s.buckets[agentID] = b
	return b
}

// snapshot mirrors a committed record to the persistence hook. Failures are
// logged and swallowed: the in-memory copy is authoritative.
func (s *MemoryStore) snapshot(rec types.MemoryRecord) {
	if s.snapshotter == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.snapshotter.SaveRecord(ctx, rec); err != nil {
		log.Printf("store: snapshot %s failed: %v", rec.ID, err)
	}
}

func (s *MemoryStore) unsnapshot(id string) {
	if s.snapshotter == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.snapshotter.DeleteRecord(ctx, id); err != nil {
		log.Printf("store: snapshot delete %s failed: %v", id, err)
	}
}
