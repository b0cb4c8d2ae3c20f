// Package observation implements the bounded, recency-ordered window of raw
// system events. The buffer is independent of every other component: events
// live here until they age out or the significance filter promotes them.
package observation

import (
	"sync"

	"github.com/jinruoxinchen/one-unlimit-os/pkg/types"
)

// DefaultCapacity is the ring capacity used when none is configured.
const DefaultCapacity = 50

// Buffer is a fixed-capacity ring of observations. New entries displace the
// oldest once capacity is reached; there is no error path for overflow, which
// is what absorbs unbounded fire-and-forget delivery from the observation
// source. Safe for one writer and many readers concurrently; the critical
// section is a few pointer moves and is never held across external calls.
type Buffer struct {
	mu       sync.Mutex
	entries  []types.Observation // ring storage
	head     int                 // index of the most recent entry
	size     int                 // number of live entries
	capacity int
}

// NewBuffer creates a buffer with the given capacity. Non-positive
// capacities fall back to DefaultCapacity.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{
		entries:  make([]types.Observation, capacity),
		head:     -1,
		capacity: capacity,
	}
}

// Record appends an observation at the front of the ring. The oldest entry
// beyond capacity is silently discarded.
func (b *Buffer) Record(obs types.Observation) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.head = (b.head + 1) % b.capacity
	b.entries[b.head] = obs
	if b.size < b.capacity {
		b.size++
	}
}

// Recent returns the most recent limit entries, newest first. A limit at or
// above the live count returns everything; a non-positive limit returns nil.
func (b *Buffer) Recent(limit int) []types.Observation {
	b.mu.Lock()
	defer b.mu.Unlock()

	if limit <= 0 || b.size == 0 {
		return nil
	}
	if limit > b.size {
		limit = b.size
	}

	out := make([]types.Observation, 0, limit)
	for i := 0; i < limit; i++ {
		idx := (b.head - i + b.capacity) % b.capacity
		out = append(out, b.entries[idx])
	}
	return out
}

// RecentOfKinds returns the most recent limit entries whose kind is in the
// given set, newest first. An empty kind set matches nothing.
func (b *Buffer) RecentOfKinds(kinds []types.EventKind, limit int) []types.Observation {
	if len(kinds) == 0 || limit <= 0 {
		return nil
	}

	wanted := make(map[types.EventKind]struct{}, len(kinds))
	for _, k := range kinds {
		wanted[k] = struct{}{}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]types.Observation, 0, limit)
	for i := 0; i < b.size && len(out) < limit; i++ {
		idx := (b.head - i + b.capacity) % b.capacity
		if _, ok := wanted[b.entries[idx].Kind]; ok {
			out = append(out, b.entries[idx])
		}
	}
	return out
}

// Len returns the number of live entries.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Capacity returns the fixed ring capacity.
func (b *Buffer) Capacity() int {
	return b.capacity
}

// Clear drops every entry. Used by the privacy/reset flow.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.head = -1
	b.size = 0
}
