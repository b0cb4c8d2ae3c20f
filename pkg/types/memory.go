package types

import "time"

// MemoryRecord is a durable unit of remembered text with metadata.
// Records live in exactly one agent's bucket in the memory store; the vector
// index and relationship graph hold derived views keyed by the same ID.
type MemoryRecord struct {
	// ID is the opaque unique identifier, collision-free within a process
	// lifetime and roughly monotonic in creation order.
	ID string `json:"id"`

	// AgentID is the owning agent's bucket key.
	AgentID string `json:"agent_id"`

	// Content is the remembered text.
	Content string `json:"content"`

	// CreatedAt is the record creation time. It breaks ties in similarity
	// ranking (newer first) and orders consolidation candidates.
	CreatedAt time.Time `json:"created_at"`

	// Importance is a caller-supplied weight in [0,1]. Default 1.0.
	Importance float64 `json:"importance"`

	// Tags is a de-duplicated, insertion-ordered set of labels. The first
	// tag doubles as the consolidation grouping key.
	Tags []string `json:"tags,omitempty"`

	// Embedding is the semantic vector, populated asynchronously after
	// creation. A nil embedding means the record is still pending and is
	// excluded from similarity ranking.
	Embedding []float64 `json:"embedding,omitempty"`
}

// HasEmbedding reports whether the record's embedding has arrived.
func (m *MemoryRecord) HasEmbedding() bool {
	return len(m.Embedding) > 0
}

// HasAnyTag reports whether the record carries at least one of the given
// tags. An empty query set matches nothing.
func (m *MemoryRecord) HasAnyTag(tags []string) bool {
	for _, want := range tags {
		for _, have := range m.Tags {
			if have == want {
				return true
			}
		}
	}
	return false
}

// GroupTag returns the record's first tag, or the "general" sentinel when
// the record has no tags.
func (m *MemoryRecord) GroupTag() string {
	if len(m.Tags) == 0 {
		return TagGeneral
	}
	return m.Tags[0]
}

// NormalizeTags de-duplicates a tag list preserving first-occurrence order
// and dropping empty strings.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// ClampImportance clamps an importance value into [0,1]. Negative inputs
// clamp to zero so the "never negative" invariant holds at every boundary.
func ClampImportance(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
