// Package llm provides the external language-model collaborators the memory
// subsystem consumes: text embedding and group summarization. Both are
// consumed through narrow interfaces so the engine never depends on a
// concrete vendor, and both are wrapped in a circuit breaker with local
// degraded fallbacks — a collaborator outage is never caller-visible.
package llm

import "context"

// Embedder maps text to a fixed-length numeric vector. Identical text must
// yield comparable vectors across calls within a session. A returned error
// means "embedding pending, retry later", never a fatal fault.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	Dimension() int
}

// Summarizer condenses a group of memory contents into one summary string.
// The consolidation engine falls back to deterministic concatenation when
// the summarizer is unavailable, so failures here never block consolidation.
type Summarizer interface {
	Summarize(ctx context.Context, contents []string) (string, error)
}
