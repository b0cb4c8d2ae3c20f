package llm

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// HashEmbedder is a deterministic, dependency-free Embedder. Each lowercased
// token contributes a pseudo-random unit direction seeded by its hash, so
// texts sharing tokens land near each other while identical text maps to an
// identical vector. It backs local development and serves as the degraded
// path when no embedding endpoint is configured.
type HashEmbedder struct {
	dimension int
}

// NewHashEmbedder creates a hash embedder with the given dimension.
func NewHashEmbedder(dimension int) *HashEmbedder {
	if dimension <= 0 {
		dimension = 128
	}
	return &HashEmbedder{dimension: dimension}
}

// Embed produces a normalized deterministic vector for the text.
func (e *HashEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	vec := make([]float64, e.dimension)

	for _, token := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New64a()
		h.Write([]byte(token))
		seed := h.Sum64()
		for i := 0; i < e.dimension; i++ {
			// Linear congruential generator expanded from the token hash.
			seed = seed*6364136223846793005 + 1442695040888963407
			vec[i] += float64(int64(seed)) / float64(math.MaxInt64)
		}
	}

	return normalize(vec), nil
}

// Dimension returns the embedding size.
func (e *HashEmbedder) Dimension() int {
	return e.dimension
}

// normalize scales the vector to unit length. Zero vectors pass through.
func normalize(vec []float64) []float64 {
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i, v := range vec {
		vec[i] = v / norm
	}
	return vec
}

// FallbackSummarizer produces a deterministic concatenation-based summary.
// It guarantees the consolidation engine can always synthesize a record,
// even with no language model reachable.
type FallbackSummarizer struct {
	// MaxLen caps the summary length in bytes. Default 512.
	MaxLen int
}

// Summarize joins the contents with separators and truncates at a rune
// boundary. Output is stable for a given input group.
func (s *FallbackSummarizer) Summarize(_ context.Context, contents []string) (string, error) {
	maxLen := s.MaxLen
	if maxLen <= 0 {
		maxLen = 512
	}

	joined := strings.Join(contents, "; ")
	if len(joined) <= maxLen {
		return joined, nil
	}

	runes := []rune(joined)
	cut := maxLen
	if cut > len(runes) {
		cut = len(runes)
	}
	return string(runes[:cut]) + "...", nil
}
