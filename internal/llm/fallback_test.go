package llm

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashEmbedder_Deterministic(t *testing.T) {
	e := NewHashEmbedder(64)
	ctx := context.Background()

	a, err := e.Embed(ctx, "the quick brown fox")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "the quick brown fox")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
	assert.Equal(t, 64, e.Dimension())
}

func TestHashEmbedder_UnitLength(t *testing.T) {
	e := NewHashEmbedder(32)

	vec, err := e.Embed(context.Background(), "normalize me")
	require.NoError(t, err)

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-9)
}

func TestHashEmbedder_SharedTokensCorrelate(t *testing.T) {
	e := NewHashEmbedder(64)
	ctx := context.Background()

	meeting1, _ := e.Embed(ctx, "team meeting on friday")
	meeting2, _ := e.Embed(ctx, "meeting notes")
	unrelated, _ := e.Embed(ctx, "grocery list apples")

	dot := func(a, b []float64) float64 {
		var sum float64
		for i := range a {
			sum += a[i] * b[i]
		}
		return sum
	}

	// Texts sharing the token "meeting" are closer than unrelated texts.
	assert.Greater(t, dot(meeting1, meeting2), dot(meeting1, unrelated))
}

func TestHashEmbedder_EmptyText(t *testing.T) {
	e := NewHashEmbedder(16)

	vec, err := e.Embed(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, vec, 16)
	for _, v := range vec {
		assert.Zero(t, v)
	}
}

func TestHashEmbedder_DefaultDimension(t *testing.T) {
	assert.Equal(t, 128, NewHashEmbedder(0).Dimension())
}

func TestFallbackSummarizer_Joins(t *testing.T) {
	s := &FallbackSummarizer{}

	summary, err := s.Summarize(context.Background(), []string{"first note", "second note"})
	require.NoError(t, err)
	assert.Equal(t, "first note; second note", summary)
}

func TestFallbackSummarizer_Truncates(t *testing.T) {
	s := &FallbackSummarizer{MaxLen: 20}

	summary, err := s.Summarize(context.Background(), []string{strings.Repeat("long content ", 10)})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(summary, "..."))
	assert.LessOrEqual(t, len([]rune(summary)), 23)
}

func TestFallbackSummarizer_Deterministic(t *testing.T) {
	s := &FallbackSummarizer{}
	ctx := context.Background()

	a, _ := s.Summarize(ctx, []string{"x", "y", "z"})
	b, _ := s.Summarize(ctx, []string{"x", "y", "z"})
	assert.Equal(t, a, b)
}
