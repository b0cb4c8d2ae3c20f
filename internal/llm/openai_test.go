package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOpenAIClient_RequiresAPIKey(t *testing.T) {
	_, err := NewOpenAIClient(OpenAIConfig{})
	assert.Error(t, err)
}

func TestNewOpenAIClient_Defaults(t *testing.T) {
	c, err := NewOpenAIClient(OpenAIConfig{APIKey: "sk-test"})
	require.NoError(t, err)

	assert.Equal(t, "text-embedding-3-small", c.embeddingModel)
	assert.Equal(t, "gpt-4o-mini", c.summaryModel)
	assert.Equal(t, 128, c.Dimension())
}

// Drives Embed against a local OpenAI-compatible endpoint and checks the
// request carries the configured model and dimension.
func TestOpenAIClient_Embed(t *testing.T) {
	var gotReq map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"object": "list",
			"data": [{"object": "embedding", "index": 0, "embedding": [0.25, -0.5, 1.0]}]
		}`))
	}))
	defer srv.Close()

	c, err := NewOpenAIClient(OpenAIConfig{
		APIKey:         "sk-test",
		BaseURL:        srv.URL + "/v1",
		EmbeddingModel: "custom-embed-model",
		Dimension:      3,
	})
	require.NoError(t, err)

	vec, err := c.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.25, -0.5, 1.0}, vec)

	assert.Equal(t, "custom-embed-model", gotReq["model"])
	assert.Equal(t, float64(3), gotReq["dimensions"])
}

func TestOpenAIClient_Summarize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices": [{"message": {"role": "assistant", "content": "  merged summary  "}}]
		}`))
	}))
	defer srv.Close()

	c, err := NewOpenAIClient(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)

	out, err := c.Summarize(context.Background(), []string{"note one", "note two"})
	require.NoError(t, err)
	assert.Equal(t, "merged summary", out)

	_, err = c.Summarize(context.Background(), nil)
	assert.Error(t, err)
}
