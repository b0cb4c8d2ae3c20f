package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient implements Embedder and Summarizer against any
// OpenAI-compatible endpoint (OpenAI itself, or a local server speaking the
// same API). All calls go through a shared circuit breaker so a flapping
// endpoint trips open instead of stalling every store and retrieval.
type OpenAIClient struct {
	client         *openai.Client
	embeddingModel string
	summaryModel   string
	dimension      int
	breaker        *CircuitBreaker
}

// OpenAIConfig configures an OpenAIClient.
type OpenAIConfig struct {
	APIKey         string // Required
	BaseURL        string // Optional endpoint override
	EmbeddingModel string // Defaults to text-embedding-3-small
	SummaryModel   string // Defaults to gpt-4o-mini
	Dimension      int    // Requested embedding dimension (default 128)
}

// NewOpenAIClient creates a client for an OpenAI-compatible endpoint.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("llm: API key is required")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	embeddingModel := cfg.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = "text-embedding-3-small"
	}
	summaryModel := cfg.SummaryModel
	if summaryModel == "" {
		summaryModel = "gpt-4o-mini"
	}
	dimension := cfg.Dimension
	if dimension == 0 {
		dimension = 128
	}

	return &OpenAIClient{
		client:         openai.NewClientWithConfig(clientCfg),
		embeddingModel: embeddingModel,
		summaryModel:   summaryModel,
		dimension:      dimension,
		breaker:        NewCircuitBreaker(0, 0),
	}, nil
}

// Embed converts text into a vector of the configured dimension.
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float64, error) {
	result, err := c.breaker.Do(ctx, func() (interface{}, error) {
		resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input:      []string{text},
			Model:      openai.EmbeddingModel(c.embeddingModel),
			Dimensions: c.dimension,
		})
		if err != nil {
			return nil, err
		}
		if len(resp.Data) == 0 {
			return nil, errors.New("llm: no embedding data returned")
		}
		return resp.Data[0].Embedding, nil
	})
	if err != nil {
		return nil, fmt.Errorf("llm: embed: %w", err)
	}

	raw := result.([]float32)
	vec := make([]float64, len(raw))
	for i, v := range raw {
		vec[i] = float64(v)
	}
	return vec, nil
}

// Dimension returns the configured embedding dimension.
func (c *OpenAIClient) Dimension() int {
	return c.dimension
}

// Summarize asks the completion model to merge a group of memory contents
// into a single concise summary.
func (c *OpenAIClient) Summarize(ctx context.Context, contents []string) (string, error) {
	if len(contents) == 0 {
		return "", errors.New("llm: nothing to summarize")
	}

	prompt := "Merge the following memory entries into one concise summary. " +
		"Preserve concrete facts, names, and app identifiers. Reply with the summary only.\n\n- " +
		strings.Join(contents, "\n- ")

	result, err := c.breaker.Do(ctx, func() (interface{}, error) {
		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: c.summaryModel,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
		})
		if err != nil {
			return nil, err
		}
		if len(resp.Choices) == 0 {
			return nil, errors.New("llm: no completion choices returned")
		}
		return strings.TrimSpace(resp.Choices[0].Message.Content), nil
	})
	if err != nil {
		return "", fmt.Errorf("llm: summarize: %w", err)
	}

	return result.(string), nil
}
