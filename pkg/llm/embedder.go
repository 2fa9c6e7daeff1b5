package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/time/rate"
)

// EmbedderConfig configures the embedding client. Model name and the vector
// dimensionality it implies are provider configuration, not core logic.
type EmbedderConfig struct {
	Backend   string // "openai" or "ollama"
	Model     string
	BaseURL   string
	BatchSize int
	RateLimit float64 // requests per second against the provider
}

// backendClient is the provider surface the client needs. Both langchaingo
// OpenAI and Ollama models satisfy it.
type backendClient interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// Embedder batches texts against an external embedding service. Oversized
// inputs are split into provider-sized batches and the results concatenated in
// input order; callers never see the batching.
type Embedder struct {
	config  EmbedderConfig
	client  backendClient
	limiter *rate.Limiter
}

func NewEmbedderWithConfig(config EmbedderConfig) (*Embedder, error) {
	if config.Model == "" {
		config.Model = "text-embedding-3-small"
	}

	var client backendClient
	var err error
	switch config.Backend {
	case "", "openai":
		opts := []openai.Option{openai.WithEmbeddingModel(config.Model)}
		if config.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(config.BaseURL))
		}
		client, err = openai.New(opts...)
	case "ollama":
		baseURL := config.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		client, err = ollama.New(ollama.WithModel(config.Model), ollama.WithServerURL(baseURL))
	default:
		return nil, fmt.Errorf("unsupported embedding backend: %s", config.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding backend: %w", err)
	}

	return NewEmbedderWithBackend(client, config), nil
}

// NewEmbedderWithBackend wires an existing provider client. Used by tests and
// by callers that construct the langchaingo model themselves.
func NewEmbedderWithBackend(client backendClient, config EmbedderConfig) *Embedder {
	if config.BatchSize <= 0 {
		config.BatchSize = 64
	}
	if config.RateLimit <= 0 {
		config.RateLimit = 4.0
	}

	return &Embedder{
		config:  config,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
	}
}

// Embed returns one vector per input text, in input order. Any batch failure
// aborts the whole call: an incomplete embedding set is worse than none, and
// the caller decides whether to retry.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.config.BatchSize {
		end := start + e.config.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		embedded, err := e.client.CreateEmbedding(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("embedding batch %d-%d failed: %w", start, end, err)
		}
		if len(embedded) != len(batch) {
			return nil, fmt.Errorf("embedding batch %d-%d returned %d vectors for %d texts",
				start, end, len(embedded), len(batch))
		}
		vectors = append(vectors, embedded...)
	}

	return vectors, nil
}
