// Package embedding generates text embeddings through the OpenAI API.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go/v2"
)

const (
	// DefaultModel is the embedding model used when none is configured.
	DefaultModel = "text-embedding-3-small"

	// DefaultBatchSize balances requests-per-minute vs tokens-per-minute
	// rate limits.
	DefaultBatchSize = 500
)

// Embedder generates embeddings in batches, retrying rate-limited requests
// with exponential backoff. It owns the OpenAI client, which the chat
// generator shares through Client.
type Embedder struct {
	client    openai.Client
	model     string
	batchSize int
}

// NewEmbedder creates an Embedder. The OPENAI_API_KEY environment variable
// must be set. Empty model and non-positive batchSize fall back to defaults.
func NewEmbedder(model string, batchSize int) (*Embedder, error) {
	if os.Getenv("OPENAI_API_KEY") == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}
	if model == "" {
		model = DefaultModel
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Embedder{
		// openai-go reads OPENAI_API_KEY from the environment.
		client:    openai.NewClient(),
		model:     model,
		batchSize: batchSize,
	}, nil
}

// Client returns the underlying OpenAI client.
func (e *Embedder) Client() *openai.Client {
	return &e.client
}

// GenerateEmbeddings returns one vector per input text, in input order.
func (e *Embedder) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	var allEmbeddings [][]float32

	for i := 0; i < len(texts); i += e.batchSize {
		end := min(i+e.batchSize, len(texts))
		batch := texts[i:end]

		embeddings, err := e.embedBatchWithRetry(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d: %w", i, end, err)
		}
		allEmbeddings = append(allEmbeddings, embeddings...)
	}

	return allEmbeddings, nil
}

// embedBatchWithRetry embeds one batch, retrying only on rate limit errors.
func (e *Embedder) embedBatchWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var embeddings [][]float32

	operation := func() error {
		resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{
				OfArrayOfStrings: texts,
			},
			Model: openai.EmbeddingModel(e.model),
		})
		if err != nil {
			if isRateLimitError(err) {
				return err // retry with backoff
			}
			return backoff.Permanent(err)
		}

		embeddings = make([][]float32, len(resp.Data))
		for i, data := range resp.Data {
			embeddings[i] = toFloat32(data.Embedding)
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	err := backoff.Retry(operation, backoff.WithContext(b, ctx))
	return embeddings, err
}

// isRateLimitError checks for HTTP 429.
func isRateLimitError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}

// toFloat32 narrows the API's float64 vectors for storage.
func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
