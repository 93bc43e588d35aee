// Package embed wraps langchaingo embeddings with batching and dimension
// validation.
package embed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/raphaelgruber/docrag/internal/config"
)

var (
	// ErrDimensionMismatch means the provider returned a vector whose length
	// does not match the configured dimension. Indexing such a vector would
	// poison the collection, so the whole batch is rejected.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrUnavailable wraps transport failures talking to the provider.
	ErrUnavailable = errors.New("embedding service unavailable")
)

// batchSize caps how many texts go to the provider per request. Small
// batches keep individual requests fast and bound memory on the provider.
const batchSize = 8

// Provider is the minimal embedding surface this package needs from
// langchaingo, extracted so tests can substitute a fake.
type Provider interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Embedder batches texts through an embedding provider and validates every
// returned vector against the expected dimension.
type Embedder struct {
	provider  Provider
	dimension int
	modelName string
	logger    *slog.Logger
}

// NewEmbedder creates an embedder for the configured provider.
func NewEmbedder(cfg config.Config, logger *slog.Logger) (*Embedder, error) {
	var provider embeddings.Embedder
	var err error

	switch cfg.EmbedProvider {
	case "ollama":
		llm, ollamaErr := ollama.New(
			ollama.WithModel(cfg.EmbedModel),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if ollamaErr != nil {
			return nil, fmt.Errorf("create ollama client: %w", ollamaErr)
		}
		provider, err = embeddings.NewEmbedder(llm)
		if err != nil {
			return nil, fmt.Errorf("create ollama embedder: %w", err)
		}

	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		llm, openaiErr := openai.New(
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithEmbeddingModel(cfg.EmbedModel),
		)
		if openaiErr != nil {
			return nil, fmt.Errorf("create openai client: %w", openaiErr)
		}
		provider, err = embeddings.NewEmbedder(llm)
		if err != nil {
			return nil, fmt.Errorf("create openai embedder: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.EmbedProvider)
	}

	return &Embedder{
		provider:  provider,
		dimension: cfg.EmbedDimension,
		modelName: cfg.EmbedModel,
		logger:    logger,
	}, nil
}

// NewEmbedderWithProvider wires an explicit provider, used by tests.
func NewEmbedderWithProvider(p Provider, dimension int, modelName string, logger *slog.Logger) *Embedder {
	return &Embedder{provider: p, dimension: dimension, modelName: modelName, logger: logger}
}

// EmbedQuery embeds a single search query.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	vector, err := e.provider.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %v", ErrUnavailable, err)
	}
	if len(vector) != e.dimension {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vector), e.dimension)
	}
	e.logger.Debug("query embedded",
		"model", e.modelName, "text_len", len(text), "duration_ms", time.Since(start).Milliseconds())
	return vector, nil
}

// EmbedTexts embeds texts in batches, preserving input order: vector i
// always corresponds to texts[i]. A failure in any batch fails the call.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	start := time.Now()
	vectors := make([][]float32, 0, len(texts))
	for lo := 0; lo < len(texts); lo += batchSize {
		hi := min(lo+batchSize, len(texts))

		batch, err := e.provider.EmbedDocuments(ctx, texts[lo:hi])
		if err != nil {
			return nil, fmt.Errorf("%w: batch %d-%d: %v", ErrUnavailable, lo, hi, err)
		}
		if len(batch) != hi-lo {
			return nil, fmt.Errorf("embedding count mismatch in batch %d-%d: got %d, want %d", lo, hi, len(batch), hi-lo)
		}
		for i, v := range batch {
			if len(v) != e.dimension {
				return nil, fmt.Errorf("%w: text %d: got %d, want %d", ErrDimensionMismatch, lo+i, len(v), e.dimension)
			}
		}
		vectors = append(vectors, batch...)
	}

	e.logger.Debug("texts embedded",
		"model", e.modelName, "count", len(texts), "duration_ms", time.Since(start).Milliseconds())
	return vectors, nil
}

// EmbedBatched embeds texts and reports progress after each completed
// batch. done counts texts embedded so far out of total.
func (e *Embedder) EmbedBatched(ctx context.Context, texts []string, onBatch func(done, total int)) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for lo := 0; lo < len(texts); lo += batchSize {
		hi := min(lo+batchSize, len(texts))

		batch, err := e.EmbedTexts(ctx, texts[lo:hi])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
		if onBatch != nil {
			onBatch(hi, len(texts))
		}
	}
	return vectors, nil
}

// Model returns the embedding model name.
func (e *Embedder) Model() string {
	return e.modelName
}

// Dimension returns the expected embedding dimension.
func (e *Embedder) Dimension() int {
	return e.dimension
}

// Probe embeds a fixed sentinel text to verify the provider is reachable
// and producing vectors of the configured dimension. Run at startup.
func (e *Embedder) Probe(ctx context.Context) error {
	_, err := e.EmbedQuery(ctx, "dimension probe")
	return err
}
