// Package retrieval finds the document chunks most relevant to a question.
// It embeds the query, over-fetches candidates from the vector index, and
// diversifies the final selection with maximal marginal relevance so the
// result set is not dominated by near-duplicate chunks.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/raphaelgruber/docrag/internal/metrics"
	"github.com/raphaelgruber/docrag/internal/vector"
)

// mmrLambda balances relevance against diversity during selection.
const mmrLambda = 0.6

// overfetchFloor is the minimum candidate pool size regardless of top_k.
const overfetchFloor = 20

// Candidate is a scored chunk considered for selection.
type Candidate struct {
	Score   float64
	Vector  []float32
	Payload vector.Payload
}

// Result is one retrieved chunk with its source attribution.
type Result struct {
	DocumentID     string   `json:"document_id"`
	Title          string   `json:"title"`
	Content        string   `json:"content"`
	Ordinal        int      `json:"ordinal"`
	Page           int      `json:"page,omitempty"`
	Score          float64  `json:"score"`
	ImageFilenames []string `json:"image_filenames,omitempty"`
}

// Params tune a single retrieval.
type Params struct {
	TopK     int
	MinScore float64
	// DocumentIDs restricts retrieval to these documents when non-empty.
	DocumentIDs []string
}

// QueryEmbedder embeds a search query.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Searcher runs similarity queries against the vector index.
type Searcher interface {
	Search(ctx context.Context, q vector.Query) ([]vector.Hit, error)
}

// Engine retrieves relevant chunks for questions.
type Engine struct {
	embedder  QueryEmbedder
	index     Searcher
	collector *metrics.Collector
	logger    *slog.Logger
}

// NewEngine creates a retrieval engine.
func NewEngine(embedder QueryEmbedder, index Searcher, collector *metrics.Collector, logger *slog.Logger) *Engine {
	return &Engine{embedder: embedder, index: index, collector: collector, logger: logger}
}

// Retrieve returns up to TopK diversified chunks for the query. The index
// is asked for three times TopK candidates (at least overfetchFloor) so
// the diversifier has material to choose from; hits below MinScore never
// make it into the pool. An empty result is not an error.
func (e *Engine) Retrieve(ctx context.Context, query string, params Params) ([]Result, error) {
	if params.TopK <= 0 {
		params.TopK = 5
	}

	embStart := time.Now()
	queryVector, err := e.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	e.collector.RecordTiming(metrics.OpEmbedding, time.Since(embStart))

	fetchK := max(3*params.TopK, overfetchFloor)
	searchStart := time.Now()
	hits, err := e.index.Search(ctx, vector.Query{
		Vector:      queryVector,
		Limit:       fetchK,
		MinScore:    params.MinScore,
		DocumentIDs: params.DocumentIDs,
		WithVectors: true,
	})
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	e.collector.RecordTiming(metrics.OpVectorSearch, time.Since(searchStart))

	candidates := make([]Candidate, 0, len(hits))
	for _, hit := range hits {
		// The index applies the threshold too; re-check here so an index
		// that ignores it cannot leak weak hits through.
		if params.MinScore > 0 && hit.Score < params.MinScore {
			continue
		}
		candidates = append(candidates, Candidate{
			Score:   hit.Score,
			Vector:  hit.Vector,
			Payload: hit.Payload,
		})
	}

	selected := mmrSelect(candidates, params.TopK, mmrLambda)

	results := make([]Result, 0, len(selected))
	for _, cand := range selected {
		results = append(results, Result{
			DocumentID:     cand.Payload.DocumentID,
			Title:          cand.Payload.Title,
			Content:        cand.Payload.Content,
			Ordinal:        cand.Payload.Ordinal,
			Page:           cand.Payload.Page,
			Score:          cand.Score,
			ImageFilenames: cand.Payload.ImageFilenames,
		})
	}

	e.logger.Debug("retrieval complete",
		"query_len", len(query),
		"candidates", len(candidates),
		"selected", len(results),
		"top_k", params.TopK,
		"min_score", params.MinScore)
	return results, nil
}
