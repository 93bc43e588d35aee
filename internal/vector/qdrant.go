// Package vector is a REST client for the Qdrant vector index. It covers
// the small surface the ingestion and retrieval paths need: ensure the
// collection exists, upsert chunk points, similarity query, and delete by
// document.
package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Point is one chunk with its embedding and attribution payload.
type Point struct {
	ID      string    `json:"id"`
	Vector  []float32 `json:"vector"`
	Payload Payload   `json:"payload"`
}

// Payload carries everything needed to attribute a hit back to its source.
type Payload struct {
	DocumentID     string   `json:"document_id"`
	Title          string   `json:"title"`
	Content        string   `json:"content"`
	Ordinal        int      `json:"ordinal"`
	Page           int      `json:"page,omitempty"`
	ImageFilenames []string `json:"image_filenames,omitempty"`
}

// Hit is one scored query result.
type Hit struct {
	ID      string
	Score   float64
	Payload Payload
	// Vector is populated only when the query asked for vectors, for
	// result diversification downstream.
	Vector []float32
}

// Query parameterizes a similarity search.
type Query struct {
	Vector []float32
	// Limit is the maximum number of hits to return.
	Limit int
	// MinScore drops hits scoring below it. Zero disables the cutoff.
	MinScore float64
	// DocumentIDs restricts the search to these documents when non-empty.
	DocumentIDs []string
	// WithVectors asks the index to return stored vectors with each hit.
	WithVectors bool
}

// Client talks to a single Qdrant collection over its REST API.
type Client struct {
	baseURL    string
	apiKey     string
	collection string
	httpc      *http.Client
	logger     *slog.Logger
}

// Config configures the Qdrant client.
type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// NewClient creates a Qdrant client. The collection is not touched until
// EnsureCollection is called.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		httpc:      &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// NewPointID returns a fresh point identifier. Qdrant requires point IDs
// to be unsigned ints or UUIDs, so chunk points get a UUID each.
func NewPointID() string {
	return uuid.New().String()
}

// EnsureCollection creates the collection with cosine distance if it does
// not exist yet. Qdrant answers 200 for an existing collection with the
// same schema, so this is safe to run at every startup.
func (c *Client) EnsureCollection(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid dimension %d", dimension)
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	if err := c.do(ctx, http.MethodPut, c.collectionURL(""), body, nil); err != nil {
		return fmt.Errorf("ensure collection: %w", err)
	}
	c.logger.Debug("collection ready", "collection", c.collection, "dimension", dimension)
	return nil
}

// Upsert writes points and waits for them to be applied before returning,
// so a subsequent query observes them.
func (c *Client) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	body := map[string]any{"points": points}
	if err := c.do(ctx, http.MethodPut, c.collectionURL("/points?wait=true"), body, nil); err != nil {
		return fmt.Errorf("upsert %d points: %w", len(points), err)
	}
	return nil
}

type searchResponse struct {
	Result []struct {
		ID      any       `json:"id"`
		Score   float64   `json:"score"`
		Payload Payload   `json:"payload"`
		Vector  []float32 `json:"vector"`
	} `json:"result"`
}

// Search runs a similarity query and returns hits in descending score
// order, as Qdrant ranks them.
func (c *Client) Search(ctx context.Context, q Query) ([]Hit, error) {
	if q.Limit <= 0 {
		q.Limit = 10
	}
	req := map[string]any{
		"vector":       q.Vector,
		"limit":        q.Limit,
		"with_payload": true,
	}
	if q.WithVectors {
		req["with_vector"] = true
	}
	if q.MinScore > 0 {
		req["score_threshold"] = q.MinScore
	}
	if len(q.DocumentIDs) > 0 {
		req["filter"] = map[string]any{
			"must": []map[string]any{
				{"key": "document_id", "match": map[string]any{"any": q.DocumentIDs}},
			},
		}
	}

	var resp searchResponse
	if err := c.do(ctx, http.MethodPost, c.collectionURL("/points/search"), req, &resp); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	hits := make([]Hit, 0, len(resp.Result))
	for _, r := range resp.Result {
		hits = append(hits, Hit{
			ID:      fmt.Sprint(r.ID),
			Score:   r.Score,
			Payload: r.Payload,
			Vector:  r.Vector,
		})
	}
	return hits, nil
}

// DeleteByDocument removes every point belonging to the document. Used on
// document deletion and to roll back a failed ingestion.
func (c *Client) DeleteByDocument(ctx context.Context, documentID string) error {
	body := map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{
				{"key": "document_id", "match": map[string]any{"value": documentID}},
			},
		},
	}
	if err := c.do(ctx, http.MethodPost, c.collectionURL("/points/delete?wait=true"), body, nil); err != nil {
		return fmt.Errorf("delete points for document %s: %w", documentID, err)
	}
	return nil
}

// Count returns the number of points currently indexed for the document,
// or in the whole collection when documentID is empty.
func (c *Client) Count(ctx context.Context, documentID string) (int, error) {
	body := map[string]any{"exact": true}
	if documentID != "" {
		body["filter"] = map[string]any{
			"must": []map[string]any{
				{"key": "document_id", "match": map[string]any{"value": documentID}},
			},
		}
	}
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if err := c.do(ctx, http.MethodPost, c.collectionURL("/points/count"), body, &resp); err != nil {
		return 0, fmt.Errorf("count points: %w", err)
	}
	return resp.Result.Count, nil
}

// Healthy reports whether the Qdrant instance answers its readiness probe.
func (c *Client) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/readyz", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant not reachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("qdrant not ready: %s", resp.Status)
	}
	return nil
}

func (c *Client) collectionURL(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", c.baseURL, c.collection, suffix)
}

func (c *Client) do(ctx context.Context, method, url string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("qdrant %s %s: %s: %s", method, url, resp.Status, string(msg))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
