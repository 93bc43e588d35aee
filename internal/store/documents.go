package store

import (
	"context"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"

	"github.com/raphaelgruber/docrag/internal/models"
)

// CreateDocument inserts a new document in pending status. The caller is
// expected to have checked for duplicates first; the unique check here is
// advisory, not transactional.
func (c *Client) CreateDocument(ctx context.Context, input models.DocumentInput) (*models.Document, error) {
	defer c.observe(time.Now())
	results, err := surrealdb.Query[[]models.Document](ctx, c.db, `
		CREATE type::record("document", $id) SET
			filename = $filename,
			original_name = $original_name,
			file_type = $file_type,
			status = "pending",
			progress = 0,
			status_detail = "queued",
			chunk_count = 0,
			content_hash = $content_hash
	`, map[string]any{
		"id":            input.ID,
		"filename":      input.Filename,
		"original_name": input.OriginalName,
		"file_type":     input.FileType,
		"content_hash":  input.ContentHash,
	})
	if err != nil {
		return nil, fmt.Errorf("create document: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("create document: no record returned")
	}
	return &(*results)[0].Result[0], nil
}

// GetDocument retrieves a document by ID. Returns ErrNotFound if missing.
func (c *Client) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	defer c.observe(time.Now())
	results, err := surrealdb.Query[[]models.Document](ctx, c.db, `
		SELECT * FROM type::record("document", $id)
	`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	return &(*results)[0].Result[0], nil
}

// ListDocuments returns all documents, newest first.
func (c *Client) ListDocuments(ctx context.Context) ([]models.Document, error) {
	defer c.observe(time.Now())
	results, err := surrealdb.Query[[]models.Document](ctx, c.db, `
		SELECT * FROM document ORDER BY created_at DESC
	`, nil)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	if results == nil || len(*results) == 0 {
		return []models.Document{}, nil
	}
	return (*results)[0].Result, nil
}

// FindActiveDocumentByName looks up a non-failed document with the given
// original name. Used for duplicate detection on upload: a document that
// failed ingestion does not block a retry under the same name.
func (c *Client) FindActiveDocumentByName(ctx context.Context, originalName string) (*models.Document, error) {
	defer c.observe(time.Now())
	results, err := surrealdb.Query[[]models.Document](ctx, c.db, `
		SELECT * FROM document
		WHERE original_name = $name AND status != "error"
		LIMIT 1
	`, map[string]any{"name": originalName})
	if err != nil {
		return nil, fmt.Errorf("find document by name: %w", err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	return &(*results)[0].Result[0], nil
}

// UpdateDocumentProgress moves a document through the processing stages.
// Progress only moves forward; a stale update from a slower writer cannot
// drag the bar backwards.
func (c *Client) UpdateDocumentProgress(ctx context.Context, id string, status models.DocumentStatus, progress int, detail string) error {
	defer c.observe(time.Now())
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPDATE type::record("document", $id) SET
			status = $status,
			progress = math::max([progress, $progress]),
			status_detail = $detail
	`, map[string]any{
		"id":       id,
		"status":   string(status),
		"progress": progress,
		"detail":   detail,
	})
	if err != nil {
		return fmt.Errorf("update document progress: %w", wrapQueryError(err))
	}
	return nil
}

// SetDocumentReady marks ingestion complete.
func (c *Client) SetDocumentReady(ctx context.Context, id string, chunkCount int) error {
	defer c.observe(time.Now())
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPDATE type::record("document", $id) SET
			status = "ready",
			progress = 100,
			status_detail = "ready",
			chunk_count = $chunk_count,
			error_message = NONE
	`, map[string]any{"id": id, "chunk_count": chunkCount})
	if err != nil {
		return fmt.Errorf("set document ready: %w", wrapQueryError(err))
	}
	return nil
}

// SetDocumentError marks ingestion failed with a human-readable reason.
// Progress is left where it stopped so the UI can show how far it got.
func (c *Client) SetDocumentError(ctx context.Context, id string, message string) error {
	defer c.observe(time.Now())
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPDATE type::record("document", $id) SET
			status = "error",
			status_detail = "failed",
			error_message = $message
	`, map[string]any{"id": id, "message": message})
	if err != nil {
		return fmt.Errorf("set document error: %w", wrapQueryError(err))
	}
	return nil
}

// DeleteDocument removes the document record. The caller is responsible
// for removing its vectors from the index first.
func (c *Client) DeleteDocument(ctx context.Context, id string) error {
	defer c.observe(time.Now())
	_, err := surrealdb.Query[any](ctx, c.db, `
		DELETE type::record("document", $id)
	`, map[string]any{"id": id})
	if err != nil {
		return fmt.Errorf("delete document: %w", wrapQueryError(err))
	}
	return nil
}

// CountDocumentsByStatus returns document counts keyed by status.
func (c *Client) CountDocumentsByStatus(ctx context.Context) (map[string]int, error) {
	defer c.observe(time.Now())
	type statusCount struct {
		Status string `json:"status"`
		Count  int    `json:"count"`
	}
	results, err := surrealdb.Query[[]statusCount](ctx, c.db, `
		SELECT status, count() AS count FROM document GROUP BY status
	`, nil)
	if err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}
	counts := make(map[string]int)
	if results != nil && len(*results) > 0 {
		for _, sc := range (*results)[0].Result {
			counts[sc.Status] = sc.Count
		}
	}
	return counts, nil
}
