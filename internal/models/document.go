package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// DocumentStatus is the lifecycle state of an uploaded document.
type DocumentStatus string

const (
	StatusPending    DocumentStatus = "pending"
	StatusProcessing DocumentStatus = "processing"
	StatusReady      DocumentStatus = "ready"
	StatusError      DocumentStatus = "error"
)

// Terminal reports whether the status is final. A terminal document is
// read-only except for deletion.
func (s DocumentStatus) Terminal() bool {
	return s == StatusReady || s == StatusError
}

// Document represents an uploaded file and its indexing lifecycle.
// Owned by the ingestion pipeline from creation until a terminal status.
type Document struct {
	ID           surrealmodels.RecordID `json:"id"`
	Filename     string                 `json:"filename"`      // stored name: <uuid>.<ext>
	OriginalName string                 `json:"original_name"` // name as uploaded
	FileType     string                 `json:"file_type"`     // extension without dot
	Status       DocumentStatus         `json:"status"`
	Progress     int                    `json:"progress"` // 0-100, monotonic while processing
	StatusDetail string                 `json:"status_detail"`
	ChunkCount   int                    `json:"chunk_count"`
	ErrorMessage *string                `json:"error_message,omitempty"`
	ContentHash  string                 `json:"content_hash"`
	CreatedAt    time.Time              `json:"created_at"`
}

// DocumentInput is the input structure for creating a document record.
type DocumentInput struct {
	ID           string `json:"id"`
	Filename     string `json:"filename"`
	OriginalName string `json:"original_name"`
	FileType     string `json:"file_type"`
	ContentHash  string `json:"content_hash"`
}
