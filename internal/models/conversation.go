package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// Conversation represents a persistent chat session. Created lazily on the
// first question when the caller supplies no conversation id.
type Conversation struct {
	ID        surrealmodels.RecordID `json:"id"`
	Title     string                 `json:"title"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// Message represents a single chat message within a conversation.
// Assistant messages are appended only after the full stream completed.
type Message struct {
	ID           surrealmodels.RecordID `json:"id"`
	Conversation surrealmodels.RecordID `json:"conversation"`
	Role         string                 `json:"role"` // "user" | "assistant"
	Content      string                 `json:"content"`
	CreatedAt    time.Time              `json:"created_at"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)
