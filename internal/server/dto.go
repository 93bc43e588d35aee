package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/raphaelgruber/docrag/internal/models"
)

// DocumentDTO is the wire shape of a document. Record IDs go out as plain
// strings.
type DocumentDTO struct {
	ID           string  `json:"id"`
	Filename     string  `json:"filename"`
	OriginalName string  `json:"original_name"`
	FileType     string  `json:"file_type"`
	Status       string  `json:"status"`
	Progress     int     `json:"progress"`
	StatusDetail string  `json:"status_detail"`
	ChunkCount   int     `json:"chunk_count"`
	ErrorMessage *string `json:"error_message,omitempty"`
	CreatedAt    string  `json:"created_at"`
}

func documentDTO(doc *models.Document) DocumentDTO {
	return DocumentDTO{
		ID:           models.MustRecordIDString(doc.ID),
		Filename:     doc.Filename,
		OriginalName: doc.OriginalName,
		FileType:     doc.FileType,
		Status:       string(doc.Status),
		Progress:     doc.Progress,
		StatusDetail: doc.StatusDetail,
		ChunkCount:   doc.ChunkCount,
		ErrorMessage: doc.ErrorMessage,
		CreatedAt:    doc.CreatedAt.Format(time.RFC3339),
	}
}

// ConversationDTO is the wire shape of a conversation.
type ConversationDTO struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func conversationDTO(conv *models.Conversation) ConversationDTO {
	return ConversationDTO{
		ID:        models.MustRecordIDString(conv.ID),
		Title:     conv.Title,
		CreatedAt: conv.CreatedAt.Format(time.RFC3339),
		UpdatedAt: conv.UpdatedAt.Format(time.RFC3339),
	}
}

// MessageDTO is the wire shape of a chat message.
type MessageDTO struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

func messageDTO(msg *models.Message) MessageDTO {
	return MessageDTO{
		Role:      msg.Role,
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt.Format(time.RFC3339),
	}
}

// ConversationDetailDTO is a conversation with its messages.
type ConversationDetailDTO struct {
	ConversationDTO
	Messages []MessageDTO `json:"messages"`
}

type modelsResponse struct {
	Models  []string `json:"models"`
	Default string   `json:"default"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// chatRequest is the body of POST /api/v1/chat/stream.
type chatRequest struct {
	Question       string   `json:"question"`
	ConversationID string   `json:"conversation_id,omitempty"`
	DocumentIDs    []string `json:"document_ids,omitempty"`
	Attachment     string   `json:"attachment,omitempty"`
	Model          string   `json:"model,omitempty"`
	TopK           int      `json:"top_k,omitempty"`
	MinScore       *float64 `json:"min_score,omitempty"`
	Temperature    *float64 `json:"temperature,omitempty"`
	MaxTokens      int      `json:"max_tokens,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
