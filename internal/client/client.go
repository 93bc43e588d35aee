// Package client provides a REST client for the docrag server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// Client talks to the docrag server API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new API client.
// If baseURL is empty, uses DOCRAG_SERVER_URL env var or defaults to localhost:8484.
// Timeout can be configured via DOCRAG_CLIENT_TIMEOUT env var (default 10m, answer
// streams can run long).
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("DOCRAG_SERVER_URL")
	}
	if baseURL == "" {
		baseURL = "http://localhost:8484"
	}

	timeout := 10 * time.Minute
	if t := os.Getenv("DOCRAG_CLIENT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server error: %d - %s", e.StatusCode, e.Message)
}

// Document mirrors the server's document wire shape.
type Document struct {
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

// Conversation mirrors the server's conversation wire shape.
type Conversation struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// Message is a single chat message.
type Message struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

// ConversationDetail is a conversation with its messages.
type ConversationDetail struct {
	Conversation
	Messages []Message `json:"messages"`
}

// ModelsInfo lists the models the server offers.
type ModelsInfo struct {
	Models  []string `json:"models"`
	Default string   `json:"default"`
}

// do issues a request and decodes the JSON response into result. Error
// responses are returned as *APIError.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, result any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return apiError(resp)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

func apiError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var e struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &e); err == nil && e.Error != "" {
		return &APIError{StatusCode: resp.StatusCode, Message: e.Error}
	}
	return &APIError{StatusCode: resp.StatusCode, Message: string(data)}
}

// Upload sends a file for ingestion. Indexing continues server-side; poll
// DocumentStatus to follow progress.
func (c *Client) Upload(ctx context.Context, path string) (*Document, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer file.Close()
	return c.UploadReader(ctx, filepath.Base(path), file)
}

// UploadReader sends the reader's content for ingestion under the given name.
func (c *Client) UploadReader(ctx context.Context, filename string, r io.Reader) (*Document, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(fw, r); err != nil {
		return nil, fmt.Errorf("write form file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	var doc Document
	if err := c.do(ctx, http.MethodPost, "/api/v1/documents/upload", &buf, mw.FormDataContentType(), &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Documents lists all documents, newest first.
func (c *Client) Documents(ctx context.Context) ([]Document, error) {
	var docs []Document
	if err := c.do(ctx, http.MethodGet, "/api/v1/documents", nil, "", &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// DocumentStatus retrieves the current state of a document.
func (c *Client) DocumentStatus(ctx context.Context, id string) (*Document, error) {
	var doc Document
	if err := c.do(ctx, http.MethodGet, "/api/v1/documents/"+id+"/status", nil, "", &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// DeleteDocument removes a document and its index entries.
func (c *Client) DeleteDocument(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/documents/"+id, nil, "", nil)
}

// DeleteAllDocuments removes every terminal document. It returns how many
// were deleted and how many were skipped because they are still indexing.
func (c *Client) DeleteAllDocuments(ctx context.Context) (deleted, skipped int, err error) {
	var result struct {
		Deleted int `json:"deleted"`
		Skipped int `json:"skipped"`
	}
	if err := c.do(ctx, http.MethodDelete, "/api/v1/admin/documents", nil, "", &result); err != nil {
		return 0, 0, err
	}
	return result.Deleted, result.Skipped, nil
}

// Conversations lists all conversations, most recently active first.
func (c *Client) Conversations(ctx context.Context) ([]Conversation, error) {
	var convs []Conversation
	if err := c.do(ctx, http.MethodGet, "/api/v1/chat/conversations", nil, "", &convs); err != nil {
		return nil, err
	}
	return convs, nil
}

// Conversation retrieves a conversation with its full message history.
func (c *Client) Conversation(ctx context.Context, id string) (*ConversationDetail, error) {
	var detail ConversationDetail
	if err := c.do(ctx, http.MethodGet, "/api/v1/chat/conversations/"+id, nil, "", &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// DeleteConversation removes a conversation and its messages.
func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/chat/conversations/"+id, nil, "", nil)
}

// DeleteAllConversations removes all conversations.
func (c *Client) DeleteAllConversations(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/chat/conversations", nil, "", nil)
}

// Models returns the models the server offers for chat.
func (c *Client) Models(ctx context.Context) (*ModelsInfo, error) {
	var info ModelsInfo
	if err := c.do(ctx, http.MethodGet, "/api/v1/chat/models", nil, "", &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Stats returns the server's runtime statistics as raw JSON, shaped for
// display rather than further processing.
func (c *Client) Stats(ctx context.Context) (map[string]any, error) {
	var stats map[string]any
	if err := c.do(ctx, http.MethodGet, "/api/v1/admin/stats", nil, "", &stats); err != nil {
		return nil, err
	}
	return stats, nil
}

// Health reports whether the server answers its health endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	return nil
}
