package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// AskRequest is a chat question for the streaming endpoint.
type AskRequest struct {
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

// Source is one retrieved passage backing an answer.
type Source struct {
	DocumentID     string   `json:"document_id"`
	Title          string   `json:"title"`
	Content        string   `json:"content"`
	Ordinal        int      `json:"ordinal"`
	Page           int      `json:"page,omitempty"`
	Score          float64  `json:"score"`
	ImageFilenames []string `json:"image_filenames,omitempty"`
}

// streamEvent is one decoded SSE data payload.
type streamEvent struct {
	Type           string   `json:"type"`
	ConversationID string   `json:"conversation_id,omitempty"`
	Sources        []Source `json:"sources,omitempty"`
	Content        string   `json:"content,omitempty"`
	Error          string   `json:"error,omitempty"`
}

// StreamHandlers receives the answer stream. Nil handlers are skipped.
// Returning an error from any handler aborts the stream.
type StreamHandlers struct {
	OnConversationID func(id string) error
	OnSources        func(sources []Source) error
	OnToken          func(token string) error
}

// AskStream sends a question and consumes the server-sent event stream until
// a done or error event. The handlers are invoked in stream order.
func (c *Client) AskStream(ctx context.Context, req AskRequest, handlers StreamHandlers) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/chat/stream", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	// Sources events can carry several chunks of context in one line.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		var event streamEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err != nil {
			return fmt.Errorf("unmarshal event: %w", err)
		}

		switch event.Type {
		case "conversation_id":
			if handlers.OnConversationID != nil {
				if err := handlers.OnConversationID(event.ConversationID); err != nil {
					return err
				}
			}
		case "sources":
			if handlers.OnSources != nil {
				if err := handlers.OnSources(event.Sources); err != nil {
					return err
				}
			}
		case "token":
			if handlers.OnToken != nil {
				if err := handlers.OnToken(event.Content); err != nil {
					return err
				}
			}
		case "done":
			return nil
		case "error":
			return fmt.Errorf("stream error: %s", event.Error)
		}
	}
	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("read stream: %w", err)
	}
	return fmt.Errorf("stream ended without done event")
}
