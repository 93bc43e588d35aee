package store

import (
	"context"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/raphaelgruber/docrag/internal/models"
)

// CreateConversation starts a new conversation with the given title.
func (c *Client) CreateConversation(ctx context.Context, id, title string) (*models.Conversation, error) {
	defer c.observe(time.Now())
	results, err := surrealdb.Query[[]models.Conversation](ctx, c.db, `
		CREATE type::record("conversation", $id) SET title = $title
	`, map[string]any{"id": id, "title": title})
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("create conversation: no record returned")
	}
	return &(*results)[0].Result[0], nil
}

// GetConversation retrieves a conversation by ID. Returns ErrNotFound if
// it does not exist.
func (c *Client) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	defer c.observe(time.Now())
	results, err := surrealdb.Query[[]models.Conversation](ctx, c.db, `
		SELECT * FROM type::record("conversation", $id)
	`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}
	return &(*results)[0].Result[0], nil
}

// ListConversations returns all conversations, most recently active first.
func (c *Client) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	defer c.observe(time.Now())
	results, err := surrealdb.Query[[]models.Conversation](ctx, c.db, `
		SELECT * FROM conversation ORDER BY updated_at DESC
	`, nil)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	if results == nil || len(*results) == 0 {
		return []models.Conversation{}, nil
	}
	return (*results)[0].Result, nil
}

// TouchConversation bumps updated_at so the conversation sorts to the top
// of the list after new activity.
func (c *Client) TouchConversation(ctx context.Context, id string) error {
	defer c.observe(time.Now())
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPDATE type::record("conversation", $id) SET updated_at = time::now()
	`, map[string]any{"id": id})
	if err != nil {
		return fmt.Errorf("touch conversation: %w", wrapQueryError(err))
	}
	return nil
}

// DeleteConversation removes a conversation and all its messages.
func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	defer c.observe(time.Now())
	_, err := surrealdb.Query[any](ctx, c.db, `
		DELETE message WHERE conversation = type::record("conversation", $id);
		DELETE type::record("conversation", $id);
	`, map[string]any{"id": id})
	if err != nil {
		return fmt.Errorf("delete conversation: %w", wrapQueryError(err))
	}
	return nil
}

// DeleteAllConversations removes every conversation and message.
func (c *Client) DeleteAllConversations(ctx context.Context) error {
	defer c.observe(time.Now())
	_, err := surrealdb.Query[any](ctx, c.db, `
		DELETE message;
		DELETE conversation;
	`, nil)
	if err != nil {
		return fmt.Errorf("delete all conversations: %w", wrapQueryError(err))
	}
	return nil
}

// AppendMessage stores one chat message in a conversation.
func (c *Client) AppendMessage(ctx context.Context, conversationID, role, content string) (*models.Message, error) {
	defer c.observe(time.Now())
	results, err := surrealdb.Query[[]models.Message](ctx, c.db, `
		CREATE message SET
			conversation = type::record("conversation", $conversation),
			role = $role,
			content = $content
	`, map[string]any{
		"conversation": conversationID,
		"role":         role,
		"content":      content,
	})
	if err != nil {
		return nil, fmt.Errorf("append message: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("append message: no record returned")
	}
	return &(*results)[0].Result[0], nil
}

// RecentMessages returns the last limit messages of a conversation in
// chronological order, for prompt history.
func (c *Client) RecentMessages(ctx context.Context, conversationID string, limit int) ([]models.Message, error) {
	defer c.observe(time.Now())
	if limit <= 0 {
		limit = 10
	}
	// Fetch newest first, then flip so callers get chronological order.
	results, err := surrealdb.Query[[]models.Message](ctx, c.db, `
		SELECT * FROM message
		WHERE conversation = type::record("conversation", $conversation)
		ORDER BY created_at DESC
		LIMIT $limit
	`, map[string]any{"conversation": conversationID, "limit": limit})
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	if results == nil || len(*results) == 0 {
		return []models.Message{}, nil
	}
	msgs := (*results)[0].Result
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// Messages returns every message of a conversation in chronological order.
func (c *Client) Messages(ctx context.Context, conversationID string) ([]models.Message, error) {
	defer c.observe(time.Now())
	results, err := surrealdb.Query[[]models.Message](ctx, c.db, `
		SELECT * FROM message
		WHERE conversation = type::record("conversation", $conversation)
		ORDER BY created_at ASC
	`, map[string]any{"conversation": conversationID})
	if err != nil {
		return nil, fmt.Errorf("messages: %w", err)
	}
	if results == nil || len(*results) == 0 {
		return []models.Message{}, nil
	}
	return (*results)[0].Result, nil
}

// ConversationRecordID builds a typed record ID for the conversation table.
func ConversationRecordID(id string) surrealmodels.RecordID {
	return surrealmodels.RecordID{Table: "conversation", ID: id}
}
