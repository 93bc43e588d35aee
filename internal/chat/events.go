package chat

import (
	"encoding/json"

	"github.com/raphaelgruber/docrag/internal/retrieval"
)

// EventType enumerates the stream event kinds, in emission order:
// conversation_id, sources, token (repeated), then done or error.
type EventType string

const (
	EventConversationID EventType = "conversation_id"
	EventSources        EventType = "sources"
	EventToken          EventType = "token"
	EventDone           EventType = "done"
	EventError          EventType = "error"
)

// Event is one message of the answer stream.
type Event struct {
	Type           EventType
	ConversationID string
	Sources        []retrieval.Result
	Token          string
	Error          string
}

// MarshalJSON emits only the fields relevant to the event type, so token
// events stay compact and a sources event always carries an array, even
// when empty.
func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case EventConversationID:
		return json.Marshal(struct {
			Type           EventType `json:"type"`
			ConversationID string    `json:"conversation_id"`
		}{e.Type, e.ConversationID})
	case EventSources:
		sources := e.Sources
		if sources == nil {
			sources = []retrieval.Result{}
		}
		return json.Marshal(struct {
			Type    EventType          `json:"type"`
			Sources []retrieval.Result `json:"sources"`
		}{e.Type, sources})
	case EventToken:
		return json.Marshal(struct {
			Type    EventType `json:"type"`
			Content string    `json:"content"`
		}{e.Type, e.Token})
	case EventError:
		return json.Marshal(struct {
			Type  EventType `json:"type"`
			Error string    `json:"error"`
		}{e.Type, e.Error})
	default:
		return json.Marshal(struct {
			Type EventType `json:"type"`
		}{e.Type})
	}
}
