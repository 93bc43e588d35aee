// Package chat orchestrates answer streams: it resolves the conversation,
// retrieves context, streams the model's answer and persists the exchange
// once the stream completed.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/raphaelgruber/docrag/internal/llm"
	"github.com/raphaelgruber/docrag/internal/metrics"
	"github.com/raphaelgruber/docrag/internal/models"
	"github.com/raphaelgruber/docrag/internal/retrieval"
)

// historyWindow is how many past messages are replayed into the prompt.
const historyWindow = 10

// ConversationStore is the persistence surface the orchestrator needs.
type ConversationStore interface {
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	CreateConversation(ctx context.Context, id, title string) (*models.Conversation, error)
	TouchConversation(ctx context.Context, id string) error
	AppendMessage(ctx context.Context, conversationID, role, content string) (*models.Message, error)
	RecentMessages(ctx context.Context, conversationID string, limit int) ([]models.Message, error)
}

// Retriever finds relevant chunks for a question.
type Retriever interface {
	Retrieve(ctx context.Context, query string, params retrieval.Params) ([]retrieval.Result, error)
}

// Generator streams a model completion.
type Generator interface {
	Stream(ctx context.Context, messages []llm.Message, opts llm.Options, onToken func(token string) error) (string, *llm.Usage, error)
}

// Settings are the server-side defaults for a request. Request fields
// override them per call.
type Settings struct {
	SystemPrompt    string
	TopK            int
	MinScore        float64
	Temperature     float64
	MaxTokens       int
	ContextMaxChars int
}

// Request is one question to answer.
type Request struct {
	Question string
	// ConversationID continues an existing conversation; empty starts a
	// new one titled after the question.
	ConversationID string
	// DocumentIDs restricts retrieval to these documents.
	DocumentIDs []string
	// Attachment is inline text pasted with the question.
	Attachment string

	// Per-request overrides; zero values fall back to the defaults.
	Model       string
	TopK        int
	MinScore    *float64
	Temperature *float64
	MaxTokens   int
}

// Orchestrator runs the ask flow.
type Orchestrator struct {
	store     ConversationStore
	retriever Retriever
	generator Generator
	collector *metrics.Collector
	defaults  Settings
	logger    *slog.Logger
}

// NewOrchestrator creates an orchestrator with the given defaults.
func NewOrchestrator(st ConversationStore, r Retriever, g Generator, collector *metrics.Collector, defaults Settings, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		store:     st,
		retriever: r,
		generator: g,
		collector: collector,
		defaults:  defaults,
		logger:    logger,
	}
}

// Ask answers the question, pushing events through emit in order:
// conversation_id, sources, token*, then done. On failure an error event
// is emitted instead of done and nothing is persisted; a half-answered
// question never lands in history. An emit error (client gone) aborts the
// stream the same way.
func (o *Orchestrator) Ask(ctx context.Context, req Request, emit func(Event) error) error {
	if req.Question == "" {
		return o.failWith(emit, fmt.Errorf("question must not be empty"))
	}

	conversationID, err := o.resolveConversation(ctx, req)
	if err != nil {
		return o.failWith(emit, err)
	}
	if err := emit(Event{Type: EventConversationID, ConversationID: conversationID}); err != nil {
		return err
	}

	// History is read before the new question is persisted, so the prompt
	// replays earlier turns only.
	history, err := o.store.RecentMessages(ctx, conversationID, historyWindow)
	if err != nil {
		return o.failWith(emit, err)
	}

	sources, err := o.retriever.Retrieve(ctx, req.Question, retrieval.Params{
		TopK:        o.topK(req),
		MinScore:    o.minScore(req),
		DocumentIDs: req.DocumentIDs,
	})
	if err != nil {
		return o.failWith(emit, err)
	}
	if err := emit(Event{Type: EventSources, Sources: sources}); err != nil {
		return err
	}

	messages := buildMessages(o.defaults.SystemPrompt, sources, req.Attachment, history, req.Question, o.defaults.ContextMaxChars)

	start := time.Now()
	answer, usage, err := o.generator.Stream(ctx, messages, llm.Options{
		Model:       req.Model,
		Temperature: o.temperature(req),
		MaxTokens:   o.maxTokens(req),
	}, func(token string) error {
		return emit(Event{Type: EventToken, Token: token})
	})
	if err != nil {
		o.logger.Warn("answer stream aborted",
			"conversation_id", conversationID, "error", err, "partial_len", len(answer))
		return o.failWith(emit, err)
	}
	if usage != nil {
		o.collector.RecordLLMUsage(metrics.OpLLMStream, time.Since(start), usage.InputTokens, usage.OutputTokens)
	} else {
		o.collector.RecordTiming(metrics.OpLLMStream, time.Since(start))
	}

	// The exchange is persisted only now that the full answer streamed.
	if err := o.persistExchange(ctx, conversationID, req.Question, answer); err != nil {
		return o.failWith(emit, err)
	}

	o.logger.Info("question answered",
		"conversation_id", conversationID,
		"sources", len(sources),
		"answer_len", len(answer),
		"duration", time.Since(start))
	return emit(Event{Type: EventDone})
}

func (o *Orchestrator) resolveConversation(ctx context.Context, req Request) (string, error) {
	if req.ConversationID != "" {
		if _, err := o.store.GetConversation(ctx, req.ConversationID); err != nil {
			return "", err
		}
		return req.ConversationID, nil
	}
	id := uuid.New().String()
	if _, err := o.store.CreateConversation(ctx, id, conversationTitle(req.Question)); err != nil {
		return "", err
	}
	return id, nil
}

func (o *Orchestrator) persistExchange(ctx context.Context, conversationID, question, answer string) error {
	// The request context may already be cancelled right after the stream
	// finished; persistence should still complete.
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
	}

	if _, err := o.store.AppendMessage(ctx, conversationID, models.RoleUser, question); err != nil {
		return fmt.Errorf("persist question: %w", err)
	}
	if _, err := o.store.AppendMessage(ctx, conversationID, models.RoleAssistant, answer); err != nil {
		return fmt.Errorf("persist answer: %w", err)
	}
	if err := o.store.TouchConversation(ctx, conversationID); err != nil {
		o.logger.Warn("failed to touch conversation", "conversation_id", conversationID, "error", err)
	}
	return nil
}

// failWith reports the error to the client as an event and returns it.
// A failing emit cannot be reported anywhere, so its error is dropped.
func (o *Orchestrator) failWith(emit func(Event) error, err error) error {
	_ = emit(Event{Type: EventError, Error: err.Error()})
	return err
}

func (o *Orchestrator) topK(req Request) int {
	if req.TopK > 0 {
		return req.TopK
	}
	return o.defaults.TopK
}

func (o *Orchestrator) minScore(req Request) float64 {
	if req.MinScore != nil {
		return *req.MinScore
	}
	return o.defaults.MinScore
}

func (o *Orchestrator) temperature(req Request) float64 {
	if req.Temperature != nil {
		return *req.Temperature
	}
	return o.defaults.Temperature
}

func (o *Orchestrator) maxTokens(req Request) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return o.defaults.MaxTokens
}
