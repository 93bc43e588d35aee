// Package llm wraps langchaingo chat models for streamed answer generation.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/raphaelgruber/docrag/internal/config"
)

// ErrUnavailable wraps transport failures talking to the model provider.
var ErrUnavailable = errors.New("llm service unavailable")

// Message is one turn of a chat prompt.
type Message struct {
	Role    string // "system" | "user" | "assistant"
	Content string
}

// Options tune a single generation call. Zero values fall back to the
// model's defaults.
type Options struct {
	// Model overrides the default model for this call.
	Model       string
	Temperature float64
	MaxTokens   int
}

// Usage reports token counts for one generation, when the provider
// exposes them.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// Model wraps a langchaingo chat model.
type Model struct {
	llm          llms.Model
	defaultModel string
	logger       *slog.Logger
}

// NewModel creates a chat model from configuration.
func NewModel(cfg config.Config, logger *slog.Logger) (*Model, error) {
	var model llms.Model
	var err error

	switch cfg.LLMProvider {
	case "ollama":
		model, err = ollama.New(
			ollama.WithModel(cfg.LLMModel),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}

	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		model, err = openai.New(
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLMProvider)
	}

	return &Model{llm: model, defaultModel: cfg.LLMModel, logger: logger}, nil
}

// NewModelWithLLM wires an explicit langchaingo model, used by tests.
func NewModelWithLLM(llm llms.Model, defaultModel string, logger *slog.Logger) *Model {
	return &Model{llm: llm, defaultModel: defaultModel, logger: logger}
}

// DefaultModel returns the configured default model name.
func (m *Model) DefaultModel() string {
	return m.defaultModel
}

// Stream generates a completion for the messages, invoking onToken for
// every chunk as it arrives. It returns the full response text once the
// stream finished. A context cancellation mid-stream aborts generation
// and surfaces the context error.
func (m *Model) Stream(ctx context.Context, messages []Message, opts Options, onToken func(token string) error) (string, *Usage, error) {
	content := make([]llms.MessageContent, 0, len(messages))
	for _, msg := range messages {
		content = append(content, llms.TextParts(chatMessageType(msg.Role), msg.Content))
	}

	var full []byte
	callOpts := []llms.CallOption{
		llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			full = append(full, chunk...)
			if onToken != nil {
				return onToken(string(chunk))
			}
			return nil
		}),
	}
	if opts.Model != "" {
		callOpts = append(callOpts, llms.WithModel(opts.Model))
	}
	if opts.Temperature > 0 {
		callOpts = append(callOpts, llms.WithTemperature(opts.Temperature))
	}
	if opts.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(opts.MaxTokens))
	}

	start := time.Now()
	resp, err := m.llm.GenerateContent(ctx, content, callOpts...)
	if err != nil {
		if ctx.Err() != nil {
			return string(full), nil, ctx.Err()
		}
		return string(full), nil, fmt.Errorf("%w: generate: %v", ErrUnavailable, err)
	}

	text := string(full)
	var usage *Usage
	if len(resp.Choices) > 0 {
		choice := resp.Choices[0]
		// Some providers only deliver the text in the final response,
		// not through the streaming callback.
		if text == "" {
			text = choice.Content
		}
		usage = usageFromChoice(choice)
	}

	m.logger.Debug("generation complete",
		"model", modelName(opts.Model, m.defaultModel),
		"response_len", len(text),
		"duration_ms", time.Since(start).Milliseconds())
	return text, usage, nil
}

func usageFromChoice(choice *llms.ContentChoice) *Usage {
	if choice.GenerationInfo == nil {
		return nil
	}
	u := &Usage{}
	if v, ok := choice.GenerationInfo["PromptTokens"].(int); ok {
		u.InputTokens = int64(v)
	}
	if v, ok := choice.GenerationInfo["CompletionTokens"].(int); ok {
		u.OutputTokens = int64(v)
	}
	if u.InputTokens == 0 && u.OutputTokens == 0 {
		return nil
	}
	return u
}

func chatMessageType(role string) llms.ChatMessageType {
	switch role {
	case "system":
		return llms.ChatMessageTypeSystem
	case "assistant":
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}

func modelName(override, fallback string) string {
	if override != "" {
		return override
	}
	return fallback
}
