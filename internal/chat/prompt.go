package chat

import (
	"fmt"
	"strings"

	"github.com/raphaelgruber/docrag/internal/llm"
	"github.com/raphaelgruber/docrag/internal/models"
	"github.com/raphaelgruber/docrag/internal/retrieval"
)

// attachmentMaxChars caps inline attachment text so a pasted file cannot
// crowd out the retrieved context and history.
const attachmentMaxChars = 8000

// noContextInstruction is appended to the system prompt when retrieval
// found nothing usable, so the model answers from general knowledge and
// says so instead of hallucinating document citations.
const noContextInstruction = "\n\nNo document context is available for this question. Answer from your general knowledge and clearly state that the answer is not based on the uploaded documents."

// buildMessages assembles the chat prompt: system prompt, attributed
// document context, optional attachment, recent history, then the
// question.
func buildMessages(systemPrompt string, sources []retrieval.Result, attachment string, history []models.Message, question string, contextMaxChars int) []llm.Message {
	system := systemPrompt
	if contextBlock := formatContext(sources, contextMaxChars); contextBlock != "" {
		system += "\n\nContext from documents:\n" + contextBlock
	} else {
		system += noContextInstruction
	}
	if attachment = strings.TrimSpace(attachment); attachment != "" {
		system += "\n\nThe user attached the following text to this question:\n" + truncateRunes(attachment, attachmentMaxChars)
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: "system", Content: system})
	for _, msg := range history {
		messages = append(messages, llm.Message{Role: msg.Role, Content: msg.Content})
	}
	messages = append(messages, llm.Message{Role: "user", Content: question})
	return messages
}

// formatContext renders sources as attributed blocks, stopping before the
// character budget is exceeded. Sources come in selection order; the
// budget cuts whole sources, never mid-chunk.
func formatContext(sources []retrieval.Result, maxChars int) string {
	if len(sources) == 0 {
		return ""
	}
	if maxChars <= 0 {
		maxChars = 12000
	}

	var b strings.Builder
	used := 0
	for _, src := range sources {
		block := formatSource(src)
		n := len([]rune(block))
		if used+n > maxChars && used > 0 {
			break
		}
		b.WriteString(block)
		b.WriteString("\n\n")
		used += n
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatSource(src retrieval.Result) string {
	header := src.Title
	if src.Page > 0 {
		header = fmt.Sprintf("%s, page %d", src.Title, src.Page)
	}
	return fmt.Sprintf("[Source: %s]\n%s", header, src.Content)
}

// conversationTitle derives a title from the first question: at most 60
// characters, with an ellipsis when cut.
func conversationTitle(question string) string {
	title := strings.TrimSpace(strings.Join(strings.Fields(question), " "))
	if title == "" {
		return "New conversation"
	}
	runes := []rune(title)
	if len(runes) <= 60 {
		return title
	}
	return string(runes[:60]) + "…"
}

func truncateRunes(s string, maxRunes int) string {
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes]) + "\n…[attachment truncated]"
}
