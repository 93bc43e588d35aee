package cli

import (
	"context"
	"fmt"
	"time"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"
	"github.com/raphaelgruber/docrag/internal/client"
)

const pollInterval = time.Second

// Theme holds the color scheme for the progress display.
type Theme struct {
	Status     lipgloss.Color
	Success    lipgloss.Color
	Error      lipgloss.Color
	Hint       lipgloss.Color
	ProgressBg lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:     lipgloss.Color("#5FAFD7"), // light blue
	Success:    lipgloss.Color("#00D787"), // green
	Error:      lipgloss.Color("#FF005F"), // red
	Hint:       lipgloss.Color("#6C6C6C"), // dim gray
	ProgressBg: lipgloss.Color("#3A3A3A"), // dark gray
}

// Style functions for dynamic theming
func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// tickMsg triggers polling the document status
type tickMsg time.Time

// docUpdateMsg carries the updated document data
type docUpdateMsg struct {
	doc *client.Document
	err error
}

// progressModel is the bubbletea model for indexing progress.
type progressModel struct {
	client   *client.Client
	docID    string
	doc      *client.Document
	progress progress.Model
	theme    Theme
	done     bool
	quitting bool
	err      error
}

// newProgressModel creates a new progress model.
func newProgressModel(c *client.Client, doc *client.Document) progressModel {
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)

	return progressModel{
		client:   c,
		docID:    doc.ID,
		doc:      doc,
		progress: prog,
		theme:    defaultTheme,
	}
}

// Init returns the initial command (start polling).
func (m progressModel) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		m.progress.Init(),
	)
}

// Update handles messages and returns the updated model.
func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case tickMsg:
		return m, m.fetchDocument()

	case docUpdateMsg:
		if msg.err != nil {
			m.err = fmt.Errorf("failed to fetch document status: %w", msg.err)
			m.done = true
			return m, tea.Quit
		}

		m.doc = msg.doc

		switch m.doc.Status {
		case "ready":
			m.done = true
			return m, tea.Quit
		case "error":
			m.done = true
			if m.doc.ErrorMessage != nil {
				m.err = fmt.Errorf("%s", *m.doc.ErrorMessage)
			} else {
				m.err = fmt.Errorf("indexing failed with unknown error")
			}
			return m, tea.Quit
		}

		// Continue polling while pending or processing
		return m, tickCmd()

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the progress display.
func (m progressModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

// renderContent builds the display string.
func (m progressModel) renderContent() string {
	if m.done {
		return m.finalView()
	}

	if m.doc == nil {
		return "Loading document status...\n"
	}

	pct := float64(m.doc.Progress) / 100.0

	status := m.theme.statusStyle().Render(fmt.Sprintf("[%s]", m.doc.Status))
	progressBar := m.progress.ViewAs(pct)
	detail := m.doc.StatusDetail

	hint := m.theme.hintStyle().Render("Press Ctrl+C to continue in background")

	return fmt.Sprintf("%s %s %s\n%s\n", status, progressBar, detail, hint)
}

// finalView renders the completion message.
func (m progressModel) finalView() string {
	if m.quitting {
		msg := fmt.Sprintf("\nIndexing of %s continues in background.\nUse 'docrag status %s' to check progress.\n",
			m.docID, m.docID)
		return m.theme.hintStyle().Render(msg)
	}

	if m.err != nil {
		return m.theme.errorStyle().Render(fmt.Sprintf("\n✗ Indexing failed: %s\n", m.err))
	}

	if m.doc != nil {
		var output string
		output += m.theme.completedStyle().Render("✓ Ready") + "\n\n"
		output += fmt.Sprintf("  Document: %s\n", m.doc.OriginalName)
		output += fmt.Sprintf("  Chunks:   %d\n", m.doc.ChunkCount)
		output += fmt.Sprintf("  ID:       %s\n", m.doc.ID)
		return output
	}

	return m.theme.completedStyle().Render("✓ Ready\n")
}

// fetchDocument fetches the current document status from the server.
// Runs in a separate goroutine (command) to avoid blocking Update().
func (m progressModel) fetchDocument() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		doc, err := m.client.DocumentStatus(ctx, m.docID)
		return docUpdateMsg{doc: doc, err: err}
	}
}

// tickCmd returns a command that sends a tick after the poll interval.
func tickCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// RunIndexProgress runs the interactive progress UI for a document upload.
// Returns nil on success or Ctrl+C (background), error on indexing failure.
func RunIndexProgress(c *client.Client, doc *client.Document) error {
	model := newProgressModel(c, doc)
	p := tea.NewProgram(model)

	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("progress UI error: %w", err)
	}

	if m, ok := finalModel.(progressModel); ok {
		// On Ctrl+C indexing continues server-side, not an error
		if m.quitting {
			return nil
		}
		if m.err != nil {
			return m.err
		}
	}

	return nil
}
