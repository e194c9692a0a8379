// Package tui is the interactive surface: upload a document, process it,
// then chat with it. One user action runs at a time; blocking pipeline work
// happens inside tea commands so the event loop stays responsive.
package tui

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"pdfrag/internal/faults"
	"pdfrag/internal/models"
	"pdfrag/internal/rag"
)

const sourceExcerptLen = 500

var supportedTypes = []string{".pdf", ".docx", ".txt", ".md"}

var sampleQuestions = []string{
	"What is the main topic?",
	"Summarize the key points",
	"What are the conclusions?",
	"List the important findings",
}

type view int

const (
	viewPicker view = iota
	viewChat
)

type processedMsg struct{ err error }

type answeredMsg struct{ err error }

// Model is the Bubble Tea model for the application.
type Model struct {
	session *rag.Session

	picker   filepicker.Model
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	view        view
	busy        bool
	busyLabel   string
	status      string
	showSources bool
	ready       bool
	width       int
}

// New creates the TUI model. The session starts Idle, so the first view is
// the file picker.
func New(session *rag.Session) Model {
	fp := filepicker.New()
	fp.AllowedTypes = supportedTypes
	if wd, err := os.Getwd(); err == nil {
		fp.CurrentDirectory = wd
	}

	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question about your document"
	ti.Focus()
	ti.CharLimit = 0

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	return Model{
		session:  session,
		picker:   fp,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		view:     viewPicker,
		status:   "Pick a document to index.",
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.picker.Init(), textinput.Blink)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		m.picker.Height = max(5, msg.Height-6)
		_, frameHeight := chatBoxStyle.GetFrameSize()
		reserved := 6 + frameHeight // header, input box, help, status, spacers
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved)
		m.refreshConversation()
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case processedMsg:
		m.busy = false
		if msg.err != nil {
			m.status = faults.UserMessage(msg.err)
			// Failed processing keeps the prior collection; go back to
			// chat only if one exists.
			if m.session.State() != rag.StateReady {
				m.view = viewPicker
			}
			return m, nil
		}
		m.view = viewChat
		m.status = fmt.Sprintf("Processed %d chunks from %s. Ask away!", m.session.ChunkCount(), m.session.Source())
		m.refreshConversation()
		return m, nil

	case answeredMsg:
		m.busy = false
		if msg.err != nil {
			m.status = faults.UserMessage(msg.err)
			return m, nil
		}
		m.status = fmt.Sprintf("Answered. %d message(s) in this conversation.", len(m.session.History())*2)
		m.refreshConversation()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.busy {
			return m, nil
		}
		if m.view == viewPicker {
			return m.updatePicker(msg)
		}
		return m.updateChat(msg)
	}

	if m.view == viewPicker {
		var cmd tea.Cmd
		m.picker, cmd = m.picker.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) updatePicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "esc" && m.session.State() == rag.StateReady {
		m.view = viewChat
		m.status = "Kept " + m.session.Source() + "."
		return m, nil
	}
	var cmd tea.Cmd
	m.picker, cmd = m.picker.Update(msg)
	if didSelect, path := m.picker.DidSelectFile(msg); didSelect {
		m.busy = true
		m.busyLabel = "Processing " + path
		m.status = ""
		return m, tea.Batch(cmd, m.spinner.Tick, m.processCmd(path))
	}
	if didSelect, path := m.picker.DidSelectDisabledFile(msg); didSelect {
		m.status = path + " is not a supported document type."
	}
	return m, cmd
}

func (m Model) updateChat(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		question := strings.TrimSpace(m.input.Value())
		if question == "" {
			return m, nil
		}
		m.input.Reset()
		m.busy = true
		m.busyLabel = "Thinking"
		m.status = ""
		return m, tea.Batch(m.spinner.Tick, m.askCmd(question))
	case "ctrl+u":
		m.view = viewPicker
		m.status = "Pick a new document. It replaces the current one."
		return m, m.picker.Init()
	case "ctrl+e":
		m.showSources = !m.showSources
		m.refreshConversation()
		return m, nil
	case "ctrl+l":
		m.session.ClearHistory()
		m.refreshConversation()
		m.status = "Conversation cleared."
		return m, nil
	case "ctrl+r":
		if err := m.session.Reset(context.Background()); err != nil {
			m.status = faults.UserMessage(err)
			return m, nil
		}
		m.view = viewPicker
		m.status = "Session reset. Pick a document to index."
		return m, m.picker.Init()
	case "pgup", "pgdown", "up", "down":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.view == viewPicker {
		title := titleStyle.Render("PDF Q&A — upload a document")
		hint := helpStyle.Render("enter: select · esc: keep current document · ctrl+c: quit")
		return title + "\n\n" + m.picker.View() + "\n" + hint + "\n" + m.statusLine()
	}

	header := titleStyle.Render("PDF Q&A") + "  " +
		headerInfoStyle.Render(fmt.Sprintf("%s · %d chunks indexed", m.session.Source(), m.session.ChunkCount()))
	conversation := chatBoxStyle.Render(m.viewport.View())
	input := inputBoxStyle.Render(m.input.View())
	help := helpStyle.Render("enter: ask · ctrl+e: sources · ctrl+u: new document · ctrl+l: clear chat · ctrl+r: reset · ctrl+c: quit")
	return header + "\n" + conversation + "\n" + input + "\n" + help + "\n" + m.statusLine()
}

func (m Model) statusLine() string {
	if m.busy {
		return m.spinner.View() + busyStyle.Render(m.busyLabel+"...")
	}
	return statusStyle.Render(m.status)
}

func (m *Model) refreshConversation() {
	m.viewport.SetContent(m.renderConversation())
	m.viewport.GotoBottom()
}

func (m Model) renderConversation() string {
	history := m.session.History()
	if len(history) == 0 {
		var sb strings.Builder
		sb.WriteString("No questions yet. Try one of these:\n\n")
		for _, q := range sampleQuestions {
			sb.WriteString("  · " + q + "\n")
		}
		return sb.String()
	}
	var sb strings.Builder
	for i, turn := range history {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(questionStyle.Render("You: "+turn.Question) + "\n")
		sb.WriteString(turn.Answer + "\n")
		if m.showSources {
			sb.WriteString(renderSources(turn.Sources))
		} else if len(turn.Sources) > 0 {
			sb.WriteString(helpStyle.Render(fmt.Sprintf("(%d sources, ctrl+e to expand)", len(turn.Sources))) + "\n")
		}
	}
	return sb.String()
}

func renderSources(sources []models.Hit) string {
	var sb strings.Builder
	for i, h := range sources {
		excerpt := h.Chunk.Content
		if len(excerpt) > sourceExcerptLen {
			excerpt = excerpt[:sourceExcerptLen] + "..."
		}
		sb.WriteString(sourceStyle.Render(fmt.Sprintf("Source %d (page %d): %s", i+1, h.Chunk.Page, excerpt)) + "\n")
	}
	return sb.String()
}

func (m Model) processCmd(path string) tea.Cmd {
	session := m.session
	return func() tea.Msg {
		data, err := os.ReadFile(path)
		if err != nil {
			return processedMsg{err: faults.New(faults.KindIngest, "read upload", err)}
		}
		return processedMsg{err: session.Process(context.Background(), path, data)}
	}
}

func (m Model) askCmd(question string) tea.Cmd {
	session := m.session
	return func() tea.Msg {
		_, err := session.Ask(context.Background(), question)
		return answeredMsg{err: err}
	}
}

var (
	titleStyle      = lipgloss.NewStyle().Bold(true)
	headerInfoStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	chatBoxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	questionStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	sourceStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	helpStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	busyStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	spinnerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)
