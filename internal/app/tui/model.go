// Package tui はドキュメントチャットの対話画面（要約ペイン + チャットログ + 入力欄）を提供します。
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jinford/docchat/internal/core/intent"
	"github.com/jinford/docchat/internal/core/session"
)

// Chatter は TUI から利用するセッション操作
type Chatter interface {
	Submit(ctx context.Context, query string) (session.Turn, error)
	SetSummary(ctx context.Context, text string) error
	Summary() string
	History() []session.Turn
	Document() string
}

type mode int

const (
	modeChat mode = iota
	modeEditSummary
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	summaryBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	logBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)

	queryStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	answerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#4ECDC4"))
	labelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
	loadingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD93D"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	helpTextStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// Model is the Bubble Tea model for the chat screen.
type Model struct {
	ctx     context.Context
	chatter Chatter

	input    textinput.Model
	editor   textarea.Model
	viewport viewport.Model

	mode     mode
	summary  string
	history  []session.Turn
	pending  string
	status   string
	err      error
	loading  bool
	quitting bool
	ready    bool
	width    int
}

// New は新しい TUI モデルを作成する
func New(ctx context.Context, chatter Chatter) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question or request a summary change"
	ti.CharLimit = 0
	ti.Focus()

	ta := textarea.New()
	ta.ShowLineNumbers = false
	ta.CharLimit = 0

	m := Model{
		ctx:      ctx,
		chatter:  chatter,
		input:    ti,
		editor:   ta,
		viewport: viewport.New(0, 0),
		summary:  chatter.Summary(),
		history:  chatter.History(),
		status:   "Ready.",
	}
	if doc := chatter.Document(); doc != "" {
		m.status = fmt.Sprintf("Loaded %s.", doc)
	}
	m.viewport.SetContent(m.renderHistory())
	return m
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// turnMsg は1ターンの処理結果
type turnMsg struct {
	turn session.Turn
	err  error
}

// summarySavedMsg は手動編集した要約の保存結果
type summarySavedMsg struct {
	text string
	err  error
}

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		m.resize(msg.Width, msg.Height)
		return m, nil

	case turnMsg:
		m.loading = false
		m.pending = ""
		if msg.err != nil {
			m.err = msg.err
			m.status = "Turn failed; summary and history are unchanged."
		} else {
			m.err = nil
			m.history = append(m.history, msg.turn)
			m.summary = m.chatter.Summary()
			m.status = fmt.Sprintf("Detected intent: %s", msg.turn.Intent)
		}
		m.refreshLog()
		return m, nil

	case summarySavedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			m.status = "Failed to save summary."
			return m, nil
		}
		m.err = nil
		m.summary = msg.text
		m.mode = modeChat
		m.editor.Blur()
		m.status = "Summary saved."
		cmd := m.input.Focus()
		return m, cmd

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			m.quitting = true
			return m, tea.Quit
		}
		if m.loading {
			return m, nil
		}
		if m.mode == modeEditSummary {
			return m.updateEditor(msg)
		}
		return m.updateChat(msg)
	}

	return m.forward(msg)
}

func (m Model) updateChat(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		query := strings.TrimSpace(m.input.Value())
		if query == "" {
			return m, nil
		}
		if query == "exit" {
			m.quitting = true
			return m, tea.Quit
		}
		m.input.Reset()
		m.loading = true
		m.pending = query
		m.err = nil
		m.status = "Thinking..."
		m.refreshLog()
		return m, m.submit(query)

	case "ctrl+e":
		m.mode = modeEditSummary
		m.editor.SetValue(m.summary)
		m.input.Blur()
		m.status = "Editing summary (ctrl+s: save, esc: cancel)"
		cmd := m.editor.Focus()
		return m, cmd

	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateEditor(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeChat
		m.editor.Blur()
		m.status = "Edit cancelled."
		cmd := m.input.Focus()
		return m, cmd

	case "ctrl+s":
		m.loading = true
		return m, m.saveSummary(m.editor.Value())
	}

	var cmd tea.Cmd
	m.editor, cmd = m.editor.Update(msg)
	return m, cmd
}

func (m Model) forward(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	if m.mode == modeEditSummary {
		m.editor, cmd = m.editor.Update(msg)
	} else {
		m.input, cmd = m.input.Update(msg)
	}
	return m, cmd
}

func (m Model) submit(query string) tea.Cmd {
	return func() tea.Msg {
		turn, err := m.chatter.Submit(m.ctx, query)
		return turnMsg{turn: turn, err: err}
	}
}

func (m Model) saveSummary(text string) tea.Cmd {
	return func() tea.Msg {
		err := m.chatter.SetSummary(m.ctx, text)
		return summarySavedMsg{text: text, err: err}
	}
}

func (m *Model) resize(width, height int) {
	_, sh := summaryBoxStyle.GetFrameSize()
	_, lh := logBoxStyle.GetFrameSize()
	_, ih := inputBoxStyle.GetFrameSize()

	summaryLines := 6
	reserved := 1 + summaryLines + sh + ih + 1 + 1 // title, summary, input, status, spacer
	vh := height - reserved - lh
	if vh < 3 {
		vh = 3
	}
	w := max(20, width-4)

	m.viewport.Width = w
	m.viewport.Height = vh
	m.input.Width = w - 2
	m.editor.SetWidth(w)
	m.editor.SetHeight(max(3, vh))
	m.refreshLog()
}

func (m *Model) refreshLog() {
	m.viewport.SetContent(m.renderHistory())
	m.viewport.GotoBottom()
}

func (m Model) renderHistory() string {
	if len(m.history) == 0 && m.pending == "" {
		return helpTextStyle.Render("No messages yet. Ask about the document, or ask to change the summary.")
	}

	var b strings.Builder
	for _, turn := range m.history {
		b.WriteString(queryStyle.Render("You: " + turn.Query))
		b.WriteString("\n")
		label := string(turn.Intent)
		if turn.Fallback {
			label += ", fallback"
		}
		if turn.Intent == intent.Question && len(turn.Sources) > 0 {
			label += fmt.Sprintf(", %d sources", len(turn.Sources))
		}
		b.WriteString(labelStyle.Render("[" + label + "]"))
		b.WriteString("\n")
		b.WriteString(answerStyle.Render(turn.Response))
		b.WriteString("\n\n")
	}
	if m.pending != "" {
		b.WriteString(queryStyle.Render("You: " + m.pending))
		b.WriteString("\n")
		b.WriteString(loadingStyle.Render("..."))
		b.WriteString("\n")
	}
	return b.String()
}

// View renders the TUI layout.
func (m Model) View() string {
	if m.quitting {
		return "\nBye!\n\n"
	}
	if !m.ready {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Document Chat"))
	b.WriteString("\n")

	summary := m.summary
	if summary == "" {
		summary = helpTextStyle.Render("(no summary)")
	}
	boxWidth := max(20, m.width-2)

	if m.mode == modeEditSummary {
		b.WriteString(summaryBoxStyle.Width(boxWidth).Render(m.editor.View()))
	} else {
		b.WriteString(summaryBoxStyle.Width(boxWidth).MaxHeight(8).Render(summary))
		b.WriteString("\n")
		b.WriteString(logBoxStyle.Width(boxWidth).Render(m.viewport.View()))
		b.WriteString("\n")
		b.WriteString(inputBoxStyle.Width(boxWidth).Render(m.input.View()))
	}
	b.WriteString("\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render("Error: " + m.err.Error()))
		b.WriteString("\n")
	}
	b.WriteString(statusStyle.Render(m.status))
	if m.mode == modeChat {
		b.WriteString(helpTextStyle.Render("  enter: send  ctrl+e: edit summary  ctrl+c: quit"))
	}
	return b.String()
}

// Run は TUI アプリケーションを実行する
func Run(ctx context.Context, chatter Chatter) error {
	p := tea.NewProgram(New(ctx, chatter), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
