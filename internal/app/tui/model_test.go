package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/docchat/internal/core/intent"
	"github.com/jinford/docchat/internal/core/session"
)

type stubChatter struct {
	summary   string
	reply     session.Turn
	submitErr error
	saveErr   error
	queries   []string
}

func (s *stubChatter) Submit(ctx context.Context, query string) (session.Turn, error) {
	s.queries = append(s.queries, query)
	if s.submitErr != nil {
		return session.Turn{}, s.submitErr
	}
	turn := s.reply
	turn.Query = query
	return turn, nil
}

func (s *stubChatter) SetSummary(ctx context.Context, text string) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.summary = text
	return nil
}

func (s *stubChatter) Summary() string         { return s.summary }
func (s *stubChatter) History() []session.Turn { return nil }
func (s *stubChatter) Document() string        { return "doc.pdf" }

func typeText(t *testing.T, m tea.Model, text string) tea.Model {
	t.Helper()
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	return m
}

// press はキーを送り、返されたコマンドを同期的に実行して結果メッセージも反映する
func press(t *testing.T, m tea.Model, key tea.KeyType) tea.Model {
	t.Helper()
	m, cmd := m.Update(tea.KeyMsg{Type: key})
	if cmd == nil {
		return m
	}
	switch msg := cmd().(type) {
	case turnMsg, summarySavedMsg:
		m, _ = m.Update(msg)
	}
	return m
}

func TestModel_SubmitAppendsTurn(t *testing.T) {
	chatter := &stubChatter{
		summary: "old summary",
		reply: session.Turn{
			Response: "The budget is $10,000.",
			Intent:   intent.Question,
		},
	}

	var m tea.Model = New(context.Background(), chatter)
	m, _ = m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	m = typeText(t, m, "What is the budget?")
	m = press(t, m, tea.KeyEnter)

	model := m.(Model)
	require.Len(t, model.history, 1)
	assert.Equal(t, []string{"What is the budget?"}, chatter.queries)
	assert.Equal(t, "The budget is $10,000.", model.history[0].Response)
	assert.Empty(t, model.input.Value())
	assert.False(t, model.loading)
	assert.Contains(t, model.View(), "Detected intent: question")
}

func TestModel_ModificationRefreshesSummary(t *testing.T) {
	chatter := &stubChatter{
		summary: "old summary",
		reply: session.Turn{
			Response: session.ModificationReply,
			Intent:   intent.Modification,
		},
	}

	var m tea.Model = New(context.Background(), chatter)
	m = typeText(t, m, "Make it shorter")
	// Submit 中にセッション側の要約が更新される
	chatter.summary = "new summary"
	m = press(t, m, tea.KeyEnter)

	assert.Equal(t, "new summary", m.(Model).summary)
}

func TestModel_FailedTurnKeepsHistory(t *testing.T) {
	chatter := &stubChatter{summary: "s", submitErr: errors.New("llm down")}

	var m tea.Model = New(context.Background(), chatter)
	m = typeText(t, m, "hello")
	m = press(t, m, tea.KeyEnter)

	model := m.(Model)
	assert.Empty(t, model.history)
	require.Error(t, model.err)
	assert.Equal(t, "s", model.summary)
}

func TestModel_EmptyInputIsIgnored(t *testing.T) {
	chatter := &stubChatter{}

	var m tea.Model = New(context.Background(), chatter)
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.Nil(t, cmd)
	assert.Empty(t, chatter.queries)
	assert.False(t, m.(Model).loading)
}

func TestModel_EditSummary(t *testing.T) {
	chatter := &stubChatter{summary: "draft"}

	var m tea.Model = New(context.Background(), chatter)
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlE})
	require.Equal(t, modeEditSummary, m.(Model).mode)
	assert.Equal(t, "draft", m.(Model).editor.Value())

	m = typeText(t, m, " v2")
	m = press(t, m, tea.KeyCtrlS)

	model := m.(Model)
	assert.Equal(t, modeChat, model.mode)
	assert.Equal(t, "draft v2", chatter.summary)
	assert.Equal(t, "draft v2", model.summary)
}

func TestModel_EditSummaryCancel(t *testing.T) {
	chatter := &stubChatter{summary: "draft"}

	var m tea.Model = New(context.Background(), chatter)
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlE})
	m = typeText(t, m, " changed")
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})

	model := m.(Model)
	assert.Equal(t, modeChat, model.mode)
	assert.Equal(t, "draft", model.summary)
	assert.Equal(t, "draft", chatter.summary)
}
