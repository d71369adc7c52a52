package summary

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/docchat/internal/core/apperr"
	"github.com/jinford/docchat/internal/core/llm"
)

type stubGenerator struct {
	content string
	err     error
	calls   int
	prompts []string
}

func (g *stubGenerator) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	g.calls++
	g.prompts = append(g.prompts, req.Prompt)
	if g.err != nil {
		return llm.Response{}, g.err
	}
	return llm.Response{Content: g.content}, nil
}

type memoryStore struct {
	text    string
	saved   bool
	saveErr error
}

func (s *memoryStore) Load(ctx context.Context) (string, bool, error) { return s.text, s.saved, nil }

func (s *memoryStore) Save(ctx context.Context, text string) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.text = text
	s.saved = true
	return nil
}

func (s *memoryStore) Remove(ctx context.Context) error {
	s.text, s.saved = "", false
	return nil
}

func (s *memoryStore) Path() string { return "memory" }

// 先頭から指定トークン数（空白区切り）で切り詰めるカウンタ
type wordCounter struct{}

func (wordCounter) CountTokens(text string) int { return len(strings.Fields(text)) }

func (wordCounter) Truncate(text string, maxTokens int) string {
	words := strings.Fields(text)
	if len(words) <= maxTokens {
		return text
	}
	return strings.Join(words[:maxTokens], " ")
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSummarizer_SummarizeSendsFullText(t *testing.T) {
	gen := &stubGenerator{content: "A short summary."}
	s := NewSummarizer(gen, WithSummarizerLogger(discardLogger()))

	fullText := "Page one.\n\nPage two with budget $10,000."
	got, err := s.Summarize(context.Background(), fullText)
	require.NoError(t, err)

	assert.Equal(t, "A short summary.", got)
	require.Equal(t, 1, gen.calls)
	assert.Contains(t, gen.prompts[0], fullText)
	assert.Contains(t, gen.prompts[0], "key points, objectives, and conclusions")
}

func TestSummarizer_ProviderErrorIsGenerationError(t *testing.T) {
	gen := &stubGenerator{err: errors.New("quota exceeded")}
	s := NewSummarizer(gen, WithSummarizerLogger(discardLogger()))

	_, err := s.Summarize(context.Background(), "text")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrGeneration)
}

func TestSummarizer_EmptyResponseIsGenerationError(t *testing.T) {
	gen := &stubGenerator{content: "  \n"}
	s := NewSummarizer(gen, WithSummarizerLogger(discardLogger()))

	_, err := s.Summarize(context.Background(), "text")
	assert.ErrorIs(t, err, apperr.ErrGeneration)
	assert.ErrorIs(t, err, ErrEmptySummary)
}

func TestSummarizer_TruncatesToTokenBudget(t *testing.T) {
	gen := &stubGenerator{content: "summary"}
	s := NewSummarizer(gen,
		WithSummarizerLogger(discardLogger()),
		WithInputTokenBudget(wordCounter{}, 3),
	)

	_, err := s.Summarize(context.Background(), "one two three four five")
	require.NoError(t, err)

	assert.Contains(t, gen.prompts[0], "Document: one two three\n")
	assert.NotContains(t, gen.prompts[0], "four")
}

func TestEditor_ReviseSavesNewSummary(t *testing.T) {
	gen := &stubGenerator{content: "Contract dated December 25th."}
	store := &memoryStore{text: "Contract dated January 1st.", saved: true}
	e := NewEditor(gen, store, WithEditorLogger(discardLogger()))

	got, err := e.Revise(context.Background(), "change the date to December 25th", store.text)
	require.NoError(t, err)

	assert.Equal(t, "Contract dated December 25th.", got)
	assert.Equal(t, got, store.text)
	assert.Contains(t, gen.prompts[0], "Current Summary: Contract dated January 1st.")
	assert.Contains(t, gen.prompts[0], "User's Request: change the date to December 25th")
}

func TestEditor_GenerationFailureLeavesStoreUntouched(t *testing.T) {
	gen := &stubGenerator{err: errors.New("timeout")}
	store := &memoryStore{text: "original", saved: true}
	e := NewEditor(gen, store, WithEditorLogger(discardLogger()))

	_, err := e.Revise(context.Background(), "shorten it", "original")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrGeneration)
	assert.Equal(t, "original", store.text)
}

func TestEditor_SaveFailureIsReported(t *testing.T) {
	gen := &stubGenerator{content: "new"}
	store := &memoryStore{text: "original", saved: true, saveErr: errors.New("disk full")}
	e := NewEditor(gen, store, WithEditorLogger(discardLogger()))

	_, err := e.Revise(context.Background(), "rewrite", "original")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, "original", store.text)
}
