package summary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jinford/docchat/internal/core/apperr"
	"github.com/jinford/docchat/internal/core/llm"
)

// ErrEmptySummary はモデルが空の要約を返した場合のエラー
var ErrEmptySummary = errors.New("model returned an empty summary")

// Store は要約テキストの永続化を担う
type Store interface {
	// Load は保存済みの要約を返す。未保存の場合は ("", false, nil)。
	Load(ctx context.Context) (string, bool, error)
	// Save は要約全体をアトミックに上書きする
	Save(ctx context.Context, text string) error
	// Remove は保存済みの要約を削除する。存在しなくてもエラーにしない。
	Remove(ctx context.Context) error
	Path() string
}

// Summarizer はドキュメント全文から要約を生成する
type Summarizer struct {
	generator      llm.TextGenerator
	tokenCounter   llm.TokenCounter
	temperature    float64
	maxInputTokens int
	logger         *slog.Logger
}

type SummarizerOption func(*Summarizer)

// WithSummarizerLogger は Summarizer にロガーを設定する
func WithSummarizerLogger(logger *slog.Logger) SummarizerOption {
	return func(s *Summarizer) {
		s.logger = logger
	}
}

// WithSummarizerTemperature は生成時の temperature を設定する
func WithSummarizerTemperature(t float64) SummarizerOption {
	return func(s *Summarizer) {
		s.temperature = t
	}
}

// WithInputTokenBudget は要約に渡す全文のトークン上限を設定する。
// 上限を超えた全文は先頭から切り詰めてプロンプトに渡す。
func WithInputTokenBudget(counter llm.TokenCounter, maxTokens int) SummarizerOption {
	return func(s *Summarizer) {
		s.tokenCounter = counter
		s.maxInputTokens = maxTokens
	}
}

// NewSummarizer は新しい Summarizer を作成する
func NewSummarizer(generator llm.TextGenerator, opts ...SummarizerOption) *Summarizer {
	s := &Summarizer{
		generator:   generator,
		temperature: 0.3,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Summarize は全文から要約を生成する。プロバイダの失敗は GenerationError として返す。
func (s *Summarizer) Summarize(ctx context.Context, fullText string) (string, error) {
	input := fullText
	if s.tokenCounter != nil && s.maxInputTokens > 0 {
		tokens := s.tokenCounter.CountTokens(fullText)
		if tokens > s.maxInputTokens {
			input = s.tokenCounter.Truncate(fullText, s.maxInputTokens)
			s.logger.Warn("document exceeds summary input budget, truncating",
				"tokens", tokens,
				"budget", s.maxInputTokens,
			)
		}
	}

	s.logger.Info("generating summary", "chars", len([]rune(input)))

	resp, err := s.generator.Generate(ctx, llm.Request{
		Prompt:      BuildSummaryPrompt(input),
		Temperature: s.temperature,
	})
	if err != nil {
		return "", &apperr.GenerationError{Op: "summarize", Err: err}
	}
	if strings.TrimSpace(resp.Content) == "" {
		return "", &apperr.GenerationError{Op: "summarize", Err: ErrEmptySummary}
	}

	s.logger.Info("summary generated",
		"summaryLength", len(resp.Content),
		"tokensUsed", resp.TokensUsed,
	)

	return resp.Content, nil
}

// Editor はユーザーの指示に従って要約を書き換え、永続化する
type Editor struct {
	generator   llm.TextGenerator
	store       Store
	temperature float64
	logger      *slog.Logger
}

type EditorOption func(*Editor)

// WithEditorLogger は Editor にロガーを設定する
func WithEditorLogger(logger *slog.Logger) EditorOption {
	return func(e *Editor) {
		e.logger = logger
	}
}

// WithEditorTemperature は生成時の temperature を設定する
func WithEditorTemperature(t float64) EditorOption {
	return func(e *Editor) {
		e.temperature = t
	}
}

// NewEditor は新しい Editor を作成する
func NewEditor(generator llm.TextGenerator, store Store, opts ...EditorOption) *Editor {
	e := &Editor{
		generator:   generator,
		store:       store,
		temperature: 0.3,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Revise は現在の要約を request に従って書き換える。
// 生成に成功した場合のみ要約ファイルを上書きし、新しい要約を返す。
func (e *Editor) Revise(ctx context.Context, request, current string) (string, error) {
	e.logger.Info("revising summary", "request", request)

	resp, err := e.generator.Generate(ctx, llm.Request{
		Prompt:      BuildRevisionPrompt(current, request),
		Temperature: e.temperature,
	})
	if err != nil {
		return "", &apperr.GenerationError{Op: "revise", Err: err}
	}
	if strings.TrimSpace(resp.Content) == "" {
		return "", &apperr.GenerationError{Op: "revise", Err: ErrEmptySummary}
	}

	if err := e.store.Save(ctx, resp.Content); err != nil {
		return "", fmt.Errorf("failed to save summary: %w", err)
	}

	e.logger.Info("summary revised and saved",
		"path", e.store.Path(),
		"summaryLength", len(resp.Content),
	)

	return resp.Content, nil
}
