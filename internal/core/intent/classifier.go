// Package intent はユーザー発話を「質問」か「要約修正依頼」かに分類します。
package intent

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/samber/mo"

	"github.com/jinford/docchat/internal/core/llm"
)

// Intent はユーザー発話の意図
type Intent string

const (
	Question     Intent = "question"
	Modification Intent = "modification"
)

// Source は分類結果がどのように得られたか
type Source string

const (
	// SourceParsed はモデルの応答を解析して得た結果
	SourceParsed Source = "parsed"
	// SourceFallback は応答が解析できない、または呼び出しに失敗したため既定値を採用した結果
	SourceFallback Source = "fallback"
)

// Classification は分類結果
type Classification struct {
	Intent Intent
	Source Source
}

// IsFallback は既定値が採用されたかどうかを返す
func (c Classification) IsFallback() bool {
	return c.Source == SourceFallback
}

// Classifier は言語モデルを用いて発話を分類する
type Classifier struct {
	generator   llm.TextGenerator
	temperature float64
	logger      *slog.Logger
}

type ClassifierOption func(*Classifier)

// WithClassifierLogger は Classifier にロガーを設定する
func WithClassifierLogger(logger *slog.Logger) ClassifierOption {
	return func(c *Classifier) {
		c.logger = logger
	}
}

// WithClassifierTemperature は分類時の temperature を設定する
func WithClassifierTemperature(t float64) ClassifierOption {
	return func(c *Classifier) {
		c.temperature = t
	}
}

// NewClassifier は新しい Classifier を作成する
func NewClassifier(generator llm.TextGenerator, opts ...ClassifierOption) *Classifier {
	c := &Classifier{
		generator: generator,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Classify は発話を分類する。失敗はエラーとして返さず、常に Question にフォールバックする。
func (c *Classifier) Classify(ctx context.Context, utterance string) Classification {
	fallback := Classification{Intent: Question, Source: SourceFallback}

	if strings.TrimSpace(utterance) == "" {
		return fallback
	}

	resp, err := c.generator.Generate(ctx, llm.Request{
		Prompt:         BuildClassificationPrompt(utterance),
		Temperature:    c.temperature,
		ResponseFormat: llm.FormatJSON,
	})
	if err != nil {
		c.logger.Warn("intent classification failed, falling back to question", "error", err)
		return fallback
	}

	parsed := ParseResponse(resp.Content)
	if parsed.IsAbsent() {
		c.logger.Warn("unparseable intent response, falling back to question", "response", resp.Content)
		return fallback
	}

	return Classification{Intent: parsed.MustGet(), Source: SourceParsed}
}

type intentPayload struct {
	Intent string `json:"intent"`
}

// ParseResponse はモデルの応答から意図を取り出す。
// ```json フェンスを取り除いた上で {"intent": ...} を解析し、
// 2つのラベル以外は None を返す。
func ParseResponse(text string) mo.Option[Intent] {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.ReplaceAll(cleaned, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)

	var payload intentPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return mo.None[Intent]()
	}

	switch label := Intent(strings.ToLower(strings.TrimSpace(payload.Intent))); label {
	case Question, Modification:
		return mo.Some(label)
	default:
		return mo.None[Intent]()
	}
}
