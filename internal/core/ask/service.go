package ask

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jinford/docchat/internal/core/apperr"
	"github.com/jinford/docchat/internal/core/index"
	"github.com/jinford/docchat/internal/core/llm"
)

// AskService は質問応答のビジネスロジックを提供する
type AskService struct {
	embedder    llm.Embedder
	llm         llm.TextGenerator
	topK        int
	temperature float64
	logger      *slog.Logger
}

type AskServiceOption func(*AskService)

// WithAskLogger は AskService にロガーを設定する
func WithAskLogger(logger *slog.Logger) AskServiceOption {
	return func(s *AskService) {
		s.logger = logger
	}
}

// WithTopK は検索件数を設定する
func WithTopK(k int) AskServiceOption {
	return func(s *AskService) {
		s.topK = k
	}
}

// WithAskTemperature は回答生成時の temperature を設定する
func WithAskTemperature(t float64) AskServiceOption {
	return func(s *AskService) {
		s.temperature = t
	}
}

// NewAskService は新しいAskServiceを作成する
func NewAskService(
	embedder llm.Embedder,
	generator llm.TextGenerator,
	opts ...AskServiceOption,
) *AskService {
	svc := &AskService{
		embedder:    embedder,
		llm:         generator,
		topK:        DefaultTopK,
		temperature: 0.3,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(svc)
	}

	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	if svc.topK <= 0 {
		svc.topK = DefaultTopK
	}

	return svc
}

// Ask は質問に対してRAGベースで回答を生成する
func (s *AskService) Ask(ctx context.Context, idx index.VectorIndex, query string) (*AskResult, error) {
	if idx == nil {
		return nil, &apperr.IndexError{Op: "search", Err: index.ErrNotReady}
	}
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}

	// 1. クエリの Embedding
	queryVector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, &apperr.IndexError{Op: "embed", Err: err}
	}

	// 2. 類似検索
	s.logger.Info("executing similarity search", "query", query, "topK", s.topK)

	results, err := idx.Search(ctx, queryVector, s.topK)
	if err != nil {
		return nil, &apperr.IndexError{Op: "search", Err: err}
	}

	s.logger.Info("similarity search completed", "chunks", len(results))

	// 3. プロンプト構築
	prompt := BuildAskPrompt(query, BuildContext(results))

	// 4. LLMで回答生成
	s.logger.Info("generating answer with LLM")
	resp, err := s.llm.Generate(ctx, llm.Request{
		Prompt:      prompt,
		Temperature: s.temperature,
	})
	if err != nil {
		return nil, &apperr.GenerationError{Op: "answer", Err: err}
	}

	sources := make([]SourceReference, 0, len(results))
	for _, r := range results {
		sources = append(sources, SourceReference{
			ChunkID:    r.ID,
			ChunkIndex: r.Metadata["chunk_index"],
			Content:    r.Content,
			Score:      r.Score,
		})
	}

	s.logger.Info("ask completed successfully",
		"answerLength", len(resp.Content),
		"sources", len(sources),
	)

	return &AskResult{
		Answer:  resp.Content,
		Sources: sources,
	}, nil
}
