package gemini

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/jinford/docchat/internal/core/llm"
)

const (
	// DefaultEmbeddingModel はモデル未指定時のデフォルトモデル
	DefaultEmbeddingModel = "text-embedding-004"
	// MaxBatchSize は batchEmbedContents の1リクエストあたりの上限
	MaxBatchSize = 100
)

// Embedder は Gemini API を使用してテキストをベクトルに変換する。
// 文書側は RETRIEVAL_DOCUMENT、クエリ側は RETRIEVAL_QUERY のタスク種別で Embedding を生成する。
type Embedder struct {
	client *genai.Client
	model  string
}

// NewEmbedder は新しい Embedder を作成する
func NewEmbedder(ctx context.Context, apiKey, model string) (*Embedder, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}
	if model == "" {
		model = DefaultEmbeddingModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Embedder{client: client, model: model}, nil
}

// Embed は検索クエリの Embedding を生成する
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	em := e.client.EmbeddingModel(e.model)
	em.TaskType = genai.TaskTypeRetrievalQuery

	resp, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}
	if resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
		return nil, fmt.Errorf("no embeddings generated")
	}

	return resp.Embedding.Values, nil
}

// BatchEmbed は文書チャンクの Embedding をまとめて生成する（最大100件）
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("no texts provided")
	}
	if len(texts) > MaxBatchSize {
		return nil, fmt.Errorf("batch size exceeds maximum of %d", MaxBatchSize)
	}

	em := e.client.EmbeddingModel(e.model)
	em.TaskType = genai.TaskTypeRetrievalDocument

	batch := em.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}

	resp, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}

	embeddings := make([][]float32, 0, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("empty embedding returned for text %d", i)
		}
		embeddings = append(embeddings, emb.Values)
	}

	return embeddings, nil
}

// MaxBatchSize はバッチ処理の最大サイズを返す
func (e *Embedder) MaxBatchSize() int {
	return MaxBatchSize
}

// ModelName はモデル名を返す
func (e *Embedder) ModelName() string {
	return e.model
}

// Close はクライアントを閉じる
func (e *Embedder) Close() error {
	return e.client.Close()
}

// インターフェース実装の確認
var _ llm.Embedder = (*Embedder)(nil)
