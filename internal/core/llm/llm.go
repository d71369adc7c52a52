// Package llm は言語モデル・埋め込みプロバイダに対する能力インターフェースを定義します。
// コアのサービスはこれらのインターフェースのみに依存し、具体的なプロバイダは infra 層で実装します。
package llm

import "context"

// ResponseFormat はモデルに要求する出力形式
type ResponseFormat string

const (
	FormatText ResponseFormat = ""
	FormatJSON ResponseFormat = "json"
)

// Request はテキスト生成リクエスト
type Request struct {
	Prompt         string
	Temperature    float64
	MaxTokens      int            // 0 の場合はプロバイダのデフォルト
	ResponseFormat ResponseFormat // FormatJSON の場合は JSON モードを要求
}

// Response はテキスト生成レスポンス
type Response struct {
	Content    string
	TokensUsed int
	Model      string
}

// TextGenerator は単発のプロンプトからテキストを生成する
type TextGenerator interface {
	Generate(ctx context.Context, req Request) (Response, error)
}

// Embedder はテキストをベクトルに変換する
type Embedder interface {
	// Embed は検索クエリ用の Embedding を生成する
	Embed(ctx context.Context, text string) ([]float32, error)
	// BatchEmbed は文書チャンク用の Embedding をまとめて生成する。
	// 戻り値は入力と同じ順序・同じ件数でなければならない。
	BatchEmbed(ctx context.Context, texts []string) ([][]float32, error)
	MaxBatchSize() int
	ModelName() string
}

// TokenCounter はプロンプトのトークン数を数える
type TokenCounter interface {
	CountTokens(text string) int
	// Truncate は text を先頭から maxTokens トークン以内に切り詰める
	Truncate(text string, maxTokens int) string
}
