package ask

// DefaultTopK は検索で取得するチャンク数のデフォルト値
const DefaultTopK = 5

// AskResult は質問応答の結果を表す
type AskResult struct {
	Answer  string            // LLMによる回答（加工しない）
	Sources []SourceReference // 参照したチャンク
}

// SourceReference は回答の根拠となったチャンク参照を表す
type SourceReference struct {
	ChunkID    string
	ChunkIndex string // メタデータ chunk_index（存在する場合）
	Content    string
	Score      float32 // 類似度スコア
}
