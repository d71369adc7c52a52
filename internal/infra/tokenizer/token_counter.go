package tokenizer

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"

	"github.com/jinford/docchat/internal/core/llm"
)

// DefaultEncoding は Gemini / OpenAI 双方の概算に用いるエンコーディング
const DefaultEncoding = "cl100k_base"

// TokenCounter はトークン数をカウントする機能を提供する
type TokenCounter struct {
	encoding *tiktoken.Tiktoken
}

// NewTokenCounter は新しいTokenCounterを作成する
// cl100k_baseエンコーディングを使用する
func NewTokenCounter() (*TokenCounter, error) {
	encoding, err := tiktoken.GetEncoding(DefaultEncoding)
	if err != nil {
		return nil, fmt.Errorf("failed to get tiktoken encoding: %w", err)
	}

	return &TokenCounter{
		encoding: encoding,
	}, nil
}

// CountTokens はテキストのトークン数をカウントする
func (tc *TokenCounter) CountTokens(text string) int {
	if tc.encoding == nil {
		return EstimateTokens(text)
	}
	return len(tc.encoding.Encode(text, nil, nil))
}

// Truncate は text を先頭から maxTokens トークン以内に切り詰める。
// maxTokens <= 0 の場合は text をそのまま返す。
func (tc *TokenCounter) Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 || tc.encoding == nil {
		return text
	}
	tokens := tc.encoding.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}
	return tc.encoding.Decode(tokens[:maxTokens])
}

// EstimateTokens はテキストの推定トークン数を返す
// エンコーディングが使えない場合のフォールバック（3文字で1トークン）
func EstimateTokens(text string) int {
	return len([]rune(text)) / 3
}

// インターフェース実装の確認
var _ llm.TokenCounter = (*TokenCounter)(nil)
