package ask

import (
	"strings"

	"github.com/jinford/docchat/internal/core/index"
)

// contextSeparator は検索結果チャンクを連結する区切り
const contextSeparator = "\n\n"

// BuildContext は検索結果のチャンク本文を順に連結する
func BuildContext(results []index.SearchResult) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		parts = append(parts, r.Content)
	}
	return strings.Join(parts, contextSeparator)
}

// BuildAskPrompt はRAG質問応答用のプロンプトを構築する。
// モデルにはコンテキストのみを根拠に回答させる。
func BuildAskPrompt(query, context string) string {
	var sb strings.Builder

	sb.WriteString("You are a helpful assistant. Answer the User Query based ONLY on the provided Context.\n")
	sb.WriteString("If the information is not in the context, state that you cannot find the answer in the document.\n\n")

	sb.WriteString("Context: ")
	sb.WriteString(context)
	sb.WriteString("\n\n")

	sb.WriteString("User Query: ")
	sb.WriteString(query)
	sb.WriteString("\n")

	return sb.String()
}
