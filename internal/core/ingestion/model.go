package ingestion

import (
	"context"
	"strings"
	"time"
)

// PageSeparator はページ本文を全文に連結する際の区切り
const PageSeparator = "\n\n"

// Document は読み込み済みのドキュメント（ページ順のテキスト）
type Document struct {
	Path  string
	Pages []string
}

// FullText はページ本文を PageSeparator で連結した全文を返す
func (d *Document) FullText() string {
	return strings.Join(d.Pages, PageSeparator)
}

// pageStarts は全文中の各ページ先頭の rune オフセットを返す
func (d *Document) pageStarts() []int {
	starts := make([]int, len(d.Pages))
	offset := 0
	sepLen := len([]rune(PageSeparator))
	for i, p := range d.Pages {
		starts[i] = offset
		offset += len([]rune(p)) + sepLen
	}
	return starts
}

// Loader はファイルパスからドキュメントを読み込む
type Loader interface {
	Load(ctx context.Context, path string) (*Document, error)
}

// Summarizer は全文から要約を生成する
type Summarizer interface {
	Summarize(ctx context.Context, fullText string) (string, error)
}

// Result はインジェスト結果
type Result struct {
	IngestionID string
	Summary     string
	Pages       int
	Chunks      int
	Duration    time.Duration
}
