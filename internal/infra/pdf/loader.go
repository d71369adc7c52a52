package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/jinford/docchat/internal/core/apperr"
	"github.com/jinford/docchat/internal/core/ingestion"
)

// ErrNoText はPDFからテキストが1文字も抽出できなかった場合のエラー
var ErrNoText = errors.New("no text content extracted from PDF")

// Loader はPDFファイルをページ単位のテキストとして読み込む
type Loader struct {
	logger *slog.Logger
}

// NewLoader は新しい Loader を作成する
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// Load はPDFを読み込み、ページ順のテキストを返す。
// 読み込み・解析の失敗はすべて *apperr.LoadError として返す。
func (l *Loader) Load(ctx context.Context, path string) (*ingestion.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &apperr.LoadError{Path: path, Err: err}
	}

	pages, err := l.extractPages(data)
	if err != nil {
		return nil, &apperr.LoadError{Path: path, Err: err}
	}

	return &ingestion.Document{Path: path, Pages: pages}, nil
}

func (l *Loader) extractPages(data []byte) (pages []string, err error) {
	// 壊れたPDFに対してパーサが panic することがあるため、エラーに変換する
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to create PDF reader: %w", err)
	}

	totalPage := reader.NumPage()
	l.logger.Debug("Starting PDF text extraction", slog.Int("total_pages", totalPage))

	pages = make([]string, 0, totalPage)
	var totalLength int
	for pageIndex := 1; pageIndex <= totalPage; pageIndex++ {
		page := reader.Page(pageIndex)
		if page.V.IsNull() {
			l.logger.Warn("Null page encountered", slog.Int("page_number", pageIndex))
			pages = append(pages, "")
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to extract text from page %d: %w", pageIndex, err)
		}

		l.logger.Debug("Extracted text from page",
			slog.Int("page_number", pageIndex),
			slog.Int("text_length", len(text)))

		pages = append(pages, text)
		totalLength += len(strings.TrimSpace(text))
	}

	if totalLength == 0 {
		return nil, ErrNoText
	}

	l.logger.Info("Successfully extracted text from PDF",
		slog.Int("total_pages", totalPage),
		slog.Int("total_text_length", totalLength))

	return pages, nil
}

// インターフェース実装の確認
var _ ingestion.Loader = (*Loader)(nil)
