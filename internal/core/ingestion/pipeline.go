package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/jinford/docchat/internal/core/apperr"
	"github.com/jinford/docchat/internal/core/chunk"
	"github.com/jinford/docchat/internal/core/index"
	"github.com/jinford/docchat/internal/core/llm"
	"github.com/jinford/docchat/internal/core/summary"
)

const (
	// DefaultEmbeddingBatchSize はEmbedding APIのデフォルトバッチサイズ
	DefaultEmbeddingBatchSize = 100
	// MinBatchSize は最小バッチサイズ（MaxBatchSize()が0を返した場合のフォールバック）
	MinBatchSize = 1
)

// Pipeline はドキュメントの読み込みからインデックス確定までを実行する
type Pipeline struct {
	loader       Loader
	chunker      *chunk.Chunker
	embedder     llm.Embedder
	summarizer   Summarizer
	indexStore   index.Store
	summaryStore summary.Store
	logger       *slog.Logger

	// 実際に使用するバッチサイズ（Embedder.MaxBatchSize()でクリップ済み）
	batchSize int
}

type PipelineOption func(*Pipeline)

// WithPipelineLogger は Pipeline にロガーを設定する
func WithPipelineLogger(logger *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithEmbeddingBatchSize は Embedding のバッチサイズを設定する
func WithEmbeddingBatchSize(size int) PipelineOption {
	return func(p *Pipeline) {
		p.batchSize = size
	}
}

// NewPipeline は新しい Pipeline を作成する
func NewPipeline(
	loader Loader,
	chunker *chunk.Chunker,
	embedder llm.Embedder,
	summarizer Summarizer,
	indexStore index.Store,
	summaryStore summary.Store,
	opts ...PipelineOption,
) *Pipeline {
	p := &Pipeline{
		loader:       loader,
		chunker:      chunker,
		embedder:     embedder,
		summarizer:   summarizer,
		indexStore:   indexStore,
		summaryStore: summaryStore,
		logger:       slog.Default(),
		batchSize:    DefaultEmbeddingBatchSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}

	// バッチサイズをEmbedderの最大値でクリップ
	maxBatchSize := embedder.MaxBatchSize()
	if maxBatchSize <= 0 {
		p.logger.Warn("embedder returned invalid max batch size, using fallback",
			"returned", maxBatchSize,
			"fallback", MinBatchSize,
		)
		maxBatchSize = MinBatchSize
	}
	if p.batchSize <= 0 || p.batchSize > maxBatchSize {
		p.batchSize = maxBatchSize
	}

	return p
}

// ProcessDocument はドキュメントを取り込み、生成した要約を返す
func (p *Pipeline) ProcessDocument(ctx context.Context, path string) (string, error) {
	result, err := p.Run(ctx, path)
	if err != nil {
		return "", err
	}
	return result.Summary, nil
}

// Run はインジェストを実行する。
//
// 要約ファイルの書き込みとインデックスの差し替えは最後にまとめて行う。
// それ以前に失敗した場合は構築中のインデックスを破棄し、既存の永続状態には触れない。
// 要約の書き込み後にインデックスの差し替えが失敗した場合は PartialIngestionError を返す。
func (p *Pipeline) Run(ctx context.Context, path string) (*Result, error) {
	started := time.Now()
	ingestionID := uuid.NewString()
	logger := p.logger.With("ingestionID", ingestionID, "path", path)

	// 1. 読み込み
	logger.Info("loading document")
	doc, err := p.loader.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	fullText := doc.FullText()
	logger.Info("document loaded", "pages", len(doc.Pages), "chars", len([]rune(fullText)))

	// 2. 要約（永続化は最後）
	summaryText, err := p.summarizer.Summarize(ctx, fullText)
	if err != nil {
		return nil, err
	}

	// 3. チャンク分割
	chunks := p.chunker.Split(fullText)
	logger.Info("document chunked",
		"chunks", len(chunks),
		"size", p.chunker.Config().Size,
		"overlap", p.chunker.Config().Overlap,
	)

	// 4. Embedding
	records, err := p.embedChunks(ctx, logger, ingestionID, doc, chunks)
	if err != nil {
		return nil, err
	}

	// 5. 新しいインデックスを構築
	staging, err := p.indexStore.Stage(ctx)
	if err != nil {
		return nil, &apperr.IndexError{Op: "stage", Err: err}
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if discardErr := staging.Discard(context.WithoutCancel(ctx)); discardErr != nil {
			logger.Warn("failed to discard staged index", "error", discardErr)
		}
	}()

	if err := staging.Add(ctx, records); err != nil {
		return nil, &apperr.IndexError{Op: "add", Err: err}
	}

	// 6. 確定: 要約 → インデックスの順
	if err := p.summaryStore.Save(ctx, summaryText); err != nil {
		return nil, fmt.Errorf("failed to save summary: %w", err)
	}
	logger.Info("summary saved", "summaryPath", p.summaryStore.Path())

	if err := staging.Commit(ctx); err != nil {
		return nil, &apperr.PartialIngestionError{
			SummaryPath: p.summaryStore.Path(),
			Err:         &apperr.IndexError{Op: "commit", Err: err},
		}
	}
	committed = true

	result := &Result{
		IngestionID: ingestionID,
		Summary:     summaryText,
		Pages:       len(doc.Pages),
		Chunks:      len(records),
		Duration:    time.Since(started),
	}

	logger.Info("ingestion completed",
		"pages", result.Pages,
		"chunks", result.Chunks,
		"duration", result.Duration,
	)

	return result, nil
}

// embedChunks はチャンクをバッチ単位で Embedding し、インデックス用レコードを組み立てる
func (p *Pipeline) embedChunks(
	ctx context.Context,
	logger *slog.Logger,
	ingestionID string,
	doc *Document,
	chunks []chunk.Chunk,
) ([]index.Record, error) {
	pageStarts := doc.pageStarts()
	records := make([]index.Record, 0, len(chunks))

	for start := 0; start < len(chunks); start += p.batchSize {
		end := start + p.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, ch := range batch {
			texts[i] = ch.Content
		}

		vectors, err := p.embedder.BatchEmbed(ctx, texts)
		if err != nil {
			return nil, &apperr.IndexError{Op: "embed", Err: err}
		}
		if len(vectors) != len(batch) {
			return nil, &apperr.IndexError{
				Op:  "embed",
				Err: fmt.Errorf("embedding count mismatch: got %d, want %d", len(vectors), len(batch)),
			}
		}

		for i, ch := range batch {
			records = append(records, index.Record{
				ID:        fmt.Sprintf("%s-%d", ingestionID, ch.Index),
				Content:   ch.Content,
				Embedding: vectors[i],
				Metadata: map[string]string{
					"source":      doc.Path,
					"chunk_index": strconv.Itoa(ch.Index),
					"start":       strconv.Itoa(ch.Start),
					"end":         strconv.Itoa(ch.End),
					"page":        strconv.Itoa(pageOf(pageStarts, ch.Start)),
				},
			})
		}

		logger.Debug("embedded batch", "from", start, "to", end, "model", p.embedder.ModelName())
	}

	return records, nil
}

// pageOf は rune オフセットが含まれるページ番号（1 始まり）を返す
func pageOf(pageStarts []int, offset int) int {
	i := sort.Search(len(pageStarts), func(i int) bool { return pageStarts[i] > offset })
	if i == 0 {
		return 1
	}
	return i
}
