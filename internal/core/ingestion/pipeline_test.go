package ingestion

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/docchat/internal/core/apperr"
	"github.com/jinford/docchat/internal/core/chunk"
	"github.com/jinford/docchat/internal/core/index"
)

type stubLoader struct {
	pages []string
	err   error
}

func (l *stubLoader) Load(ctx context.Context, path string) (*Document, error) {
	if l.err != nil {
		return nil, &apperr.LoadError{Path: path, Err: l.err}
	}
	return &Document{Path: path, Pages: l.pages}, nil
}

type stubSummarizer struct {
	summary string
	err     error
	inputs  []string
}

func (s *stubSummarizer) Summarize(ctx context.Context, fullText string) (string, error) {
	s.inputs = append(s.inputs, fullText)
	if s.err != nil {
		return "", &apperr.GenerationError{Op: "summarize", Err: s.err}
	}
	return s.summary, nil
}

type stubEmbedder struct {
	maxBatch  int
	err       error
	short     bool
	batchLens []int
}

func (e *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{float32(len(text)), 1}, nil
}

func (e *stubEmbedder) BatchEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	e.batchLens = append(e.batchLens, len(texts))
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		out = append(out, []float32{float32(len(t)), 1})
	}
	if e.short {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (e *stubEmbedder) MaxBatchSize() int { return e.maxBatch }
func (e *stubEmbedder) ModelName() string { return "stub" }

type memorySummaryStore struct {
	text  string
	saves int
}

func (s *memorySummaryStore) Load(ctx context.Context) (string, bool, error) {
	return s.text, s.saves > 0, nil
}

func (s *memorySummaryStore) Save(ctx context.Context, text string) error {
	s.text = text
	s.saves++
	return nil
}

func (s *memorySummaryStore) Remove(ctx context.Context) error {
	s.text = ""
	return nil
}

func (s *memorySummaryStore) Path() string { return "summary.txt" }

// flakyStore は Commit を失敗させられる index.Store
type flakyStore struct {
	*index.MemoryStore
	failCommit bool
	discarded  int
}

func (s *flakyStore) Stage(ctx context.Context) (index.Staging, error) {
	st, err := s.MemoryStore.Stage(ctx)
	if err != nil {
		return nil, err
	}
	return &flakyStaging{Staging: st, store: s}, nil
}

type flakyStaging struct {
	index.Staging
	store *flakyStore
}

func (st *flakyStaging) Commit(ctx context.Context) error {
	if st.store.failCommit {
		return errors.New("rename failed")
	}
	return st.Staging.Commit(ctx)
}

func (st *flakyStaging) Discard(ctx context.Context) error {
	st.store.discarded++
	return st.Staging.Discard(ctx)
}

type fixture struct {
	loader       *stubLoader
	summarizer   *stubSummarizer
	embedder     *stubEmbedder
	indexStore   *flakyStore
	summaryStore *memorySummaryStore
}

func newFixture() *fixture {
	return &fixture{
		loader: &stubLoader{pages: []string{
			strings.Repeat("Page one text about the agreement. ", 10),
			strings.Repeat("The total budget is $10,000. ", 10),
		}},
		summarizer:   &stubSummarizer{summary: "Agreement summary."},
		embedder:     &stubEmbedder{maxBatch: 100},
		indexStore:   &flakyStore{MemoryStore: index.NewMemoryStore()},
		summaryStore: &memorySummaryStore{},
	}
}

func (f *fixture) pipeline(t *testing.T, opts ...PipelineOption) *Pipeline {
	t.Helper()
	chunker, err := chunk.New(chunk.Config{Size: 100, Overlap: 20})
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts = append([]PipelineOption{WithPipelineLogger(logger)}, opts...)
	return NewPipeline(f.loader, chunker, f.embedder, f.summarizer, f.indexStore, f.summaryStore, opts...)
}

func liveCount(t *testing.T, store index.Store) int {
	t.Helper()
	idx, err := store.Open(context.Background())
	if errors.Is(err, index.ErrNotReady) {
		return 0
	}
	require.NoError(t, err)
	n, err := idx.Count(context.Background())
	require.NoError(t, err)
	return n
}

func TestProcessDocument_SummarizesOnceAndPersists(t *testing.T) {
	f := newFixture()
	p := f.pipeline(t)

	got, err := p.ProcessDocument(context.Background(), "contract.pdf")
	require.NoError(t, err)

	assert.Equal(t, "Agreement summary.", got)
	require.Len(t, f.summarizer.inputs, 1)
	assert.Equal(t, f.loader.pages[0]+"\n\n"+f.loader.pages[1], f.summarizer.inputs[0])
	assert.Equal(t, "Agreement summary.", f.summaryStore.text)
	assert.Equal(t, 1, f.summaryStore.saves)

	chunker, _ := chunk.New(chunk.Config{Size: 100, Overlap: 20})
	expected := len(chunker.Split(f.summarizer.inputs[0]))
	assert.Equal(t, expected, liveCount(t, f.indexStore))
}

func TestRun_RecordsCarryMetadata(t *testing.T) {
	f := newFixture()
	p := f.pipeline(t)

	result, err := p.Run(context.Background(), "contract.pdf")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Pages)
	assert.NotEmpty(t, result.IngestionID)

	idx, err := f.indexStore.Open(context.Background())
	require.NoError(t, err)
	hits, err := idx.Search(context.Background(), []float32{100, 1}, result.Chunks)
	require.NoError(t, err)

	pages := map[string]bool{}
	for _, h := range hits {
		assert.Equal(t, "contract.pdf", h.Metadata["source"])
		assert.True(t, strings.HasPrefix(h.ID, result.IngestionID+"-"))
		pages[h.Metadata["page"]] = true
	}
	assert.True(t, pages["1"])
	assert.True(t, pages["2"])
}

func TestRun_BatchesClippedToEmbedderMax(t *testing.T) {
	f := newFixture()
	f.embedder.maxBatch = 2
	p := f.pipeline(t, WithEmbeddingBatchSize(50))

	result, err := p.Run(context.Background(), "contract.pdf")
	require.NoError(t, err)

	total := 0
	for _, n := range f.embedder.batchLens {
		assert.LessOrEqual(t, n, 2)
		total += n
	}
	assert.Equal(t, result.Chunks, total)
}

func TestRun_FailuresBeforeCommitLeavePriorStateUntouched(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(f *fixture)
		sentinel error
	}{
		{"load failure", func(f *fixture) { f.loader.err = errors.New("not a pdf") }, apperr.ErrLoad},
		{"summary failure", func(f *fixture) { f.summarizer.err = errors.New("quota") }, apperr.ErrGeneration},
		{"embedding failure", func(f *fixture) { f.embedder.err = errors.New("embed down") }, apperr.ErrIndex},
		{"embedding count mismatch", func(f *fixture) { f.embedder.short = true }, apperr.ErrIndex},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()

			// 既存の状態を作る
			_, err := f.pipeline(t).Run(context.Background(), "old.pdf")
			require.NoError(t, err)
			priorCount := liveCount(t, f.indexStore)
			priorSaves := f.summaryStore.saves

			f.summarizer.summary = "New summary."
			tt.mutate(f)

			_, err = f.pipeline(t).Run(context.Background(), "new.pdf")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.sentinel)

			assert.Equal(t, "Agreement summary.", f.summaryStore.text)
			assert.Equal(t, priorSaves, f.summaryStore.saves)
			assert.Equal(t, priorCount, liveCount(t, f.indexStore))
		})
	}
}

func TestRun_CommitFailureIsPartialAndRetryRecovers(t *testing.T) {
	f := newFixture()
	f.indexStore.failCommit = true

	_, err := f.pipeline(t).Run(context.Background(), "contract.pdf")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrPartialIngestion)
	assert.ErrorIs(t, err, apperr.ErrIndex)
	assert.Equal(t, 1, f.indexStore.discarded)
	assert.Equal(t, 0, liveCount(t, f.indexStore))

	// 再実行で回復し、前回の残骸は残らない
	f.indexStore.failCommit = false
	result, err := f.pipeline(t).Run(context.Background(), "contract.pdf")
	require.NoError(t, err)
	assert.Equal(t, result.Chunks, liveCount(t, f.indexStore))
	assert.Equal(t, "Agreement summary.", f.summaryStore.text)
}

func TestRun_RepeatedIngestionDoesNotAccumulate(t *testing.T) {
	f := newFixture()

	first, err := f.pipeline(t).Run(context.Background(), "contract.pdf")
	require.NoError(t, err)
	second, err := f.pipeline(t).Run(context.Background(), "contract.pdf")
	require.NoError(t, err)

	assert.Equal(t, first.Chunks, second.Chunks)
	assert.Equal(t, second.Chunks, liveCount(t, f.indexStore))
	assert.NotEqual(t, first.IngestionID, second.IngestionID)
}

func TestPageOf(t *testing.T) {
	doc := &Document{Pages: []string{"abc", "de", "f"}}
	starts := doc.pageStarts()
	assert.Equal(t, []int{0, 5, 9}, starts)

	assert.Equal(t, 1, pageOf(starts, 0))
	assert.Equal(t, 1, pageOf(starts, 4))
	assert.Equal(t, 2, pageOf(starts, 5))
	assert.Equal(t, 3, pageOf(starts, 9))
}
