package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/philippgille/chromem-go"

	"github.com/jinford/docchat/internal/core/index"
)

const (
	// DefaultCollection はチャンクを格納するコレクション名
	DefaultCollection = "document_chunks"

	stagingSuffix = ".staging"
)

// ErrEmbeddingRequired はコレクションが自前で Embedding を計算しようとした場合のエラー。
// Embedding は常に呼び出し側で計算して渡す。
var ErrEmbeddingRequired = errors.New("chromem: embeddings must be precomputed")

// Store は chromem-go の永続ディレクトリを用いたベクトルインデックス。
// 構築中のインデックスは <dir>.staging に作成し、Commit 時にディレクトリごと差し替える。
type Store struct {
	dir        string
	collection string
	logger     *slog.Logger
}

type StoreOption func(*Store)

// WithCollection はコレクション名を設定する
func WithCollection(name string) StoreOption {
	return func(s *Store) {
		s.collection = name
	}
}

// WithStoreLogger は Store にロガーを設定する
func WithStoreLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore は新しい Store を作成する
func NewStore(dir string, opts ...StoreOption) *Store {
	s := &Store{
		dir:        dir,
		collection: DefaultCollection,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Dir は live インデックスのディレクトリを返す
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) stagingDir() string {
	return s.dir + stagingSuffix
}

// Stage は空の staging ディレクトリに新しいコレクションを作成する
func (s *Store) Stage(ctx context.Context) (index.Staging, error) {
	dir := s.stagingDir()
	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("failed to clear staging directory: %w", err)
	}

	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return nil, fmt.Errorf("failed to create staging DB: %w", err)
	}

	collection, err := db.CreateCollection(s.collection, map[string]string{"hnsw:space": "cosine"}, precomputedOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}

	s.logger.Debug("staging index created", "dir", dir)

	return &staging{store: s, dir: dir, collection: collection}, nil
}

// Open は live インデックスを開く
func (s *Store) Open(ctx context.Context) (index.VectorIndex, error) {
	if _, err := os.Stat(s.dir); errors.Is(err, fs.ErrNotExist) {
		return nil, index.ErrNotReady
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat index directory: %w", err)
	}

	db, err := chromem.NewPersistentDB(s.dir, false)
	if err != nil {
		return nil, fmt.Errorf("failed to open index DB: %w", err)
	}

	collection := db.GetCollection(s.collection, precomputedOnly)
	if collection == nil {
		return nil, index.ErrNotReady
	}

	return &vectorIndex{collection: collection}, nil
}

// Destroy は live / staging の両ディレクトリを削除する
func (s *Store) Destroy(ctx context.Context) error {
	for _, dir := range []string{s.dir, s.stagingDir()} {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("failed to remove %s: %w", dir, err)
		}
	}
	s.logger.Info("index removed", "dir", s.dir)
	return nil
}

type staging struct {
	store      *Store
	dir        string
	collection *chromem.Collection
	done       bool
}

func (st *staging) Add(ctx context.Context, records []index.Record) error {
	if st.done {
		return fmt.Errorf("staging already finalized")
	}
	if len(records) == 0 {
		return nil
	}

	ids := make([]string, len(records))
	embeddings := make([][]float32, len(records))
	metadatas := make([]map[string]string, len(records))
	contents := make([]string, len(records))
	for i, r := range records {
		if len(r.Embedding) == 0 {
			return fmt.Errorf("record %s has no embedding", r.ID)
		}
		ids[i] = r.ID
		embeddings[i] = r.Embedding
		metadatas[i] = r.Metadata
		contents[i] = r.Content
	}

	if err := st.collection.Add(ctx, ids, embeddings, metadatas, contents); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

func (st *staging) Commit(ctx context.Context) error {
	if st.done {
		return fmt.Errorf("staging already finalized")
	}
	if err := os.RemoveAll(st.store.dir); err != nil {
		return fmt.Errorf("failed to remove previous index: %w", err)
	}
	if err := os.Rename(st.dir, st.store.dir); err != nil {
		return fmt.Errorf("failed to promote staged index: %w", err)
	}
	st.done = true

	st.store.logger.Info("index committed", "dir", st.store.dir, "documents", st.collection.Count())
	return nil
}

func (st *staging) Discard(ctx context.Context) error {
	if st.done {
		return nil
	}
	st.done = true
	if err := os.RemoveAll(st.dir); err != nil {
		return fmt.Errorf("failed to remove staging directory: %w", err)
	}
	return nil
}

type vectorIndex struct {
	collection *chromem.Collection
}

// Search は類似度の高い順に最大 k 件を返す。chromem は件数を超える k を受け付けないため件数で丸める。
func (v *vectorIndex) Search(ctx context.Context, query []float32, k int) ([]index.SearchResult, error) {
	if len(query) == 0 {
		return nil, fmt.Errorf("query vector is empty")
	}

	n := v.collection.Count()
	if k < n {
		n = k
	}
	if n <= 0 {
		return []index.SearchResult{}, nil
	}

	results, err := v.collection.QueryEmbedding(ctx, query, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection: %w", err)
	}

	out := make([]index.SearchResult, 0, len(results))
	for _, r := range results {
		out = append(out, index.SearchResult{
			ID:       r.ID,
			Content:  r.Content,
			Score:    r.Similarity,
			Metadata: r.Metadata,
		})
	}
	return out, nil
}

func (v *vectorIndex) Count(ctx context.Context) (int, error) {
	return v.collection.Count(), nil
}

func precomputedOnly(ctx context.Context, text string) ([]float32, error) {
	return nil, ErrEmbeddingRequired
}

// インターフェース実装の確認
var (
	_ index.Store       = (*Store)(nil)
	_ index.VectorIndex = (*vectorIndex)(nil)
)
