package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/jinford/docchat/internal/core/index"
	"github.com/jinford/docchat/internal/platform/database"
	"github.com/jinford/docchat/pkg/lock"
)

const (
	// DefaultTable はチャンクを格納するテーブル名
	DefaultTable = "document_chunks"

	stagingSuffix = "_staging"
)

// Store は pgvector 拡張を用いたベクトルインデックス。
// 構築中のインデックスは <table>_staging テーブルに作成し、Commit 時に1トランザクションで差し替える。
type Store struct {
	pool   *pgxpool.Pool
	txp    *database.TransactionProvider
	table  string
	logger *slog.Logger
}

type StoreOption func(*Store)

// WithTable はテーブル名を設定する
func WithTable(name string) StoreOption {
	return func(s *Store) {
		s.table = name
	}
}

// WithStoreLogger は Store にロガーを設定する
func WithStoreLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore は新しい Store を作成する
func NewStore(pool *pgxpool.Pool, opts ...StoreOption) *Store {
	s := &Store{
		pool:   pool,
		txp:    database.NewTransactionProvider(pool),
		table:  DefaultTable,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

func (s *Store) liveTable() string {
	return pgx.Identifier{s.table}.Sanitize()
}

func (s *Store) stagingTable() string {
	return pgx.Identifier{s.table + stagingSuffix}.Sanitize()
}

// Stage は空の staging テーブルを作成する
func (s *Store) Stage(ctx context.Context) (index.Staging, error) {
	if _, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return nil, fmt.Errorf("failed to enable vector extension: %w", err)
	}

	if _, err := s.pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", s.stagingTable())); err != nil {
		return nil, fmt.Errorf("failed to clear staging table: %w", err)
	}

	ddl := fmt.Sprintf(`CREATE TABLE %s (
	id TEXT PRIMARY KEY,
	content TEXT NOT NULL,
	metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
	embedding vector NOT NULL
)`, s.stagingTable())
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return nil, fmt.Errorf("failed to create staging table: %w", err)
	}

	s.logger.Debug("staging table created", "table", s.table+stagingSuffix)
	return &staging{store: s}, nil
}

// Open は live テーブルを開く
func (s *Store) Open(ctx context.Context) (index.VectorIndex, error) {
	exists, err := s.tableExists(ctx, s.table)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, index.ErrNotReady
	}
	return &table{pool: s.pool, name: s.liveTable()}, nil
}

// Destroy は live / staging テーブルを削除する
func (s *Store) Destroy(ctx context.Context) error {
	sql := fmt.Sprintf("DROP TABLE IF EXISTS %s, %s", s.liveTable(), s.stagingTable())
	if _, err := s.pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("failed to drop index tables: %w", err)
	}
	s.logger.Info("vector index destroyed", "table", s.table)
	return nil
}

func (s *Store) tableExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, "SELECT to_regclass($1) IS NOT NULL", pgx.Identifier{name}.Sanitize()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check table %s: %w", name, err)
	}
	return exists, nil
}

type staging struct {
	store *Store
}

func (st *staging) Add(ctx context.Context, records []index.Record) error {
	if len(records) == 0 {
		return nil
	}

	sql := fmt.Sprintf(
		"INSERT INTO %s (id, content, metadata, embedding) VALUES ($1, $2, $3::jsonb, $4::vector)",
		st.store.stagingTable(),
	)

	batch := &pgx.Batch{}
	for _, r := range records {
		meta, err := json.Marshal(r.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata for %s: %w", r.ID, err)
		}
		batch.Queue(sql, r.ID, r.Content, string(meta), pgvector.NewVector(r.Embedding))
	}

	results := st.store.pool.SendBatch(ctx, batch)
	defer results.Close()

	for _, r := range records {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", r.ID, err)
		}
	}
	return nil
}

func (st *staging) Commit(ctx context.Context) error {
	s := st.store
	_, err := database.Transact(ctx, s.txp, func(tx pgx.Tx) (struct{}, error) {
		// 同じテーブルへの Commit を直列化する
		if err := lock.AcquireTx(ctx, tx, lock.KeyFor("docchat-index", s.table)); err != nil {
			return struct{}{}, err
		}
		if _, err := tx.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", s.liveTable())); err != nil {
			return struct{}{}, fmt.Errorf("failed to drop live table: %w", err)
		}
		rename := fmt.Sprintf("ALTER TABLE %s RENAME TO %s", s.stagingTable(), s.liveTable())
		if _, err := tx.Exec(ctx, rename); err != nil {
			return struct{}{}, fmt.Errorf("failed to promote staging table: %w", err)
		}
		return struct{}{}, nil
	})
	if err != nil {
		return err
	}

	s.logger.Debug("staging table committed", "table", s.table)
	return nil
}

func (st *staging) Discard(ctx context.Context) error {
	sql := fmt.Sprintf("DROP TABLE IF EXISTS %s", st.store.stagingTable())
	if _, err := st.store.pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("failed to drop staging table: %w", err)
	}
	return nil
}

type table struct {
	pool *pgxpool.Pool
	name string
}

func (t *table) Search(ctx context.Context, query []float32, k int) ([]index.SearchResult, error) {
	if k <= 0 {
		return nil, nil
	}

	sql := fmt.Sprintf(`SELECT id, content, metadata, embedding <=> $1::vector AS distance
FROM %s
ORDER BY distance
LIMIT $2`, t.name)

	rows, err := t.pool.Query(ctx, sql, pgvector.NewVector(query), k)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	defer rows.Close()

	var results []index.SearchResult
	for rows.Next() {
		var (
			r        index.SearchResult
			meta     []byte
			distance float64
		)
		if err := rows.Scan(&r.ID, &r.Content, &meta, &distance); err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &r.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode metadata for %s: %w", r.ID, err)
			}
		}
		// コサイン距離を類似度に変換
		r.Score = float32(1 - distance)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate search results: %w", err)
	}

	return results, nil
}

func (t *table) Count(ctx context.Context) (int, error) {
	var n int
	if err := t.pool.QueryRow(ctx, fmt.Sprintf("SELECT count(*) FROM %s", t.name)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}

// インターフェース実装の確認
var _ index.Store = (*Store)(nil)
