// Package index はチャンク Embedding を保持するベクトルインデックスの抽象を定義します。
package index

import (
	"context"
	"errors"
)

// ErrNotReady はインデックスが未作成の状態で検索しようとした場合のエラー
var ErrNotReady = errors.New("vector index is not ready: ingest a document first")

// Record はインデックスに格納する1件のチャンク
type Record struct {
	ID        string
	Content   string
	Embedding []float32
	Metadata  map[string]string
}

// SearchResult は類似検索の結果
type SearchResult struct {
	ID       string
	Content  string
	Score    float32
	Metadata map[string]string
}

// VectorIndex は確定済み（live）のインデックスに対する読み取り操作
type VectorIndex interface {
	// Search はクエリベクトルに近い順に最大 k 件を返す。
	// k がインデックス件数を超える場合は全件を返す。
	Search(ctx context.Context, query []float32, k int) ([]SearchResult, error)
	Count(ctx context.Context) (int, error)
}

// Staging は構築中のインデックス。Commit されるまで live インデックスには影響しない。
type Staging interface {
	Add(ctx context.Context, records []Record) error
	// Commit は既存の live インデックスを破棄し、構築中のインデックスで置き換える
	Commit(ctx context.Context) error
	// Discard は構築中のインデックスを破棄する。Commit 後に呼んでも害はない。
	Discard(ctx context.Context) error
}

// Store はインデックスのライフサイクルを管理する
type Store interface {
	// Stage は新しいインデックスの構築を開始する
	Stage(ctx context.Context) (Staging, error)
	// Open は live インデックスを開く。存在しない場合は ErrNotReady を返す。
	Open(ctx context.Context) (VectorIndex, error)
	// Destroy は live / staging を含むすべての永続データを削除する。存在しなくてもエラーにしない。
	Destroy(ctx context.Context) error
}
