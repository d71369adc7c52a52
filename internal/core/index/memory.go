package index

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryStore はプロセス内にのみ保持するインデックス。
// VECTOR_STORE=memory で選択され、プロセス終了とともに破棄される。
type MemoryStore struct {
	mu   sync.Mutex
	live *memoryIndex
}

// NewMemoryStore は空の MemoryStore を作成する
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Stage(ctx context.Context) (Staging, error) {
	return &memoryStaging{store: s, idx: &memoryIndex{}}, nil
}

func (s *MemoryStore) Open(ctx context.Context) (VectorIndex, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.live == nil {
		return nil, ErrNotReady
	}
	return s.live, nil
}

func (s *MemoryStore) Destroy(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live = nil
	return nil
}

type memoryStaging struct {
	store *MemoryStore
	idx   *memoryIndex
	done  bool
}

func (st *memoryStaging) Add(ctx context.Context, records []Record) error {
	if st.done {
		return fmt.Errorf("staging already finalized")
	}
	for _, r := range records {
		if len(r.Embedding) == 0 {
			return fmt.Errorf("record %s has no embedding", r.ID)
		}
		st.idx.records = append(st.idx.records, r)
	}
	return nil
}

func (st *memoryStaging) Commit(ctx context.Context) error {
	if st.done {
		return fmt.Errorf("staging already finalized")
	}
	st.store.mu.Lock()
	st.store.live = st.idx
	st.store.mu.Unlock()
	st.done = true
	return nil
}

func (st *memoryStaging) Discard(ctx context.Context) error {
	st.done = true
	return nil
}

type memoryIndex struct {
	records []Record
}

func (m *memoryIndex) Search(ctx context.Context, query []float32, k int) ([]SearchResult, error) {
	if len(query) == 0 {
		return nil, fmt.Errorf("query vector is empty")
	}
	if k <= 0 {
		return nil, nil
	}
	results := make([]SearchResult, 0, len(m.records))
	for _, r := range m.records {
		results = append(results, SearchResult{
			ID:       r.ID,
			Content:  r.Content,
			Score:    cosine(query, r.Embedding),
			Metadata: r.Metadata,
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

func (m *memoryIndex) Count(ctx context.Context) (int, error) {
	return len(m.records), nil
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

var (
	_ Store       = (*MemoryStore)(nil)
	_ VectorIndex = (*memoryIndex)(nil)
)
