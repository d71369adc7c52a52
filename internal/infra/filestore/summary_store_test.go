package filestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummaryStore_SaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.txt")
	store := NewSummaryStore(path)
	ctx := context.Background()

	_, ok, err := store.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Save(ctx, "初版の要約。Budget: $10,000"))
	got, ok, err := store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "初版の要約。Budget: $10,000", got)

	require.NoError(t, store.Save(ctx, "short"))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "short", string(raw))
}

func TestSummaryStore_SaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store := NewSummaryStore(filepath.Join(dir, "summary.txt"))

	require.NoError(t, store.Save(context.Background(), "a"))
	require.NoError(t, store.Save(context.Background(), "b"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "summary.txt", entries[0].Name())
}

func TestSummaryStore_SaveCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out", "summary.txt")
	store := NewSummaryStore(path)

	require.NoError(t, store.Save(context.Background(), "x"))
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestSummaryStore_RemoveIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.txt")
	store := NewSummaryStore(path)

	require.NoError(t, store.Remove(context.Background()))
	require.NoError(t, store.Save(context.Background(), "x"))
	require.NoError(t, store.Remove(context.Background()))
	require.NoError(t, store.Remove(context.Background()))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestSummaryStore_SaveHonoursCancelledContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.txt")
	store := NewSummaryStore(path)
	require.NoError(t, store.Save(context.Background(), "original"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, store.Save(ctx, "new"))
	got, _, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "original", got)
}
