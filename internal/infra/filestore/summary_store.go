package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/jinford/docchat/internal/core/summary"
)

// SummaryStore は要約をUTF-8テキストファイルとして保存する
type SummaryStore struct {
	path string
}

// NewSummaryStore は新しい SummaryStore を作成する
func NewSummaryStore(path string) *SummaryStore {
	return &SummaryStore{path: path}
}

// Path は要約ファイルのパスを返す
func (s *SummaryStore) Path() string {
	return s.path
}

// Load は要約ファイルを読み込む。ファイルが存在しない場合は ("", false, nil) を返す。
func (s *SummaryStore) Load(ctx context.Context) (string, bool, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read summary file: %w", err)
	}
	return string(data), true, nil
}

// Save は要約ファイル全体を置き換える。
// 同じディレクトリの一時ファイルに書き込んでから rename するため、途中で失敗しても既存の内容は壊れない。
func (s *SummaryStore) Save(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create summary directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.WriteString(text); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write summary: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync summary: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("failed to chmod summary: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace summary file: %w", err)
	}
	return nil
}

// Remove は要約ファイルを削除する。存在しなくてもエラーにしない。
func (s *SummaryStore) Remove(ctx context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove summary file: %w", err)
	}
	return nil
}

// インターフェース実装の確認
var _ summary.Store = (*SummaryStore)(nil)
