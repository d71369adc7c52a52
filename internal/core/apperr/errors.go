// Package apperr はドキュメントチャット全体で共有するエラー分類を定義します。
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig は設定不備を表します（起動時に致命的）
	ErrConfig = errors.New("configuration error")

	// ErrLoad はドキュメント読み込みの失敗を表します
	ErrLoad = errors.New("document load error")

	// ErrGeneration は言語モデル呼び出しの失敗を表します
	ErrGeneration = errors.New("generation error")

	// ErrIndex は埋め込み生成・ベクトルインデックス操作の失敗を表します
	ErrIndex = errors.New("index error")

	// ErrPartialIngestion は要約の永続化後にインデックスの確定に失敗したことを表します
	ErrPartialIngestion = errors.New("partial ingestion")
)

// ConfigError は設定値の検証エラー
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config: %s: %s", e.Field, e.Err)
	}
	return fmt.Sprintf("config: %s", e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Is は errors.Is(err, ErrConfig) を成立させます
func (e *ConfigError) Is(target error) bool { return target == ErrConfig }

// NewConfigError は新しい ConfigError を作成します
func NewConfigError(field string, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Err: fmt.Errorf(format, args...)}
}

// LoadError はドキュメント読み込みエラー
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %s", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

func (e *LoadError) Is(target error) bool { return target == ErrLoad }

// GenerationError は言語モデルの生成エラー
type GenerationError struct {
	Op  string // summarize / classify / answer / revise
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation: %s: %s", e.Op, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

func (e *GenerationError) Is(target error) bool { return target == ErrGeneration }

// IndexError は埋め込み・ベクトルストア操作のエラー
type IndexError struct {
	Op  string // embed / stage / add / commit / open / search / destroy
	Err error
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("index: %s: %s", e.Op, e.Err)
}

func (e *IndexError) Unwrap() error { return e.Err }

func (e *IndexError) Is(target error) bool { return target == ErrIndex }

// PartialIngestionError は要約ファイルは新しい内容で書き込まれたが、
// インデックスの差し替えに失敗した状態を表します。再実行で回復します。
type PartialIngestionError struct {
	SummaryPath string
	Err         error
}

func (e *PartialIngestionError) Error() string {
	return fmt.Sprintf("partial ingestion: summary written to %s but index commit failed: %s", e.SummaryPath, e.Err)
}

func (e *PartialIngestionError) Unwrap() error { return e.Err }

func (e *PartialIngestionError) Is(target error) bool { return target == ErrPartialIngestion }
