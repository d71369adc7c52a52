// Package chunk はドキュメント全文を重なり付きの固定長チャンクに分割します。
package chunk

import (
	"strings"
	"unicode/utf8"

	"github.com/jinford/docchat/internal/core/apperr"
)

const (
	// DefaultSize は1チャンクあたりの最大文字数
	DefaultSize = 1000
	// DefaultOverlap は隣接チャンク間で共有する文字数
	DefaultOverlap = 200
)

// Config はチャンク分割の設定（単位はすべて文字 = rune）
type Config struct {
	Size    int
	Overlap int
}

// DefaultConfig はデフォルトのチャンク設定を返します
func DefaultConfig() Config {
	return Config{Size: DefaultSize, Overlap: DefaultOverlap}
}

// Validate は設定を検証します
func (c Config) Validate() error {
	if c.Size <= 0 {
		return apperr.NewConfigError("chunk size", "must be positive, got %d", c.Size)
	}
	if c.Overlap < 0 {
		return apperr.NewConfigError("chunk overlap", "must not be negative, got %d", c.Overlap)
	}
	if c.Overlap >= c.Size {
		return apperr.NewConfigError("chunk overlap", "must be smaller than size (overlap=%d, size=%d)", c.Overlap, c.Size)
	}
	return nil
}

// Chunk は全文の連続した部分文字列。Start/End は全文中の rune オフセット [Start, End)。
type Chunk struct {
	Index   int
	Content string
	Start   int
	End     int
}

// Chunker は固定長・固定重なりでテキストを分割する
type Chunker struct {
	cfg Config
}

// New は設定を検証して Chunker を作成します
func New(cfg Config) (*Chunker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{cfg: cfg}, nil
}

// Config は Chunker の設定を返します
func (c *Chunker) Config() Config {
	return c.cfg
}

// Split は text をチャンクに分割します。
// 2番目以降のチャンクは直前のチャンクの終端から Overlap 文字手前で始まります。
// 不正な UTF-8 バイトは1文字として数え、元のバイト列をそのまま保持します。
// 空文字列の場合はチャンクを返しません。
func (c *Chunker) Split(text string) []Chunk {
	bounds := runeBounds(text)
	n := len(bounds) - 1
	if n == 0 {
		return nil
	}

	step := c.cfg.Size - c.cfg.Overlap
	chunks := make([]Chunk, 0, n/step+1)

	for start := 0; ; start += step {
		end := start + c.cfg.Size
		if end > n {
			end = n
		}
		chunks = append(chunks, Chunk{
			Index:   len(chunks),
			Content: text[bounds[start]:bounds[end]],
			Start:   start,
			End:     end,
		})
		if end == n {
			break
		}
	}

	return chunks
}

// Join はチャンク列から元のテキストを復元します。
// 各チャンクのうち直前のチャンクと重なる部分を取り除いて連結します。
func Join(chunks []Chunk) string {
	var sb strings.Builder
	covered := 0
	for _, ch := range chunks {
		skip := covered - ch.Start
		if skip < 0 {
			skip = 0
		}
		bounds := runeBounds(ch.Content)
		if skip < len(bounds)-1 {
			sb.WriteString(ch.Content[bounds[skip]:])
		}
		if ch.End > covered {
			covered = ch.End
		}
	}
	return sb.String()
}

// runeBounds は各文字の開始バイト位置と末尾位置 len(s) を返します
func runeBounds(s string) []int {
	bounds := make([]int, 0, len(s)+1)
	for i := 0; i < len(s); {
		bounds = append(bounds, i)
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return append(bounds, len(s))
}
