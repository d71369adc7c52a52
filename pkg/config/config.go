package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/jinford/docchat/internal/core/apperr"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"

	StoreChromem  = "chromem"
	StorePGVector = "pgvector"
	StoreMemory   = "memory"
)

// Config はアプリケーション全体の設定を保持します
type Config struct {
	// LLM / Embedding プロバイダ選択
	LLMProvider       string
	EmbeddingProvider string

	Gemini GeminiConfig
	OpenAI OpenAIConfig

	// 生成パラメータ
	Generation GenerationConfig

	// チャンク分割・検索
	Chunking  ChunkingConfig
	Retrieval RetrievalConfig

	// 要約ファイル
	SummaryPath string

	// ベクトルストア
	Index IndexConfig

	// pgvector 使用時のみ必要
	Database DatabaseConfig

	Log LogConfig
}

// GeminiConfig は Gemini API 設定（生成 + Embeddings）
type GeminiConfig struct {
	APIKey         string
	LLMModel       string
	EmbeddingModel string
}

// OpenAIConfig はOpenAI API設定（Embeddings + LLM）
type OpenAIConfig struct {
	APIKey             string
	EmbeddingModel     string
	EmbeddingDimension int
	LLMModel           string
}

// GenerationConfig は言語モデル呼び出しの設定
type GenerationConfig struct {
	Temperature           float64
	ClassifierTemperature float64
	RequestTimeout        time.Duration // 0 はタイムアウトなし
	SummaryMaxInputTokens int           // 0 は入力を切り詰めない
}

// ChunkingConfig はテキスト分割設定
type ChunkingConfig struct {
	Size    int
	Overlap int
}

// RetrievalConfig は類似検索設定
type RetrievalConfig struct {
	TopK               int
	EmbeddingBatchSize int
}

// IndexConfig はベクトルストア設定
type IndexConfig struct {
	Store      string // "chromem", "pgvector" or "memory"
	Dir        string
	Collection string
}

// DatabaseConfig はデータベース接続設定
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// LogConfig はロガー設定
type LogConfig struct {
	Level  string
	Format string
}

// Load は環境変数または.envファイルから設定を読み込みます
func Load(envFilePath string) (*Config, error) {
	// .envファイルが存在する場合は読み込む
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			// ファイルが存在しない場合はエラーとしない（環境変数のみで動作可能）
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load .env file: %w", err)
			}
		}
	}

	env := &envReader{}
	cfg := &Config{
		LLMProvider:       strings.ToLower(getEnv("LLM_PROVIDER", ProviderGemini)),
		EmbeddingProvider: strings.ToLower(getEnv("EMBEDDING_PROVIDER", ProviderGemini)),
		Gemini: GeminiConfig{
			APIKey:         getEnv("GOOGLE_API_KEY", ""),
			LLMModel:       getEnv("GEMINI_LLM_MODEL", "gemini-1.5-flash"),
			EmbeddingModel: getEnv("GEMINI_EMBEDDING_MODEL", "text-embedding-004"),
		},
		OpenAI: OpenAIConfig{
			APIKey:             getEnv("OPENAI_API_KEY", ""),
			EmbeddingModel:     getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
			EmbeddingDimension: env.Int("OPENAI_EMBEDDING_DIMENSION", 1536),
			LLMModel:           getEnv("OPENAI_LLM_MODEL", "gpt-4o-mini"),
		},
		Generation: GenerationConfig{
			Temperature:           env.Float("LLM_TEMPERATURE", 0.3),
			ClassifierTemperature: env.Float("CLASSIFIER_TEMPERATURE", 0.0),
			RequestTimeout:        env.Duration("LLM_REQUEST_TIMEOUT", 0),
			SummaryMaxInputTokens: env.Int("SUMMARY_MAX_INPUT_TOKENS", 0),
		},
		Chunking: ChunkingConfig{
			Size:    env.Int("CHUNK_SIZE", 1000),
			Overlap: env.Int("CHUNK_OVERLAP", 200),
		},
		Retrieval: RetrievalConfig{
			TopK:               env.Int("RETRIEVAL_TOP_K", 5),
			EmbeddingBatchSize: env.Int("EMBEDDING_BATCH_SIZE", 100),
		},
		SummaryPath: getEnv("SUMMARY_PATH", "summary.txt"),
		Index: IndexConfig{
			Store:      strings.ToLower(getEnv("VECTOR_STORE", StoreChromem)),
			Dir:        getEnv("INDEX_DIR", "chroma_db"),
			Collection: getEnv("INDEX_COLLECTION", "document_chunks"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     env.Int("DB_PORT", 5432),
			User:     getEnv("DB_USER", "docchat"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "docchat"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Log: LogConfig{
			Level:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
			Format: strings.ToLower(getEnv("LOG_FORMAT", "json")),
		},
	}

	if err := env.Err(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate は起動前に設定の整合性を検証します。
// 不備があれば *apperr.ConfigError を返します。
func (c *Config) Validate() error {
	switch c.LLMProvider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return apperr.NewConfigError("LLM_PROVIDER", "unsupported provider %q", c.LLMProvider)
	}
	switch c.EmbeddingProvider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return apperr.NewConfigError("EMBEDDING_PROVIDER", "unsupported provider %q", c.EmbeddingProvider)
	}

	if c.usesProvider(ProviderGemini) && c.Gemini.APIKey == "" {
		return apperr.NewConfigError("GOOGLE_API_KEY", "required when gemini provider is selected")
	}
	if c.usesProvider(ProviderOpenAI) && c.OpenAI.APIKey == "" {
		return apperr.NewConfigError("OPENAI_API_KEY", "required when openai provider is selected")
	}

	if c.Chunking.Size <= 0 {
		return apperr.NewConfigError("CHUNK_SIZE", "must be positive, got %d", c.Chunking.Size)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return apperr.NewConfigError("CHUNK_OVERLAP", "must be in [0, %d), got %d", c.Chunking.Size, c.Chunking.Overlap)
	}
	if c.Retrieval.TopK <= 0 {
		return apperr.NewConfigError("RETRIEVAL_TOP_K", "must be positive, got %d", c.Retrieval.TopK)
	}
	if c.Retrieval.EmbeddingBatchSize <= 0 {
		return apperr.NewConfigError("EMBEDDING_BATCH_SIZE", "must be positive, got %d", c.Retrieval.EmbeddingBatchSize)
	}
	if c.Generation.RequestTimeout < 0 {
		return apperr.NewConfigError("LLM_REQUEST_TIMEOUT", "must not be negative")
	}
	if c.SummaryPath == "" {
		return apperr.NewConfigError("SUMMARY_PATH", "must not be empty")
	}

	switch c.Index.Store {
	case StoreChromem:
		if c.Index.Dir == "" {
			return apperr.NewConfigError("INDEX_DIR", "must not be empty")
		}
	case StorePGVector:
		if c.Database.Host == "" || c.Database.DBName == "" {
			return apperr.NewConfigError("DB_HOST", "database host and name are required for pgvector store")
		}
	case StoreMemory:
	default:
		return apperr.NewConfigError("VECTOR_STORE", "unsupported store %q", c.Index.Store)
	}

	return nil
}

// SlogLevel は LOG_LEVEL を slog.Level に変換します
func (c LogConfig) SlogLevel() slog.Level {
	switch c.Level {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (c *Config) usesProvider(name string) bool {
	return c.LLMProvider == name || c.EmbeddingProvider == name
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// envReader は数値や期間の環境変数を読み込み、解釈できなかった値を記録します
type envReader struct {
	errs []error
}

// Int は環境変数を整数として取得します
func (r *envReader) Int(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(strings.TrimSpace(valueStr))
	if err != nil {
		r.errs = append(r.errs, apperr.NewConfigError(key, "invalid integer %q", valueStr))
		return defaultValue
	}
	return value
}

// Float は環境変数を浮動小数点数として取得します
func (r *envReader) Float(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(valueStr), 64)
	if err != nil {
		r.errs = append(r.errs, apperr.NewConfigError(key, "invalid number %q", valueStr))
		return defaultValue
	}
	return value
}

// Duration は環境変数を time.Duration として取得します（例: "30s"）
func (r *envReader) Duration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(strings.TrimSpace(valueStr))
	if err != nil {
		r.errs = append(r.errs, apperr.NewConfigError(key, "invalid duration %q", valueStr))
		return defaultValue
	}
	return value
}

// Err は記録された解釈エラーをまとめて返します
func (r *envReader) Err() error {
	return errors.Join(r.errs...)
}
