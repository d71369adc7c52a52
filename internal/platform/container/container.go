package container

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jinford/docchat/internal/core/ask"
	"github.com/jinford/docchat/internal/core/chunk"
	"github.com/jinford/docchat/internal/core/index"
	"github.com/jinford/docchat/internal/core/ingestion"
	"github.com/jinford/docchat/internal/core/intent"
	"github.com/jinford/docchat/internal/core/llm"
	"github.com/jinford/docchat/internal/core/session"
	"github.com/jinford/docchat/internal/core/summary"
	"github.com/jinford/docchat/internal/infra/chromemdb"
	"github.com/jinford/docchat/internal/infra/filestore"
	"github.com/jinford/docchat/internal/infra/gemini"
	"github.com/jinford/docchat/internal/infra/openai"
	"github.com/jinford/docchat/internal/infra/pdf"
	"github.com/jinford/docchat/internal/infra/postgres"
	"github.com/jinford/docchat/internal/infra/tokenizer"
	"github.com/jinford/docchat/pkg/config"
	"github.com/jinford/docchat/pkg/db"
)

// ServiceContainer は設定から組み立てたサービス群を保持する
type ServiceContainer struct {
	Config       *config.Config
	Session      *session.Session
	Pipeline     *ingestion.Pipeline
	Router       *session.Router
	IndexStore   index.Store
	SummaryStore summary.Store
	Generator    llm.TextGenerator
	Embedder     llm.Embedder

	logger  *slog.Logger
	db      *db.DB
	closers []func() error
}

type containerOptions struct {
	logger     *slog.Logger
	generator  llm.TextGenerator
	embedder   llm.Embedder
	indexStore index.Store
	loader     ingestion.Loader
}

// ContainerOption は ServiceContainer 構築時のオプション
type ContainerOption func(*containerOptions)

// WithContainerLogger はロガーを差し替える
func WithContainerLogger(logger *slog.Logger) ContainerOption {
	return func(opts *containerOptions) {
		opts.logger = logger
	}
}

// WithContainerGenerator はテキスト生成クライアントを差し替える
func WithContainerGenerator(generator llm.TextGenerator) ContainerOption {
	return func(opts *containerOptions) {
		opts.generator = generator
	}
}

// WithContainerEmbedder はカスタム Embedder を注入する
func WithContainerEmbedder(embedder llm.Embedder) ContainerOption {
	return func(opts *containerOptions) {
		opts.embedder = embedder
	}
}

// WithContainerIndexStore はベクトルストアを差し替える
func WithContainerIndexStore(store index.Store) ContainerOption {
	return func(opts *containerOptions) {
		opts.indexStore = store
	}
}

// WithContainerLoader はドキュメントローダーを差し替える
func WithContainerLoader(loader ingestion.Loader) ContainerOption {
	return func(opts *containerOptions) {
		opts.loader = loader
	}
}

// NewContainer は設定からコンテナを生成する。
// 設定に不備がある場合は *apperr.ConfigError を返す。
func NewContainer(ctx context.Context, cfg *config.Config, opts ...ContainerOption) (*ServiceContainer, error) {
	options := containerOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	chunker, err := chunk.New(chunk.Config{Size: cfg.Chunking.Size, Overlap: cfg.Chunking.Overlap})
	if err != nil {
		return nil, err
	}

	c := &ServiceContainer{
		Config: cfg,
		logger: options.logger,
	}

	// 途中で失敗した場合は確保済みのリソースを解放する
	ok := false
	defer func() {
		if !ok {
			c.Close()
		}
	}()

	generator := options.generator
	if generator == nil {
		generator, err = c.newGenerator(ctx, cfg)
		if err != nil {
			return nil, err
		}
	}

	embedder := options.embedder
	if embedder == nil {
		embedder, err = c.newEmbedder(ctx, cfg)
		if err != nil {
			return nil, err
		}
	}

	indexStore := options.indexStore
	if indexStore == nil {
		indexStore, err = c.newIndexStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
	}

	loader := options.loader
	if loader == nil {
		loader = pdf.NewLoader(options.logger)
	}

	summaryStore := filestore.NewSummaryStore(cfg.SummaryPath)

	summarizerOpts := []summary.SummarizerOption{
		summary.WithSummarizerLogger(options.logger),
		summary.WithSummarizerTemperature(cfg.Generation.Temperature),
	}
	if cfg.Generation.SummaryMaxInputTokens > 0 {
		counter, err := tokenizer.NewTokenCounter()
		if err != nil {
			return nil, fmt.Errorf("TokenCounter 初期化に失敗しました: %w", err)
		}
		summarizerOpts = append(summarizerOpts, summary.WithInputTokenBudget(counter, cfg.Generation.SummaryMaxInputTokens))
	}
	summarizer := summary.NewSummarizer(generator, summarizerOpts...)

	pipeline := ingestion.NewPipeline(
		loader,
		chunker,
		embedder,
		summarizer,
		indexStore,
		summaryStore,
		ingestion.WithPipelineLogger(options.logger),
		ingestion.WithEmbeddingBatchSize(cfg.Retrieval.EmbeddingBatchSize),
	)

	classifier := intent.NewClassifier(generator,
		intent.WithClassifierLogger(options.logger),
		intent.WithClassifierTemperature(cfg.Generation.ClassifierTemperature),
	)
	answerer := ask.NewAskService(embedder, generator,
		ask.WithAskLogger(options.logger),
		ask.WithTopK(cfg.Retrieval.TopK),
		ask.WithAskTemperature(cfg.Generation.Temperature),
	)
	editor := summary.NewEditor(generator, summaryStore,
		summary.WithEditorLogger(options.logger),
		summary.WithEditorTemperature(cfg.Generation.Temperature),
	)
	router := session.NewRouter(classifier, answerer, editor, options.logger)

	c.Session = session.New(pipeline, router, indexStore, summaryStore, session.WithSessionLogger(options.logger))
	c.Pipeline = pipeline
	c.Router = router
	c.IndexStore = indexStore
	c.SummaryStore = summaryStore
	c.Generator = generator
	c.Embedder = embedder

	ok = true
	return c, nil
}

func (c *ServiceContainer) newGenerator(ctx context.Context, cfg *config.Config) (llm.TextGenerator, error) {
	switch cfg.LLMProvider {
	case config.ProviderOpenAI:
		client, err := openai.NewClientWithAPIKey(cfg.OpenAI.APIKey, cfg.OpenAI.LLMModel)
		if err != nil {
			return nil, fmt.Errorf("OpenAI LLMクライアント初期化に失敗しました: %w", err)
		}
		client.SetTimeout(cfg.Generation.RequestTimeout)
		return client, nil
	default:
		client, err := gemini.NewClient(ctx, cfg.Gemini.APIKey, cfg.Gemini.LLMModel)
		if err != nil {
			return nil, fmt.Errorf("Gemini LLMクライアント初期化に失敗しました: %w", err)
		}
		client.SetTimeout(cfg.Generation.RequestTimeout)
		c.closers = append(c.closers, client.Close)
		return client, nil
	}
}

func (c *ServiceContainer) newEmbedder(ctx context.Context, cfg *config.Config) (llm.Embedder, error) {
	switch cfg.EmbeddingProvider {
	case config.ProviderOpenAI:
		return openai.NewEmbedder(
			cfg.OpenAI.APIKey,
			openai.WithEmbeddingModel(cfg.OpenAI.EmbeddingModel),
			openai.WithEmbeddingDimension(cfg.OpenAI.EmbeddingDimension),
		), nil
	default:
		embedder, err := gemini.NewEmbedder(ctx, cfg.Gemini.APIKey, cfg.Gemini.EmbeddingModel)
		if err != nil {
			return nil, fmt.Errorf("Gemini Embedder 初期化に失敗しました: %w", err)
		}
		c.closers = append(c.closers, embedder.Close)
		return embedder, nil
	}
}

func (c *ServiceContainer) newIndexStore(ctx context.Context, cfg *config.Config) (index.Store, error) {
	switch cfg.Index.Store {
	case config.StorePGVector:
		database, err := db.New(ctx, db.ConnectionParams{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		})
		if err != nil {
			return nil, fmt.Errorf("データベース初期化に失敗しました: %w", err)
		}
		c.db = database
		return postgres.NewStore(database.Pool,
			postgres.WithTable(cfg.Index.Collection),
			postgres.WithStoreLogger(c.logger),
		), nil
	case config.StoreMemory:
		c.logger.Warn("Using in-memory vector store; the index is lost when the process exits")
		return index.NewMemoryStore(), nil
	default:
		return chromemdb.NewStore(cfg.Index.Dir,
			chromemdb.WithCollection(cfg.Index.Collection),
			chromemdb.WithStoreLogger(c.logger),
		), nil
	}
}

// Close は内部リソースを解放する。
func (c *ServiceContainer) Close() error {
	if c == nil {
		return nil
	}
	var errs []error
	for _, closeFn := range c.closers {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	if c.db != nil {
		c.db.Close()
		c.db = nil
	}
	return errors.Join(errs...)
}

// Logger はロガーを返す。
func (c *ServiceContainer) Logger() *slog.Logger {
	if c == nil || c.logger == nil {
		return slog.Default()
	}
	return c.logger
}

// IndexSize は live インデックスのチャンク数を返す。インデックスが未作成の場合は 0。
func (c *ServiceContainer) IndexSize(ctx context.Context) (int, error) {
	idx, err := c.IndexStore.Open(ctx)
	if errors.Is(err, index.ErrNotReady) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return idx.Count(ctx)
}
