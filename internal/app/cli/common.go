package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/jinford/docchat/internal/platform/container"
	"github.com/jinford/docchat/internal/platform/logger"
	"github.com/jinford/docchat/pkg/config"
)

// AppContext はコマンド実行に必要な共通コンテキストを保持する
type AppContext struct {
	Config    *config.Config
	Container *container.ServiceContainer

	logFile *os.File
}

type appContextOptions struct {
	logOutput     io.Writer
	logPath       string
	containerOpts []container.ContainerOption
}

// AppContextOption は AppContext 構築時のオプション
type AppContextOption func(*appContextOptions)

// WithLogOutput はログの出力先を差し替える
func WithLogOutput(w io.Writer) AppContextOption {
	return func(o *appContextOptions) {
		o.logOutput = w
	}
}

// WithLogFile はログをファイルに追記する。空文字の場合は何もしない。
func WithLogFile(path string) AppContextOption {
	return func(o *appContextOptions) {
		o.logPath = path
	}
}

// WithContainerOptions はコンテナ構築オプションを追加する
func WithContainerOptions(opts ...container.ContainerOption) AppContextOption {
	return func(o *appContextOptions) {
		o.containerOpts = append(o.containerOpts, opts...)
	}
}

// NewAppContext は設定ファイルを読み込み、サービスを組み立てて AppContext を作成する
func NewAppContext(ctx context.Context, envFile string, opts ...AppContextOption) (*AppContext, error) {
	options := appContextOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	// 設定の読み込み
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, fmt.Errorf("設定の読み込みに失敗: %w", err)
	}

	ac := &AppContext{Config: cfg}

	out := options.logOutput
	if options.logPath != "" {
		f, err := os.OpenFile(options.logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("ログファイルを開けません: %w", err)
		}
		ac.logFile = f
		out = f
	}

	// ロガーの初期化
	appLogger := logger.New(logger.Config{
		Level:  cfg.Log.SlogLevel(),
		Format: cfg.Log.Format,
		Output: out,
	})

	// コンテナの初期化
	containerOpts := append([]container.ContainerOption{container.WithContainerLogger(appLogger)}, options.containerOpts...)
	cont, err := container.NewContainer(ctx, cfg, containerOpts...)
	if err != nil {
		ac.Close()
		return nil, fmt.Errorf("コンテナの初期化に失敗: %w", err)
	}
	ac.Container = cont

	return ac, nil
}

// Close はAppContextが保持するリソースをクリーンアップする
func (ac *AppContext) Close() {
	if ac.Container != nil {
		if err := ac.Container.Close(); err != nil {
			ac.Logger().Warn("failed to close container", "error", err)
		}
	}
	if ac.logFile != nil {
		ac.logFile.Close()
	}
}

// Logger はAppContextのロガーを返す
func (ac *AppContext) Logger() *slog.Logger {
	if ac.Container != nil {
		return ac.Container.Logger()
	}
	return slog.Default()
}

// output はコマンドの出力先を返す
func output(cmd *cli.Command) io.Writer {
	if root := cmd.Root(); root != nil && root.Writer != nil {
		return root.Writer
	}
	return os.Stdout
}

// envFlag は全コマンド共通の環境変数ファイルフラグ
func envFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "env",
		Usage: "環境変数ファイルパス",
		Value: ".env",
	}
}
