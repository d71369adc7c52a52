package cli

import (
	"context"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"

	"github.com/jinford/docchat/pkg/config"
)

// StatusAction は設定とインデックスの状態を表示するコマンドのアクション
func (r *Runner) StatusAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd.String("env"), r.appContextOptions()...)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	cfg := appCtx.Config
	cont := appCtx.Container

	indexSize := "-"
	if n, err := cont.IndexSize(ctx); err != nil {
		appCtx.Logger().Warn("インデックス件数の取得に失敗しました", "error", err)
	} else {
		indexSize = strconv.Itoa(n)
	}

	_, hasSummary, err := cont.SummaryStore.Load(ctx)
	if err != nil {
		appCtx.Logger().Warn("要約の読み込みに失敗しました", "error", err)
	}

	indexLocation := cfg.Index.Dir
	if cfg.Index.Store == config.StorePGVector {
		indexLocation = cfg.Database.Host + "/" + cfg.Database.DBName
	}

	table := tablewriter.NewWriter(output(cmd))
	table.Header("Item", "Value")
	table.Append("LLM provider", cfg.LLMProvider)
	table.Append("LLM model", generatorModel(cfg))
	table.Append("Embedding provider", cfg.EmbeddingProvider)
	table.Append("Embedding model", cont.Embedder.ModelName())
	table.Append("Vector store", cfg.Index.Store)
	table.Append("Index location", indexLocation)
	table.Append("Collection", cfg.Index.Collection)
	table.Append("Indexed chunks", indexSize)
	table.Append("Summary path", cfg.SummaryPath)
	table.Append("Summary saved", strconv.FormatBool(hasSummary))
	table.Render()

	return nil
}

func generatorModel(cfg *config.Config) string {
	if cfg.LLMProvider == config.ProviderOpenAI {
		return cfg.OpenAI.LLMModel
	}
	return cfg.Gemini.LLMModel
}
