package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"
)

// IngestAction は PDF 取り込みコマンドのアクション
func (r *Runner) IngestAction(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("file")
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile, r.appContextOptions()...)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	log := appCtx.Logger()
	log.Info("ドキュメント取り込みを開始", "path", path)

	summary, err := appCtx.Container.Session.Ingest(ctx, path)
	if err != nil {
		log.Error("ドキュメント取り込みに失敗しました", "error", err)
		return fmt.Errorf("取り込みに失敗: %w", err)
	}

	size, err := appCtx.Container.IndexSize(ctx)
	if err != nil {
		log.Warn("インデックス件数の取得に失敗しました", "error", err)
	}
	log.Info("ドキュメント取り込みが完了しました",
		slog.String("path", path),
		slog.Int("chunks", size),
		slog.String("summaryPath", appCtx.Config.SummaryPath),
	)

	fmt.Fprintln(output(cmd), summary)
	return nil
}
