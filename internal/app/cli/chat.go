package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/urfave/cli/v3"

	"github.com/jinford/docchat/internal/app/tui"
)

// ChatAction は対話型チャット画面を起動するコマンドのアクション
func (r *Runner) ChatAction(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("file")
	envFile := cmd.String("env")

	// 画面描画を崩さないよう、ログはファイル指定時のみ出力する
	appCtx, err := NewAppContext(ctx, envFile, r.appContextOptions(
		WithLogOutput(io.Discard),
		WithLogFile(cmd.String("log-file")),
	)...)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	sess := appCtx.Container.Session
	if path != "" {
		fmt.Fprintf(output(cmd), "Processing %s...\n", path)
		if _, err := sess.Ingest(ctx, path); err != nil {
			return fmt.Errorf("取り込みに失敗: %w", err)
		}
	} else if err := sess.Resume(ctx); err != nil {
		return fmt.Errorf("保存済みの状態の読み込みに失敗: %w", err)
	}

	return tui.Run(ctx, sess)
}
