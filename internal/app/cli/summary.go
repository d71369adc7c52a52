package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

// SummaryShowAction は保存済みの要約を表示するコマンドのアクション
func (r *Runner) SummaryShowAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd.String("env"), r.appContextOptions()...)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	text, ok, err := appCtx.Container.SummaryStore.Load(ctx)
	if err != nil {
		return fmt.Errorf("要約の読み込みに失敗: %w", err)
	}
	if !ok {
		return fmt.Errorf("要約がありません: 先に ingest を実行してください (%s)", appCtx.Container.SummaryStore.Path())
	}

	fmt.Fprintln(output(cmd), text)
	return nil
}

// SummarySetAction は要約を手動で置き換えるコマンドのアクション
func (r *Runner) SummarySetAction(ctx context.Context, cmd *cli.Command) error {
	text := cmd.String("text")
	fromFile := cmd.String("from-file")

	switch {
	case text != "" && fromFile != "":
		return fmt.Errorf("--text と --from-file は同時に指定できません")
	case fromFile != "":
		data, err := os.ReadFile(fromFile)
		if err != nil {
			return fmt.Errorf("ファイルの読み込みに失敗: %w", err)
		}
		text = string(data)
	case text == "":
		return fmt.Errorf("--text または --from-file を指定してください")
	}

	appCtx, err := NewAppContext(ctx, cmd.String("env"), r.appContextOptions()...)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	if err := appCtx.Container.Session.SetSummary(ctx, text); err != nil {
		return err
	}

	fmt.Fprintf(output(cmd), "要約を更新しました: %s\n", appCtx.Container.SummaryStore.Path())
	return nil
}
