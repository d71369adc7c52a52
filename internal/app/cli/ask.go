package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/jinford/docchat/internal/core/intent"
)

// AskAction は1ターン分の質問応答 / 要約修正コマンドのアクション
func (r *Runner) AskAction(ctx context.Context, cmd *cli.Command) error {
	showSources := cmd.Bool("show-sources")
	envFile := cmd.String("env")

	// 質問文の取得
	query := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
	if query == "" {
		return fmt.Errorf("質問文を指定してください")
	}

	appCtx, err := NewAppContext(ctx, envFile, r.appContextOptions()...)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	sess := appCtx.Container.Session
	if err := sess.Resume(ctx); err != nil {
		return fmt.Errorf("保存済みの状態の読み込みに失敗: %w", err)
	}

	turn, err := sess.Submit(ctx, query)
	if err != nil {
		appCtx.Logger().Error("ターンの処理に失敗しました", "error", err)
		return err
	}

	out := output(cmd)
	fmt.Fprintln(out, turn.Response)

	if turn.Intent == intent.Modification {
		fmt.Fprintln(out, "\n--- 更新後の要約 ---")
		fmt.Fprintln(out, sess.Summary())
	}

	// --show-sourcesフラグが指定されている場合、参照チャンクも出力
	if showSources && len(turn.Sources) > 0 {
		fmt.Fprintln(out, "\n--- 参照チャンク ---")
		for i, source := range turn.Sources {
			fmt.Fprintf(out, "[%d] chunk %s スコア: %.4f\n%s\n",
				i+1,
				source.ChunkIndex,
				source.Score,
				source.Content,
			)
		}
	}

	return nil
}
