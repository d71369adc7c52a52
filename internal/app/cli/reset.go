package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/urfave/cli/v3"
)

// ResetAction はベクトルインデックスと要約ファイルを削除するコマンドのアクション
func (r *Runner) ResetAction(ctx context.Context, cmd *cli.Command) error {
	if !cmd.Bool("yes") {
		prompt := promptui.Prompt{
			Label:     "ベクトルインデックスと要約ファイルを削除しますか",
			IsConfirm: true,
		}
		if _, err := prompt.Run(); err != nil {
			if errors.Is(err, promptui.ErrAbort) {
				fmt.Fprintln(output(cmd), "中止しました")
				return nil
			}
			return err
		}
	}

	appCtx, err := NewAppContext(ctx, cmd.String("env"), r.appContextOptions()...)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	if err := appCtx.Container.Session.Reset(ctx); err != nil {
		return fmt.Errorf("削除に失敗: %w", err)
	}

	fmt.Fprintln(output(cmd), "ベクトルインデックスと要約ファイルを削除しました")
	return nil
}
