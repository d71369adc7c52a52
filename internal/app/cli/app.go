package cli

import (
	"github.com/urfave/cli/v3"
)

// Runner はコマンドアクションを保持する。
// opts はすべてのコマンドの AppContext 構築時に適用される。
type Runner struct {
	opts []AppContextOption
}

// NewRunner は新しい Runner を作成する
func NewRunner(opts ...AppContextOption) *Runner {
	return &Runner{opts: opts}
}

func (r *Runner) appContextOptions(extra ...AppContextOption) []AppContextOption {
	out := make([]AppContextOption, 0, len(r.opts)+len(extra))
	out = append(out, r.opts...)
	return append(out, extra...)
}

// NewCommand は docchat のコマンドツリーを構築する
func NewCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "docchat",
		Usage: "PDF ドキュメントの要約と対話型 Q&A",
		Commands: []*cli.Command{
			{
				Name:  "ingest",
				Usage: "PDF を取り込み、要約とベクトルインデックスを作成",
				Flags: []cli.Flag{
					envFlag(),
					&cli.StringFlag{
						Name:     "file",
						Usage:    "PDF ファイルパス",
						Required: true,
					},
				},
				Action: r.IngestAction,
			},
			{
				Name:      "ask",
				Usage:     "1ターン分の質問または要約修正依頼を処理",
				ArgsUsage: "<query>",
				Flags: []cli.Flag{
					envFlag(),
					&cli.BoolFlag{
						Name:  "show-sources",
						Usage: "参照したチャンクを表示",
					},
				},
				Action: r.AskAction,
			},
			{
				Name:  "chat",
				Usage: "対話型チャット画面を起動",
				Flags: []cli.Flag{
					envFlag(),
					&cli.StringFlag{
						Name:  "file",
						Usage: "開始前に取り込む PDF ファイルパス（省略時は保存済みの状態を再開）",
					},
					&cli.StringFlag{
						Name:  "log-file",
						Usage: "ログの出力先ファイル（省略時はログを出力しない）",
					},
				},
				Action: r.ChatAction,
			},
			{
				Name:  "summary",
				Usage: "要約の表示・手動編集",
				Commands: []*cli.Command{
					{
						Name:   "show",
						Usage:  "保存済みの要約を表示",
						Flags:  []cli.Flag{envFlag()},
						Action: r.SummaryShowAction,
					},
					{
						Name:  "set",
						Usage: "要約を手動で置き換える",
						Flags: []cli.Flag{
							envFlag(),
							&cli.StringFlag{
								Name:  "text",
								Usage: "新しい要約テキスト",
							},
							&cli.StringFlag{
								Name:  "from-file",
								Usage: "新しい要約を読み込むファイルパス",
							},
						},
						Action: r.SummarySetAction,
					},
				},
			},
			{
				Name:   "status",
				Usage:  "設定とインデックスの状態を表示",
				Flags:  []cli.Flag{envFlag()},
				Action: r.StatusAction,
			},
			{
				Name:  "reset",
				Usage: "ベクトルインデックスと要約ファイルを削除",
				Flags: []cli.Flag{
					envFlag(),
					&cli.BoolFlag{
						Name:  "yes",
						Usage: "確認せずに削除",
					},
				},
				Action: r.ResetAction,
			},
		},
	}
}
