package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/rockiesmagicnumber/file-reorganizer/config"
	"github.com/rockiesmagicnumber/file-reorganizer/internal"
	"github.com/rockiesmagicnumber/file-reorganizer/internal/app"
	"github.com/rockiesmagicnumber/file-reorganizer/pkg/organizer"
	"github.com/rockiesmagicnumber/file-reorganizer/tui"
)

// exitError 携带进程退出码
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("退出码 %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

var rootCmd = &cobra.Command{
	Use:   "file-reorganizer",
	Short: "按类型和日期整理照片、视频和音乐",
	Long: `file-reorganizer 扫描源目录（包括其中的 zip 压缩包），
将照片、视频和音乐按拍摄日期或艺术家/专辑整理到输出目录的 SokkaCorp 文件夹中。

主要功能:
- 计算每个文件的 SHA-256 校验和并保存到索引文件
- 重复运行时跳过已经处理过的文件
- 可选跳过内容重复的文件 (--exclude-duplicates)
- 处理失败的文件转移到 Errors 目录，不会丢失
- 维护索引: --prune 清理失效记录，--repopulate 从已整理目录重建索引`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runRoot,
}

func runRoot(cmd *cobra.Command, args []string) error {
	prune, _ := cmd.Flags().GetBool("prune")
	repopulate, _ := cmd.Flags().GetBool("repopulate")
	if legacy, _ := cmd.Flags().GetBool("refresh-json"); legacy {
		prune = true
	}
	if legacy, _ := cmd.Flags().GetBool("repopulate-json"); legacy {
		repopulate = true
	}
	if prune && repopulate {
		return &exitError{code: 1, err: errors.New("--prune 和 --repopulate 不能同时使用")}
	}

	job := internal.JobOrganize
	switch {
	case prune:
		job = internal.JobPrune
	case repopulate:
		job = internal.JobRepopulate
	}

	configFile, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")

	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return &exitError{code: 1, err: err}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := app.RunOptions{Job: job, Verbose: verbose}

	var res *organizer.Result
	if useProgressView(cmd, job, verbose) {
		res, err = tui.Run(ctx, cmd.OutOrStdout(), func(ctx context.Context, progress organizer.ProgressFunc) (*organizer.Result, error) {
			opts.Quiet = true
			opts.Progress = progress
			return app.Run(ctx, cfg, opts)
		})
	} else {
		res, err = app.Run(ctx, cfg, opts)
	}
	if res != nil {
		printReport(cmd.OutOrStdout(), res)
	}
	if code := organizer.ExitCode(res, err); code != 0 {
		return &exitError{code: code, err: err}
	}
	return nil
}

// useProgressView 整理任务在终端中运行时显示进度界面
func useProgressView(cmd *cobra.Command, job internal.JobKind, verbose bool) bool {
	if job != internal.JobOrganize || verbose {
		return false
	}
	if off, _ := cmd.Flags().GetBool("no-progress"); off {
		return false
	}
	f, ok := cmd.OutOrStdout().(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

// Execute 执行根命令并按结果设置退出码
func Execute() {
	os.Exit(run(context.Background(), os.Args[1:]))
}

func run(ctx context.Context, args []string) int {
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintln(rootCmd.ErrOrStderr(), "错误:", ee.err)
		}
		return ee.code
	}
	fmt.Fprintln(rootCmd.ErrOrStderr(), "错误:", err)
	return 1
}

func init() {
	flags := rootCmd.Flags()
	flags.StringP("source", "s", "", "源目录路径（整理时必需）")
	flags.StringP("output", "o", "", "输出目录路径（默认: ~/Documents）")
	flags.Bool("prune", false, "清理索引中已不存在的文件记录")
	flags.Bool("repopulate", false, "根据已整理目录重建索引")
	flags.Bool("exclude-duplicates", false, "跳过内容已处理过的文件")
	flags.String("mode", "copy", "文件转移方式: copy 或 move")
	flags.String("working-copy", "auto", "工作副本策略: auto, always 或 never")
	flags.Int("workers", internal.DefaultWorkers, "重建索引时的并发数")
	flags.Int("max-depth", internal.DefaultMaxZipDepth, "压缩包最大嵌套层数")
	flags.String("root-name", internal.DefaultRootName, "输出目录下的根文件夹名称")
	flags.String("index-file", "", "索引文件路径（默认在根文件夹下）")
	flags.String("log-level", "info", "日志级别")
	flags.String("log-file", "", "日志文件路径（默认在 Logs 目录下）")
	flags.Bool("no-history", false, "不保存运行记录")
	flags.BoolP("verbose", "v", false, "显示详细日志")
	flags.Bool("no-progress", false, "不显示进度界面")

	// 兼容旧参数名
	flags.Bool("refresh-json", false, "同 --prune")
	flags.Bool("repopulate-json", false, "同 --repopulate")
	_ = flags.MarkHidden("refresh-json")
	_ = flags.MarkHidden("repopulate-json")

	rootCmd.MarkFlagsMutuallyExclusive("prune", "repopulate")

	rootCmd.PersistentFlags().String("config", "", "配置文件路径（默认: $HOME/.file-reorganizer/config.yaml）")
}
