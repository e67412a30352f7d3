package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/rockiesmagicnumber/file-reorganizer/config"
	"github.com/rockiesmagicnumber/file-reorganizer/internal/app"
	"github.com/rockiesmagicnumber/file-reorganizer/pkg/database"
	"github.com/rockiesmagicnumber/file-reorganizer/pkg/layout"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "查看最近的运行记录",
	Long: `列出保存在运行记录数据库中的最近几次任务，包括统计信息和错误数量。
使用 --errors 同时显示每次运行记录下来的错误。`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	limit, _ := cmd.Flags().GetInt("limit")
	showErrors, _ := cmd.Flags().GetBool("errors")

	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}

	l := layout.New(afero.NewOsFs(), cfg.Paths.Source, cfg.Paths.Output, cfg.Paths.RootName)
	db, err := database.NewDatabase(app.HistoryPath(cfg, l))
	if err != nil {
		return fmt.Errorf("打开运行记录数据库失败: %w", err)
	}
	defer db.Close()

	runs, err := db.RecentRuns(limit)
	if err != nil {
		return err
	}

	printHistory(cmd.OutOrStdout(), runs, showErrors)
	return nil
}

func printHistory(w io.Writer, runs []database.RunRecord, showErrors bool) {
	if len(runs) == 0 {
		fmt.Fprintln(w, hintStyle.Render("暂无运行记录"))
		return
	}

	for _, run := range runs {
		fmt.Fprintln(w, renderRun(run, showErrors))
	}
}

func renderRun(run database.RunRecord, showErrors bool) string {
	var b strings.Builder

	status := successTitleStyle.Render("成功")
	if !run.Success {
		status = failureTitleStyle.Render("失败")
	}
	header := lipgloss.JoinHorizontal(lipgloss.Top,
		titleStyle.Render(run.StartedAt.Local().Format("2006-01-02 15:04:05")),
		"  ", run.Job, "  ", status,
	)
	b.WriteString(header + "\n")

	b.WriteString(fmt.Sprintf("  源目录: %s\n", filePathStyle.Render(run.Source)))
	b.WriteString(fmt.Sprintf("  输出:   %s\n", filePathStyle.Render(run.Output)))
	b.WriteString(fmt.Sprintf("  总数 %d  已处理 %d  重复 %d  已跳过 %d  清理 %d  错误 %d  耗时 %v\n",
		run.TotalFiles, run.Processed, run.SkippedDuplicates, run.SkippedProcessed,
		run.Removed, run.ErrorCount, run.Duration().Round(time.Millisecond)))

	if showErrors {
		for _, e := range run.Errors {
			b.WriteString("    • " + e.Message + "\n")
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 10, "显示的记录条数，0 表示全部")
	historyCmd.Flags().Bool("errors", false, "显示每次运行的错误信息")
	historyCmd.Flags().StringP("output", "o", "", "输出目录路径（用于定位默认数据库）")

	rootCmd.AddCommand(historyCmd)
}
