package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/rockiesmagicnumber/file-reorganizer/internal"
	"github.com/rockiesmagicnumber/file-reorganizer/pkg/organizer"
)

// 报告中最多列出的错误条数
const maxReportErrors = 20

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true)

	successTitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("86")).
				Bold(true)

	failureTitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("196")).
				Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")).
			Width(12)

	statsBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("205")).
			Padding(0, 1)

	filePathStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("147")).
			Italic(true)

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Faint(true)
)

func printReport(w io.Writer, res *organizer.Result) {
	fmt.Fprintln(w, renderReport(res))
}

func renderReport(res *organizer.Result) string {
	var b strings.Builder

	switch {
	case res.Cancelled():
		b.WriteString(titleStyle.Render("⚠️  "+jobTitle(res.Mode)+"已中断") + "\n")
	case res.Success:
		b.WriteString(successTitleStyle.Render("✅ "+jobTitle(res.Mode)+"完成") + "\n")
	case res.Stats.Processed > 0:
		b.WriteString(titleStyle.Render("⚠️  "+jobTitle(res.Mode)+"完成，部分文件出错") + "\n")
	default:
		b.WriteString(failureTitleStyle.Render("❌ "+jobTitle(res.Mode)+"失败") + "\n")
	}

	b.WriteString(statsBoxStyle.Render(renderStats(res.Mode, res.Stats)) + "\n")

	if len(res.Errors) > 0 {
		b.WriteString(failureTitleStyle.Render(fmt.Sprintf("错误 (%d):", len(res.Errors))) + "\n")
		for i, err := range res.Errors {
			if i >= maxReportErrors {
				b.WriteString(hintStyle.Render(fmt.Sprintf("  ... 还有 %d 条，详见日志文件", len(res.Errors)-maxReportErrors)) + "\n")
				break
			}
			b.WriteString("  • " + filePathStyle.Render(err.Error()) + "\n")
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

func jobTitle(job internal.JobKind) string {
	switch job {
	case internal.JobPrune:
		return "清理索引"
	case internal.JobRepopulate:
		return "重建索引"
	default:
		return "整理"
	}
}

func renderStats(job internal.JobKind, s internal.RunStats) string {
	rows := [][2]string{
		{"文件总数", fmt.Sprint(s.TotalFiles)},
		{"已处理", fmt.Sprint(s.Processed)},
	}

	switch job {
	case internal.JobPrune:
		rows = append(rows, [2]string{"已清理", fmt.Sprint(s.Removed)})
	case internal.JobOrganize:
		rows = append(rows,
			[2]string{"重复跳过", fmt.Sprint(s.SkippedDuplicates)},
			[2]string{"已处理跳过", fmt.Sprint(s.SkippedProcessed)},
			[2]string{"压缩包", fmt.Sprintf("%d 解压 / %d 拒绝", s.ArchivesExpanded, s.ArchivesRejected)},
			[2]string{"转入错误目录", fmt.Sprint(s.Diverted)},
		)
	}

	rows = append(rows,
		[2]string{"索引记录", fmt.Sprint(s.IndexEntries)},
		[2]string{"错误", fmt.Sprint(s.Errors)},
		[2]string{"耗时", s.Duration().Round(time.Millisecond).String()},
	)

	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(row[0]), row[1]))
	}
	return strings.Join(lines, "\n")
}
