package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func (m *model) View() string {
	switch m.state {
	case StatePreparing:
		return m.preparingView()
	case StateProcessing:
		return m.processingView()
	case StateComplete:
		return m.completeView()
	default:
		return "未知状态"
	}
}

func (m *model) preparingView() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("🔍 正在解压压缩包并统计文件...") + "\n")
	b.WriteString(m.spinner.View() + " 请稍候\n")
	b.WriteString(m.hint())

	return lipgloss.NewStyle().Padding(1).Render(b.String())
}

func (m *model) processingView() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("🔄 正在整理文件...") + "\n")
	b.WriteString(m.progressBar.ViewAs(m.percent()) + "\n")
	b.WriteString(fmt.Sprintf("%s %d / %d\n\n", m.spinner.View(), m.done, m.total))

	b.WriteString(statsBoxStyle.Render(m.renderStats()) + "\n\n")

	b.WriteString(labelStyle.Render("当前文件：") + "\n")
	b.WriteString(filePathStyle.Render(m.currentFile) + "\n")
	b.WriteString(m.hint())

	return lipgloss.NewStyle().Padding(1).Render(b.String())
}

func (m *model) completeView() string {
	if m.cancelling {
		return warnTitleStyle.Render("⚠️  任务已中断") + "\n"
	}
	return successTitleStyle.Render("✅ 文件处理结束") + "\n"
}

func (m *model) hint() string {
	if m.cancelling {
		return "\n" + warnTitleStyle.Render("正在停止，保存索引中...")
	}
	return "\n" + hintStyle.Render("按 Ctrl+C 中断（已处理的文件会保存到索引）")
}

func (m *model) renderStats() string {
	return strings.Join([]string{
		fmt.Sprintf("已处理:     %d", m.stats.Processed),
		fmt.Sprintf("重复跳过:   %d", m.stats.SkippedDuplicates),
		fmt.Sprintf("已处理跳过: %d", m.stats.SkippedProcessed),
		fmt.Sprintf("压缩包:     %d", m.stats.ArchivesExpanded),
		fmt.Sprintf("错误目录:   %d", m.stats.Diverted),
	}, "\n")
}
