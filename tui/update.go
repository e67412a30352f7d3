package tui

import (
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rockiesmagicnumber/file-reorganizer/pkg/logger"
)

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		// 中断任务，等待索引保存和清理完成后再退出
		if msg.String() == "ctrl+c" && !m.cancelling && m.state != StateComplete {
			m.cancelling = true
			logger.Get().Warn().Msg("收到中断请求，正在停止任务")
			if m.cancel != nil {
				m.cancel()
			}
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.progressBar.Width = msg.Width - 10
		return m, nil

	case progressMsg:
		m.state = StateProcessing
		m.done = msg.Done
		m.total = msg.Total
		m.currentFile = msg.Path
		m.stats = msg.Stats
		return m, nil

	case jobDoneMsg:
		m.state = StateComplete
		m.result = msg
		return m, tea.Quit

	case spinner.TickMsg:
		if m.state == StateComplete {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}
