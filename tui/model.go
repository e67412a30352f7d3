package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rockiesmagicnumber/file-reorganizer/internal"
)

type State int

const (
	// 解压和统计阶段，还不知道文件总数
	StatePreparing State = iota
	StateProcessing
	StateComplete
)

type model struct {
	state       State
	cancel      context.CancelFunc
	cancelling  bool
	done        int
	total       int
	currentFile string
	stats       internal.RunStats
	result      jobDoneMsg
	progressBar progress.Model
	spinner     spinner.Model
}

func newModel(cancel context.CancelFunc) *model {
	progressBar := progress.New(progress.WithDefaultGradient())
	progressBar.PercentageStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("205")).
		Width(4)

	s := spinner.New()
	s.Spinner = spinner.Spinner{
		Frames: []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		FPS:    time.Second / 10,
	}
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return &model{
		state:       StatePreparing,
		cancel:      cancel,
		progressBar: progressBar,
		spinner:     s,
	}
}

func (m *model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *model) percent() float64 {
	if m.total <= 0 {
		return 0
	}
	p := float64(m.done) / float64(m.total)
	if p > 1 {
		p = 1
	}
	return p
}
