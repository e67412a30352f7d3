package tui

import (
	"context"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rockiesmagicnumber/file-reorganizer/pkg/logger"
	"github.com/rockiesmagicnumber/file-reorganizer/pkg/organizer"
)

// Job 在进度界面下执行的任务，progress 每处理一个文件调用一次
type Job func(ctx context.Context, progress organizer.ProgressFunc) (*organizer.Result, error)

// Run 在终端显示进度并执行 job，Ctrl+C 会取消 ctx 并等待任务收尾
func Run(ctx context.Context, out io.Writer, job Job) (*organizer.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := newModel(cancel)
	p := tea.NewProgram(m, tea.WithOutput(out))

	done := make(chan jobDoneMsg, 1)
	go func() {
		res, err := job(ctx, func(pr organizer.Progress) {
			p.Send(progressMsg(pr))
		})
		msg := jobDoneMsg{res: res, err: err}
		done <- msg
		p.Send(msg)
	}()

	if _, err := p.Run(); err != nil {
		logger.Get().Error().Err(err).Msg("进度界面运行错误")
	}
	// 界面提前退出时停止任务，并等待索引写回
	cancel()

	result := <-done
	return result.res, result.err
}
