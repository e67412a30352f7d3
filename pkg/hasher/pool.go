package hasher

import (
	"context"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/spf13/afero"

	"github.com/rockiesmagicnumber/file-reorganizer/internal"
	"github.com/rockiesmagicnumber/file-reorganizer/pkg/logger"
)

type Task struct {
	Path string
}

type Result struct {
	Path     string
	Checksum string
	Error    error
}

// Pool 并发计算文件摘要
// 结果只通过 Results 通道交出，由单个消费者写入索引
type Pool struct {
	fs      afero.Fs
	workers int
	tasks   chan Task
	results chan Result
	wg      sync.WaitGroup
	pool    *ants.Pool
}

// newGoroutinePool 创建底层 goroutine 池，测试时可替换
var newGoroutinePool = func(size int) (*ants.Pool, error) {
	return ants.NewPool(size)
}

func NewPool(fs afero.Fs, workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	logger.Get().Debug().Msgf("创建摘要计算池，工作线程数: %d", workers)
	return &Pool{
		fs:      fs,
		workers: workers,
		tasks:   make(chan Task, internal.DefaultBufferSize),
		results: make(chan Result, internal.DefaultBufferSize),
	}
}

func (p *Pool) Start() error {
	var err error
	p.pool, err = newGoroutinePool(p.workers)
	if err != nil {
		logger.Get().Error().Err(err).Msg("创建 goroutine 池失败")
		return fmt.Errorf("创建 goroutine 池失败: %w", err)
	}

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		if err := p.pool.Submit(p.worker); err != nil {
			p.wg.Done()
			// 已启动的工作线程需要退出
			p.Close()
			return fmt.Errorf("提交工作线程失败: %w", err)
		}
	}
	return nil
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		sum, err := Checksum(p.fs, task.Path)
		p.results <- Result{
			Path:     task.Path,
			Checksum: sum,
			Error:    err,
		}
	}
}

func (p *Pool) AddTask(task Task) {
	p.tasks <- task
}

func (p *Pool) Results() <-chan Result {
	return p.results
}

// Close 停止接收任务，等待所有工作线程结束后关闭结果通道
func (p *Pool) Close() {
	close(p.tasks)
	p.wg.Wait()

	if p.pool != nil {
		p.pool.Release()
	}

	close(p.results)
}

// ChecksumAll 计算一组文件的摘要，返回的通道在全部完成后关闭
// ctx 取消后不再提交新任务，已提交的任务仍会交出结果
func ChecksumAll(ctx context.Context, fs afero.Fs, paths []string, workers int) (<-chan Result, error) {
	p := NewPool(fs, workers)
	if err := p.Start(); err != nil {
		return nil, err
	}

	go func() {
		defer p.Close()
		for _, path := range paths {
			select {
			case <-ctx.Done():
				logger.Get().Debug().Msg("任务已取消，停止提交摘要计算")
				return
			case p.tasks <- Task{Path: path}:
			}
		}
	}()

	return p.Results(), nil
}
