package organizer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rockiesmagicnumber/file-reorganizer/internal"
)

// 单个文件处理失败时所处的步骤
const (
	OpChecksum = "checksum"
	OpResolve  = "resolve"
	OpTransfer = "transfer"
	OpDivert   = "divert"
)

// FileError 单个文件的处理错误，不会中止整个任务
type FileError struct {
	Path string
	Op   string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// Result 一次任务的结果
type Result struct {
	Mode    internal.JobKind
	Success bool
	Stats   internal.RunStats
	Errors  []error
}

func newResult(mode internal.JobKind, start time.Time) *Result {
	return &Result{
		Mode:  mode,
		Stats: internal.RunStats{StartTime: start},
	}
}

func (r *Result) add(errs ...error) {
	for _, err := range errs {
		if err != nil {
			r.Errors = append(r.Errors, err)
		}
	}
}

// Err 合并所有收集到的错误，没有错误时返回 nil
func (r *Result) Err() error {
	if r == nil {
		return nil
	}
	return errors.Join(r.Errors...)
}

// FileErrors 返回其中的单文件错误
func (r *Result) FileErrors() []*FileError {
	var out []*FileError
	for _, err := range r.Errors {
		var fe *FileError
		if errors.As(err, &fe) {
			out = append(out, fe)
		}
	}
	return out
}

// ExitCode 返回进程退出码
// 致命错误、任务被中断，或者有错误且没有任何文件得到处理（包括跳过）时返回 1
func ExitCode(res *Result, fatal error) int {
	if fatal != nil || res == nil {
		return 1
	}
	if res.Cancelled() {
		return 1
	}
	if len(res.Errors) > 0 && res.Handled() == 0 {
		return 1
	}
	return 0
}

// Handled 已处理或按规则跳过的文件数
func (r *Result) Handled() int {
	return r.Stats.Processed + r.Stats.SkippedDuplicates + r.Stats.SkippedProcessed
}

// Cancelled 任务是否被中断
func (r *Result) Cancelled() bool {
	for _, err := range r.Errors {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return true
		}
	}
	return false
}
