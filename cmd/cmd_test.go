package cmd

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rockiesmagicnumber/file-reorganizer/internal"
	"github.com/rockiesmagicnumber/file-reorganizer/pkg/database"
	"github.com/rockiesmagicnumber/file-reorganizer/pkg/organizer"
)

func sampleResult(success bool, errs ...error) *organizer.Result {
	start := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)
	return &organizer.Result{
		Mode:    internal.JobOrganize,
		Success: success,
		Stats: internal.RunStats{
			TotalFiles:        12,
			Processed:         9,
			SkippedDuplicates: 2,
			ArchivesExpanded:  1,
			Errors:            len(errs),
			IndexEntries:      9,
			StartTime:         start,
			EndTime:           start.Add(1500 * time.Millisecond),
		},
		Errors: errs,
	}
}

func TestRenderReport_Success(t *testing.T) {
	out := renderReport(sampleResult(true))

	for _, want := range []string{"整理完成", "文件总数", "12", "重复跳过", "1 解压 / 0 拒绝", "1.5s"} {
		if !strings.Contains(out, want) {
			t.Errorf("Report missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "错误 (") {
		t.Errorf("Unexpected error section:\n%s", out)
	}
}

func TestRenderReport_Errors(t *testing.T) {
	errs := make([]error, maxReportErrors+3)
	for i := range errs {
		errs[i] = errors.New("转移失败")
	}
	out := renderReport(sampleResult(false, errs...))

	if !strings.Contains(out, "部分文件出错") {
		t.Errorf("Expected partial failure title:\n%s", out)
	}
	if strings.Count(out, "转移失败") != maxReportErrors {
		t.Errorf("Expected %d listed errors", maxReportErrors)
	}
	if !strings.Contains(out, "还有 3 条") {
		t.Errorf("Expected truncation hint:\n%s", out)
	}
}

func TestRenderReport_Prune(t *testing.T) {
	res := &organizer.Result{Mode: internal.JobPrune, Success: true, Stats: internal.RunStats{TotalFiles: 4, Processed: 4, Removed: 1}}
	out := renderReport(res)

	if !strings.Contains(out, "清理索引完成") || !strings.Contains(out, "已清理") {
		t.Errorf("Unexpected prune report:\n%s", out)
	}
	if strings.Contains(out, "压缩包") {
		t.Errorf("Prune report should not list archive stats:\n%s", out)
	}
}

func TestPrintHistory(t *testing.T) {
	var buf bytes.Buffer
	printHistory(&buf, nil, false)
	if !strings.Contains(buf.String(), "暂无运行记录") {
		t.Errorf("Unexpected empty output: %s", buf.String())
	}

	start := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)
	run := *database.NewRunRecord(internal.JobOrganize, "/photos", "/out/SokkaCorp", sampleResult(false).Stats, false)
	run.StartedAt = start
	run.Errors = []database.RunError{{Message: "Photos /photos/a.jpg: 权限不足"}}

	buf.Reset()
	printHistory(&buf, []database.RunRecord{run}, true)
	out := buf.String()
	for _, want := range []string{"organize", "失败", "/photos", "已处理 9", "权限不足"} {
		if !strings.Contains(out, want) {
			t.Errorf("History missing %q:\n%s", want, out)
		}
	}
}

func TestRun_ConflictingJobs(t *testing.T) {
	var stderr bytes.Buffer
	rootCmd.SetErr(&stderr)
	defer rootCmd.SetErr(nil)

	if code := run(context.Background(), []string{"--prune", "--repopulate"}); code != 1 {
		t.Errorf("run() = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "prune") {
		t.Errorf("Expected error about prune/repopulate, got %q", stderr.String())
	}
}

func TestExitError(t *testing.T) {
	inner := errors.New("源目录无法访问")
	err := &exitError{code: 1, err: inner}

	if !errors.Is(err, inner) || err.Error() != inner.Error() {
		t.Errorf("Unexpected exit error: %v", err)
	}
	if (&exitError{code: 1}).Error() == "" {
		t.Error("Expected message for bare exit code")
	}
}

func TestRenderReport_Cancelled(t *testing.T) {
	out := renderReport(sampleResult(false, context.Canceled))

	if !strings.Contains(out, "整理已中断") {
		t.Errorf("Expected cancelled title:\n%s", out)
	}
}

func TestUseProgressView(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	defer rootCmd.SetOut(nil)

	// 输出不是终端时不显示进度界面
	if useProgressView(rootCmd, internal.JobOrganize, false) {
		t.Error("Expected no progress view for non-terminal output")
	}
	if useProgressView(rootCmd, internal.JobPrune, false) {
		t.Error("Expected no progress view for prune")
	}
}
