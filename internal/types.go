package internal

import (
	"fmt"
	"time"
)

// 文件转移方式
type OperationMode string

const (
	ModeCopy OperationMode = "copy"
	ModeMove OperationMode = "move"
)

// 任务类型
type JobKind string

const (
	JobOrganize   JobKind = "organize"
	JobPrune      JobKind = "prune"
	JobRepopulate JobKind = "repopulate"
)

// 工作副本策略
type WorkingCopyPolicy string

const (
	WorkingCopyAuto   WorkingCopyPolicy = "auto"
	WorkingCopyAlways WorkingCopyPolicy = "always"
	WorkingCopyNever  WorkingCopyPolicy = "never"
)

// 处理统计
type RunStats struct {
	TotalFiles        int
	Processed         int
	SkippedDuplicates int
	SkippedProcessed  int
	SkippedArchives   int
	ArchivesExpanded  int
	ArchivesRejected  int
	Diverted          int
	Removed           int
	IndexEntries      int
	Errors            int
	StartTime         time.Time
	EndTime           time.Time
}

func (s RunStats) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}

func (s RunStats) String() string {
	return fmt.Sprintf("total=%d processed=%d duplicates=%d already=%d archives=%d rejected=%d errors=%d",
		s.TotalFiles, s.Processed, s.SkippedDuplicates, s.SkippedProcessed,
		s.ArchivesExpanded, s.ArchivesRejected, s.Errors)
}
