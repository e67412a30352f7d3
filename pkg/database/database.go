package database

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rockiesmagicnumber/file-reorganizer/internal"
	applog "github.com/rockiesmagicnumber/file-reorganizer/pkg/logger"
)

// 单次运行中最多保存的错误条数
const maxStoredErrors = 1000

// RunRecord 一次任务的运行记录
type RunRecord struct {
	ID        int64  `gorm:"primaryKey"`
	RunID     string `gorm:"uniqueIndex;not null"`
	Job       string `gorm:"index;not null"`
	Source    string
	Output    string
	StartedAt time.Time `gorm:"index;not null"`
	EndedAt   time.Time

	TotalFiles        int
	Processed         int
	SkippedDuplicates int
	SkippedProcessed  int
	ArchivesExpanded  int
	ArchivesRejected  int
	Diverted          int
	Removed           int
	IndexEntries      int
	ErrorCount        int
	Success           bool

	Errors []RunError `gorm:"constraint:OnDelete:CASCADE"`
}

func (RunRecord) TableName() string {
	return "runs"
}

// NewRunRecord 根据任务统计生成运行记录
func NewRunRecord(job internal.JobKind, source, output string, stats internal.RunStats, success bool) *RunRecord {
	return &RunRecord{
		RunID:             uuid.NewString(),
		Job:               string(job),
		Source:            source,
		Output:            output,
		StartedAt:         stats.StartTime,
		EndedAt:           stats.EndTime,
		TotalFiles:        stats.TotalFiles,
		Processed:         stats.Processed,
		SkippedDuplicates: stats.SkippedDuplicates,
		SkippedProcessed:  stats.SkippedProcessed,
		ArchivesExpanded:  stats.ArchivesExpanded,
		ArchivesRejected:  stats.ArchivesRejected,
		Diverted:          stats.Diverted,
		Removed:           stats.Removed,
		IndexEntries:      stats.IndexEntries,
		ErrorCount:        stats.Errors,
		Success:           success,
	}
}

func (r *RunRecord) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}

type RunError struct {
	ID          int64  `gorm:"primaryKey"`
	RunRecordID int64  `gorm:"index;not null"`
	Message     string `gorm:"not null"`
}

func (RunError) TableName() string {
	return "run_errors"
}

type Database struct {
	db *gorm.DB
}

func NewDatabase(dbPath string) (*Database, error) {
	expandedPath, err := internal.ExpandPath(dbPath)
	if err != nil {
		applog.Get().Error().Err(err).Msg("扩展数据库路径失败")
		return nil, err
	}

	applog.Get().Debug().Msgf("初始化运行记录数据库，路径: %s", expandedPath)

	if err := os.MkdirAll(filepath.Dir(expandedPath), 0755); err != nil {
		applog.Get().Error().Err(err).Msgf("创建数据库目录失败: %s", filepath.Dir(expandedPath))
		return nil, err
	}

	dsn := expandedPath + "?_journal_mode=WAL"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		applog.Get().Error().Err(err).Msg("打开数据库连接失败")
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		applog.Get().Error().Err(err).Msg("获取数据库连接失败")
		return nil, err
	}

	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		applog.Get().Error().Err(err).Msg("创建数据库表失败")
		sqlDB.Close()
		return nil, err
	}

	return &Database{db: db}, nil
}

func createSchema(db *gorm.DB) error {
	return db.AutoMigrate(&RunRecord{}, &RunError{})
}

// RecordRun 保存运行记录和错误信息，errs 超过上限时只保存前面的部分
func (d *Database) RecordRun(record *RunRecord, errs []error) error {
	for i, err := range errs {
		if i >= maxStoredErrors {
			applog.Get().Warn().Int("dropped", len(errs)-maxStoredErrors).Msg("错误过多，只保存部分")
			break
		}
		record.Errors = append(record.Errors, RunError{Message: err.Error()})
	}

	if err := d.db.Create(record).Error; err != nil {
		applog.Get().Error().Err(err).Str("run_id", record.RunID).Msg("保存运行记录失败")
		return fmt.Errorf("保存运行记录失败: %w", err)
	}

	applog.Get().Debug().Str("run_id", record.RunID).Int("errors", len(record.Errors)).Msg("运行记录已保存")
	return nil
}

// RecentRuns 按开始时间倒序返回最近的运行记录，包含错误信息
func (d *Database) RecentRuns(limit int) ([]RunRecord, error) {
	var runs []RunRecord
	q := d.db.Preload("Errors").Order("started_at DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("查询运行记录失败: %w", err)
	}
	return runs, nil
}

// LastRun 返回指定任务类型最近的一次运行，没有记录时返回 nil
func (d *Database) LastRun(job string) (*RunRecord, error) {
	var runs []RunRecord
	if err := d.db.Where("job = ?", job).Order("started_at DESC").Limit(1).Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("查询运行记录失败: %w", err)
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		applog.Get().Error().Err(err).Msg("获取数据库连接失败")
		return err
	}
	return sqlDB.Close()
}
