package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/rockiesmagicnumber/file-reorganizer/config"
	"github.com/rockiesmagicnumber/file-reorganizer/internal"
	"github.com/rockiesmagicnumber/file-reorganizer/pkg/database"
	"github.com/rockiesmagicnumber/file-reorganizer/pkg/layout"
	"github.com/rockiesmagicnumber/file-reorganizer/pkg/logger"
	"github.com/rockiesmagicnumber/file-reorganizer/pkg/organizer"
)

// ErrNoSource 没有指定源目录
var ErrNoSource = errors.New("必须指定源目录 (--source)")

type RunOptions struct {
	Job     internal.JobKind
	Verbose bool

	// Quiet 为 true 时日志只写文件，终端交给进度界面
	Quiet    bool
	Progress organizer.ProgressFunc

	// 测试时可替换，默认使用操作系统文件系统
	Fs afero.Fs
}

// Run 根据配置执行一次任务并保存运行记录
func Run(ctx context.Context, cfg *config.Config, opts RunOptions) (*organizer.Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置无效: %w", err)
	}
	if opts.Job == "" {
		opts.Job = internal.JobOrganize
	}
	if opts.Job == internal.JobOrganize && cfg.Paths.Source == "" {
		return nil, ErrNoSource
	}

	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}

	source, output := cfg.Paths.Source, cfg.Paths.Output
	if source != "" {
		if abs, err := filepath.Abs(source); err == nil {
			source = abs
		}
	}
	if abs, err := filepath.Abs(output); err == nil {
		output = abs
	}

	l := layout.New(fs, source, output, cfg.Paths.RootName)
	if err := initLogging(cfg, l, opts); err != nil {
		return nil, err
	}
	defer logger.Close()

	logger.Get().Info().Msg("加载配置完成")
	logger.Get().Info().Msgf("任务类型: %s", opts.Job)
	logger.Get().Info().Msgf("源目录: %s", source)
	logger.Get().Info().Msgf("输出目录: %s", l.Root())
	logger.Get().Info().Msgf("操作模式: %s", cfg.Organize.Mode)
	logger.Get().Info().Msgf("跳过重复内容: %v", cfg.Organize.ExcludeDuplicates)

	orgOpts := OrganizerOptions(cfg)
	orgOpts.Progress = opts.Progress
	org := organizer.New(l, orgOpts)
	res, err := org.Run(ctx, opts.Job)

	if cfg.History.Enabled && res != nil {
		recordHistory(cfg, l, opts.Job, res)
	}
	return res, err
}

// OrganizerOptions 将配置转换为整理参数
func OrganizerOptions(cfg *config.Config) organizer.Options {
	return organizer.Options{
		Mode:                 internal.OperationMode(cfg.Organize.Mode),
		ExcludeDuplicates:    cfg.Organize.ExcludeDuplicates,
		WorkingCopy:          internal.WorkingCopyPolicy(cfg.Organize.WorkingCopy),
		SniffContent:         cfg.Organize.SniffContent,
		MaxZipDepth:          cfg.Archive.MaxDepth,
		MaxUncompressedBytes: cfg.Archive.MaxUncompressedBytes,
		Workers:              cfg.Performance.Workers,
		IndexFile:            cfg.Index.File,
	}
}

func initLogging(cfg *config.Config, l *layout.Layout, opts RunOptions) error {
	level := cfg.Logging.Level
	if opts.Verbose {
		level = "debug"
	}

	file := cfg.Logging.File
	if file == "" {
		if _, ok := l.Fs().(*afero.OsFs); ok {
			file = logger.FileName(l.Logs(), time.Now())
		}
	}

	var console io.Writer = os.Stdout
	if opts.Quiet {
		console = nil
	}
	if err := logger.InitWithConsole(level, file, console); err != nil {
		return fmt.Errorf("%w: 无法创建日志文件 %s: %v", layout.ErrInaccessible, file, err)
	}
	return nil
}

// HistoryPath 返回运行记录数据库路径
func HistoryPath(cfg *config.Config, l *layout.Layout) string {
	if cfg.History.Path != "" {
		return cfg.History.Path
	}
	return l.HistoryFile()
}

// recordHistory 保存运行记录，失败只记录日志
func recordHistory(cfg *config.Config, l *layout.Layout, job internal.JobKind, res *organizer.Result) {
	db, err := database.NewDatabase(HistoryPath(cfg, l))
	if err != nil {
		logger.Get().Warn().Err(err).Msg("无法打开运行记录数据库")
		return
	}
	defer db.Close()

	record := database.NewRunRecord(job, l.OriginalSource(), l.Root(), res.Stats, res.Success)
	if err := db.RecordRun(record, res.Errors); err != nil {
		logger.Get().Warn().Err(err).Msg("保存运行记录失败")
	}
}
