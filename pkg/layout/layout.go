package layout

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/rockiesmagicnumber/file-reorganizer/internal"
	"github.com/rockiesmagicnumber/file-reorganizer/pkg/classifier"
	"github.com/rockiesmagicnumber/file-reorganizer/pkg/logger"
	"github.com/rockiesmagicnumber/file-reorganizer/pkg/scanner"
)

const (
	LogsDir      = "Logs"
	ProcessedDir = "Processed"
	ErrorsDir    = "Errors"
	UnzippedDir  = "Unzipped"
	WorkingDir   = "Working"
)

// ErrInaccessible 源目录或输出目录无法访问
var ErrInaccessible = errors.New("目录无法访问")

// Layout 输出目录结构
//
//	<output>/<root>/
//	  Logs/
//	  Processed/{Photos,Videos,Music,Misc}/...
//	  Errors/{Photos,Videos,Music,Misc}/...
//	  Unzipped/
//	  Working/
type Layout struct {
	fs      afero.Fs
	source  string
	working string
	output  string
	root    string
}

func New(fs afero.Fs, source, output, rootName string) *Layout {
	if rootName == "" {
		rootName = internal.DefaultRootName
	}
	source = filepath.Clean(source)
	output = filepath.Clean(output)
	return &Layout{
		fs:      fs,
		source:  source,
		working: source,
		output:  output,
		root:    filepath.Join(output, rootName),
	}
}

func (l *Layout) Fs() afero.Fs { return l.fs }

// Source 返回当前使用的源目录（可能是工作副本）
func (l *Layout) Source() string { return l.working }

// OriginalSource 返回用户指定的源目录
func (l *Layout) OriginalSource() string { return l.source }

func (l *Layout) Output() string    { return l.output }
func (l *Layout) Root() string      { return l.root }
func (l *Layout) Logs() string      { return filepath.Join(l.root, LogsDir) }
func (l *Layout) Processed() string { return filepath.Join(l.root, ProcessedDir) }
func (l *Layout) Unzipped() string  { return filepath.Join(l.root, UnzippedDir) }
func (l *Layout) Working() string   { return filepath.Join(l.root, WorkingDir) }

func (l *Layout) IndexFile() string {
	return filepath.Join(l.root, internal.DefaultIndexFileName)
}

func (l *Layout) HistoryFile() string {
	return filepath.Join(l.root, internal.DefaultHistoryFileName)
}

// CategoryFolder 返回分类对应的目录名，压缩包归入 Misc
func CategoryFolder(cat classifier.Category) string {
	switch cat {
	case classifier.Photo:
		return "Photos"
	case classifier.Video:
		return "Videos"
	case classifier.Music:
		return "Music"
	default:
		return "Misc"
	}
}

func (l *Layout) ProcessedCategory(cat classifier.Category) string {
	return filepath.Join(l.Processed(), CategoryFolder(cat))
}

func (l *Layout) Errors(cat classifier.Category) string {
	return filepath.Join(l.root, ErrorsDir, CategoryFolder(cat))
}

// DatedDir 返回 Processed/<分类>/YYYY/MM/DD
func (l *Layout) DatedDir(cat classifier.Category, t time.Time) string {
	return filepath.Join(l.ProcessedCategory(cat), t.Format("2006"), t.Format("01"), t.Format("02"))
}

// MusicDir 返回 Processed/Music/<艺术家>/<专辑>，参数需已清理
func (l *Layout) MusicDir(artist, album string) string {
	return filepath.Join(l.ProcessedCategory(classifier.Music), artist, album)
}

func (l *Layout) EnsureDir(path string) error {
	if err := l.fs.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("创建目录 %s 失败: %w", path, err)
	}
	return nil
}

// Ensure 创建完整的目录结构
func (l *Layout) Ensure() error {
	dirs := []string{l.root, l.Logs(), l.Processed(), l.Unzipped()}
	for _, cat := range classifier.Categories {
		dirs = append(dirs, l.ProcessedCategory(cat), l.Errors(cat))
	}

	for _, dir := range dirs {
		if err := l.EnsureDir(dir); err != nil {
			return fmt.Errorf("%w: %v", ErrInaccessible, err)
		}
	}
	return nil
}

// CheckSource 确认源目录存在且是目录
func (l *Layout) CheckSource() error {
	info, err := l.fs.Stat(l.source)
	if err != nil {
		return fmt.Errorf("%w: 源目录 %s: %v", ErrInaccessible, l.source, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: 源路径 %s 不是目录", ErrInaccessible, l.source)
	}
	return nil
}

// RootInSource 判断输出根目录是否位于源目录之下
func (l *Layout) RootInSource() bool {
	return scanner.IsWithin(l.source, l.root)
}

// PrepareWorkingSource 按策略决定是否将源目录复制为可写的工作副本
// 返回单个文件复制失败的错误列表，这些错误不影响运行
func (l *Layout) PrepareWorkingSource(policy internal.WorkingCopyPolicy) ([]error, error) {
	info, err := l.fs.Stat(l.source)
	if err != nil {
		return nil, fmt.Errorf("%w: 源目录 %s: %v", ErrInaccessible, l.source, err)
	}

	switch policy {
	case internal.WorkingCopyNever:
		return nil, nil
	case internal.WorkingCopyAlways:
	default:
		if info.Mode().Perm()&0200 != 0 {
			return nil, nil
		}
		logger.Get().Info().Str("source", l.source).Msg("源目录只读，创建工作副本")
	}

	target := filepath.Join(l.Working(), filepath.Base(l.source))
	if err := l.EnsureDir(target); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInaccessible, err)
	}

	var errs []error
	walker := scanner.NewFileWalker(l.fs).Skip(l.root)
	err = walker.Walk(l.source, func(path string, fi os.FileInfo) error {
		rel, err := filepath.Rel(l.source, path)
		if err != nil {
			errs = append(errs, err)
			return nil
		}
		dst := filepath.Join(target, rel)
		if exists, _ := afero.Exists(l.fs, dst); exists {
			return nil
		}
		if err := CopyFile(l.fs, path, dst); err != nil {
			logger.Get().Warn().Err(err).Str("path", path).Msg("复制到工作副本失败")
			errs = append(errs, err)
		}
		return nil
	})
	if err != nil {
		return errs, fmt.Errorf("创建工作副本失败: %w", err)
	}

	l.working = target
	logger.Get().Debug().Str("working", target).Msg("工作副本已就绪")
	return errs, nil
}

// Cleanup 删除工作副本和解压目录
func (l *Layout) Cleanup() []error {
	var errs []error
	if l.working != l.source {
		if err := l.fs.RemoveAll(l.Working()); err != nil {
			errs = append(errs, fmt.Errorf("删除工作副本失败: %w", err))
		}
		l.working = l.source
	}
	if err := l.fs.RemoveAll(l.Unzipped()); err != nil {
		errs = append(errs, fmt.Errorf("删除解压目录失败: %w", err))
	}
	return errs
}
