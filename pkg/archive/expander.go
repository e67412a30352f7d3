package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/rockiesmagicnumber/file-reorganizer/internal"
	"github.com/rockiesmagicnumber/file-reorganizer/pkg/classifier"
	"github.com/rockiesmagicnumber/file-reorganizer/pkg/hasher"
	"github.com/rockiesmagicnumber/file-reorganizer/pkg/layout"
	"github.com/rockiesmagicnumber/file-reorganizer/pkg/logger"
	"github.com/rockiesmagicnumber/file-reorganizer/pkg/scanner"
)

const extractTimeFormat = "20060102150405"

type Options struct {
	MaxDepth             int
	MaxUncompressedBytes int64
	// Move 为 true 时失败的压缩包被移动到错误目录，否则复制
	Move bool
}

func DefaultOptions() Options {
	return Options{
		MaxDepth:             internal.DefaultMaxZipDepth,
		MaxUncompressedBytes: internal.DefaultMaxUncompressedBytes,
	}
}

type Stats struct {
	Expanded int
	Rejected int
	Failed   int
	Skipped  int
}

// Expander 递归解压压缩包到 Unzipped 目录
type Expander struct {
	fs     afero.Fs
	layout *layout.Layout
	opts   Options
	now    func() time.Time

	seen  map[uint64]struct{}
	stats Stats
}

func NewExpander(l *layout.Layout, opts Options) *Expander {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = internal.DefaultMaxZipDepth
	}
	if opts.MaxUncompressedBytes <= 0 {
		opts.MaxUncompressedBytes = internal.DefaultMaxUncompressedBytes
	}
	return &Expander{
		fs:     l.Fs(),
		layout: l,
		opts:   opts,
		now:    time.Now,
	}
}

// WithClock 替换时间来源
func (e *Expander) WithClock(now func() time.Time) *Expander {
	e.now = now
	return e
}

func (e *Expander) Stats() Stats { return e.stats }

// ExpandAll 解压 root 下所有压缩包，并递归处理解压出的嵌套压缩包
// 单个压缩包的失败不会中止，错误全部返回
func (e *Expander) ExpandAll(root string) []error {
	e.seen = make(map[uint64]struct{})
	e.stats = Stats{}

	logger.Get().Info().Str("root", root).Msg("开始解压压缩包")
	errs := e.expandDir(root, 0)
	logger.Get().Info().
		Int("expanded", e.stats.Expanded).
		Int("rejected", e.stats.Rejected).
		Int("failed", e.stats.Failed).
		Int("skipped", e.stats.Skipped).
		Msg("压缩包处理完成")
	return errs
}

func (e *Expander) expandDir(dir string, depth int) []error {
	if depth >= e.opts.MaxDepth {
		logger.Get().Warn().
			Str("dir", dir).
			Int("max_depth", e.opts.MaxDepth).
			Msg("达到最大嵌套深度，不再继续解压")
		return nil
	}

	walker := scanner.NewFileWalker(e.fs).Skip(e.layout.Root())

	var archives []string
	err := walker.Walk(dir, func(path string, info os.FileInfo) error {
		if classifier.IsArchive(path) {
			archives = append(archives, path)
		}
		return nil
	})
	if err != nil {
		return []error{fmt.Errorf("扫描目录 %s 失败: %w", dir, err)}
	}

	var errs []error
	for _, path := range archives {
		errs = append(errs, e.expandOne(path, depth)...)
	}
	return errs
}

func (e *Expander) expandOne(path string, depth int) []error {
	fingerprint, err := hasher.Fingerprint(e.fs, path)
	if err != nil {
		e.stats.Failed++
		return e.fail(path, fmt.Errorf("计算压缩包指纹失败: %w", err))
	}

	if _, ok := e.seen[fingerprint]; ok {
		e.stats.Skipped++
		logger.Get().Info().Str("path", path).Msg("跳过已处理的压缩包")
		return nil
	}

	target, err := e.extract(path)
	if err != nil {
		var rejected *RejectedError
		if errors.As(err, &rejected) {
			e.stats.Rejected++
		} else {
			e.stats.Failed++
		}
		return e.fail(path, err)
	}

	e.seen[fingerprint] = struct{}{}
	e.stats.Expanded++
	logger.Get().Info().Str("path", path).Str("target", target).Int("depth", depth).Msg("压缩包解压完成")

	return e.expandDir(target, depth+1)
}

// fail 把压缩包转移到 Errors/Misc，返回需要记录的错误
func (e *Expander) fail(path string, cause error) []error {
	logger.Get().Error().Err(cause).Str("path", path).Msg("压缩包处理失败")

	errs := []error{cause}
	if _, err := e.layout.Divert(path, classifier.Archive, e.opts.Move, e.now()); err != nil {
		errs = append(errs, fmt.Errorf("转移压缩包 %s 失败: %w", path, err))
	}
	return errs
}

// extract 校验并解压到新的目录，失败时清理已写入的内容
func (e *Expander) extract(path string) (string, error) {
	file, err := e.fs.Open(path)
	if err != nil {
		return "", fmt.Errorf("打开压缩包失败: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("读取压缩包信息失败: %w", err)
	}

	r, err := zip.NewReader(file, info.Size())
	if errors.Is(err, zip.ErrInsecurePath) {
		return "", &RejectedError{Archive: path, Reason: ErrPathTraversal}
	}
	if err != nil {
		return "", fmt.Errorf("读取压缩包 %s 失败: %w", path, err)
	}

	if err := validate(path, r, e.opts.MaxUncompressedBytes); err != nil {
		return "", err
	}

	target, err := e.targetDir(path)
	if err != nil {
		return "", err
	}

	if err := e.writeEntries(path, r, target); err != nil {
		if rmErr := e.fs.RemoveAll(target); rmErr != nil {
			logger.Get().Error().Err(rmErr).Str("target", target).Msg("清理解压目录失败")
		}
		return "", err
	}
	return target, nil
}

// targetDir 返回 Unzipped/<名称>_<时间戳>，已存在时追加序号
func (e *Expander) targetDir(path string) (string, error) {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base)) + "_" + e.now().Format(extractTimeFormat)

	target := filepath.Join(e.layout.Unzipped(), stem)
	for i := 1; ; i++ {
		exists, err := afero.Exists(e.fs, target)
		if err != nil {
			return "", err
		}
		if !exists {
			break
		}
		target = filepath.Join(e.layout.Unzipped(), fmt.Sprintf("%s_%d", stem, i))
	}

	if err := e.layout.EnsureDir(target); err != nil {
		return "", err
	}
	return target, nil
}

func (e *Expander) writeEntries(archivePath string, r *zip.Reader, target string) error {
	remaining := e.opts.MaxUncompressedBytes

	for _, f := range r.File {
		name := entryName(f.Name)
		dst := filepath.Join(target, filepath.FromSlash(name))
		if !scanner.IsWithin(target, dst) {
			return &RejectedError{Archive: archivePath, Entry: f.Name, Reason: ErrPathTraversal}
		}

		mode := f.Mode()
		switch {
		case mode.IsDir() || strings.HasSuffix(name, "/"):
			if err := e.fs.MkdirAll(dst, 0755); err != nil {
				return fmt.Errorf("创建目录 %s 失败: %w", dst, err)
			}
			continue
		case mode&os.ModeSymlink != 0:
			logger.Get().Debug().Str("entry", f.Name).Msg("跳过符号链接条目")
			continue
		}

		written, err := e.writeEntry(f, dst, remaining)
		if err != nil {
			if errors.Is(err, ErrTooLarge) {
				return &RejectedError{Archive: archivePath, Entry: f.Name, Reason: ErrTooLarge}
			}
			return err
		}
		remaining -= written
	}
	return nil
}

// writeEntry 写出单个条目，实际解压字节数超过 limit 时返回 ErrTooLarge
func (e *Expander) writeEntry(f *zip.File, dst string, limit int64) (int64, error) {
	if err := e.fs.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return 0, fmt.Errorf("创建目录失败: %w", err)
	}

	rc, err := f.Open()
	if err != nil {
		return 0, fmt.Errorf("读取条目 %s 失败: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := e.fs.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return 0, fmt.Errorf("创建文件 %s 失败: %w", dst, err)
	}

	written, err := io.Copy(out, io.LimitReader(rc, limit+1))
	closeErr := out.Close()
	if err != nil {
		return written, fmt.Errorf("解压条目 %s 失败: %w", f.Name, err)
	}
	if closeErr != nil {
		return written, fmt.Errorf("写入文件 %s 失败: %w", dst, closeErr)
	}
	if written > limit {
		return written, ErrTooLarge
	}

	if !f.Modified.IsZero() {
		if err := e.fs.Chtimes(dst, f.Modified, f.Modified); err != nil {
			logger.Get().Debug().Err(err).Str("path", dst).Msg("无法设置修改时间")
		}
	}
	return written, nil
}
