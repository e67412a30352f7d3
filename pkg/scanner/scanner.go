package scanner

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/rockiesmagicnumber/file-reorganizer/pkg/logger"
)

type FileWalker struct {
	fs       afero.Fs
	skipDirs []string
}

func NewFileWalker(fs afero.Fs) *FileWalker {
	return &FileWalker{fs: fs}
}

// Skip 遍历时跳过指定目录及其子目录
func (w *FileWalker) Skip(dirs ...string) *FileWalker {
	for _, dir := range dirs {
		if dir != "" {
			w.skipDirs = append(w.skipDirs, filepath.Clean(dir))
		}
	}
	return w
}

// activeSkips 返回对本次遍历生效的跳过目录
// 包含 root 本身的跳过目录不生效
func (w *FileWalker) activeSkips(root string) []string {
	var skips []string
	for _, dir := range w.skipDirs {
		if !IsWithin(dir, root) {
			skips = append(skips, dir)
		}
	}
	return skips
}

// Walk 遍历 root 下的所有普通文件
// 无法访问的条目会被忽略，callback 返回的错误会中止遍历
func (w *FileWalker) Walk(root string, callback func(path string, info os.FileInfo) error) error {
	skips := w.activeSkips(root)
	skipped := func(path string) bool {
		for _, dir := range skips {
			if IsWithin(dir, path) {
				return true
			}
		}
		return false
	}

	return afero.Walk(w.fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			logger.Get().Debug().Err(err).Msgf("跳过无法访问的路径: %s", path)
			return nil
		}

		if info.IsDir() {
			if skipped(path) {
				return filepath.SkipDir
			}
			return nil
		}

		if !info.Mode().IsRegular() {
			return nil
		}

		return callback(path, info)
	})
}

// Files 返回 root 下所有普通文件的路径列表
func (w *FileWalker) Files(root string) ([]string, error) {
	var files []string
	err := w.Walk(root, func(path string, info os.FileInfo) error {
		files = append(files, path)
		return nil
	})
	return files, err
}

func (w *FileWalker) CountFiles(dirs []string) (int, error) {
	logger.Get().Debug().Msgf("开始统计文件数量，共 %d 个目录", len(dirs))

	count := 0
	for _, dir := range dirs {
		err := w.Walk(dir, func(path string, info os.FileInfo) error {
			count++
			return nil
		})
		if err != nil {
			logger.Get().Error().Err(err).Msgf("扫描目录失败: %s", dir)
			return 0, err
		}
	}

	logger.Get().Debug().Msgf("文件统计完成，共找到 %d 个文件", count)
	return count, nil
}

// IsWithin 判断 path 是否等于 dir 或位于 dir 之下
func IsWithin(dir, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
