package layout

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/rockiesmagicnumber/file-reorganizer/pkg/logger"
)

// CopyFile 复制文件内容并保留修改时间
// 目标已存在时返回 os.ErrExist，不会覆盖
func CopyFile(fs afero.Fs, src, dst string) (err error) {
	sourceFile, err := fs.Open(src)
	if err != nil {
		return fmt.Errorf("打开源文件失败: %w", err)
	}
	defer sourceFile.Close()

	info, err := sourceFile.Stat()
	if err != nil {
		return fmt.Errorf("读取源文件信息失败: %w", err)
	}

	if err := fs.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("创建目录失败: %w", err)
	}

	destFile, err := fs.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("创建目标文件失败: %w", err)
	}

	if _, err = io.Copy(destFile, sourceFile); err != nil {
		destFile.Close()
		fs.Remove(dst)
		return fmt.Errorf("复制文件内容失败: %w", err)
	}
	if err := destFile.Close(); err != nil {
		fs.Remove(dst)
		return fmt.Errorf("写入目标文件失败: %w", err)
	}

	mtime := info.ModTime()
	if err := fs.Chtimes(dst, mtime, mtime); err != nil {
		logger.Get().Debug().Err(err).Str("path", dst).Msg("无法保留修改时间")
	}
	return nil
}

// MoveFile 使用 rename 移动文件，失败时（例如跨卷）复制后删除
// 目标已存在时返回 os.ErrExist
func MoveFile(fs afero.Fs, src, dst string) error {
	exists, err := afero.Exists(fs, dst)
	if err != nil {
		return fmt.Errorf("检查文件是否存在失败: %w", err)
	}
	if exists {
		return fmt.Errorf("移动到 %s 失败: %w", dst, os.ErrExist)
	}

	if err := fs.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("创建目录失败: %w", err)
	}

	if err := fs.Rename(src, dst); err != nil {
		logger.Get().Debug().
			Err(err).
			Str("source", src).
			Str("destination", dst).
			Msg("直接重命名失败，尝试复制后删除")

		if err := CopyFile(fs, src, dst); err != nil {
			return err
		}
		if err := fs.Remove(src); err != nil {
			return fmt.Errorf("删除原文件失败: %w", err)
		}
	}
	return nil
}

// Transfer 按模式复制或移动文件
func Transfer(fs afero.Fs, src, dst string, move bool) error {
	if move {
		return MoveFile(fs, src, dst)
	}
	return CopyFile(fs, src, dst)
}
