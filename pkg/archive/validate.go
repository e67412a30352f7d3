package archive

import (
	"archive/zip"
	"path/filepath"
	"strings"
)

// entryName 将条目名统一为 "/" 分隔
func entryName(name string) string {
	return strings.ReplaceAll(name, `\`, "/")
}

// unsafeName 判断条目名是否可能写出解压目录
func unsafeName(name string) bool {
	name = entryName(name)
	if name == "" {
		return false
	}
	if strings.HasPrefix(name, "/") || filepath.IsAbs(name) || filepath.VolumeName(name) != "" {
		return true
	}
	// Windows 盘符在其他平台上 VolumeName 为空
	if len(name) >= 2 && name[1] == ':' {
		return true
	}
	for _, segment := range strings.Split(name, "/") {
		if segment == ".." {
			return true
		}
	}
	return false
}

// validate 在写入任何文件之前检查中央目录
func validate(archivePath string, r *zip.Reader, maxBytes int64) error {
	if maxBytes <= 0 {
		return &RejectedError{Archive: archivePath, Reason: ErrTooLarge}
	}
	limit := uint64(maxBytes)

	var total uint64
	for _, f := range r.File {
		if unsafeName(f.Name) {
			return &RejectedError{Archive: archivePath, Entry: f.Name, Reason: ErrPathTraversal}
		}

		// 先比较剩余额度再累加，避免声明的大小溢出回绕
		if f.UncompressedSize64 > limit-total {
			return &RejectedError{Archive: archivePath, Entry: f.Name, Reason: ErrTooLarge}
		}
		total += f.UncompressedSize64
	}
	return nil
}
