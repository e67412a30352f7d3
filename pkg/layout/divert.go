package layout

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/rockiesmagicnumber/file-reorganizer/pkg/classifier"
	"github.com/rockiesmagicnumber/file-reorganizer/pkg/logger"
)

const divertTimeFormat = "20060102150405"

// Divert 将处理失败的文件转移到 Errors/<分类>/ 下
// 重名时依次尝试 <名称>_<时间戳><扩展名> 和 <名称>_<时间戳>_<序号><扩展名>
func (l *Layout) Divert(src string, cat classifier.Category, move bool, now time.Time) (string, error) {
	dir := l.Errors(cat)
	if err := l.EnsureDir(dir); err != nil {
		return "", err
	}

	dst, err := freeName(l.fs, dir, filepath.Base(src), now)
	if err != nil {
		return "", err
	}

	if err := Transfer(l.fs, src, dst, move); err != nil {
		return "", fmt.Errorf("转移到错误目录失败: %w", err)
	}

	logger.Get().Warn().
		Str("path", src).
		Str("destination", dst).
		Str("category", cat.String()).
		Msg("文件已转移到错误目录")
	return dst, nil
}

func freeName(fs afero.Fs, dir, name string, now time.Time) (string, error) {
	candidate := filepath.Join(dir, name)
	exists, err := afero.Exists(fs, candidate)
	if err != nil {
		return "", err
	}
	if !exists {
		return candidate, nil
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext) + "_" + now.Format(divertTimeFormat)
	candidate = filepath.Join(dir, stem+ext)
	for i := 1; ; i++ {
		exists, err := afero.Exists(fs, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		candidate = filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, i, ext))
	}
}
