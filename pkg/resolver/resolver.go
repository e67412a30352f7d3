package resolver

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/rockiesmagicnumber/file-reorganizer/pkg/classifier"
	"github.com/rockiesmagicnumber/file-reorganizer/pkg/layout"
	"github.com/rockiesmagicnumber/file-reorganizer/pkg/logger"
	"github.com/rockiesmagicnumber/file-reorganizer/pkg/metadata"
)

const (
	UnknownArtist = "Unknown Artist"
	UnknownAlbum  = "Unknown Album"

	// 替换非法字符时使用的字符
	Placeholder = "_"
)

// 生成唯一文件名的最大尝试次数
const maxUniqueAttempts = 100

// Resolver 计算文件在 Processed 下的目标路径
type Resolver struct {
	fs        afero.Fs
	layout    *layout.Layout
	extractor metadata.Extractor
}

func New(l *layout.Layout, extractor metadata.Extractor) *Resolver {
	if extractor == nil {
		extractor = metadata.NewExtractor(l.Fs())
	}
	return &Resolver{
		fs:        l.Fs(),
		layout:    l,
		extractor: extractor,
	}
}

// Resolve 返回文件的规范目标路径，不处理重名
//
//	照片/视频: Processed/<分类>/YYYY/MM/DD/<文件名>
//	音乐:      Processed/Music/<艺术家>/<专辑>/<文件名>
//	其他:      Processed/Misc/YYYY/MM/DD/<文件名>
func (r *Resolver) Resolve(path string, cat classifier.Category) (string, error) {
	name := filepath.Base(path)

	if cat == classifier.Music {
		artist, album := r.musicFolders(path)
		return filepath.Join(r.layout.MusicDir(artist, album), Sanitize(name)), nil
	}

	if cat == classifier.Archive {
		cat = classifier.Misc
	}

	t, err := r.BestTime(path, cat)
	if err != nil {
		return "", err
	}
	return filepath.Join(r.layout.DatedDir(cat, t), name), nil
}

// BestTime 照片和视频优先使用内嵌时间，否则使用文件时间
func (r *Resolver) BestTime(path string, cat classifier.Category) (time.Time, error) {
	if cat == classifier.Photo || cat == classifier.Video {
		t, err := r.extractor.CaptureTime(path, cat)
		if err == nil && !t.IsZero() {
			return t, nil
		}
		if err != nil && !errors.Is(err, metadata.ErrNoDate) {
			logger.Get().Debug().Err(err).Str("path", path).Msg("读取媒体时间失败，使用文件时间")
		}
	}

	info, err := r.fs.Stat(path)
	if err != nil {
		return time.Time{}, fmt.Errorf("读取文件信息失败: %w", err)
	}
	return info.ModTime(), nil
}

func (r *Resolver) musicFolders(path string) (string, string) {
	tags, err := r.extractor.MusicTags(path)
	if err != nil && !errors.Is(err, metadata.ErrNoTags) {
		logger.Get().Debug().Err(err).Str("path", path).Msg("读取音乐标签失败")
	}

	artist, album := tags.Artist, tags.Album
	if artist == "" {
		logger.Get().Debug().Str("path", path).Msgf("未找到艺术家，使用 %q", UnknownArtist)
		artist = UnknownArtist
	}
	if album == "" {
		album = UnknownAlbum
	}
	return Sanitize(artist), Sanitize(album)
}

// Unique 目标已存在时在文件名后追加随机后缀，保留扩展名
func Unique(fs afero.Fs, path string) (string, error) {
	exists, err := afero.Exists(fs, path)
	if err != nil {
		return "", err
	}
	if !exists {
		return path, nil
	}

	dir := filepath.Dir(path)
	name := filepath.Base(path)
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	for i := 0; i < maxUniqueAttempts; i++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s_%s%s", stem, uuid.NewString(), ext))
		exists, err := afero.Exists(fs, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			logger.Get().Debug().Str("original_path", path).Str("new_path", candidate).Msg("文件名冲突，自动重命名")
			return candidate, nil
		}
	}
	return "", fmt.Errorf("无法为 %s 生成唯一文件名", path)
}

// Sanitize 替换文件名中的保留字符和控制字符
func Sanitize(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, c := range name {
		if c < 0x20 || c == 0x7f || strings.ContainsRune(`<>:"/\|?*`, c) {
			b.WriteString(Placeholder)
			continue
		}
		b.WriteRune(c)
	}

	out := strings.TrimSpace(b.String())
	if out == "" || out == "." || out == ".." {
		return Placeholder
	}
	return out
}
