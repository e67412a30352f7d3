package metadata

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/abema/go-mp4"
	"github.com/dhowden/tag"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
	"github.com/spf13/afero"

	"github.com/rockiesmagicnumber/file-reorganizer/pkg/classifier"
	"github.com/rockiesmagicnumber/file-reorganizer/pkg/logger"
)

var (
	// ErrNoDate 文件中没有可用的拍摄/创建时间
	ErrNoDate = errors.New("未找到媒体时间")

	// ErrNoTags 音乐文件中没有可用的标签
	ErrNoTags = errors.New("未找到音乐标签")
)

// mp4 时间从 1904-01-01 开始计算
const mp4EpochOffset = 2082844800

var isoBMFF = map[string]bool{
	".mp4": true, ".mov": true, ".m4v": true, ".3gp": true,
	".3g2": true, ".qt": true, ".m4p": true, ".f4v": true,
}

// Tags 音乐标签，字段为空表示缺失
type Tags struct {
	Artist string
	Album  string
}

// Extractor 媒体元数据读取
type Extractor interface {
	// CaptureTime 返回文件内嵌的拍摄或创建时间，没有时返回 ErrNoDate
	CaptureTime(path string, cat classifier.Category) (time.Time, error)
	// MusicTags 返回专辑艺术家（缺失时为艺术家）和专辑名
	MusicTags(path string) (Tags, error)
}

type reader struct {
	fs afero.Fs
}

func NewExtractor(fs afero.Fs) Extractor {
	return &reader{fs: fs}
}

func (r *reader) open(path string) (afero.File, *io.SectionReader, error) {
	f, err := r.fs.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("打开文件 %s 失败: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("读取文件信息 %s 失败: %w", path, err)
	}
	return f, io.NewSectionReader(f, 0, info.Size()), nil
}

func (r *reader) CaptureTime(path string, cat classifier.Category) (time.Time, error) {
	switch cat {
	case classifier.Photo:
		return r.photoTime(path)
	case classifier.Video:
		if isoBMFF[strings.ToLower(filepath.Ext(path))] {
			return r.movieTime(path)
		}
	}
	return time.Time{}, ErrNoDate
}

func (r *reader) photoTime(path string) (t time.Time, err error) {
	f, sr, err := r.open(path)
	if err != nil {
		return time.Time{}, err
	}
	defer f.Close()

	// goexif 在部分损坏的数据上会 panic
	defer func() {
		if p := recover(); p != nil {
			t, err = time.Time{}, fmt.Errorf("%w: 解析 EXIF 失败: %v", ErrNoDate, p)
		}
	}()

	x, err := exif.Decode(sr)
	if err != nil {
		logger.Get().Trace().Err(err).Str("path", path).Msg("没有 EXIF 数据")
		return time.Time{}, ErrNoDate
	}

	// DateTimeOriginal，然后 DateTime
	if dt, err := x.DateTime(); err == nil && !dt.IsZero() {
		return dt, nil
	}
	if field, err := x.Get(exif.DateTimeDigitized); err == nil {
		if dt, err := parseExifDateTime(field); err == nil {
			return dt, nil
		}
	}
	return time.Time{}, ErrNoDate
}

func parseExifDateTime(field *tiff.Tag) (time.Time, error) {
	s, err := field.StringVal()
	if err != nil {
		return time.Time{}, err
	}
	s = strings.TrimRight(strings.TrimSpace(s), "\x00")
	if t, err := time.ParseInLocation("2006:01:02 15:04:05", s, time.Local); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006:01:02", s, time.Local)
}

// movieTime 读取 moov/mvhd 中的创建时间
func (r *reader) movieTime(path string) (time.Time, error) {
	f, sr, err := r.open(path)
	if err != nil {
		return time.Time{}, err
	}
	defer f.Close()

	boxes, err := mp4.ExtractBoxWithPayload(sr, nil, mp4.BoxPath{mp4.BoxTypeMoov(), mp4.BoxTypeMvhd()})
	if err != nil || len(boxes) == 0 {
		logger.Get().Trace().Err(err).Str("path", path).Msg("没有 mvhd")
		return time.Time{}, ErrNoDate
	}

	mvhd, ok := boxes[0].Payload.(*mp4.Mvhd)
	if !ok {
		return time.Time{}, ErrNoDate
	}

	var created uint64
	if mvhd.GetVersion() == 1 {
		created = mvhd.CreationTimeV1
	} else {
		created = uint64(mvhd.CreationTimeV0)
	}
	if created <= mp4EpochOffset {
		return time.Time{}, ErrNoDate
	}
	return time.Unix(int64(created-mp4EpochOffset), 0).UTC(), nil
}

func (r *reader) MusicTags(path string) (Tags, error) {
	f, sr, err := r.open(path)
	if err != nil {
		return Tags{}, err
	}
	defer f.Close()

	m, err := tag.ReadFrom(sr)
	if err != nil {
		if errors.Is(err, tag.ErrNoTagsFound) {
			return Tags{}, ErrNoTags
		}
		return Tags{}, fmt.Errorf("%w: %v", ErrNoTags, err)
	}

	tags := Tags{
		Artist: strings.TrimSpace(m.AlbumArtist()),
		Album:  strings.TrimSpace(m.Album()),
	}
	if tags.Artist == "" {
		tags.Artist = strings.TrimSpace(m.Artist())
	}
	if tags.Artist == "" && tags.Album == "" {
		return tags, ErrNoTags
	}
	return tags, nil
}
