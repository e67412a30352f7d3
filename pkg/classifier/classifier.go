package classifier

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
	"github.com/spf13/afero"
)

// HeaderSize 文件类型检测所需的文件头部大小（字节）
const HeaderSize = 261

// Category 文件分类
type Category int

const (
	Misc Category = iota
	Photo
	Video
	Music
	Archive
)

func (c Category) String() string {
	switch c {
	case Photo:
		return "photo"
	case Video:
		return "video"
	case Music:
		return "music"
	case Archive:
		return "archive"
	default:
		return "misc"
	}
}

// Categories 所有可作为目标目录的分类（压缩包归入 Misc）
var Categories = []Category{Photo, Video, Music, Misc}

var archiveExtensions = set(".zip")

var photoExtensions = set(
	".jpg", ".jpeg", ".png", ".bmp", ".gif", ".tiff", ".tif", ".webp", ".heif", ".heic",
)

var videoExtensions = set(
	".3g2", ".3gp", ".amv", ".asf", ".avi", ".drc", ".f4a", ".f4b", ".f4p", ".f4v",
	".flv", ".gif", ".gifv", ".m2ts", ".m2v", ".m4p", ".m4v", ".mkv", ".mng", ".mov",
	".mp2", ".mp4", ".mpe", ".mpeg", ".mpg", ".mpv", ".mts", ".mxf", ".nsv", ".ogg",
	".ogv", ".qt", ".rm", ".rmvb", ".roq", ".svi", ".ts", ".viv", ".vob", ".webm",
	".wmv", ".yuv",
)

var musicExtensions = set(
	".aa", ".aac", ".aax", ".act", ".aiff", ".alac", ".amr", ".ape", ".au", ".awb",
	".cda", ".dss", ".dvf", ".8svx", ".flac", ".gsm", ".iklax", ".ivs", ".m4a", ".m4b",
	".m4p", ".mmf", ".mogg", ".movpkg", ".mp3", ".mpc", ".msv", ".nmf", ".oga", ".ogg",
	".opus", ".ra", ".raw", ".rf64", ".rm", ".sln", ".tta", ".voc", ".vox", ".wav",
	".webm", ".wma", ".wv",
)

func set(exts ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		m[ext] = struct{}{}
	}
	return m
}

// Classify 根据扩展名判断文件分类
// 优先级: Archive > Photo > Video > Music > Misc
func Classify(path string) Category {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return Misc
	}

	if _, ok := archiveExtensions[ext]; ok {
		return Archive
	}
	if _, ok := photoExtensions[ext]; ok {
		return Photo
	}
	if _, ok := videoExtensions[ext]; ok {
		return Video
	}
	if _, ok := musicExtensions[ext]; ok {
		return Music
	}
	return Misc
}

func IsArchive(path string) bool { return Classify(path) == Archive }
func IsPhoto(path string) bool   { return Classify(path) == Photo }
func IsVideo(path string) bool   { return Classify(path) == Video }
func IsMusic(path string) bool   { return Classify(path) == Music }

// Sniff 读取文件头部并使用 filetype 判断分类
// 无法识别时返回 Misc
func Sniff(fs afero.Fs, path string) (Category, error) {
	file, err := fs.Open(path)
	if err != nil {
		return Misc, err
	}
	defer file.Close()

	head := make([]byte, HeaderSize)
	n, err := io.ReadFull(file, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return Misc, err
	}
	head = head[:n]

	switch {
	case filetype.IsImage(head):
		return Photo, nil
	case filetype.IsVideo(head):
		return Video, nil
	case filetype.IsAudio(head):
		return Music, nil
	}

	kind, err := filetype.Match(head)
	if err != nil {
		return Misc, nil
	}
	if kind.Extension == "zip" {
		return Archive, nil
	}
	return Misc, nil
}

// Resolve 先按扩展名分类，扩展名无法判断时可选地检测文件内容
func Resolve(fs afero.Fs, path string, sniff bool) Category {
	cat := Classify(path)
	if cat != Misc || !sniff {
		return cat
	}

	sniffed, err := Sniff(fs, path)
	if err != nil {
		return Misc
	}
	return sniffed
}
