package hasher

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"

	"github.com/cespare/xxhash/v2"
	"github.com/spf13/afero"

	"github.com/rockiesmagicnumber/file-reorganizer/pkg/logger"
)

// ChunkSize 每次读取的字节数，大文件不会整体载入内存
const ChunkSize = 1 << 20

// Checksum 计算文件内容的 SHA-256 摘要（小写十六进制）
// 该摘要是索引的去重键
func Checksum(fs afero.Fs, filePath string) (string, error) {
	h := sha256.New()
	if err := stream(fs, filePath, h); err != nil {
		return "", err
	}

	sum := hex.EncodeToString(h.Sum(nil))
	logger.Get().Trace().Str("path", filePath).Str("checksum", sum).Msg("文件摘要计算完成")
	return sum, nil
}

// Fingerprint 计算文件的 xxHash 指纹
// 仅用于单次运行内的压缩包去重，不会持久化
func Fingerprint(fs afero.Fs, filePath string) (uint64, error) {
	h := xxhash.New()
	if err := stream(fs, filePath, h); err != nil {
		return 0, err
	}
	return h.Sum64(), nil
}

func stream(fs afero.Fs, filePath string, h hash.Hash) error {
	file, err := fs.Open(filePath)
	if err != nil {
		logger.Get().Error().Err(err).Str("path", filePath).Msg("无法打开文件")
		return fmt.Errorf("打开文件 %s 失败: %w", filePath, err)
	}
	defer file.Close()

	buf := make([]byte, ChunkSize)
	if _, err := io.CopyBuffer(h, file, buf); err != nil {
		logger.Get().Error().Err(err).Str("path", filePath).Msg("计算哈希失败")
		return fmt.Errorf("读取文件 %s 失败: %w", filePath, err)
	}
	return nil
}
