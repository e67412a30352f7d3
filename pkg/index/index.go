package index

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"

	"github.com/rockiesmagicnumber/file-reorganizer/pkg/hasher"
	"github.com/rockiesmagicnumber/file-reorganizer/pkg/logger"
	"github.com/rockiesmagicnumber/file-reorganizer/pkg/scanner"
)

// Index 已处理文件索引: 摘要 -> 路径列表
// 同一摘要下的路径不重复，按加入顺序保存
type Index struct {
	fs      afero.Fs
	path    string
	entries map[string][]string
}

func New(fs afero.Fs, path string) *Index {
	return &Index{
		fs:      fs,
		path:    path,
		entries: make(map[string][]string),
	}
}

// Load 读取索引快照
// 文件不存在或为空时返回空索引；解析失败时返回空索引和错误
func Load(fs afero.Fs, path string) (*Index, error) {
	ix := New(fs, path)

	data, err := afero.ReadFile(fs, path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Get().Debug().Str("path", path).Msg("索引文件不存在，使用空索引")
		return ix, nil
	}
	if err != nil {
		logger.Get().Error().Err(err).Str("path", path).Msg("读取索引文件失败")
		return ix, fmt.Errorf("读取索引文件失败: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return ix, nil
	}

	var raw map[string][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		logger.Get().Error().Err(err).Str("path", path).Msg("解析索引文件失败，使用空索引")
		return ix, fmt.Errorf("解析索引文件 %s 失败: %w", path, err)
	}

	for checksum, paths := range raw {
		if checksum == "" || len(paths) == 0 {
			continue
		}
		Union(ix.entries, checksum, paths...)
	}

	logger.Get().Info().Int("entries", len(ix.entries)).Str("path", path).Msg("索引加载完成")
	return ix, nil
}

// Union 将路径并入 checksum 对应的集合，已存在的路径不会重复加入
// 返回新加入的路径数量
func Union(entries map[string][]string, checksum string, paths ...string) int {
	existing := entries[checksum]
	added := 0
	for _, p := range paths {
		if p == "" || contains(existing, p) {
			continue
		}
		existing = append(existing, p)
		added++
	}
	if len(existing) > 0 {
		entries[checksum] = existing
	}
	return added
}

func contains(paths []string, path string) bool {
	for _, p := range paths {
		if p == path {
			return true
		}
	}
	return false
}

func (ix *Index) Path() string { return ix.path }

func (ix *Index) Len() int { return len(ix.entries) }

func (ix *Index) IsProcessed(checksum string) bool {
	_, ok := ix.entries[checksum]
	return ok
}

// Contains 判断 checksum 下是否记录了 path
func (ix *Index) Contains(checksum, path string) bool {
	return contains(ix.entries[checksum], path)
}

// Add 记录 checksum 对应的路径，返回是否为新记录
func (ix *Index) Add(checksum, path string) bool {
	return Union(ix.entries, checksum, path) > 0
}

func (ix *Index) Paths(checksum string) []string {
	return append([]string(nil), ix.entries[checksum]...)
}

// Checksums 返回排序后的所有摘要
func (ix *Index) Checksums() []string {
	keys := make([]string, 0, len(ix.entries))
	for k := range ix.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Snapshot 返回索引内容的副本
func (ix *Index) Snapshot() map[string][]string {
	out := make(map[string][]string, len(ix.entries))
	for k, v := range ix.entries {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// Prune 删除已不存在的路径，摘要下没有剩余路径时删除整条记录
// 返回删除的记录数
func (ix *Index) Prune() (int, []error) {
	var errs []error
	removed := 0

	for _, checksum := range ix.Checksums() {
		var kept []string
		for _, p := range ix.entries[checksum] {
			exists, err := afero.Exists(ix.fs, p)
			if err != nil {
				// 无法确认时保留
				errs = append(errs, fmt.Errorf("检查 %s 失败: %w", p, err))
				kept = append(kept, p)
				continue
			}
			if exists {
				kept = append(kept, p)
			} else {
				logger.Get().Debug().Str("path", p).Msg("移除不存在的索引路径")
			}
		}

		if len(kept) == 0 {
			delete(ix.entries, checksum)
			removed++
			continue
		}
		ix.entries[checksum] = kept
	}

	logger.Get().Info().Int("removed", removed).Int("remaining", len(ix.entries)).Msg("索引清理完成")
	return removed, errs
}

// Repopulate 清空索引并扫描 dir 下所有文件重建
// 单个文件的错误不会中止扫描；ctx 取消时保留原有索引，并在错误列表末尾返回 ctx.Err()
func (ix *Index) Repopulate(ctx context.Context, dir string, workers int) []error {
	entries := make(map[string][]string)

	exists, err := afero.DirExists(ix.fs, dir)
	if err != nil {
		return []error{fmt.Errorf("检查目录 %s 失败: %w", dir, err)}
	}
	if !exists {
		logger.Get().Warn().Str("dir", dir).Msg("已处理目录不存在，无法重建索引")
		ix.entries = entries
		return nil
	}

	files, err := scanner.NewFileWalker(ix.fs).Files(dir)
	if err != nil {
		return []error{fmt.Errorf("扫描目录 %s 失败: %w", dir, err)}
	}
	logger.Get().Info().Int("files", len(files)).Str("dir", dir).Msg("开始重建索引")

	results, err := hasher.ChecksumAll(ctx, ix.fs, files, workers)
	if err != nil {
		return []error{err}
	}

	var errs []error
	done := 0
	// 取消后也要读完通道，工作线程才能退出
	for r := range results {
		done++
		if r.Error != nil {
			logger.Get().Error().Err(r.Error).Str("path", r.Path).Msg("重建索引时计算摘要失败")
			errs = append(errs, r.Error)
			continue
		}
		Union(entries, r.Checksum, r.Path)
		if done%100 == 0 {
			logger.Progress(done, len(files), "重建索引")
		}
	}

	if err := ctx.Err(); err != nil {
		logger.Get().Warn().Int("done", done).Int("files", len(files)).Msg("重建索引被中断，保留原有索引")
		return append(errs, err)
	}

	// 多线程时结果顺序不确定
	for _, paths := range entries {
		sort.Strings(paths)
	}
	ix.entries = entries

	logger.Get().Info().Int("entries", len(ix.entries)).Int("errors", len(errs)).Msg("索引重建完成")
	return errs
}

// Persist 将索引写入快照文件
// 先写临时文件再重命名，写入失败不会破坏已有快照
func (ix *Index) Persist() error {
	data, err := json.MarshalIndent(ix.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化索引失败: %w", err)
	}

	dir := filepath.Dir(ix.path)
	if err := ix.fs.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("创建索引目录失败: %w", err)
	}

	tmp, err := afero.TempFile(ix.fs, dir, filepath.Base(ix.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("创建临时索引文件失败: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		ix.fs.Remove(tmpName)
		return fmt.Errorf("写入索引失败: %w", err)
	}
	if err := tmp.Close(); err != nil {
		ix.fs.Remove(tmpName)
		return fmt.Errorf("写入索引失败: %w", err)
	}

	if err := ix.fs.Rename(tmpName, ix.path); err != nil {
		ix.fs.Remove(tmpName)
		return fmt.Errorf("保存索引文件失败: %w", err)
	}

	logger.Get().Debug().Int("entries", len(ix.entries)).Str("path", ix.path).Msg("索引已保存")
	return nil
}
