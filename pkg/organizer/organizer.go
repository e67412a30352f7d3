package organizer

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/afero"

	"github.com/rockiesmagicnumber/file-reorganizer/internal"
	"github.com/rockiesmagicnumber/file-reorganizer/pkg/archive"
	"github.com/rockiesmagicnumber/file-reorganizer/pkg/classifier"
	"github.com/rockiesmagicnumber/file-reorganizer/pkg/hasher"
	"github.com/rockiesmagicnumber/file-reorganizer/pkg/index"
	"github.com/rockiesmagicnumber/file-reorganizer/pkg/layout"
	"github.com/rockiesmagicnumber/file-reorganizer/pkg/logger"
	"github.com/rockiesmagicnumber/file-reorganizer/pkg/metadata"
	"github.com/rockiesmagicnumber/file-reorganizer/pkg/resolver"
	"github.com/rockiesmagicnumber/file-reorganizer/pkg/scanner"
)

// 每处理多少个文件输出一次进度
const progressInterval = 10

type Options struct {
	Mode              internal.OperationMode
	ExcludeDuplicates bool
	WorkingCopy       internal.WorkingCopyPolicy
	SniffContent      bool

	MaxZipDepth          int
	MaxUncompressedBytes int64

	// 重建索引时的哈希线程数
	Workers int

	// 为空时使用 <root>/processed-files.json
	IndexFile string

	// 每个文件处理完成后调用，可为空
	Progress ProgressFunc
}

// Progress 整理过程中的进度快照
type Progress struct {
	Done  int
	Total int
	Path  string
	Stats internal.RunStats
}

type ProgressFunc func(Progress)

func DefaultOptions() Options {
	return Options{
		Mode:                 internal.ModeCopy,
		WorkingCopy:          internal.WorkingCopyAuto,
		SniffContent:         true,
		MaxZipDepth:          internal.DefaultMaxZipDepth,
		MaxUncompressedBytes: internal.DefaultMaxUncompressedBytes,
		Workers:              internal.DefaultWorkers,
	}
}

// Organizer 负责整理、清理索引和重建索引三种任务
// 同一个 Organizer 不能并发执行多个任务
type Organizer struct {
	fs        afero.Fs
	layout    *layout.Layout
	opts      Options
	extractor metadata.Extractor
	now       func() time.Time

	index *index.Index
}

func New(l *layout.Layout, opts Options) *Organizer {
	if opts.Mode == "" {
		opts.Mode = internal.ModeCopy
	}
	if opts.WorkingCopy == "" {
		opts.WorkingCopy = internal.WorkingCopyAuto
	}
	if opts.IndexFile == "" {
		opts.IndexFile = l.IndexFile()
	}
	return &Organizer{
		fs:     l.Fs(),
		layout: l,
		opts:   opts,
		now:    time.Now,
	}
}

// WithExtractor 替换元数据读取实现
func (o *Organizer) WithExtractor(ex metadata.Extractor) *Organizer {
	o.extractor = ex
	return o
}

// WithClock 替换时间来源，影响解压目录和错误目录中的时间戳
func (o *Organizer) WithClock(now func() time.Time) *Organizer {
	o.now = now
	return o
}

// Index 返回最近一次任务使用的索引
func (o *Organizer) Index() *index.Index { return o.index }

func (o *Organizer) Layout() *layout.Layout { return o.layout }

// Run 按任务类型执行
func (o *Organizer) Run(ctx context.Context, job internal.JobKind) (*Result, error) {
	switch job {
	case internal.JobPrune:
		return o.Prune(ctx)
	case internal.JobRepopulate:
		return o.Repopulate(ctx)
	case internal.JobOrganize, "":
		return o.Organize(ctx)
	default:
		return nil, fmt.Errorf("未知的任务类型: %s", job)
	}
}

// Organize 解压、分类并转移源目录中的所有文件
// 返回的 error 只表示无法开始的致命错误，单个文件的错误记录在 Result 中
func (o *Organizer) Organize(ctx context.Context) (res *Result, err error) {
	res = newResult(internal.JobOrganize, o.now())
	defer func() { o.finish(res, err) }()

	if err := o.layout.CheckSource(); err != nil {
		return res, err
	}
	if err := o.layout.Ensure(); err != nil {
		return res, err
	}

	o.loadIndex(res)
	defer o.persistIndex(res)
	defer o.cleanup(res)

	copyErrs, err := o.layout.PrepareWorkingSource(o.opts.WorkingCopy)
	res.add(copyErrs...)
	if err != nil {
		return res, err
	}

	o.expandArchives(res)

	roots := []string{o.layout.Source(), o.layout.Unzipped()}
	walker := scanner.NewFileWalker(o.fs).Skip(o.layout.Root())

	total, err := walker.CountFiles(roots)
	if err != nil {
		logger.Get().Warn().Err(err).Msg("统计文件数量失败")
	}
	logger.Get().Info().Int("count", total).Msg("找到待处理文件")

	w := &walk{
		Organizer: o,
		res:       res,
		resolver:  resolver.New(o.layout, o.extractor),
		total:     total,
	}

	for _, root := range roots {
		err := walker.Walk(root, func(path string, info os.FileInfo) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			w.process(path)
			return nil
		})
		if err != nil {
			if ctx.Err() != nil {
				logger.Get().Warn().Msg("任务被中断，停止处理")
				res.add(ctx.Err())
				return res, nil
			}
			res.add(fmt.Errorf("扫描目录 %s 失败: %w", root, err))
		}
	}
	return res, nil
}

func (o *Organizer) expandArchives(res *Result) {
	exp := archive.NewExpander(o.layout, archive.Options{
		MaxDepth:             o.opts.MaxZipDepth,
		MaxUncompressedBytes: o.opts.MaxUncompressedBytes,
		Move:                 o.opts.Mode == internal.ModeMove,
	}).WithClock(o.now)

	res.add(exp.ExpandAll(o.layout.Source())...)

	st := exp.Stats()
	res.Stats.ArchivesExpanded = st.Expanded
	res.Stats.ArchivesRejected = st.Rejected + st.Failed
	res.Stats.Diverted += st.Rejected + st.Failed
}

// Prune 删除索引中已不存在的路径
func (o *Organizer) Prune(ctx context.Context) (res *Result, err error) {
	res = newResult(internal.JobPrune, o.now())
	defer func() { o.finish(res, err) }()

	if err := o.layout.Ensure(); err != nil {
		return res, err
	}

	o.loadIndex(res)
	defer o.persistIndex(res)

	if err := ctx.Err(); err != nil {
		res.add(err)
		return res, nil
	}

	before := o.index.Len()
	removed, errs := o.index.Prune()
	res.add(errs...)

	res.Stats.TotalFiles = before
	res.Stats.Processed = before
	res.Stats.Removed = removed
	return res, nil
}

// Repopulate 丢弃现有索引，扫描 Processed 目录重建
func (o *Organizer) Repopulate(ctx context.Context) (res *Result, err error) {
	res = newResult(internal.JobRepopulate, o.now())
	defer func() { o.finish(res, err) }()

	if err := o.layout.Ensure(); err != nil {
		return res, err
	}

	o.loadIndex(res)
	defer o.persistIndex(res)

	if err := ctx.Err(); err != nil {
		res.add(err)
		return res, nil
	}

	total, err := scanner.NewFileWalker(o.fs).CountFiles([]string{o.layout.Processed()})
	if err != nil {
		logger.Get().Warn().Err(err).Msg("统计文件数量失败")
	}

	errs := o.index.Repopulate(ctx, o.layout.Processed(), o.opts.Workers)
	res.add(errs...)

	res.Stats.TotalFiles = total
	if ctx.Err() != nil {
		// 中断时索引保持原样
		return res, nil
	}
	res.Stats.Processed = total - len(errs)
	return res, nil
}

func (o *Organizer) loadIndex(res *Result) {
	ix, err := index.Load(o.fs, o.opts.IndexFile)
	if err != nil {
		logger.Get().Warn().Err(err).Msg("索引加载失败，使用空索引")
		res.add(err)
	}
	if ix == nil {
		ix = index.New(o.fs, o.opts.IndexFile)
	}
	o.index = ix
}

func (o *Organizer) persistIndex(res *Result) {
	if err := o.index.Persist(); err != nil {
		logger.Get().Error().Err(err).Str("path", o.index.Path()).Msg("保存索引失败")
		res.add(err)
	}
	res.Stats.IndexEntries = o.index.Len()
}

func (o *Organizer) cleanup(res *Result) {
	for _, err := range o.layout.Cleanup() {
		logger.Get().Warn().Err(err).Msg("清理临时目录失败")
		res.add(err)
	}
}

func (o *Organizer) finish(res *Result, fatal error) {
	res.Stats.EndTime = o.now()
	res.Stats.Errors = len(res.Errors)
	res.Success = fatal == nil && len(res.Errors) == 0

	if fatal != nil {
		logger.Get().Error().Err(fatal).Str("job", string(res.Mode)).Msg("任务无法执行")
		return
	}

	logger.Get().Info().
		Str("job", string(res.Mode)).
		Dur("duration", res.Stats.Duration().Round(time.Millisecond)).
		Int("total_files", res.Stats.TotalFiles).
		Int("processed", res.Stats.Processed).
		Int("duplicates", res.Stats.SkippedDuplicates).
		Int("already_processed", res.Stats.SkippedProcessed).
		Int("index_entries", res.Stats.IndexEntries).
		Int("errors", res.Stats.Errors).
		Msg("任务完成")
}

// walk 保存一次整理过程中的状态
type walk struct {
	*Organizer
	res      *Result
	resolver *resolver.Resolver
	total    int
	seen     int
}

func (w *walk) process(path string) {
	w.seen++
	w.res.Stats.TotalFiles++
	if w.seen%progressInterval == 0 {
		logger.Progress(w.seen, w.total, "整理文件")
	}
	defer w.report(path)

	// 压缩包已在解压阶段处理
	if classifier.IsArchive(path) {
		w.res.Stats.SkippedArchives++
		logger.Get().Debug().Str("path", path).Msg("跳过压缩包")
		return
	}

	cat := classifier.Resolve(w.fs, path, w.opts.SniffContent)
	if cat == classifier.Archive {
		cat = classifier.Misc
	}

	checksum, err := hasher.Checksum(w.fs, path)
	if err != nil {
		w.fail(path, cat, OpChecksum, err)
		return
	}

	if w.index.Contains(checksum, path) {
		w.res.Stats.SkippedProcessed++
		logger.Get().Info().Str("path", path).Msg("文件已处理，跳过")
		return
	}
	if w.opts.ExcludeDuplicates && w.index.IsProcessed(checksum) {
		w.res.Stats.SkippedDuplicates++
		logger.Get().Info().Str("path", path).Str("checksum", checksum).Msg("内容已处理，跳过")
		return
	}

	dst, err := w.resolver.Resolve(path, cat)
	if err != nil {
		w.fail(path, cat, OpResolve, err)
		return
	}

	exists, err := afero.Exists(w.fs, dst)
	if err != nil {
		w.fail(path, cat, OpResolve, err)
		return
	}
	if exists {
		if w.opts.ExcludeDuplicates {
			w.res.Stats.SkippedDuplicates++
			logger.Get().Info().Str("path", path).Str("destination", dst).Msg("目标已存在，跳过")
			return
		}
		if dst, err = resolver.Unique(w.fs, dst); err != nil {
			w.fail(path, cat, OpResolve, err)
			return
		}
	}

	if err := layout.Transfer(w.fs, path, dst, w.opts.Mode == internal.ModeMove); err != nil {
		w.fail(path, cat, OpTransfer, err)
		return
	}

	w.index.Add(checksum, dst)
	w.res.Stats.Processed++
	logger.Get().Debug().
		Str("path", path).
		Str("destination", dst).
		Str("category", cat.String()).
		Msg("文件已整理")
}

func (w *walk) report(path string) {
	if w.opts.Progress == nil {
		return
	}
	w.opts.Progress(Progress{Done: w.seen, Total: w.total, Path: path, Stats: w.res.Stats})
}

// fail 记录错误并把文件转移到 Errors/<分类>
func (w *walk) fail(path string, cat classifier.Category, op string, cause error) {
	logger.Get().Error().Err(cause).Str("path", path).Str("op", op).Msg("处理文件失败")
	w.res.add(&FileError{Path: path, Op: op, Err: cause})

	if _, err := w.layout.Divert(path, cat, w.opts.Mode == internal.ModeMove, w.now()); err != nil {
		w.res.add(&FileError{Path: path, Op: OpDivert, Err: err})
		return
	}
	w.res.Stats.Diverted++
}
