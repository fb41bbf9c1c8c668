package pipeline

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// 批写入默认参数（对应后端单事务容量与请求预算）
const (
	DefaultBatchSize   = 25
	DefaultWindowSize  = 10
	DefaultWindowDelay = 300 * time.Millisecond
)

// PairKey 关联去重键：(站点 id, 源 POI id)
type PairKey struct {
	StopID      string
	SourcePoiID string
}

// WriterOptions 批写入配置
type WriterOptions struct {
	BatchSize   int           // 每批条数
	WindowSize  int           // 同时在途的批数
	WindowDelay time.Duration // 窗口之间的休眠
	Retry       RetryPolicy
}

// DefaultWriterOptions 默认批写入配置
func DefaultWriterOptions() WriterOptions {
	return WriterOptions{
		BatchSize:   DefaultBatchSize,
		WindowSize:  DefaultWindowSize,
		WindowDelay: DefaultWindowDelay,
		Retry:       DefaultRetryPolicy(),
	}
}

// BatchResult 单批写入结果
type BatchResult struct {
	Index   int   // 批序号
	Size    int   // 批内条数
	Retries int   // 实际重试次数（第三次才成功即为 2）
	Err     error // 耗尽重试后仍失败时非空
}

// Result 一次写入任务的汇总计数
type Result struct {
	Considered       int // 输入候选总数
	SkippedDuplicate int // 已存在而跳过的条数
	Written          int // 成功写入条数
	Failed           int // 耗尽重试后失败的条数
	Batches          []BatchResult
}

// Writer 幂等批写入器：先按 (stop_id, poi_id) 过滤已存在的候选，
// 再分批、按窗口并发提交，每批独立重试。单批失败不影响兄弟批和后续窗口。
type Writer[T any] struct {
	logger  *zap.Logger
	opts    WriterOptions
	keyFn   func(T) PairKey                        // 为 nil 时跳过去重
	writeFn func(ctx context.Context, batch []T) error
}

// NewWriter 创建批写入器
func NewWriter[T any](
	logger *zap.Logger,
	opts WriterOptions,
	keyFn func(T) PairKey,
	writeFn func(ctx context.Context, batch []T) error,
) *Writer[T] {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.WindowSize <= 0 {
		opts.WindowSize = DefaultWindowSize
	}
	return &Writer[T]{
		logger:  logger,
		opts:    opts,
		keyFn:   keyFn,
		writeFn: writeFn,
	}
}

// Write 过滤、分批并写入候选集。existing 为启动时一次性加载的已持久化键集，
// 不会按条回查。重复执行同一输入不会产生新的关联。
func (w *Writer[T]) Write(ctx context.Context, candidates []T, existing map[PairKey]struct{}) Result {
	result := Result{Considered: len(candidates)}

	// 过滤：库中已存在的和输入内部重复的都跳过
	pending := candidates
	if w.keyFn != nil {
		seen := make(map[PairKey]struct{}, len(existing))
		for k := range existing {
			seen[k] = struct{}{}
		}
		pending = make([]T, 0, len(candidates))
		for _, c := range candidates {
			key := w.keyFn(c)
			if _, ok := seen[key]; ok {
				result.SkippedDuplicate++
				continue
			}
			seen[key] = struct{}{}
			pending = append(pending, c)
		}
	}

	// 分批
	var batches [][]T
	for i := 0; i < len(pending); i += w.opts.BatchSize {
		end := i + w.opts.BatchSize
		if end > len(pending) {
			end = len(pending)
		}
		batches = append(batches, pending[i:end])
	}

	// 按窗口并发提交
	for start := 0; start < len(batches); start += w.opts.WindowSize {
		end := start + w.opts.WindowSize
		if end > len(batches) {
			end = len(batches)
		}
		window := batches[start:end]

		windowResults := make([]BatchResult, len(window))
		var wg sync.WaitGroup
		for i, batch := range window {
			wg.Add(1)
			go func(i int, batch []T) {
				defer wg.Done()
				retries, err := w.opts.Retry.Do(ctx, func(ctx context.Context) error {
					return w.writeFn(ctx, batch)
				})
				windowResults[i] = BatchResult{
					Index:   start + i,
					Size:    len(batch),
					Retries: retries,
					Err:     err,
				}
			}(i, batch)
		}
		wg.Wait()

		for _, br := range windowResults {
			result.Batches = append(result.Batches, br)
			if br.Err != nil {
				result.Failed += br.Size
				w.logger.Error("Batch write failed after retries",
					zap.Int("batch", br.Index),
					zap.Int("size", br.Size),
					zap.Int("retries", br.Retries),
					zap.Error(br.Err),
				)
				continue
			}
			result.Written += br.Size
			if br.Retries > 0 {
				w.logger.Warn("Batch write succeeded after retries",
					zap.Int("batch", br.Index),
					zap.Int("retries", br.Retries),
				)
			}
		}

		// 窗口间限速，避免压垮后端
		if end < len(batches) && w.opts.WindowDelay > 0 {
			select {
			case <-time.After(w.opts.WindowDelay):
			case <-ctx.Done():
				return result
			}
		}
	}

	return result
}
