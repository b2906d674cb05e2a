package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"ats-resume-go/internal/types"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// DocumentProcessor 处理单份文档，*ResumePipeline 满足
type DocumentProcessor interface {
	Process(ctx context.Context, doc Document) (*types.PipelineResult, error)
}

// ItemResult 批处理中一份文档的结果。Skipped 表示文档未被处理(取消或配额耗尽)
type ItemResult struct {
	Index   int
	Name    string
	Result  *types.PipelineResult
	Err     error
	Skipped bool
}

// ProgressFunc 每完成或跳过一份文档调用一次，按输入顺序串行调用
type ProgressFunc func(ItemResult)

// BatchSummary 批处理汇总
type BatchSummary struct {
	Items     []ItemResult
	Succeeded int
	Failed    int
	Skipped   int
	// 配额耗尽导致提前停止
	QuotaStopped bool
}

// BatchRunner 并发处理一批文档
type BatchRunner struct {
	processor   DocumentProcessor
	concurrency int
	quota       QuotaChecker
	logger      zerolog.Logger
}

// BatchOption 批处理选项
type BatchOption func(*BatchRunner)

// WithQuotaChecker 设置配额护栏，触发后剩余文档被跳过
func WithQuotaChecker(q QuotaChecker) BatchOption {
	return func(b *BatchRunner) { b.quota = q }
}

// WithBatchLogger 设置日志
func WithBatchLogger(l zerolog.Logger) BatchOption {
	return func(b *BatchRunner) { b.logger = l }
}

// NewBatchRunner 创建批处理器，concurrency 小于 1 时按 1 处理
func NewBatchRunner(p DocumentProcessor, concurrency int, opts ...BatchOption) *BatchRunner {
	if concurrency < 1 {
		concurrency = 1
	}
	b := &BatchRunner{
		processor:   p,
		concurrency: concurrency,
		logger:      log.Logger.With().Str("component", "batch_runner").Logger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// orderedEmitter 重排缓冲：完成顺序任意，回调严格按输入顺序
type orderedEmitter struct {
	mu    sync.Mutex
	items []ItemResult
	ready []bool
	next  int
	emit  ProgressFunc
}

func (o *orderedEmitter) complete(item ItemResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.items[item.Index] = item
	o.ready[item.Index] = true
	for o.next < len(o.items) && o.ready[o.next] {
		if o.emit != nil {
			o.emit(o.items[o.next])
		}
		o.next++
	}
}

// Run 处理 docs。ctx 取消后不再启动新文档，已启动的文档继续完成，其余记为跳过并返回 ErrBatchCancelled。
// 单份失败互不影响；配额耗尽后其余文档记为跳过，不作为错误返回。
func (b *BatchRunner) Run(ctx context.Context, docs []Document, onProgress ProgressFunc) (*BatchSummary, error) {
	ctx, span := tracer.Start(ctx, "BatchRunner.Run")
	defer span.End()
	span.SetAttributes(attribute.Int("batch.size", len(docs)), attribute.Int("batch.concurrency", b.concurrency))

	start := time.Now()
	emitter := &orderedEmitter{
		items: make([]ItemResult, len(docs)),
		ready: make([]bool, len(docs)),
		emit:  onProgress,
	}

	var quotaStopped atomic.Bool
	stopReason := func() error {
		if ctx.Err() != nil {
			return NewCancelledError(ctx.Err())
		}
		if quotaStopped.Load() {
			return NewAIRequestError("batch", ErrQuotaExhausted)
		}
		if b.quota != nil {
			if err := b.quota.Check(); err != nil {
				quotaStopped.Store(true)
				return NewAIRequestError("batch", err)
			}
		}
		return nil
	}

	// 已发出的模型调用无法廉价中止，单份处理不继承批次的取消
	itemCtx := context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(b.concurrency)
	for i, doc := range docs {
		if err := stopReason(); err != nil {
			emitter.complete(ItemResult{Index: i, Name: doc.Name, Err: err, Skipped: true})
			continue
		}
		g.Go(func() error {
			// 排队期间可能已被取消或触发配额
			if err := stopReason(); err != nil {
				emitter.complete(ItemResult{Index: i, Name: doc.Name, Err: err, Skipped: true})
				return nil
			}
			result, err := b.processor.Process(itemCtx, doc)
			item := ItemResult{Index: i, Name: doc.Name, Result: result, Err: err}
			if errors.Is(err, ErrQuotaExhausted) {
				quotaStopped.Store(true)
				item.Skipped = true
			}
			emitter.complete(item)
			return nil
		})
	}
	_ = g.Wait()

	summary := &BatchSummary{Items: emitter.items, QuotaStopped: quotaStopped.Load()}
	for _, it := range summary.Items {
		switch {
		case it.Skipped:
			summary.Skipped++
		case it.Err != nil:
			summary.Failed++
		default:
			summary.Succeeded++
		}
	}
	span.SetAttributes(
		attribute.Int("batch.succeeded", summary.Succeeded),
		attribute.Int("batch.failed", summary.Failed),
		attribute.Int("batch.skipped", summary.Skipped),
	)
	b.logger.Info().
		Int("total", len(docs)).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Int("skipped", summary.Skipped).
		Bool("quota_stopped", summary.QuotaStopped).
		Dur("elapsed", time.Since(start)).
		Msg("批处理结束")

	if ctx.Err() != nil {
		return summary, fmt.Errorf("%w: %v", ErrBatchCancelled, ctx.Err())
	}
	return summary, nil
}
