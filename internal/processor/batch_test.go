package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ats-resume-go/internal/types"
	"ats-resume-go/pkg/ratelimit"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedProcessor 按文件名返回预设结果
type scriptedProcessor struct {
	delay    map[string]time.Duration
	errs     map[string]error
	before   func(doc Document)
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	mu       sync.Mutex
	seen     []string
}

func (s *scriptedProcessor) Process(ctx context.Context, doc Document) (*types.PipelineResult, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		m := s.maxSeen.Load()
		if n <= m || s.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}

	s.mu.Lock()
	s.seen = append(s.seen, doc.Name)
	s.mu.Unlock()

	if s.before != nil {
		s.before(doc)
	}
	if d := s.delay[doc.Name]; d > 0 {
		time.Sleep(d)
	}
	if err := s.errs[doc.Name]; err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return &types.PipelineResult{Data: &types.ResumeRecord{Name: types.FlexString(doc.Name)}, ATSScore: 50}, nil
}

func docsNamed(names ...string) []Document {
	docs := make([]Document, len(names))
	for i, n := range names {
		docs[i] = Document{Name: n, Data: []byte(n)}
	}
	return docs
}

func collect() (*[]ItemResult, ProgressFunc) {
	var items []ItemResult
	return &items, func(it ItemResult) { items = append(items, it) }
}

func TestBatchProgressFollowsInputOrder(t *testing.T) {
	proc := &scriptedProcessor{delay: map[string]time.Duration{
		"a": 40 * time.Millisecond,
		"b": 20 * time.Millisecond,
		"c": 0,
		"d": 10 * time.Millisecond,
	}}
	runner := NewBatchRunner(proc, 4, WithBatchLogger(zerolog.Nop()))

	items, onProgress := collect()
	summary, err := runner.Run(context.Background(), docsNamed("a", "b", "c", "d"), onProgress)
	require.NoError(t, err)

	require.Len(t, *items, 4)
	for i, it := range *items {
		assert.Equal(t, i, it.Index)
	}
	assert.Equal(t, 4, summary.Succeeded)
	assert.Equal(t, "c", summary.Items[2].Result.Data.Name.String())
}

func TestBatchRespectsConcurrencyLimit(t *testing.T) {
	delays := map[string]time.Duration{}
	names := make([]string, 10)
	for i := range names {
		names[i] = fmt.Sprintf("doc-%d", i)
		delays[names[i]] = 5 * time.Millisecond
	}
	proc := &scriptedProcessor{delay: delays}

	summary, err := NewBatchRunner(proc, 3, WithBatchLogger(zerolog.Nop())).Run(context.Background(), docsNamed(names...), nil)
	require.NoError(t, err)
	assert.Equal(t, 10, summary.Succeeded)
	assert.LessOrEqual(t, proc.maxSeen.Load(), int32(3))
}

func TestBatchIsolatesFailures(t *testing.T) {
	proc := &scriptedProcessor{errs: map[string]error{
		"bad.pdf": NewEmptyDocumentError("validate", MsgEmptyFile),
	}}
	items, onProgress := collect()
	summary, err := NewBatchRunner(proc, 2, WithBatchLogger(zerolog.Nop())).Run(context.Background(), docsNamed("ok1.pdf", "bad.pdf", "ok2.pdf"), onProgress)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 0, summary.Skipped)
	require.Len(t, *items, 3)
	assert.ErrorIs(t, (*items)[1].Err, ErrEmptyDocument)
	assert.False(t, (*items)[1].Skipped)
}

func TestBatchCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	proc := &scriptedProcessor{}
	items, onProgress := collect()
	summary, err := NewBatchRunner(proc, 2, WithBatchLogger(zerolog.Nop())).Run(ctx, docsNamed("a", "b"), onProgress)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBatchCancelled)

	assert.Equal(t, 2, summary.Skipped)
	assert.Empty(t, proc.seen)
	require.Len(t, *items, 2)
	for _, it := range *items {
		assert.True(t, it.Skipped)
		assert.ErrorIs(t, it.Err, ErrBatchCancelled)
	}
}

func TestBatchCancelLetsInFlightFinish(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	proc := &scriptedProcessor{
		delay: map[string]time.Duration{"first": 20 * time.Millisecond},
		before: func(doc Document) {
			if doc.Name == "first" {
				cancel()
			}
		},
	}
	items, onProgress := collect()
	summary, err := NewBatchRunner(proc, 1, WithBatchLogger(zerolog.Nop())).Run(ctx, docsNamed("first", "second", "third"), onProgress)
	assert.ErrorIs(t, err, ErrBatchCancelled)

	// 已启动的文档不受取消影响
	require.Len(t, *items, 3)
	assert.NoError(t, (*items)[0].Err)
	assert.NotNil(t, (*items)[0].Result)
	assert.True(t, (*items)[1].Skipped)
	assert.True(t, (*items)[2].Skipped)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, []string{"first"}, proc.seen)
}

func TestBatchStopsOnQuotaSignal(t *testing.T) {
	proc := &scriptedProcessor{errs: map[string]error{
		"second": NewAIRequestError("extract_structured", fmt.Errorf("429: %w", ratelimit.ErrQuotaExhausted)),
	}}
	items, onProgress := collect()
	summary, err := NewBatchRunner(proc, 1, WithBatchLogger(zerolog.Nop())).Run(context.Background(), docsNamed("first", "second", "third", "fourth"), onProgress)
	require.NoError(t, err, "配额耗尽不作为批次错误")

	assert.True(t, summary.QuotaStopped)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 3, summary.Skipped)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, []string{"first", "second"}, proc.seen)
	for _, it := range (*items)[1:] {
		assert.True(t, it.Skipped)
		assert.ErrorIs(t, it.Err, ErrQuotaExhausted)
	}
}

func TestBatchHonoursTrippedGuard(t *testing.T) {
	guard := ratelimit.NewQuotaGuard(0)
	guard.Trip(time.Minute, "remaining=0")

	proc := &scriptedProcessor{}
	summary, err := NewBatchRunner(proc, 2, WithQuotaChecker(guard), WithBatchLogger(zerolog.Nop())).Run(context.Background(), docsNamed("a", "b"), nil)
	require.NoError(t, err)
	assert.True(t, summary.QuotaStopped)
	assert.Equal(t, 2, summary.Skipped)
	assert.Empty(t, proc.seen)
}

func TestBatchEmptyInput(t *testing.T) {
	summary, err := NewBatchRunner(&scriptedProcessor{}, 0).Run(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, summary.Items)
}

func TestCancelledErrorMessage(t *testing.T) {
	err := NewCancelledError(context.Canceled)
	assert.EqualError(t, err, MsgBatchCancelled)
	assert.True(t, errors.Is(err, context.Canceled))
}
