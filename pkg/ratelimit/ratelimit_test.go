package ratelimit

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubModel struct {
	calls atomic.Int32
	errs  []error
}

func (s *stubModel) Generate(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	i := int(s.calls.Add(1)) - 1
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	return schema.AssistantMessage("ok", nil), nil
}

func (s *stubModel) Stream(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not implemented")
}

func (s *stubModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return s, nil
}

func TestQuotaGuardObserveAndCooldown(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	g := NewQuotaGuard(2)
	g.now = func() time.Time { return now }

	g.ObserveRemaining(10, 0)
	assert.False(t, g.Exhausted())
	rem, ok := g.Remaining()
	assert.True(t, ok)
	assert.Equal(t, 10, rem)

	g.ObserveRemaining(2, 30*time.Second)
	assert.True(t, g.Exhausted())
	assert.ErrorIs(t, g.Check(), ErrQuotaExhausted)

	now = now.Add(31 * time.Second)
	assert.False(t, g.Exhausted())
	assert.NoError(t, g.Check())

	g.Trip(0, "429")
	assert.True(t, g.Exhausted())
	g.Reset()
	assert.False(t, g.Exhausted())
}

func TestNilQuotaGuardIsPermissive(t *testing.T) {
	var g *QuotaGuard
	assert.NoError(t, g.Check())
	assert.False(t, g.Exhausted())
	g.Trip(time.Second, "ignored")
	g.ObserveRemaining(0, 0)
}

func TestQuotaErrorMatchesSentinel(t *testing.T) {
	var err error = &QuotaError{StatusCode: 429, RetryAfter: time.Second}
	assert.ErrorIs(t, err, ErrQuotaExhausted)
	assert.False(t, isRetryableError(err))
}

func TestProxyTripsGuardOnQuotaError(t *testing.T) {
	stub := &stubModel{errs: []error{&QuotaError{StatusCode: 429, RetryAfter: time.Minute}}}
	guard := NewQuotaGuard(0)
	proxy := NewRateLimitedLLMModel(stub, 600).WithQuotaGuard(guard)

	_, err := proxy.Generate(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, guard.Exhausted())

	// 冷却期内不再调用上游
	_, err = proxy.Generate(context.Background(), nil)
	assert.ErrorIs(t, err, ErrQuotaExhausted)
	assert.Equal(t, int32(1), stub.calls.Load())
}

func TestProxyRetriesOnlyTransientErrors(t *testing.T) {
	stub := &stubModel{errs: []error{errors.New("connection reset by peer")}}
	proxy := NewRateLimitedLLMModel(stub, 600).WithRetryPolicy(time.Millisecond, 1)

	msg, err := proxy.Generate(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", msg.Content)
	assert.Equal(t, int32(2), stub.calls.Load())

	// 默认不重试
	stub2 := &stubModel{errs: []error{errors.New("connection reset by peer")}}
	_, err = NewRateLimitedLLMModel(stub2, 600).Generate(context.Background(), nil)
	assert.Error(t, err)
	assert.Equal(t, int32(1), stub2.calls.Load())
}

func TestTokenBucketWaitHonoursContext(t *testing.T) {
	tb := NewTokenBucket(1, 1)
	require.True(t, tb.Allow())
	assert.False(t, tb.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, tb.Wait(ctx), context.DeadlineExceeded)
}

func TestNewLLMWithRateLimitUsesTable(t *testing.T) {
	m := NewLLMWithRateLimit(&stubModel{}, "gpt-4.1-mini", map[string]int{"gpt-4.1-mini": 100}, 10, 0, 0, nil)
	proxy, ok := m.(*RateLimitedLLMModel)
	require.True(t, ok)
	assert.InDelta(t, 90.0/60.0, proxy.rateLimiter.rate, 1e-9)
}
