package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// RateLimitedLLMModel 对模型调用做限流并接入配额守卫的代理
type RateLimitedLLMModel struct {
	original    model.ToolCallingChatModel
	rateLimiter *TokenBucket
	guard       *QuotaGuard
}

// NewRateLimitedLLMModel 创建限流代理，容量为 QPM 的一半
func NewRateLimitedLLMModel(original model.ToolCallingChatModel, qpm int) *RateLimitedLLMModel {
	return &RateLimitedLLMModel{
		original:    original,
		rateLimiter: NewTokenBucket(qpm, qpm/2),
	}
}

// WithRetryPolicy 设置重试策略
func (rl *RateLimitedLLMModel) WithRetryPolicy(waitTime time.Duration, maxRetries int) *RateLimitedLLMModel {
	rl.rateLimiter.WithRetryPolicy(waitTime, maxRetries)
	return rl
}

// WithQuotaGuard 接入配额守卫
func (rl *RateLimitedLLMModel) WithQuotaGuard(g *QuotaGuard) *RateLimitedLLMModel {
	rl.guard = g
	return rl
}

// Generate 配额守卫触发时直接拒绝，不占用令牌
func (rl *RateLimitedLLMModel) Generate(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.Message, error) {
	if err := rl.guard.Check(); err != nil {
		return nil, err
	}

	var response *schema.Message
	err := rl.rateLimiter.RetryWithBackoff(ctx, func() error {
		var genErr error
		response, genErr = rl.original.Generate(ctx, messages, options...)
		return genErr
	})
	rl.observe(err)
	return response, err
}

// Stream 同 Generate
func (rl *RateLimitedLLMModel) Stream(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	if err := rl.guard.Check(); err != nil {
		return nil, err
	}

	var stream *schema.StreamReader[*schema.Message]
	err := rl.rateLimiter.RetryWithBackoff(ctx, func() error {
		var streamErr error
		stream, streamErr = rl.original.Stream(ctx, messages, options...)
		return streamErr
	})
	rl.observe(err)
	return stream, err
}

func (rl *RateLimitedLLMModel) observe(err error) {
	var qe *QuotaError
	if errors.As(err, &qe) {
		rl.guard.Trip(qe.RetryAfter, qe.Error())
	}
}

// WithTools 代理WithTools方法，共享限流器和守卫
func (rl *RateLimitedLLMModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	newModel, err := rl.original.WithTools(tools)
	if err != nil {
		return nil, err
	}
	return &RateLimitedLLMModel{
		original:    newModel,
		rateLimiter: rl.rateLimiter,
		guard:       rl.guard,
	}, nil
}

// NewLLMWithRateLimit 按模型名查 QPM 表，命中时取九成作为安全值
func NewLLMWithRateLimit(original model.ToolCallingChatModel, modelName string, qpmTable map[string]int, customQPM int, maxRetries int, retryWaitTime time.Duration, guard *QuotaGuard) model.ToolCallingChatModel {
	qpm := customQPM
	if modelQPM, ok := qpmTable[modelName]; ok && modelQPM > 0 {
		qpm = int(float64(modelQPM) * 0.9)
	}
	if qpm <= 0 {
		qpm = 30
	}

	return NewRateLimitedLLMModel(original, qpm).
		WithRetryPolicy(retryWaitTime, maxRetries).
		WithQuotaGuard(guard)
}
