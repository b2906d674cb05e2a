package ratelimit

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrQuotaExhausted 配额已用尽，本轮不再发起新的模型调用
var ErrQuotaExhausted = errors.New("completion quota exhausted")

// DefaultCooldown 没有 Retry-After 信息时的冷却时间
const DefaultCooldown = time.Minute

// QuotaError 上游明确拒绝(429)或剩余配额降到阈值以下
type QuotaError struct {
	StatusCode int
	RetryAfter time.Duration
	Body       string
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("quota exceeded (status %d, retry after %s): %s", e.StatusCode, e.RetryAfter, e.Body)
}

// Is 让 errors.Is(err, ErrQuotaExhausted) 对 QuotaError 成立
func (e *QuotaError) Is(target error) bool { return target == ErrQuotaExhausted }

// QuotaGuard 跟踪上游剩余配额。一旦触发，在冷却期内所有调用方都应停止发起新请求。
// 并发安全。
type QuotaGuard struct {
	mu        sync.RWMutex
	floor     int
	remaining int
	known     bool
	until     time.Time
	reason    string
	now       func() time.Time
}

// NewQuotaGuard floor: 剩余请求数小于等于该值即触发
func NewQuotaGuard(floor int) *QuotaGuard {
	if floor < 0 {
		floor = 0
	}
	return &QuotaGuard{floor: floor, now: time.Now}
}

// ObserveRemaining 记录响应头中的剩余配额，reset 为配额窗口剩余时长(未知时为 0)
func (g *QuotaGuard) ObserveRemaining(remaining int, reset time.Duration) {
	if g == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.remaining = remaining
	g.known = true
	if remaining <= g.floor {
		g.tripLocked(reset, fmt.Sprintf("remaining quota %d <= floor %d", remaining, g.floor))
	}
}

// Trip 立即触发，cooldown<=0 时使用 DefaultCooldown
func (g *QuotaGuard) Trip(cooldown time.Duration, reason string) {
	if g == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tripLocked(cooldown, reason)
}

func (g *QuotaGuard) tripLocked(cooldown time.Duration, reason string) {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	until := g.now().Add(cooldown)
	if until.After(g.until) {
		g.until = until
	}
	g.reason = reason
}

// Exhausted 当前是否处于冷却期
func (g *QuotaGuard) Exhausted() bool {
	if g == nil {
		return false
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.now().Before(g.until)
}

// Check 冷却期内返回 ErrQuotaExhausted
func (g *QuotaGuard) Check() error {
	if g == nil {
		return nil
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.now().Before(g.until) {
		return fmt.Errorf("%w: %s", ErrQuotaExhausted, g.reason)
	}
	return nil
}

// Remaining 最近一次观测到的剩余配额
func (g *QuotaGuard) Remaining() (int, bool) {
	if g == nil {
		return 0, false
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.remaining, g.known
}

// Reset 清除触发状态
func (g *QuotaGuard) Reset() {
	if g == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.until = time.Time{}
	g.reason = ""
}
