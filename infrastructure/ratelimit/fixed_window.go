// Package ratelimit implements tenant-scoped request throttling over a
// shared counter store using fixed-window counting.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fieldproof/fieldproof/internal/ports"
)

// Counter is the minimal counter-store contract the window algorithm
// needs: an atomic increment and a best-effort expiry. Production uses
// Redis; tests use an in-memory counter.
type Counter interface {
	// Incr atomically increments the key and returns the new value.
	Incr(ctx context.Context, key string) (int64, error)

	// Expire sets a time-to-live on the key.
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

// FixedWindowLimiter counts requests per tenant and endpoint in fixed
// windows keyed by floor(now/window). When the counter store is
// unreachable it fails open: the check allows the request and reports an
// unknown remaining quota, prioritizing availability of the protected
// endpoint over strict enforcement. Counter-store failures are never
// retried.
type FixedWindowLimiter struct {
	counter Counter
	logger  *zap.Logger
	now     func() time.Time
}

var _ ports.RateLimiter = (*FixedWindowLimiter)(nil)

// Option customizes a FixedWindowLimiter.
type Option func(*FixedWindowLimiter)

// WithClock overrides the limiter's time source.
func WithClock(now func() time.Time) Option {
	return func(l *FixedWindowLimiter) { l.now = now }
}

// NewFixedWindowLimiter creates a limiter over the given counter store.
func NewFixedWindowLimiter(counter Counter, logger *zap.Logger, opts ...Option) *FixedWindowLimiter {
	l := &FixedWindowLimiter{
		counter: counter,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check increments the current window's counter and decides whether the
// request may proceed. The first increment in a window sets the key's
// TTL to the window length so counters clean themselves up.
func (l *FixedWindowLimiter) Check(ctx context.Context, tenantID, endpoint string, maxRequests, windowSeconds int) ports.RateLimitDecision {
	window := int64(windowSeconds)
	nowEpoch := l.now().Unix()
	windowStart := nowEpoch / window
	resetAt := (windowStart + 1) * window

	key := fmt.Sprintf("rl:%s:%s:%d", tenantID, endpoint, windowStart)

	count, err := l.counter.Incr(ctx, key)
	if err != nil {
		if l.logger != nil {
			l.logger.Warn("rate limit counter store unreachable, failing open",
				zap.String("tenant_id", tenantID),
				zap.String("endpoint", endpoint),
				zap.Error(err))
		}
		return ports.RateLimitDecision{Allowed: true, Remaining: -1, ResetAt: resetAt}
	}

	if count == 1 {
		if err := l.counter.Expire(ctx, key, time.Duration(windowSeconds)*time.Second); err != nil && l.logger != nil {
			// The key leaks until the next window on expiry failure;
			// counting stays correct either way.
			l.logger.Warn("failed to set rate limit key TTL", zap.String("key", key), zap.Error(err))
		}
	}

	remaining := maxRequests - int(count)
	if remaining < 0 {
		remaining = 0
	}

	return ports.RateLimitDecision{
		Allowed:   count <= int64(maxRequests),
		Remaining: remaining,
		ResetAt:   resetAt,
	}
}
