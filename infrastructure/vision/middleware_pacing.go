package vision

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// pacedVision applies client-side token-bucket pacing toward a provider.
// This is request pacing against the provider's own API limits, distinct
// from the tenant-facing fixed-window limiter in infrastructure/ratelimit.
type pacedVision struct {
	next    CoreVision
	limiter *rate.Limiter
}

// PacingMiddleware creates middleware that paces requests to a provider
// using a token bucket. The limit sets sustained requests per second and
// burst allows short spikes above it.
func PacingMiddleware(limit rate.Limit, burst int) Middleware {
	limiter := rate.NewLimiter(limit, burst)
	return func(next CoreVision) CoreVision {
		return &pacedVision{next: next, limiter: limiter}
	}
}

// DoAnalyze blocks until a token is available, then forwards the request.
// Context cancellation during the wait aborts immediately.
func (p *pacedVision) DoAnalyze(ctx context.Context, req Request) (string, int, int, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", 0, 0, fmt.Errorf("provider pacing: %w", err)
	}
	return p.next.DoAnalyze(ctx, req)
}

// GetModel returns the model name from the wrapped implementation.
func (p *pacedVision) GetModel() string { return p.next.GetModel() }
