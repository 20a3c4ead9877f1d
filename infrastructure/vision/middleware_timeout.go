package vision

import (
	"context"
	"time"
)

// timeoutVision bounds each provider invocation with a deadline.
type timeoutVision struct {
	next    CoreVision
	timeout time.Duration
}

// TimeoutMiddleware creates middleware that enforces a per-request
// deadline, independent of any caller-supplied deadline.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next CoreVision) CoreVision {
		return &timeoutVision{next: next, timeout: timeout}
	}
}

// DoAnalyze forwards the request under a bounded context.
func (t *timeoutVision) DoAnalyze(ctx context.Context, req Request) (string, int, int, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	return t.next.DoAnalyze(ctx, req)
}

// GetModel returns the model name from the wrapped implementation.
func (t *timeoutVision) GetModel() string { return t.next.GetModel() }
