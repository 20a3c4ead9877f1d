package vision

import (
	"context"
	"time"

	"github.com/fieldproof/fieldproof/internal/ports"
)

// metricsVision records request latency, outcome, and token usage for
// every provider invocation.
type metricsVision struct {
	next      CoreVision
	provider  string
	collector ports.MetricsCollector
}

// MetricsMiddleware creates middleware that collects per-request metrics
// for operational monitoring of vision usage and cost.
func MetricsMiddleware(provider string, collector ports.MetricsCollector) Middleware {
	return func(next CoreVision) CoreVision {
		return &metricsVision{next: next, provider: provider, collector: collector}
	}
}

// DoAnalyze executes the request while recording latency, request, and
// token counters.
func (m *metricsVision) DoAnalyze(ctx context.Context, req Request) (string, int, int, error) {
	start := time.Now()
	response, tokensIn, tokensOut, err := m.next.DoAnalyze(ctx, req)

	labels := map[string]string{
		"provider": m.provider,
		"model":    m.next.GetModel(),
		"status":   "success",
	}
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			labels["status"] = "timeout"
		} else {
			labels["status"] = "error"
		}
	}

	if m.collector != nil {
		m.collector.RecordHistogram("vision_latency_seconds", time.Since(start).Seconds(), labels)
		m.collector.RecordCounter("vision_requests_total", 1, labels)

		labels["token_type"] = "input"
		m.collector.RecordCounter("vision_tokens_total", float64(tokensIn), labels)
		labels["token_type"] = "output"
		m.collector.RecordCounter("vision_tokens_total", float64(tokensOut), labels)
	}

	return response, tokensIn, tokensOut, err
}

// GetModel returns the model name from the wrapped implementation.
func (m *metricsVision) GetModel() string { return m.next.GetModel() }
