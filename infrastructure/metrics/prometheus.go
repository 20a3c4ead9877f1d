// Package metrics implements the MetricsCollector port on Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/fieldproof/fieldproof/internal/ports"
)

// PrometheusMetrics implements ports.MetricsCollector for the
// verification engine: provider latency and token consumption,
// verification outcomes, and rate limit decisions.
type PrometheusMetrics struct {
	visionLatency    *prometheus.HistogramVec
	visionRequests   *prometheus.CounterVec
	visionTokens     *prometheus.CounterVec
	verifications    *prometheus.CounterVec
	operationLatency *prometheus.HistogramVec
	operationCounter *prometheus.CounterVec
	systemGauges     *prometheus.GaugeVec
}

// NewPrometheusMetrics registers the engine's metrics in the default
// Prometheus registry and returns the collector.
func NewPrometheusMetrics() *PrometheusMetrics {
	return &PrometheusMetrics{
		visionLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vision_latency_seconds",
				Help:    "Latency of vision provider invocations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider", "model", "status"},
		),
		visionRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vision_requests_total",
				Help: "Total vision provider invocations by outcome.",
			},
			[]string{"provider", "model", "status"},
		),
		visionTokens: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vision_tokens_total",
				Help: "Total model tokens consumed by vision invocations.",
			},
			[]string{"provider", "model", "token_type"},
		),
		verifications: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "verifications_total",
				Help: "Total verification runs by mode and verdict.",
			},
			[]string{"mode", "verdict"},
		),
		operationLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fieldproof_operation_duration_seconds",
				Help:    "Execution time of engine operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		operationCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fieldproof_operations_total",
				Help: "Total engine operations by outcome.",
			},
			[]string{"operation", "status"},
		),
		systemGauges: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fieldproof_system_state",
				Help: "Current system state values.",
			},
			[]string{"metric"},
		),
	}
}

// RecordLatency records operation latency in a histogram.
func (pm *PrometheusMetrics) RecordLatency(operation string, duration time.Duration, labels map[string]string) {
	pm.operationLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordCounter increments the counter matching the metric name.
func (pm *PrometheusMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	switch metric {
	case "vision_requests_total":
		pm.visionRequests.WithLabelValues(labels["provider"], labels["model"], labels["status"]).Add(value)
	case "vision_tokens_total":
		pm.visionTokens.WithLabelValues(labels["provider"], labels["model"], labels["token_type"]).Add(value)
	case "verifications_total":
		pm.verifications.WithLabelValues(labels["mode"], labels["verdict"]).Add(value)
	default:
		status, ok := labels["status"]
		if !ok {
			status = "success"
		}
		pm.operationCounter.WithLabelValues(metric, status).Add(value)
	}
}

// RecordGauge sets a system gauge.
func (pm *PrometheusMetrics) RecordGauge(metric string, value float64, labels map[string]string) {
	pm.systemGauges.WithLabelValues(metric).Set(value)
}

// RecordHistogram records a histogram observation, routing vision latency
// to its dedicated histogram.
func (pm *PrometheusMetrics) RecordHistogram(metric string, value float64, labels map[string]string) {
	switch metric {
	case "vision_latency_seconds":
		pm.visionLatency.WithLabelValues(labels["provider"], labels["model"], labels["status"]).Observe(value)
	default:
		pm.operationLatency.WithLabelValues(metric).Observe(value)
	}
}

// Compile-time verification that PrometheusMetrics implements MetricsCollector.
var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)
