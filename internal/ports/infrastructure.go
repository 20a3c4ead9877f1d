// Package ports defines the interfaces between the verification engine's
// layers. The application layer depends on these contracts; the
// infrastructure packages provide the implementations.
package ports

import (
	"context"
	"time"

	"github.com/fieldproof/fieldproof/internal/domain"
)

// VisionClient analyzes a photograph against a verification config and
// returns the provider's structured findings plus token usage for the
// invocation. Implementations must be safe for concurrent use: the
// orchestrator shares one client per provider/model across requests.
type VisionClient interface {
	// Analyze invokes the vision model once. It does not retry; transient
	// failures propagate to the orchestrator's retry loop. Token usage may
	// be non-zero even when err is non-nil, since providers can report
	// partial usage on failed calls.
	Analyze(ctx context.Context, image domain.ImageInput, config domain.VerifyConfig) (domain.VisionAnalysis, domain.TokenUsage, error)

	// Model returns the provider-specific model identifier in use.
	Model() string
}

// VisionRegistry resolves a VisionClient for a provider/model pair.
// Implementations construct clients lazily and cache them; returned
// clients are immutable and shared.
type VisionRegistry interface {
	// Client returns the client for the given provider, using the
	// provider's default model when model is empty.
	Client(provider, model string) (VisionClient, error)
}

// RateLimitDecision is the outcome of one rate-limit check.
type RateLimitDecision struct {
	// Allowed reports whether the request may proceed.
	Allowed bool

	// Remaining is the quota left in the current window, or -1 when the
	// counter store was unreachable and the limiter failed open.
	Remaining int

	// ResetAt is the epoch second at which the current window expires.
	ResetAt int64
}

// RateLimiter throttles requests per tenant and endpoint over a shared
// counter store. Implementations fail open: availability of the protected
// endpoint is prioritized over strict enforcement.
type RateLimiter interface {
	Check(ctx context.Context, tenantID, endpoint string, maxRequests, windowSeconds int) RateLimitDecision
}

// MetricsCollector abstracts metrics recording so infrastructure code
// does not depend on a concrete metrics backend.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram.
	RecordHistogram(metric string, value float64, labels map[string]string)
}

// AuthContext is the already-validated identity attached to every call.
// It arrives resolved from the authentication boundary; this subsystem
// trusts it completely and never re-derives it.
type AuthContext struct {
	TenantID   string
	TenantSlug string
	UserID     string
	Role       string
}

// RoleAdmin may provision tenants and query cross-tenant usage rollups.
const RoleAdmin = "admin"

// IsAdmin reports whether the caller holds the administrative role.
func (a AuthContext) IsAdmin() bool { return a.Role == RoleAdmin }
