package ports

import (
	"context"
	"time"

	"github.com/fieldproof/fieldproof/internal/domain"
)

// VerificationRecord is a persisted verification outcome: the immutable
// result plus the tenant scope, the image reference, and a snapshot of
// the config used, kept for reproducibility and audit.
type VerificationRecord struct {
	ID         string
	TenantID   string
	TaskID     string
	ImageURL   string
	ConfigUsed domain.VerifyConfig
	Result     domain.VerificationResult
	CreatedAt  time.Time
}

// VerificationStore persists verification records. Writes are insert-only
// under fresh identifiers, so concurrent requests never contend on rows.
type VerificationStore interface {
	CreateVerification(ctx context.Context, record *VerificationRecord) error
}

// TaskStore loads and transitions internally-owned tasks, always scoped
// to a tenant.
type TaskStore interface {
	// GetTask returns the task only when it belongs to the tenant;
	// otherwise domain.ErrNotFound.
	GetTask(ctx context.Context, tenantID, taskID string) (*domain.Task, error)

	// CreateTask stores a new photo verification task.
	CreateTask(ctx context.Context, task *domain.Task) error

	// UpdateTaskStatus transitions a task's status.
	UpdateTaskStatus(ctx context.Context, tenantID, taskID string, status domain.TaskStatus) error
}

// TenantStore manages tenant rows. The verification path only reads.
type TenantStore interface {
	GetTenant(ctx context.Context, tenantID string) (*domain.Tenant, error)
	CreateTenant(ctx context.Context, tenant *domain.Tenant) error
}

// AuditStore appends audit log entries. There is no update or delete.
type AuditStore interface {
	AppendAudit(ctx context.Context, entry *domain.AuditLogEntry) error
}

// UsageGranularity buckets a usage time series.
type UsageGranularity string

const (
	GroupByDay   UsageGranularity = "day"
	GroupByWeek  UsageGranularity = "week"
	GroupByMonth UsageGranularity = "month"
)

// Valid reports whether the granularity is supported.
func (g UsageGranularity) Valid() bool {
	switch g {
	case GroupByDay, GroupByWeek, GroupByMonth:
		return true
	}
	return false
}

// UsageSummary aggregates verification volume and cost.
type UsageSummary struct {
	VerificationCount int64   `json:"verification_count"`
	PassedCount       int64   `json:"passed_count"`
	FailedCount       int64   `json:"failed_count"`
	InputTokens       int64   `json:"input_tokens"`
	OutputTokens      int64   `json:"output_tokens"`
	TotalCostUSD      float64 `json:"total_cost_usd"`
	AvgLatencyMs      float64 `json:"avg_latency_ms"`
}

// ModelUsage is the per-model slice of a usage report.
type ModelUsage struct {
	Model string `json:"model"`
	UsageSummary
}

// UsageBucket is one time-series point of a usage report.
type UsageBucket struct {
	Bucket string `json:"bucket"`
	UsageSummary
}

// UsageReport is the full billing aggregation for a date range.
type UsageReport struct {
	Summary    UsageSummary  `json:"summary"`
	ByModel    []ModelUsage  `json:"by_model"`
	TimeSeries []UsageBucket `json:"time_series"`
}

// UsageStore is the read-side aggregation over persisted verifications.
// An empty tenantID requests the all-tenant rollup; the application layer
// restricts that to administrative callers.
type UsageStore interface {
	Summarize(ctx context.Context, tenantID string, from, to time.Time, groupBy UsageGranularity) (*UsageReport, error)
}
