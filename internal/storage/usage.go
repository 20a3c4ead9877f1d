package storage

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/fieldproof/fieldproof/internal/domain"
	"github.com/fieldproof/fieldproof/internal/ports"
)

// usageRow is the scan target shared by the aggregation queries.
type usageRow struct {
	Bucket            string
	Model             string
	VerificationCount int64
	PassedCount       int64
	FailedCount       int64
	InputTokens       int64
	OutputTokens      int64
	TotalCostUSD      float64
	AvgLatencyMs      float64
}

const usageSelect = `COUNT(*) AS verification_count,
COALESCE(SUM(CASE WHEN passed THEN 1 ELSE 0 END), 0) AS passed_count,
COALESCE(SUM(CASE WHEN passed THEN 0 ELSE 1 END), 0) AS failed_count,
COALESCE(SUM(input_tokens), 0) AS input_tokens,
COALESCE(SUM(output_tokens), 0) AS output_tokens,
COALESCE(SUM(estimated_cost_usd), 0) AS total_cost_usd,
COALESCE(AVG(processing_time_ms), 0) AS avg_latency_ms`

// Summarize aggregates persisted verifications for a tenant and date
// range into totals, a per-model breakdown, and a time series bucketed
// by the requested granularity. An empty tenantID rolls up all tenants;
// the application layer restricts that to administrative callers. The
// three sections are independent reads and run concurrently.
func (s *Store) Summarize(ctx context.Context, tenantID string, from, to time.Time, groupBy ports.UsageGranularity) (*ports.UsageReport, error) {
	if !groupBy.Valid() {
		return nil, fmt.Errorf("%w: unsupported granularity %q", domain.ErrValidation, groupBy)
	}

	report := &ports.UsageReport{}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var row usageRow
		if err := s.usageScope(gctx, tenantID, from, to).
			Select(usageSelect).
			Scan(&row).Error; err != nil {
			return domain.NewPersistenceError("usage summary", err)
		}
		report.Summary = row.summary()
		return nil
	})

	g.Go(func() error {
		var rows []usageRow
		if err := s.usageScope(gctx, tenantID, from, to).
			Select("model_used AS model, " + usageSelect).
			Group("model_used").
			Order("model_used").
			Scan(&rows).Error; err != nil {
			return domain.NewPersistenceError("usage by model", err)
		}
		report.ByModel = make([]ports.ModelUsage, 0, len(rows))
		for _, row := range rows {
			report.ByModel = append(report.ByModel, ports.ModelUsage{Model: row.Model, UsageSummary: row.summary()})
		}
		return nil
	})

	g.Go(func() error {
		var rows []usageRow
		bucket := fmt.Sprintf("to_char(date_trunc('%s', created_at), 'YYYY-MM-DD')", groupBy)
		if err := s.usageScope(gctx, tenantID, from, to).
			Select(bucket + " AS bucket, " + usageSelect).
			Group("bucket").
			Order("bucket").
			Scan(&rows).Error; err != nil {
			return domain.NewPersistenceError("usage time series", err)
		}
		report.TimeSeries = make([]ports.UsageBucket, 0, len(rows))
		for _, row := range rows {
			report.TimeSeries = append(report.TimeSeries, ports.UsageBucket{Bucket: row.Bucket, UsageSummary: row.summary()})
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return report, nil
}

func (s *Store) usageScope(ctx context.Context, tenantID string, from, to time.Time) *gorm.DB {
	scope := s.db.WithContext(ctx).
		Model(&Verification{}).
		Where("created_at >= ? AND created_at < ?", from, to)
	if tenantID != "" {
		scope = scope.Where("tenant_id = ?", tenantID)
	}
	return scope
}

func (r usageRow) summary() ports.UsageSummary {
	return ports.UsageSummary{
		VerificationCount: r.VerificationCount,
		PassedCount:       r.PassedCount,
		FailedCount:       r.FailedCount,
		InputTokens:       r.InputTokens,
		OutputTokens:      r.OutputTokens,
		TotalCostUSD:      r.TotalCostUSD,
		AvgLatencyMs:      r.AvgLatencyMs,
	}
}
