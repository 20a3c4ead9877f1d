package application

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fieldproof/fieldproof/internal/domain"
	"github.com/fieldproof/fieldproof/internal/ports"
)

// UsageService answers usage and billing queries with tenant isolation
// enforced before any aggregation runs.
type UsageService struct {
	store  ports.UsageStore
	logger *zap.Logger
}

// NewUsageService wires the aggregation store.
func NewUsageService(store ports.UsageStore, logger *zap.Logger) *UsageService {
	return &UsageService{store: store, logger: logger}
}

// UsageQuery is a resolved, validated usage request.
type UsageQuery struct {
	// TenantID scopes the report. Empty means a cross-tenant rollup,
	// which only administrators may request.
	TenantID string
	From     time.Time
	To       time.Time
	GroupBy  ports.UsageGranularity
}

// Report aggregates verification usage for the query's scope. Callers
// may always query their own tenant; querying another tenant or the
// all-tenant rollup requires the admin role.
func (s *UsageService) Report(ctx context.Context, auth ports.AuthContext, query UsageQuery) (*ports.UsageReport, error) {
	if query.TenantID != auth.TenantID && !auth.IsAdmin() {
		return nil, fmt.Errorf("%w: usage for tenant %q requires admin role", domain.ErrForbidden, query.TenantID)
	}
	if !query.GroupBy.Valid() {
		return nil, fmt.Errorf("%w: unsupported granularity %q", domain.ErrValidation, query.GroupBy)
	}
	if !query.To.After(query.From) {
		return nil, fmt.Errorf("%w: date range end must be after start", domain.ErrValidation)
	}

	report, err := s.store.Summarize(ctx, query.TenantID, query.From, query.To, query.GroupBy)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("usage report generated",
		zap.String("tenant_id", query.TenantID),
		zap.Time("from", query.From),
		zap.Time("to", query.To),
		zap.String("group_by", string(query.GroupBy)),
		zap.Int64("verifications", report.Summary.VerificationCount))

	return report, nil
}
