package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fieldproof/fieldproof/internal/application"
	"github.com/fieldproof/fieldproof/internal/domain"
	"github.com/fieldproof/fieldproof/internal/ports"
)

const usageDateLayout = "2006-01-02"

// handleUsage answers GET /api/v1/usage. Query parameters:
//
//	from, to   date range (YYYY-MM-DD, to exclusive), default last 30 days
//	group_by   day|week|month, default day
//	tenant_id  another tenant's id, or "all" for the cross-tenant rollup;
//	           both require the admin role
func (s *Server) handleUsage(c *gin.Context) {
	auth := authFrom(c)

	now := time.Now().UTC()
	from := now.AddDate(0, 0, -30).Truncate(24 * time.Hour)
	to := now

	if v := c.Query("from"); v != "" {
		parsed, err := time.Parse(usageDateLayout, v)
		if err != nil {
			respondError(c, fmt.Errorf("%w: invalid from date %q", domain.ErrValidation, v))
			return
		}
		from = parsed
	}
	if v := c.Query("to"); v != "" {
		parsed, err := time.Parse(usageDateLayout, v)
		if err != nil {
			respondError(c, fmt.Errorf("%w: invalid to date %q", domain.ErrValidation, v))
			return
		}
		to = parsed
	}

	groupBy := ports.UsageGranularity(c.DefaultQuery("group_by", string(ports.GroupByDay)))

	tenantID := auth.TenantID
	switch v := c.Query("tenant_id"); v {
	case "", tenantID:
	case "all":
		tenantID = ""
	default:
		tenantID = v
	}

	report, err := s.usage.Report(c.Request.Context(), auth, application.UsageQuery{
		TenantID: tenantID,
		From:     from,
		To:       to,
		GroupBy:  groupBy,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}
