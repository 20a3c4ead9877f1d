package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/fieldproof/fieldproof/internal/domain"
	"github.com/fieldproof/fieldproof/internal/ports"
)

const (
	// defaultRateLimitPerMinute applies when a tenant's config carries no
	// explicit limit.
	defaultRateLimitPerMinute = 60

	rateLimitWindowSeconds = 60
)

// TenantMiddleware loads the caller's tenant on every request and rejects
// inactive tenants. Tenant config is read fresh each time so limit and
// default-model changes take effect without a restart.
func TenantMiddleware(tenants ports.TenantStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := authFrom(c)

		tenant, err := tenants.GetTenant(c.Request.Context(), auth.TenantID)
		if err != nil {
			respondError(c, err)
			c.Abort()
			return
		}
		if !tenant.IsActive {
			respondError(c, fmt.Errorf("%w: tenant %s is inactive", domain.ErrForbidden, tenant.Slug))
			c.Abort()
			return
		}

		c.Set(contextKeyTenant, tenant)
		c.Next()
	}
}

// contextKeyTenant holds the loaded *domain.Tenant in the gin context.
const contextKeyTenant = "tenant"

// tenantFrom returns the tenant placed by TenantMiddleware.
func tenantFrom(c *gin.Context) *domain.Tenant {
	return c.MustGet(contextKeyTenant).(*domain.Tenant)
}

// RateLimitMiddleware enforces the tenant's per-minute quota for the
// matched route. Every response, allowed or denied, carries the standard
// X-RateLimit headers; when the counter store is unreachable the limiter
// fails open and the Remaining header is omitted.
func RateLimitMiddleware(limiter ports.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := authFrom(c)
		tenant := tenantFrom(c)

		limit := tenant.Config.RateLimitPerMinute
		if limit <= 0 {
			limit = defaultRateLimitPerMinute
		}

		decision := limiter.Check(c.Request.Context(), auth.TenantID, c.FullPath(), limit, rateLimitWindowSeconds)

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		if decision.Remaining >= 0 {
			c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		}
		c.Header("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt, 10))

		if !decision.Allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorBody{Error: errorDetail{
				Code:    domain.CodeRateLimited,
				Message: "rate limit exceeded, retry after the reset time",
			}})
			return
		}
		c.Next()
	}
}
