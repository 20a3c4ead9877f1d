// Package server exposes the verification engine over HTTP: a verify
// endpoint, usage reporting, administrative provisioning, health and
// metrics. Authentication, tenant loading, and rate limiting run as
// middleware in that order.
package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fieldproof/fieldproof/internal/application"
	"github.com/fieldproof/fieldproof/internal/ports"
)

// Server holds the handler dependencies.
type Server struct {
	orchestrator *application.Orchestrator
	usage        *application.UsageService
	tenants      ports.TenantStore
	tasks        ports.TaskStore
	audit        ports.AuditStore
	limiter      ports.RateLimiter
	jwtSecret    string
	logger       *zap.Logger
}

// New assembles the server.
func New(
	orchestrator *application.Orchestrator,
	usage *application.UsageService,
	tenants ports.TenantStore,
	tasks ports.TaskStore,
	audit ports.AuditStore,
	limiter ports.RateLimiter,
	jwtSecret string,
	logger *zap.Logger,
) *Server {
	return &Server{
		orchestrator: orchestrator,
		usage:        usage,
		tenants:      tenants,
		tasks:        tasks,
		audit:        audit,
		limiter:      limiter,
		jwtSecret:    jwtSecret,
		logger:       logger,
	}
}

// Router builds the gin engine with all routes and middleware attached.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(s.requestLogger(), gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	api.Use(AuthMiddleware(s.jwtSecret), TenantMiddleware(s.tenants))

	api.POST("/verify", RateLimitMiddleware(s.limiter), s.handleVerify)
	api.POST("/tasks", s.handleCreateTask)
	api.GET("/usage", s.handleUsage)

	admin := api.Group("/admin")
	admin.Use(AdminMiddleware())
	admin.POST("/tenants", s.handleCreateTenant)

	return router
}

// requestLogger emits one structured line per request.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.logger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}
