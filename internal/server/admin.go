package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fieldproof/fieldproof/internal/domain"
)

// AdminMiddleware rejects callers without the admin role. AuthMiddleware
// must run first.
func AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !authFrom(c).IsAdmin() {
			respondError(c, fmt.Errorf("%w: administrator role required", domain.ErrForbidden))
			c.Abort()
			return
		}
		c.Next()
	}
}

// createTenantRequest is the POST /api/v1/admin/tenants payload.
type createTenantRequest struct {
	Slug     string              `json:"slug" binding:"required"`
	IsActive *bool               `json:"is_active"`
	Config   domain.TenantConfig `json:"config"`
}

func (s *Server) handleCreateTenant(c *gin.Context) {
	var req createTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %v", domain.ErrValidation, err))
		return
	}

	tenant := &domain.Tenant{
		Slug:     req.Slug,
		IsActive: true,
		Config:   req.Config,
	}
	if req.IsActive != nil {
		tenant.IsActive = *req.IsActive
	}

	ctx := c.Request.Context()
	if err := s.tenants.CreateTenant(ctx, tenant); err != nil {
		respondError(c, err)
		return
	}

	auth := authFrom(c)
	if err := s.audit.AppendAudit(ctx, &domain.AuditLogEntry{
		TenantID:   tenant.ID,
		Action:     "tenant.created",
		EntityType: "tenant",
		EntityID:   tenant.ID,
		UserID:     auth.UserID,
		Details: map[string]any{
			"slug":      tenant.Slug,
			"is_active": tenant.IsActive,
		},
	}); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, tenant)
}

// createTaskRequest is the POST /api/v1/tasks payload. Tasks are created
// in the caller's own tenant; an explicit foreign tenant_id requires the
// admin role.
type createTaskRequest struct {
	TenantID string              `json:"tenant_id"`
	Config   domain.VerifyConfig `json:"config" binding:"required"`
}

func (s *Server) handleCreateTask(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %v", domain.ErrValidation, err))
		return
	}
	if err := req.Config.Validate(); err != nil {
		respondError(c, err)
		return
	}

	auth := authFrom(c)
	tenantID := req.TenantID
	if tenantID == "" {
		tenantID = auth.TenantID
	}
	if tenantID != auth.TenantID && !auth.IsAdmin() {
		respondError(c, fmt.Errorf("%w: creating tasks for tenant %q requires admin role", domain.ErrForbidden, tenantID))
		return
	}

	task := &domain.Task{
		TenantID: tenantID,
		Type:     domain.TaskTypePhotoVerification,
		Status:   domain.TaskPending,
		Config:   req.Config,
	}

	ctx := c.Request.Context()
	if err := s.tasks.CreateTask(ctx, task); err != nil {
		respondError(c, err)
		return
	}

	if err := s.audit.AppendAudit(ctx, &domain.AuditLogEntry{
		TenantID:   tenantID,
		Action:     "task.created",
		EntityType: "task",
		EntityID:   task.ID,
		UserID:     auth.UserID,
		Details: map[string]any{
			"type":     task.Type,
			"criteria": len(req.Config.Criteria),
		},
	}); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, task)
}
