package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fieldproof/fieldproof/internal/domain"
)

// verifyRequest is the POST /api/v1/verify payload. Exactly one of
// task_id and external_task_id selects the mode; config is an optional
// override for internal tasks and mandatory for external ones.
type verifyRequest struct {
	TaskID         string               `json:"task_id"`
	ExternalTaskID string               `json:"external_task_id"`
	ImageURL       string               `json:"image_url"`
	ImageBase64    string               `json:"image_base64"`
	MediaType      string               `json:"media_type"`
	Config         *domain.VerifyConfig `json:"config"`
}

func (r verifyRequest) validate() error {
	if r.TaskID == "" && r.ExternalTaskID == "" {
		return fmt.Errorf("%w: either task_id or external_task_id is required", domain.ErrValidation)
	}
	if r.TaskID != "" && r.ExternalTaskID != "" {
		return fmt.Errorf("%w: task_id and external_task_id are mutually exclusive", domain.ErrValidation)
	}
	if r.ExternalTaskID != "" && r.Config == nil {
		return fmt.Errorf("%w: external verifications must supply a config", domain.ErrValidation)
	}
	return nil
}

// handleVerify runs one verification synchronously and returns the full
// result.
func (s *Server) handleVerify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %v", domain.ErrValidation, err))
		return
	}
	if err := req.validate(); err != nil {
		respondError(c, err)
		return
	}

	auth := authFrom(c)
	tenant := tenantFrom(c)

	image := domain.ImageInput{
		URL:       req.ImageURL,
		Base64:    req.ImageBase64,
		MediaType: req.MediaType,
	}
	if err := image.Validate(); err != nil {
		respondError(c, err)
		return
	}

	if req.Config != nil {
		applyTenantDefaults(req.Config, tenant)
	}

	var (
		result *domain.VerificationResult
		err    error
	)
	if req.TaskID != "" {
		result, err = s.orchestrator.Verify(c.Request.Context(), req.TaskID, image, auth, req.Config)
	} else {
		result, err = s.orchestrator.VerifyExternal(c.Request.Context(), req.ExternalTaskID, image, *req.Config, auth)
	}
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// applyTenantDefaults fills an unset provider or model from the tenant's
// configured defaults. A task's stored config goes through the same fill
// inside the orchestrator's registry resolution.
func applyTenantDefaults(config *domain.VerifyConfig, tenant *domain.Tenant) {
	if config.Provider == "" {
		config.Provider = tenant.Config.DefaultProvider
	}
	if config.Model == "" {
		config.Model = tenant.Config.DefaultModel
	}
}
