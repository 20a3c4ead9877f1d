package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fieldproof/fieldproof/internal/application"
	"github.com/fieldproof/fieldproof/internal/domain"
	"github.com/fieldproof/fieldproof/internal/ports"
)

const testSecret = "test-secret"

func init() { gin.SetMode(gin.TestMode) }

// stubVisionClient always returns the scripted analysis.
type stubVisionClient struct {
	analysis domain.VisionAnalysis
}

func (s *stubVisionClient) Analyze(ctx context.Context, image domain.ImageInput, config domain.VerifyConfig) (domain.VisionAnalysis, domain.TokenUsage, error) {
	return s.analysis, domain.TokenUsage{InputTokens: 100, OutputTokens: 50}, nil
}

func (s *stubVisionClient) Model() string { return "gpt-4o-mini" }

type stubRegistry struct{ client ports.VisionClient }

func (s *stubRegistry) Client(provider, model string) (ports.VisionClient, error) {
	return s.client, nil
}

// stubStores implements every store port in memory.
type stubStores struct {
	tenants       map[string]*domain.Tenant
	tasks         map[string]*domain.Task
	verifications []*ports.VerificationRecord
	audits        []*domain.AuditLogEntry
	usageReport   *ports.UsageReport
}

func newStubStores() *stubStores {
	return &stubStores{
		tenants: map[string]*domain.Tenant{
			"tenant-a": {
				ID:       "tenant-a",
				Slug:     "acme",
				IsActive: true,
				Config:   domain.TenantConfig{RateLimitPerMinute: 2},
			},
		},
		tasks: make(map[string]*domain.Task),
		usageReport: &ports.UsageReport{
			Summary: ports.UsageSummary{VerificationCount: 7, TotalCostUSD: 0.0042},
		},
	}
}

func (s *stubStores) GetTenant(ctx context.Context, tenantID string) (*domain.Tenant, error) {
	tenant, ok := s.tenants[tenantID]
	if !ok {
		return nil, fmt.Errorf("%w: tenant %s", domain.ErrNotFound, tenantID)
	}
	return tenant, nil
}

func (s *stubStores) CreateTenant(ctx context.Context, tenant *domain.Tenant) error {
	if tenant.ID == "" {
		tenant.ID = "tenant-new"
	}
	s.tenants[tenant.ID] = tenant
	return nil
}

func (s *stubStores) GetTask(ctx context.Context, tenantID, taskID string) (*domain.Task, error) {
	task, ok := s.tasks[taskID]
	if !ok || task.TenantID != tenantID {
		return nil, fmt.Errorf("%w: task %s", domain.ErrNotFound, taskID)
	}
	return task, nil
}

func (s *stubStores) CreateTask(ctx context.Context, task *domain.Task) error {
	if task.ID == "" {
		task.ID = "task-new"
	}
	s.tasks[task.ID] = task
	return nil
}

func (s *stubStores) UpdateTaskStatus(ctx context.Context, tenantID, taskID string, status domain.TaskStatus) error {
	task, ok := s.tasks[taskID]
	if !ok {
		return fmt.Errorf("%w: task %s", domain.ErrNotFound, taskID)
	}
	task.Status = status
	return nil
}

func (s *stubStores) CreateVerification(ctx context.Context, record *ports.VerificationRecord) error {
	record.ID = "ver-1"
	s.verifications = append(s.verifications, record)
	return nil
}

func (s *stubStores) AppendAudit(ctx context.Context, entry *domain.AuditLogEntry) error {
	s.audits = append(s.audits, entry)
	return nil
}

func (s *stubStores) Summarize(ctx context.Context, tenantID string, from, to time.Time, groupBy ports.UsageGranularity) (*ports.UsageReport, error) {
	return s.usageReport, nil
}

// stubLimiter returns a scripted decision.
type stubLimiter struct{ decision ports.RateLimitDecision }

func (s *stubLimiter) Check(ctx context.Context, tenantID, endpoint string, maxRequests, windowSeconds int) ports.RateLimitDecision {
	return s.decision
}

func newTestServer(stores *stubStores, limiter ports.RateLimiter) *Server {
	logger := zap.NewNop()
	conf := 0.9
	registry := &stubRegistry{client: &stubVisionClient{analysis: domain.VisionAnalysis{
		CriteriaResults: []domain.Finding{
			{CriterionID: "has_products", Passed: true, ObservedValue: domain.NewBoolValue(true), Confidence: 0.9},
		},
		OverallConfidence: &conf,
	}}}

	orch := application.NewOrchestrator(registry, stores, stores, stores, domain.NewPriceTable(), logger)
	usage := application.NewUsageService(stores, logger)

	return New(orch, usage, stores, stores, stores, limiter, testSecret, logger)
}

func token(t *testing.T, auth ports.AuthContext) string {
	t.Helper()
	signed, err := GenerateToken(auth, testSecret, time.Hour)
	require.NoError(t, err)
	return signed
}

func doRequest(t *testing.T, router *gin.Engine, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func decodeError(t *testing.T, recorder *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	return body
}

var memberAuth = ports.AuthContext{TenantID: "tenant-a", TenantSlug: "acme", UserID: "user-1", Role: "member"}
var adminAuth = ports.AuthContext{TenantID: "tenant-a", TenantSlug: "acme", UserID: "admin-1", Role: ports.RoleAdmin}

func externalVerifyBody() map[string]any {
	return map[string]any{
		"external_task_id": "crm-4711",
		"image_url":        "https://example.com/shelf.jpg",
		"config": map[string]any{
			"criteria": []map[string]any{
				{"id": "has_products", "label": "Products visible", "kind": "boolean", "required": true},
			},
			"confidence_threshold": 0.7,
		},
	}
}

func allowAll() *stubLimiter {
	return &stubLimiter{decision: ports.RateLimitDecision{Allowed: true, Remaining: 1, ResetAt: 1_000_060}}
}

func TestVerifyEndpoint_RequiresAuth(t *testing.T) {
	router := newTestServer(newStubStores(), allowAll()).Router()

	recorder := doRequest(t, router, http.MethodPost, "/api/v1/verify", "", externalVerifyBody())

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestVerifyEndpoint_ExternalSuccess(t *testing.T) {
	// Given an authenticated member and a valid external request
	stores := newStubStores()
	router := newTestServer(stores, allowAll()).Router()

	// When posting
	recorder := doRequest(t, router, http.MethodPost, "/api/v1/verify", token(t, memberAuth), externalVerifyBody())

	// Then the full result comes back and the run was persisted
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	var result domain.VerificationResult
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &result))
	assert.True(t, result.Passed)
	assert.Equal(t, "crm-4711", result.TaskReference)
	assert.Equal(t, domain.ModeExternal, result.Mode)
	require.Len(t, stores.verifications, 1)
}

func TestVerifyEndpoint_ValidationFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]any)
	}{
		{
			name:   "no task reference",
			mutate: func(b map[string]any) { delete(b, "external_task_id") },
		},
		{
			name:   "both task references",
			mutate: func(b map[string]any) { b["task_id"] = "task-1" },
		},
		{
			name:   "external without config",
			mutate: func(b map[string]any) { delete(b, "config") },
		},
		{
			name: "no image source",
			mutate: func(b map[string]any) {
				delete(b, "image_url")
			},
		},
		{
			name: "both image sources",
			mutate: func(b map[string]any) {
				b["image_base64"] = "aGVsbG8="
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestServer(newStubStores(), allowAll()).Router()
			body := externalVerifyBody()
			tt.mutate(body)

			recorder := doRequest(t, router, http.MethodPost, "/api/v1/verify", token(t, memberAuth), body)

			assert.Equal(t, http.StatusBadRequest, recorder.Code)
			assert.Equal(t, domain.CodeValidation, decodeError(t, recorder).Error.Code)
		})
	}
}

func TestVerifyEndpoint_RateLimited(t *testing.T) {
	// Given a limiter that denies the request
	limiter := &stubLimiter{decision: ports.RateLimitDecision{Allowed: false, Remaining: 0, ResetAt: 1_000_060}}
	router := newTestServer(newStubStores(), limiter).Router()

	// When posting
	recorder := doRequest(t, router, http.MethodPost, "/api/v1/verify", token(t, memberAuth), externalVerifyBody())

	// Then 429 with the stable code and quota headers
	assert.Equal(t, http.StatusTooManyRequests, recorder.Code)
	assert.Equal(t, domain.CodeRateLimited, decodeError(t, recorder).Error.Code)
	assert.Equal(t, "2", recorder.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", recorder.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "1000060", recorder.Header().Get("X-RateLimit-Reset"))
}

func TestVerifyEndpoint_RateLimitHeadersOnSuccess(t *testing.T) {
	router := newTestServer(newStubStores(), allowAll()).Router()

	recorder := doRequest(t, router, http.MethodPost, "/api/v1/verify", token(t, memberAuth), externalVerifyBody())

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "1", recorder.Header().Get("X-RateLimit-Remaining"))
}

func TestVerifyEndpoint_InactiveTenant(t *testing.T) {
	// Given a deactivated tenant
	stores := newStubStores()
	stores.tenants["tenant-a"].IsActive = false
	router := newTestServer(stores, allowAll()).Router()

	recorder := doRequest(t, router, http.MethodPost, "/api/v1/verify", token(t, memberAuth), externalVerifyBody())

	assert.Equal(t, http.StatusForbidden, recorder.Code)
	assert.Equal(t, domain.CodeForbidden, decodeError(t, recorder).Error.Code)
}

func TestVerifyEndpoint_InternalTaskNotFound(t *testing.T) {
	router := newTestServer(newStubStores(), allowAll()).Router()
	body := map[string]any{
		"task_id":   "missing",
		"image_url": "https://example.com/shelf.jpg",
	}

	recorder := doRequest(t, router, http.MethodPost, "/api/v1/verify", token(t, memberAuth), body)

	assert.Equal(t, http.StatusNotFound, recorder.Code)
	assert.Equal(t, domain.CodeNotFound, decodeError(t, recorder).Error.Code)
}

func TestUsageEndpoint_OwnTenant(t *testing.T) {
	router := newTestServer(newStubStores(), allowAll()).Router()

	recorder := doRequest(t, router, http.MethodGet, "/api/v1/usage?from=2026-08-01&to=2026-08-28", token(t, memberAuth), nil)

	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	var report ports.UsageReport
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &report))
	assert.Equal(t, int64(7), report.Summary.VerificationCount)
}

func TestUsageEndpoint_CrossTenantRequiresAdmin(t *testing.T) {
	router := newTestServer(newStubStores(), allowAll()).Router()

	recorder := doRequest(t, router, http.MethodGet, "/api/v1/usage?tenant_id=tenant-b", token(t, memberAuth), nil)

	assert.Equal(t, http.StatusForbidden, recorder.Code)
	assert.Equal(t, domain.CodeForbidden, decodeError(t, recorder).Error.Code)
}

func TestUsageEndpoint_AdminRollup(t *testing.T) {
	router := newTestServer(newStubStores(), allowAll()).Router()

	recorder := doRequest(t, router, http.MethodGet, "/api/v1/usage?tenant_id=all", token(t, adminAuth), nil)

	assert.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
}

func TestUsageEndpoint_InvalidGranularity(t *testing.T) {
	router := newTestServer(newStubStores(), allowAll()).Router()

	recorder := doRequest(t, router, http.MethodGet, "/api/v1/usage?group_by=hour", token(t, memberAuth), nil)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestAdminEndpoints_RequireAdminRole(t *testing.T) {
	router := newTestServer(newStubStores(), allowAll()).Router()
	body := map[string]any{"slug": "newco"}

	recorder := doRequest(t, router, http.MethodPost, "/api/v1/admin/tenants", token(t, memberAuth), body)

	assert.Equal(t, http.StatusForbidden, recorder.Code)
}

func TestAdminCreateTenant(t *testing.T) {
	stores := newStubStores()
	router := newTestServer(stores, allowAll()).Router()
	body := map[string]any{
		"slug":   "newco",
		"config": map[string]any{"rate_limit_per_minute": 10, "default_provider": "openai"},
	}

	recorder := doRequest(t, router, http.MethodPost, "/api/v1/admin/tenants", token(t, adminAuth), body)

	require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())
	var tenant domain.Tenant
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &tenant))
	assert.Equal(t, "newco", tenant.Slug)
	assert.True(t, tenant.IsActive, "tenants default to active")
	require.Len(t, stores.audits, 1)
	assert.Equal(t, "tenant.created", stores.audits[0].Action)
}

func TestCreateTask(t *testing.T) {
	stores := newStubStores()
	router := newTestServer(stores, allowAll()).Router()
	body := map[string]any{
		"config": map[string]any{
			"criteria": []map[string]any{
				{"id": "has_products", "label": "Products visible", "kind": "boolean", "required": true},
			},
			"confidence_threshold": 0.7,
		},
	}

	recorder := doRequest(t, router, http.MethodPost, "/api/v1/tasks", token(t, memberAuth), body)

	require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())
	var task domain.Task
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &task))
	assert.Equal(t, domain.TaskPending, task.Status)
	assert.Equal(t, domain.TaskTypePhotoVerification, task.Type)
	assert.Equal(t, "tenant-a", task.TenantID)
}

func TestCreateTask_ForeignTenantRequiresAdmin(t *testing.T) {
	router := newTestServer(newStubStores(), allowAll()).Router()
	body := map[string]any{
		"tenant_id": "tenant-b",
		"config": map[string]any{
			"criteria": []map[string]any{
				{"id": "has_products", "label": "Products visible", "kind": "boolean"},
			},
		},
	}

	recorder := doRequest(t, router, http.MethodPost, "/api/v1/tasks", token(t, memberAuth), body)

	assert.Equal(t, http.StatusForbidden, recorder.Code)
	assert.Equal(t, domain.CodeForbidden, decodeError(t, recorder).Error.Code)
}

func TestHealthz(t *testing.T) {
	router := newTestServer(newStubStores(), allowAll()).Router()

	recorder := doRequest(t, router, http.MethodGet, "/healthz", "", nil)

	assert.Equal(t, http.StatusOK, recorder.Code)
}
