package domain

import "time"

// TenantConfig carries per-tenant operational settings. The verification
// path reads it on every request; nothing caches it in-process.
type TenantConfig struct {
	RateLimitPerMinute int      `json:"rate_limit_per_minute"`
	DefaultProvider    string   `json:"default_provider"`
	DefaultModel       string   `json:"default_model"`
	StorageQuotaMB     int      `json:"storage_quota_mb"`
	AllowedOrigins     []string `json:"allowed_origins"`
}

// Tenant is an isolated client organization. All data and quotas are
// scoped by tenant id. Tenants are created by administrative action and
// never mutated by the verification path.
type Tenant struct {
	ID        string       `json:"id"`
	Slug      string       `json:"slug"`
	IsActive  bool         `json:"is_active"`
	Config    TenantConfig `json:"config"`
	CreatedAt time.Time    `json:"created_at"`
}

// TaskStatus is the lifecycle state of an internally-owned task.
type TaskStatus string

const (
	TaskPending      TaskStatus = "pending"
	TaskInProgress   TaskStatus = "in_progress"
	TaskCompleted    TaskStatus = "completed"
	TaskFailed       TaskStatus = "failed"
	TaskManualReview TaskStatus = "manual_review"
)

// Terminal reports whether the status admits no further verification
// transitions.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskCompleted, TaskFailed, TaskManualReview:
		return true
	}
	return false
}

// TaskTypePhotoVerification is the only task type this engine verifies.
const TaskTypePhotoVerification = "photo_verification"

// Task is an internally-owned unit of work carrying its verification
// config. External-mode verifications reference tasks owned elsewhere and
// never touch this type.
type Task struct {
	ID        string       `json:"id"`
	TenantID  string       `json:"tenant_id"`
	Type      string       `json:"type"`
	Status    TaskStatus   `json:"status"`
	Config    VerifyConfig `json:"photo_verification_config"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// NextStatus returns the task status resulting from a verification
// outcome: completed on pass, manual review on fail when fallback is
// enabled, failed otherwise. Callers must check Terminal before
// transitioning; terminal tasks never move again.
func NextStatus(passed, fallbackToManual bool) TaskStatus {
	switch {
	case passed:
		return TaskCompleted
	case fallbackToManual:
		return TaskManualReview
	default:
		return TaskFailed
	}
}

// AuditLogEntry is one append-only administrative or verification action
// record. Entries are never updated or deleted.
type AuditLogEntry struct {
	ID         string         `json:"id"`
	TenantID   string         `json:"tenant_id"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	UserID     string         `json:"user_id,omitempty"`
	Details    map[string]any `json:"details"`
	CreatedAt  time.Time      `json:"created_at"`
}
