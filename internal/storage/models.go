// Package storage persists verifications, tasks, tenants, and the audit
// log in Postgres via GORM, and serves the read-side usage aggregation.
package storage

import (
	"time"

	"gorm.io/datatypes"
)

// Verification is one persisted verification attempt. Rows are insert
// only under fresh identifiers; concurrent requests never contend.
type Verification struct {
	ID                string         `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID          string         `gorm:"type:uuid;index:idx_verifications_tenant_created" json:"tenant_id"`
	TaskID            *string        `gorm:"type:uuid;index" json:"task_id,omitempty"`
	TaskReference     string         `json:"task_reference"`
	Mode              string         `json:"mode"`
	ImageURL          string         `json:"image_url"`
	Passed            bool           `json:"passed"`
	OverallConfidence float64        `json:"overall_confidence"`
	CriteriaResults   datatypes.JSON `json:"criteria_results"`
	ConfigUsed        datatypes.JSON `json:"config_used"`
	ModelUsed         string         `gorm:"index" json:"model_used"`
	ProcessingTimeMs  int64          `json:"processing_time_ms"`
	RetryCount        int            `json:"retry_count"`
	InputTokens       int            `json:"input_tokens"`
	OutputTokens      int            `json:"output_tokens"`
	EstimatedCostUSD  float64        `json:"estimated_cost_usd"`
	ProcessedAt       time.Time      `json:"processed_at"`
	CreatedAt         time.Time      `gorm:"index:idx_verifications_tenant_created" json:"created_at"`
}

// Task is an internally-owned verification task row.
type Task struct {
	ID        string         `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID  string         `gorm:"type:uuid;index" json:"tenant_id"`
	Type      string         `json:"type"`
	Status    string         `json:"status"`
	Config    datatypes.JSON `json:"photo_verification_config"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Tenant is an isolated client organization row.
type Tenant struct {
	ID        string         `gorm:"type:uuid;primaryKey" json:"id"`
	Slug      string         `gorm:"uniqueIndex" json:"slug"`
	IsActive  bool           `json:"is_active"`
	Config    datatypes.JSON `json:"config"`
	CreatedAt time.Time      `json:"created_at"`
}

// AuditLog is one append-only action record. There is no update or
// delete path for this table.
type AuditLog struct {
	ID         string         `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID   string         `gorm:"type:uuid;index" json:"tenant_id"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	UserID     *string        `json:"user_id,omitempty"`
	Details    datatypes.JSON `json:"details"`
	CreatedAt  time.Time      `json:"created_at"`
}
