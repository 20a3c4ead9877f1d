package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fieldproof/fieldproof/internal/domain"
)

// GetTenant loads a tenant by id. The verification path calls this on
// every request; tenant config is never cached in-process.
func (s *Store) GetTenant(ctx context.Context, tenantID string) (*domain.Tenant, error) {
	var row Tenant
	err := s.db.WithContext(ctx).Where("id = ?", tenantID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: tenant %s", domain.ErrNotFound, tenantID)
	}
	if err != nil {
		return nil, domain.NewPersistenceError("load tenant", err)
	}

	var config domain.TenantConfig
	if len(row.Config) > 0 {
		if err := json.Unmarshal(row.Config, &config); err != nil {
			return nil, domain.NewPersistenceError("decode tenant config", err)
		}
	}

	return &domain.Tenant{
		ID:        row.ID,
		Slug:      row.Slug,
		IsActive:  row.IsActive,
		Config:    config,
		CreatedAt: row.CreatedAt,
	}, nil
}

// CreateTenant stores a new tenant row.
func (s *Store) CreateTenant(ctx context.Context, tenant *domain.Tenant) error {
	configJSON, err := json.Marshal(tenant.Config)
	if err != nil {
		return domain.NewPersistenceError("marshal tenant config", err)
	}

	if tenant.ID == "" {
		tenant.ID = uuid.NewString()
	}
	if tenant.CreatedAt.IsZero() {
		tenant.CreatedAt = time.Now().UTC()
	}

	row := Tenant{
		ID:        tenant.ID,
		Slug:      tenant.Slug,
		IsActive:  tenant.IsActive,
		Config:    configJSON,
		CreatedAt: tenant.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return domain.NewPersistenceError("insert tenant", err)
	}
	return nil
}
