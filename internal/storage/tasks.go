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

// GetTask loads a task scoped to the tenant. Tasks that exist but belong
// to another tenant are indistinguishable from absent ones.
func (s *Store) GetTask(ctx context.Context, tenantID, taskID string) (*domain.Task, error) {
	var row Task
	err := s.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", taskID, tenantID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: task %s", domain.ErrNotFound, taskID)
	}
	if err != nil {
		return nil, domain.NewPersistenceError("load task", err)
	}

	var config domain.VerifyConfig
	if len(row.Config) > 0 {
		if err := json.Unmarshal(row.Config, &config); err != nil {
			return nil, domain.NewPersistenceError("decode task config", err)
		}
	}

	return &domain.Task{
		ID:        row.ID,
		TenantID:  row.TenantID,
		Type:      row.Type,
		Status:    domain.TaskStatus(row.Status),
		Config:    config,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}, nil
}

// CreateTask stores a new task.
func (s *Store) CreateTask(ctx context.Context, task *domain.Task) error {
	configJSON, err := json.Marshal(task.Config)
	if err != nil {
		return domain.NewPersistenceError("marshal task config", err)
	}

	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now

	row := Task{
		ID:        task.ID,
		TenantID:  task.TenantID,
		Type:      task.Type,
		Status:    string(task.Status),
		Config:    configJSON,
		CreatedAt: task.CreatedAt,
		UpdatedAt: task.UpdatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return domain.NewPersistenceError("insert task", err)
	}
	return nil
}

// UpdateTaskStatus transitions a task's status within its tenant scope.
func (s *Store) UpdateTaskStatus(ctx context.Context, tenantID, taskID string, status domain.TaskStatus) error {
	result := s.db.WithContext(ctx).
		Model(&Task{}).
		Where("id = ? AND tenant_id = ?", taskID, tenantID).
		Updates(map[string]any{
			"status":     string(status),
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return domain.NewPersistenceError("update task status", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: task %s", domain.ErrNotFound, taskID)
	}
	return nil
}
