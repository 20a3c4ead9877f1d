package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/fieldproof/fieldproof/internal/domain"
)

// AppendAudit inserts one audit log entry. The table is append-only;
// nothing in this package updates or deletes rows.
func (s *Store) AppendAudit(ctx context.Context, entry *domain.AuditLogEntry) error {
	detailsJSON, err := json.Marshal(entry.Details)
	if err != nil {
		return domain.NewPersistenceError("marshal audit details", err)
	}

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	row := AuditLog{
		ID:         entry.ID,
		TenantID:   entry.TenantID,
		Action:     entry.Action,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		Details:    detailsJSON,
		CreatedAt:  entry.CreatedAt,
	}
	if entry.UserID != "" {
		row.UserID = &entry.UserID
	}

	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return domain.NewPersistenceError("insert audit entry", err)
	}
	return nil
}
