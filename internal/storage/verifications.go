package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/fieldproof/fieldproof/internal/domain"
	"github.com/fieldproof/fieldproof/internal/ports"
)

// CreateVerification inserts one verification record. Failures wrap into
// a PersistenceError; the orchestrator never swallows them.
func (s *Store) CreateVerification(ctx context.Context, record *ports.VerificationRecord) error {
	criteriaJSON, err := json.Marshal(record.Result.CriteriaResults)
	if err != nil {
		return domain.NewPersistenceError("marshal criteria results", err)
	}
	configJSON, err := json.Marshal(record.ConfigUsed)
	if err != nil {
		return domain.NewPersistenceError("marshal config snapshot", err)
	}

	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	row := Verification{
		ID:                record.ID,
		TenantID:          record.TenantID,
		TaskReference:     record.Result.TaskReference,
		Mode:              string(record.Result.Mode),
		ImageURL:          record.ImageURL,
		Passed:            record.Result.Passed,
		OverallConfidence: record.Result.OverallConfidence,
		CriteriaResults:   criteriaJSON,
		ConfigUsed:        configJSON,
		ModelUsed:         record.Result.ModelUsed,
		ProcessingTimeMs:  record.Result.ProcessingTimeMs,
		RetryCount:        record.Result.RetryCount,
		InputTokens:       record.Result.InputTokens,
		OutputTokens:      record.Result.OutputTokens,
		EstimatedCostUSD:  record.Result.EstimatedCostUSD,
		ProcessedAt:       record.Result.ProcessedAt,
		CreatedAt:         record.CreatedAt,
	}
	if record.TaskID != "" {
		row.TaskID = &record.TaskID
	}

	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return domain.NewPersistenceError("insert verification", err)
	}
	return nil
}
