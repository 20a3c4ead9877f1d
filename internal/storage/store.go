package storage

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store provides the persistence and audit layer over a single GORM
// connection pool. It implements the verification, task, tenant, audit,
// and usage store ports.
type Store struct {
	db *gorm.DB
}

// Open connects to Postgres and runs schema migration.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if err := db.AutoMigrate(&Tenant{}, &Task{}, &Verification{}, &AuditLog{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return &Store{db: db}, nil
}

// NewStore wraps an existing GORM handle, primarily for tests.
func NewStore(db *gorm.DB) *Store { return &Store{db: db} }
