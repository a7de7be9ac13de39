package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/yungbote/lectern-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		// =========================
		// Relevance graph
		// =========================
		&types.DocumentRelationship{},
		&types.DocumentFingerprint{},
	)
}

func EnsureRelationshipIndexes(db *gorm.DB) error {
	// uuid-ossp is already enabled in NewPostgresService, but safe to re-run
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
		return fmt.Errorf("enable uuid-ossp: %w", err)
	}

	// Fast listRelated lookups from either side of the edge.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_document_relationship_owner_source
		ON document_relationship (owner_user_id, source_document_id, status, relevance_score DESC)
		WHERE deleted_at IS NULL;
	`).Error; err != nil {
		return fmt.Errorf("create idx_document_relationship_owner_source: %w", err)
	}
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_document_relationship_owner_target
		ON document_relationship (owner_user_id, target_document_id, status, relevance_score DESC)
		WHERE deleted_at IS NULL;
	`).Error; err != nil {
		return fmt.Errorf("create idx_document_relationship_owner_target: %w", err)
	}

	return nil
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	if err := AutoMigrateAll(s.db); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	if err := EnsureRelationshipIndexes(s.db); err != nil {
		s.log.Error("Relationship index migration failed", "error", err)
		return err
	}
	return nil
}
