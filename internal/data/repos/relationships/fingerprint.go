package relationships

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/lectern-backend/internal/domain"
	"github.com/yungbote/lectern-backend/internal/pkg/dbctx"
	"github.com/yungbote/lectern-backend/internal/platform/logger"
)

type FingerprintRepo interface {
	GetByDocumentHash(dbc dbctx.Context, documentID uuid.UUID, contentHash string) (*types.DocumentFingerprint, error)
	Upsert(dbc dbctx.Context, rec *types.DocumentFingerprint) (*types.DocumentFingerprint, error)
	SoftDeleteByDocumentIDs(dbc dbctx.Context, documentIDs []uuid.UUID) error
}

type fingerprintRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFingerprintRepo(db *gorm.DB, baseLog *logger.Logger) FingerprintRepo {
	repoLog := baseLog.With("repo", "FingerprintRepo")
	return &fingerprintRepo{db: db, log: repoLog}
}

func (r *fingerprintRepo) GetByDocumentHash(dbc dbctx.Context, documentID uuid.UUID, contentHash string) (*types.DocumentFingerprint, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	if documentID == uuid.Nil || contentHash == "" {
		return nil, nil
	}
	var rec types.DocumentFingerprint
	err := transaction.WithContext(dbc.Ctx).
		Where("document_id = ? AND content_hash = ?", documentID, contentHash).
		Limit(1).
		Find(&rec).Error
	if err != nil {
		return nil, err
	}
	if rec.ID == uuid.Nil {
		return nil, nil
	}
	return &rec, nil
}

// Upsert writes a fingerprint row, last writer wins. Fingerprints are pure
// functions of document content, so a concurrent recomputation writing the
// same (document_id, content_hash) key carries equivalent data.
func (r *fingerprintRepo) Upsert(dbc dbctx.Context, rec *types.DocumentFingerprint) (*types.DocumentFingerprint, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	if err := transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "document_id"}, {Name: "content_hash"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"summary":     rec.Summary,
				"keywords":    rec.Keywords,
				"topics":      rec.Topics,
				"main_themes": rec.MainThemes,
				"updated_at":  time.Now(),
			}),
		}).
		Create(rec).Error; err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *fingerprintRepo) SoftDeleteByDocumentIDs(dbc dbctx.Context, documentIDs []uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	if len(documentIDs) == 0 {
		return nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("document_id IN ?", documentIDs).
		Delete(&types.DocumentFingerprint{}).Error; err != nil {
		return err
	}
	return nil
}
