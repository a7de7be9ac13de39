package relationships

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/lectern-backend/internal/domain"
	"github.com/yungbote/lectern-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/lectern-backend/internal/pkg/errors"
	"github.com/yungbote/lectern-backend/internal/platform/logger"
)

type RelationshipRepo interface {
	Create(dbc dbctx.Context, rel *types.DocumentRelationship) (*types.DocumentRelationship, error)
	GetByID(dbc dbctx.Context, ownerUserID, id uuid.UUID) (*types.DocumentRelationship, error)
	GetByPairKey(dbc dbctx.Context, ownerUserID uuid.UUID, pairKey string) (*types.DocumentRelationship, error)
	ListByDocument(dbc dbctx.Context, ownerUserID, documentID uuid.UUID) ([]*types.DocumentRelationship, error)
	ListReadyByDocument(dbc dbctx.Context, ownerUserID, documentID uuid.UUID) ([]*types.DocumentRelationship, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	SoftDeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error
	SoftDeleteByPairKey(dbc dbctx.Context, ownerUserID uuid.UUID, pairKey string) error
}

type relationshipRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRelationshipRepo(db *gorm.DB, baseLog *logger.Logger) RelationshipRepo {
	repoLog := baseLog.With("repo", "RelationshipRepo")
	return &relationshipRepo{db: db, log: repoLog}
}

// Create inserts a relationship, tolerating a concurrent insert of the same
// normalized pair: a conflict on pair_key surfaces as ErrAlreadyExists so
// the caller can fall back to the existing record.
func (r *relationshipRepo) Create(dbc dbctx.Context, rel *types.DocumentRelationship) (*types.DocumentRelationship, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	res := transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:     []clause.Column{{Name: "pair_key"}},
			TargetWhere: clause.Where{Exprs: []clause.Expression{clause.Expr{SQL: "deleted_at IS NULL"}}},
			DoNothing:   true,
		}).
		Create(rel)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, pkgerrors.ErrAlreadyExists
	}
	return rel, nil
}

func (r *relationshipRepo) GetByID(dbc dbctx.Context, ownerUserID, id uuid.UUID) (*types.DocumentRelationship, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	if id == uuid.Nil {
		return nil, nil
	}
	var rel types.DocumentRelationship
	err := transaction.WithContext(dbc.Ctx).
		Where("id = ? AND owner_user_id = ?", id, ownerUserID).
		Limit(1).
		Find(&rel).Error
	if err != nil {
		return nil, err
	}
	if rel.ID == uuid.Nil {
		return nil, nil
	}
	return &rel, nil
}

func (r *relationshipRepo) GetByPairKey(dbc dbctx.Context, ownerUserID uuid.UUID, pairKey string) (*types.DocumentRelationship, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	if pairKey == "" {
		return nil, nil
	}
	var rel types.DocumentRelationship
	err := transaction.WithContext(dbc.Ctx).
		Where("owner_user_id = ? AND pair_key = ?", ownerUserID, pairKey).
		Limit(1).
		Find(&rel).Error
	if err != nil {
		return nil, err
	}
	if rel.ID == uuid.Nil {
		return nil, nil
	}
	return &rel, nil
}

func (r *relationshipRepo) ListByDocument(dbc dbctx.Context, ownerUserID, documentID uuid.UUID) ([]*types.DocumentRelationship, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.DocumentRelationship
	if documentID == uuid.Nil {
		return results, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("owner_user_id = ? AND (source_document_id = ? OR target_document_id = ?)", ownerUserID, documentID, documentID).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// ListReadyByDocument returns ready relationships touching the document,
// highest score first, ties broken by most recent update.
func (r *relationshipRepo) ListReadyByDocument(dbc dbctx.Context, ownerUserID, documentID uuid.UUID) ([]*types.DocumentRelationship, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.DocumentRelationship
	if documentID == uuid.Nil {
		return results, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("owner_user_id = ? AND status = ? AND (source_document_id = ? OR target_document_id = ?)",
			ownerUserID, types.RelationshipStatusReady, documentID, documentID).
		Order("relevance_score DESC, updated_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *relationshipRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.DocumentRelationship{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *relationshipRepo) SoftDeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	if len(ids) == 0 {
		return nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("id IN ?", ids).
		Delete(&types.DocumentRelationship{}).Error; err != nil {
		return err
	}
	return nil
}

func (r *relationshipRepo) SoftDeleteByPairKey(dbc dbctx.Context, ownerUserID uuid.UUID, pairKey string) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	if pairKey == "" {
		return nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("owner_user_id = ? AND pair_key = ?", ownerUserID, pairKey).
		Delete(&types.DocumentRelationship{}).Error; err != nil {
		return err
	}
	return nil
}
