package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/lectern-backend/internal/data/repos/relationships"
	"github.com/yungbote/lectern-backend/internal/platform/logger"
)

type RelationshipRepo = relationships.RelationshipRepo
type FingerprintRepo = relationships.FingerprintRepo

func NewRelationshipRepo(db *gorm.DB, baseLog *logger.Logger) RelationshipRepo {
	return relationships.NewRelationshipRepo(db, baseLog)
}

func NewFingerprintRepo(db *gorm.DB, baseLog *logger.Logger) FingerprintRepo {
	return relationships.NewFingerprintRepo(db, baseLog)
}
