package relationships

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DocumentFingerprint is the durable cache row for a document's semantic
// fingerprint. Keyed by (document_id, content_hash) so staleness is a data
// property: re-extracted content hashes to a new row.
type DocumentFingerprint struct {
	ID          uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	DocumentID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_document_fingerprint_doc_hash" json:"document_id"`
	ContentHash string    `gorm:"column:content_hash;not null;uniqueIndex:idx_document_fingerprint_doc_hash" json:"content_hash"`

	Summary    string         `gorm:"column:summary" json:"summary"`
	Keywords   datatypes.JSON `gorm:"column:keywords;type:jsonb" json:"keywords"`
	Topics     datatypes.JSON `gorm:"column:topics;type:jsonb" json:"topics"`
	MainThemes datatypes.JSON `gorm:"column:main_themes;type:jsonb" json:"main_themes"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (DocumentFingerprint) TableName() string { return "document_fingerprint" }
