package relationships

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	StatusPending   = "pending"
	StatusComputing = "computing"
	StatusReady     = "ready"
	StatusFailed    = "failed"
)

// DocumentRelationship is an undirected relevance edge between two
// documents. Source/target are normalized (lexicographically smallest id
// first) before persistence so (A,B) and (B,A) resolve to the same row;
// PairKey carries the normalized pair for the uniqueness constraint.
type DocumentRelationship struct {
	ID          uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	OwnerUserID uuid.UUID `gorm:"type:uuid;not null;index" json:"owner_user_id"`

	SourceDocumentID uuid.UUID `gorm:"type:uuid;not null;index" json:"source_document_id"`
	TargetDocumentID uuid.UUID `gorm:"type:uuid;not null;index" json:"target_document_id"`
	PairKey          string    `gorm:"column:pair_key;not null;uniqueIndex:idx_document_relationship_pair,where:deleted_at IS NULL" json:"-"`

	RelevanceScore int    `gorm:"column:relevance_score;not null;default:0" json:"relevance_score"`
	Description    string `gorm:"column:description" json:"description"`
	Status         string `gorm:"column:status;not null;default:'pending';index" json:"status"`
	LastError      string `gorm:"column:last_error" json:"last_error,omitempty"`

	// Content hashes the score/description were computed from. A mismatch
	// against the current extracted text marks the edge stale.
	SourceContentHash string `gorm:"column:source_content_hash" json:"-"`
	TargetContentHash string `gorm:"column:target_content_hash" json:"-"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (DocumentRelationship) TableName() string { return "document_relationship" }

// OtherDocumentID resolves the edge to the document on the far side of docID.
func (r *DocumentRelationship) OtherDocumentID(docID uuid.UUID) uuid.UUID {
	if r.SourceDocumentID == docID {
		return r.TargetDocumentID
	}
	return r.SourceDocumentID
}

// NormalizePair orders a document pair lexicographically by uuid string.
func NormalizePair(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if a.String() > b.String() {
		return b, a
	}
	return a, b
}

// PairKeyFor builds the canonical uniqueness key for a document pair.
func PairKeyFor(a, b uuid.UUID) string {
	lo, hi := NormalizePair(a, b)
	return lo.String() + ":" + hi.String()
}
