package relevance

import (
	"encoding/json"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	types "github.com/yungbote/lectern-backend/internal/domain"
)

// Fingerprint is the in-memory semantic fingerprint of a document: the
// value the scorer and describer operate on. All set fields default to
// empty slices, never nil, so scoring never has to branch on absence.
type Fingerprint struct {
	DocumentID uuid.UUID `json:"document_id"`
	Summary    string    `json:"summary"`
	Keywords   []string  `json:"keywords"`
	Topics     []string  `json:"topics"`
	MainThemes []string  `json:"main_themes"`
}

// Empty returns a valid zero fingerprint for a document.
func Empty(documentID uuid.UUID) Fingerprint {
	return Fingerprint{
		DocumentID: documentID,
		Keywords:   []string{},
		Topics:     []string{},
		MainThemes: []string{},
	}
}

// Normalize replaces nil set fields with empty slices.
func (f Fingerprint) Normalize() Fingerprint {
	if f.Keywords == nil {
		f.Keywords = []string{}
	}
	if f.Topics == nil {
		f.Topics = []string{}
	}
	if f.MainThemes == nil {
		f.MainThemes = []string{}
	}
	return f
}

// ToRecord converts a fingerprint into its durable cache row.
func (f Fingerprint) ToRecord(contentHash string) (*types.DocumentFingerprint, error) {
	f = f.Normalize()
	keywords, err := json.Marshal(f.Keywords)
	if err != nil {
		return nil, err
	}
	topics, err := json.Marshal(f.Topics)
	if err != nil {
		return nil, err
	}
	themes, err := json.Marshal(f.MainThemes)
	if err != nil {
		return nil, err
	}
	return &types.DocumentFingerprint{
		ID:          uuid.New(),
		DocumentID:  f.DocumentID,
		ContentHash: contentHash,
		Summary:     f.Summary,
		Keywords:    datatypes.JSON(keywords),
		Topics:      datatypes.JSON(topics),
		MainThemes:  datatypes.JSON(themes),
	}, nil
}

// FromRecord rehydrates a fingerprint from its durable cache row. Corrupt
// jsonb fields decode to empty sets rather than failing the read.
func FromRecord(rec *types.DocumentFingerprint) Fingerprint {
	fp := Empty(rec.DocumentID)
	fp.Summary = rec.Summary
	fp.Keywords = decodeStringSet(rec.Keywords)
	fp.Topics = decodeStringSet(rec.Topics)
	fp.MainThemes = decodeStringSet(rec.MainThemes)
	return fp
}

func decodeStringSet(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return []string{}
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil || out == nil {
		return []string{}
	}
	return out
}
