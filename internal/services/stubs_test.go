package services

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	types "github.com/yungbote/lectern-backend/internal/domain"
	"github.com/yungbote/lectern-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/lectern-backend/internal/pkg/errors"
	"github.com/yungbote/lectern-backend/internal/platform/logger"
	"github.com/yungbote/lectern-backend/internal/relevance"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("production")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	return log
}

// stubAI scripts the text analysis collaborator.
type stubAI struct {
	mu          sync.Mutex
	output      string
	err         error
	calls       int
	lastPrompt  string
	lastContext string
}

func (s *stubAI) AnalyzeText(ctx context.Context, prompt, contextText string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.lastPrompt = prompt
	s.lastContext = contextText
	return s.output, s.err
}

func (s *stubAI) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubContentProvider struct {
	texts map[uuid.UUID]string
	err   error
}

func (s *stubContentProvider) GetExtractedText(ctx context.Context, documentID uuid.UUID) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.texts[documentID], nil
}

// memFingerprintRepo is an in-memory stand-in for the durable fingerprint
// store, keyed like the real table on (document_id, content_hash).
type memFingerprintRepo struct {
	mu   sync.Mutex
	rows map[string]*types.DocumentFingerprint
}

func newMemFingerprintRepo() *memFingerprintRepo {
	return &memFingerprintRepo{rows: map[string]*types.DocumentFingerprint{}}
}

func fpKey(documentID uuid.UUID, contentHash string) string {
	return documentID.String() + ":" + contentHash
}

func (m *memFingerprintRepo) GetByDocumentHash(dbc dbctx.Context, documentID uuid.UUID, contentHash string) (*types.DocumentFingerprint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.rows[fpKey(documentID, contentHash)]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (m *memFingerprintRepo) Upsert(dbc dbctx.Context, rec *types.DocumentFingerprint) (*types.DocumentFingerprint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.rows[fpKey(rec.DocumentID, rec.ContentHash)] = &cp
	return rec, nil
}

func (m *memFingerprintRepo) SoftDeleteByDocumentIDs(dbc dbctx.Context, documentIDs []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, rec := range m.rows {
		for _, id := range documentIDs {
			if rec.DocumentID == id {
				delete(m.rows, key)
			}
		}
	}
	return nil
}

func (m *memFingerprintRepo) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

// memRelationshipRepo mimics the relationship table including the pair_key
// uniqueness constraint.
type memRelationshipRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*types.DocumentRelationship
}

func newMemRelationshipRepo() *memRelationshipRepo {
	return &memRelationshipRepo{rows: map[uuid.UUID]*types.DocumentRelationship{}}
}

func (m *memRelationshipRepo) Create(dbc dbctx.Context, rel *types.DocumentRelationship) (*types.DocumentRelationship, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.PairKey == rel.PairKey {
			return nil, pkgerrors.ErrAlreadyExists
		}
	}
	cp := *rel
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	cp.UpdatedAt = cp.CreatedAt
	m.rows[cp.ID] = &cp
	return rel, nil
}

func (m *memRelationshipRepo) GetByID(dbc dbctx.Context, ownerUserID, id uuid.UUID) (*types.DocumentRelationship, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok || row.OwnerUserID != ownerUserID {
		return nil, nil
	}
	cp := *row
	return &cp, nil
}

func (m *memRelationshipRepo) GetByPairKey(dbc dbctx.Context, ownerUserID uuid.UUID, pairKey string) (*types.DocumentRelationship, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.OwnerUserID == ownerUserID && row.PairKey == pairKey {
			cp := *row
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memRelationshipRepo) ListByDocument(dbc dbctx.Context, ownerUserID, documentID uuid.UUID) ([]*types.DocumentRelationship, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*types.DocumentRelationship
	for _, row := range m.rows {
		if row.OwnerUserID != ownerUserID {
			continue
		}
		if row.SourceDocumentID == documentID || row.TargetDocumentID == documentID {
			cp := *row
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memRelationshipRepo) ListReadyByDocument(dbc dbctx.Context, ownerUserID, documentID uuid.UUID) ([]*types.DocumentRelationship, error) {
	all, _ := m.ListByDocument(dbc, ownerUserID, documentID)
	var out []*types.DocumentRelationship
	for _, row := range all {
		if row.Status == types.RelationshipStatusReady {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RelevanceScore != out[j].RelevanceScore {
			return out[i].RelevanceScore > out[j].RelevanceScore
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (m *memRelationshipRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return nil
	}
	for col, val := range updates {
		switch col {
		case "status":
			row.Status = val.(string)
		case "last_error":
			row.LastError = val.(string)
		case "relevance_score":
			row.RelevanceScore = val.(int)
		case "description":
			row.Description = val.(string)
		case "source_content_hash":
			row.SourceContentHash = val.(string)
		case "target_content_hash":
			row.TargetContentHash = val.(string)
		case "updated_at":
			if ts, ok := val.(time.Time); ok {
				row.UpdatedAt = ts
			}
		}
	}
	if _, ok := updates["updated_at"]; !ok {
		row.UpdatedAt = time.Now()
	}
	return nil
}

func (m *memRelationshipRepo) SoftDeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.rows, id)
	}
	return nil
}

func (m *memRelationshipRepo) SoftDeleteByPairKey(dbc dbctx.Context, ownerUserID uuid.UUID, pairKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, row := range m.rows {
		if row.OwnerUserID == ownerUserID && row.PairKey == pairKey {
			delete(m.rows, id)
		}
	}
	return nil
}

func (m *memRelationshipRepo) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

// fakeAnalyzer serves pre-baked snapshots per document.
type fakeAnalyzer struct {
	mu          sync.Mutex
	snapshots   map[uuid.UUID]*DocumentSnapshot
	snapshotErr error
}

func newFakeAnalyzer() *fakeAnalyzer {
	return &fakeAnalyzer{snapshots: map[uuid.UUID]*DocumentSnapshot{}}
}

func (f *fakeAnalyzer) setSnapshot(documentID uuid.UUID, fp relevance.Fingerprint, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots[documentID] = &DocumentSnapshot{
		Fingerprint: fp,
		ContentHash: hashContent(text),
		Text:        text,
	}
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, documentID uuid.UUID, rawText string) (relevance.Fingerprint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if snap, ok := f.snapshots[documentID]; ok {
		return snap.Fingerprint, nil
	}
	return relevance.Empty(documentID), nil
}

func (f *fakeAnalyzer) SnapshotForDocument(ctx context.Context, documentID uuid.UUID) (*DocumentSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.snapshotErr != nil {
		return nil, f.snapshotErr
	}
	if snap, ok := f.snapshots[documentID]; ok {
		cp := *snap
		return &cp, nil
	}
	return &DocumentSnapshot{
		Fingerprint: relevance.Empty(documentID),
		ContentHash: hashContent(""),
	}, nil
}

func (f *fakeAnalyzer) ContentHash(ctx context.Context, documentID uuid.UUID) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if snap, ok := f.snapshots[documentID]; ok {
		return snap.ContentHash, nil
	}
	return hashContent(""), nil
}

type fakeDescriber struct {
	text string
}

func (f *fakeDescriber) Describe(ctx context.Context, source relevance.Fingerprint, sourceExcerpt string, target relevance.Fingerprint, targetExcerpt string) string {
	return f.text
}
