package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	types "github.com/yungbote/lectern-backend/internal/domain"
	pkgerrors "github.com/yungbote/lectern-backend/internal/pkg/errors"
	"github.com/yungbote/lectern-backend/internal/platform/logger"
	"github.com/yungbote/lectern-backend/internal/requestdata"
	"github.com/yungbote/lectern-backend/internal/services"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("production")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	return log
}

// stubEngine scripts the relevance engine per test.
type stubEngine struct {
	ensureRel  *types.DocumentRelationship
	ensureErr  error
	requeued   int
	related    []services.RelatedDocument
	removedIDs []uuid.UUID
}

func (s *stubEngine) Start(ctx context.Context) {}

func (s *stubEngine) EnsureComputed(ctx context.Context, ownerUserID, docA, docB uuid.UUID) (*types.DocumentRelationship, error) {
	return s.ensureRel, s.ensureErr
}

func (s *stubEngine) RecomputeForDocument(ctx context.Context, ownerUserID, documentID uuid.UUID) (int, error) {
	return s.requeued, nil
}

func (s *stubEngine) ListRelated(ctx context.Context, ownerUserID, documentID uuid.UUID) ([]services.RelatedDocument, error) {
	return s.related, nil
}

func (s *stubEngine) RemoveRelationship(ctx context.Context, ownerUserID, relationshipID uuid.UUID) error {
	s.removedIDs = append(s.removedIDs, relationshipID)
	return nil
}

func authAs(userID uuid.UUID) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := requestdata.WithRequestData(c.Request.Context(), &requestdata.RequestData{UserID: userID})
		c.Request = c.Request.WithContext(ctx)
	}
}

func newTestRouter(t *testing.T, engine services.RelevanceEngine, userID uuid.UUID) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := NewRelationshipHandler(testLogger(t), engine)
	router := gin.New()
	group := router.Group("/api")
	if userID != uuid.Nil {
		group.Use(authAs(userID))
	}
	group.GET("/documents/:documentId/relationships", h.ListForDocument)
	group.POST("/documents/:documentId/relationships/recompute", h.Recompute)
	group.POST("/relationships/link", h.Link)
	group.DELETE("/relationships/:relationshipId", h.Remove)
	return router
}

func TestListForDocument(t *testing.T) {
	userID, docID, otherID := uuid.New(), uuid.New(), uuid.New()
	engine := &stubEngine{related: []services.RelatedDocument{{
		RelationshipID:    uuid.New(),
		RelatedDocumentID: otherID,
		RelevanceScore:    82,
		Description:       "Both documents discuss ethics.",
		Status:            types.RelationshipStatusReady,
	}}}
	router := newTestRouter(t, engine, userID)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/documents/"+docID.String()+"/relationships", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var body struct {
		Relationships []services.RelatedDocument `json:"relationships"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Relationships) != 1 || body.Relationships[0].RelatedDocumentID != otherID {
		t.Fatalf("body = %+v", body)
	}
}

func TestListForDocumentRejectsBadID(t *testing.T) {
	router := newTestRouter(t, &stubEngine{}, uuid.New())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/documents/not-a-uuid/relationships", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestListForDocumentRequiresPrincipal(t *testing.T) {
	router := newTestRouter(t, &stubEngine{}, uuid.Nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/documents/"+uuid.New().String()+"/relationships", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestLinkAcceptsPair(t *testing.T) {
	userID := uuid.New()
	rel := &types.DocumentRelationship{
		ID:     uuid.New(),
		Status: types.RelationshipStatusPending,
	}
	router := newTestRouter(t, &stubEngine{ensureRel: rel}, userID)

	payload, _ := json.Marshal(gin.H{
		"source_document_id": uuid.New(),
		"target_document_id": uuid.New(),
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/relationships/link", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var body struct {
		Relationship types.DocumentRelationship `json:"relationship"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Relationship.ID != rel.ID || body.Relationship.Status != types.RelationshipStatusPending {
		t.Fatalf("body = %+v", body)
	}
}

func TestLinkRejectsInvalidPair(t *testing.T) {
	engine := &stubEngine{ensureErr: fmt.Errorf("%w: cannot relate a document to itself", pkgerrors.ErrInvalidArgument)}
	router := newTestRouter(t, engine, uuid.New())

	docID := uuid.New()
	payload, _ := json.Marshal(gin.H{
		"source_document_id": docID,
		"target_document_id": docID,
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/relationships/link", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestLinkRejectsMalformedBody(t *testing.T) {
	router := newTestRouter(t, &stubEngine{}, uuid.New())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/relationships/link", bytes.NewReader([]byte(`{"source_document_id": ""}`)))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestRecompute(t *testing.T) {
	router := newTestRouter(t, &stubEngine{requeued: 2}, uuid.New())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/documents/"+uuid.New().String()+"/relationships/recompute", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var body struct {
		Requeued int `json:"requeued"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Requeued != 2 {
		t.Fatalf("requeued = %d, want 2", body.Requeued)
	}
}

func TestRemove(t *testing.T) {
	engine := &stubEngine{}
	router := newTestRouter(t, engine, uuid.New())

	relID := uuid.New()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/api/relationships/"+relID.String(), nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
	if len(engine.removedIDs) != 1 || engine.removedIDs[0] != relID {
		t.Fatalf("removed = %v", engine.removedIDs)
	}
}
