package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/lectern-backend/internal/data/repos"
	types "github.com/yungbote/lectern-backend/internal/domain"
	"github.com/yungbote/lectern-backend/internal/jobs/queue"
	"github.com/yungbote/lectern-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/lectern-backend/internal/pkg/errors"
	"github.com/yungbote/lectern-backend/internal/platform/logger"
	"github.com/yungbote/lectern-backend/internal/relevance"
)

// RelatedDocument is the consumer-facing view of one relevance edge,
// resolved to the far side of the queried document.
type RelatedDocument struct {
	RelationshipID    uuid.UUID `json:"relationship_id"`
	RelatedDocumentID uuid.UUID `json:"related_document_id"`
	RelevanceScore    int       `json:"relevance_score"`
	Description       string    `json:"description"`
	Status            string    `json:"status"`
}

// RelevanceEngine maintains the document relationship graph: it creates
// pending edges, schedules their computation on the background queue, and
// executes the analyze-score-describe sequence for each job.
type RelevanceEngine interface {
	Start(ctx context.Context)
	EnsureComputed(ctx context.Context, ownerUserID, docA, docB uuid.UUID) (*types.DocumentRelationship, error)
	RecomputeForDocument(ctx context.Context, ownerUserID, documentID uuid.UUID) (int, error)
	ListRelated(ctx context.Context, ownerUserID, documentID uuid.UUID) ([]RelatedDocument, error)
	RemoveRelationship(ctx context.Context, ownerUserID, relationshipID uuid.UUID) error
}

type relevanceEngine struct {
	log              *logger.Logger
	relationshipRepo repos.RelationshipRepo
	analyzer         DocumentAnalyzer
	describer        RelationshipDescriber
	queue            *queue.Queue
}

func NewRelevanceEngine(
	baseLog *logger.Logger,
	relationshipRepo repos.RelationshipRepo,
	analyzer DocumentAnalyzer,
	describer RelationshipDescriber,
	q *queue.Queue,
) RelevanceEngine {
	serviceLog := baseLog.With("service", "RelevanceEngine")
	return &relevanceEngine{
		log:              serviceLog,
		relationshipRepo: relationshipRepo,
		analyzer:         analyzer,
		describer:        describer,
		queue:            q,
	}
}

func (e *relevanceEngine) Start(ctx context.Context) {
	e.queue.Start(ctx, e.processJob, e.onJobExhausted)
}

// EnsureComputed creates a pending relationship for the pair if none exists
// and schedules its computation. Idempotent: an existing ready record is
// returned unchanged, and (A,B) vs (B,A) resolve to the same record.
func (e *relevanceEngine) EnsureComputed(ctx context.Context, ownerUserID, docA, docB uuid.UUID) (*types.DocumentRelationship, error) {
	if ownerUserID == uuid.Nil || docA == uuid.Nil || docB == uuid.Nil {
		return nil, fmt.Errorf("%w: missing document or owner id", pkgerrors.ErrInvalidArgument)
	}
	if docA == docB {
		return nil, fmt.Errorf("%w: cannot relate a document to itself", pkgerrors.ErrInvalidArgument)
	}

	dbc := dbctx.Context{Ctx: ctx}
	source, target := types.NormalizePair(docA, docB)
	pairKey := types.PairKeyFor(docA, docB)

	rel, err := e.relationshipRepo.GetByPairKey(dbc, ownerUserID, pairKey)
	if err != nil {
		return nil, fmt.Errorf("lookup relationship: %w", err)
	}

	if rel == nil {
		rel = &types.DocumentRelationship{
			ID:               uuid.New(),
			OwnerUserID:      ownerUserID,
			SourceDocumentID: source,
			TargetDocumentID: target,
			PairKey:          pairKey,
			Status:           types.RelationshipStatusPending,
		}
		if _, err := e.relationshipRepo.Create(dbc, rel); err != nil {
			if !errors.Is(err, pkgerrors.ErrAlreadyExists) {
				return nil, fmt.Errorf("create relationship: %w", err)
			}
			// A concurrent EnsureComputed won the insert; fall back to
			// the existing record.
			rel, err = e.relationshipRepo.GetByPairKey(dbc, ownerUserID, pairKey)
			if err != nil {
				return nil, fmt.Errorf("lookup relationship after conflict: %w", err)
			}
			if rel == nil {
				return nil, fmt.Errorf("relationship vanished after pair conflict")
			}
		}
	}

	if rel.Status == types.RelationshipStatusReady {
		return rel, nil
	}

	if rel.Status == types.RelationshipStatusFailed {
		if err := e.relationshipRepo.UpdateFields(dbc, rel.ID, map[string]interface{}{
			"status":     types.RelationshipStatusPending,
			"last_error": "",
		}); err != nil {
			return nil, fmt.Errorf("reset failed relationship: %w", err)
		}
		rel.Status = types.RelationshipStatusPending
		rel.LastError = ""
	}

	e.enqueue(rel)
	return rel, nil
}

// RecomputeForDocument re-enqueues every relationship touching the document
// whose stored content hashes no longer match the current extracted text.
// Returns the number of re-enqueued relationships.
func (e *relevanceEngine) RecomputeForDocument(ctx context.Context, ownerUserID, documentID uuid.UUID) (int, error) {
	if ownerUserID == uuid.Nil || documentID == uuid.Nil {
		return 0, fmt.Errorf("%w: missing document or owner id", pkgerrors.ErrInvalidArgument)
	}

	dbc := dbctx.Context{Ctx: ctx}
	rels, err := e.relationshipRepo.ListByDocument(dbc, ownerUserID, documentID)
	if err != nil {
		return 0, fmt.Errorf("list relationships: %w", err)
	}
	if len(rels) == 0 {
		return 0, nil
	}

	hashes := map[uuid.UUID]string{}
	docIDs := map[uuid.UUID]bool{documentID: true}
	for _, rel := range rels {
		docIDs[rel.OtherDocumentID(documentID)] = true
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for docID := range docIDs {
		g.Go(func() error {
			hash, err := e.analyzer.ContentHash(gctx, docID)
			if err != nil {
				return fmt.Errorf("content hash for %s: %w", docID, err)
			}
			mu.Lock()
			hashes[docID] = hash
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	requeued := 0
	for _, rel := range rels {
		if !e.isStale(rel, hashes) {
			continue
		}
		if err := e.relationshipRepo.UpdateFields(dbc, rel.ID, map[string]interface{}{
			"status":     types.RelationshipStatusPending,
			"last_error": "",
		}); err != nil {
			e.log.Warn("Failed to mark relationship stale", "relationship_id", rel.ID, "error", err)
			continue
		}
		e.enqueue(rel)
		requeued++
	}
	e.log.Info("Recompute scheduled",
		"document_id", documentID,
		"relationships", len(rels),
		"requeued", requeued,
	)
	return requeued, nil
}

func (e *relevanceEngine) isStale(rel *types.DocumentRelationship, hashes map[uuid.UUID]string) bool {
	if rel.Status != types.RelationshipStatusReady {
		// pending/computing edges are already queued or running; failed
		// edges stay failed until re-linked or their content changes.
		if rel.Status != types.RelationshipStatusFailed {
			return false
		}
	}
	if hash, ok := hashes[rel.SourceDocumentID]; ok && hash != rel.SourceContentHash {
		return true
	}
	if hash, ok := hashes[rel.TargetDocumentID]; ok && hash != rel.TargetContentHash {
		return true
	}
	return false
}

func (e *relevanceEngine) ListRelated(ctx context.Context, ownerUserID, documentID uuid.UUID) ([]RelatedDocument, error) {
	if ownerUserID == uuid.Nil || documentID == uuid.Nil {
		return nil, fmt.Errorf("%w: missing document or owner id", pkgerrors.ErrInvalidArgument)
	}

	rels, err := e.relationshipRepo.ListReadyByDocument(dbctx.Context{Ctx: ctx}, ownerUserID, documentID)
	if err != nil {
		return nil, fmt.Errorf("list ready relationships: %w", err)
	}
	out := make([]RelatedDocument, 0, len(rels))
	for _, rel := range rels {
		out = append(out, RelatedDocument{
			RelationshipID:    rel.ID,
			RelatedDocumentID: rel.OtherDocumentID(documentID),
			RelevanceScore:    rel.RelevanceScore,
			Description:       rel.Description,
			Status:            rel.Status,
		})
	}
	return out, nil
}

// RemoveRelationship is idempotent; removing an unknown id is not an error.
func (e *relevanceEngine) RemoveRelationship(ctx context.Context, ownerUserID, relationshipID uuid.UUID) error {
	if ownerUserID == uuid.Nil || relationshipID == uuid.Nil {
		return fmt.Errorf("%w: missing relationship or owner id", pkgerrors.ErrInvalidArgument)
	}

	dbc := dbctx.Context{Ctx: ctx}
	rel, err := e.relationshipRepo.GetByID(dbc, ownerUserID, relationshipID)
	if err != nil {
		return fmt.Errorf("lookup relationship: %w", err)
	}
	if rel == nil {
		return nil
	}
	return e.relationshipRepo.SoftDeleteByIDs(dbc, []uuid.UUID{rel.ID})
}

func (e *relevanceEngine) enqueue(rel *types.DocumentRelationship) {
	e.queue.Enqueue(&queue.Job{
		RelationshipID: rel.ID,
		OwnerUserID:    rel.OwnerUserID,
		PairKey:        rel.PairKey,
	})
}

// processJob runs one relationship computation: fingerprint both sides,
// score, describe, mark ready. Any returned error is a transient failure
// retried by the queue; the record keeps its last good state meanwhile.
func (e *relevanceEngine) processJob(ctx context.Context, job *queue.Job) error {
	dbc := dbctx.Context{Ctx: ctx}
	rel, err := e.relationshipRepo.GetByID(dbc, job.OwnerUserID, job.RelationshipID)
	if err != nil {
		return fmt.Errorf("load relationship: %w", err)
	}
	if rel == nil {
		// Deleted while queued; nothing to do.
		return nil
	}

	if err := e.relationshipRepo.UpdateFields(dbc, rel.ID, map[string]interface{}{
		"status": types.RelationshipStatusComputing,
	}); err != nil {
		return fmt.Errorf("mark computing: %w", err)
	}

	var sourceSnap, targetSnap *DocumentSnapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		snap, err := e.analyzer.SnapshotForDocument(gctx, rel.SourceDocumentID)
		if err != nil {
			return fmt.Errorf("fingerprint source %s: %w", rel.SourceDocumentID, err)
		}
		sourceSnap = snap
		return nil
	})
	g.Go(func() error {
		snap, err := e.analyzer.SnapshotForDocument(gctx, rel.TargetDocumentID)
		if err != nil {
			return fmt.Errorf("fingerprint target %s: %w", rel.TargetDocumentID, err)
		}
		targetSnap = snap
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	score := relevance.Score(sourceSnap.Fingerprint, targetSnap.Fingerprint)
	description := e.describer.Describe(ctx,
		sourceSnap.Fingerprint, sourceSnap.Text,
		targetSnap.Fingerprint, targetSnap.Text,
	)

	if err := e.relationshipRepo.UpdateFields(dbc, rel.ID, map[string]interface{}{
		"status":              types.RelationshipStatusReady,
		"relevance_score":     score,
		"description":         description,
		"source_content_hash": sourceSnap.ContentHash,
		"target_content_hash": targetSnap.ContentHash,
		"last_error":          "",
	}); err != nil {
		return fmt.Errorf("mark ready: %w", err)
	}

	e.log.Info("Relationship computed",
		"relationship_id", rel.ID,
		"score", score,
		"attempt", job.Attempt,
	)
	return nil
}

// onJobExhausted pins the failure on the record once retries are spent.
func (e *relevanceEngine) onJobExhausted(ctx context.Context, job *queue.Job, lastErr error) {
	reason := "unknown error"
	if lastErr != nil {
		reason = lastErr.Error()
	}
	if err := e.relationshipRepo.UpdateFields(dbctx.Context{Ctx: ctx}, job.RelationshipID, map[string]interface{}{
		"status":     types.RelationshipStatusFailed,
		"last_error": reason,
	}); err != nil {
		e.log.Error("Failed to mark relationship failed",
			"relationship_id", job.RelationshipID,
			"error", err,
		)
	}
}
