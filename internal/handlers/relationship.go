package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/lectern-backend/internal/http/response"
	pkgerrors "github.com/yungbote/lectern-backend/internal/pkg/errors"
	"github.com/yungbote/lectern-backend/internal/platform/logger"
	"github.com/yungbote/lectern-backend/internal/requestdata"
	"github.com/yungbote/lectern-backend/internal/services"
)

type RelationshipHandler struct {
	log    *logger.Logger
	engine services.RelevanceEngine
}

func NewRelationshipHandler(log *logger.Logger, engine services.RelevanceEngine) *RelationshipHandler {
	return &RelationshipHandler{
		log:    log.With("handler", "RelationshipHandler"),
		engine: engine,
	}
}

// ListForDocument returns the ready relationships for a document, resolved
// to the other document's id, highest score first.
func (h *RelationshipHandler) ListForDocument(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	documentID, err := uuid.Parse(c.Param("documentId"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_document_id", err)
		return
	}
	related, err := h.engine.ListRelated(c.Request.Context(), rd.UserID, documentID)
	if err != nil {
		h.log.Error("ListForDocument failed", "error", err, "user_id", rd.UserID, "document_id", documentID)
		response.RespondError(c, http.StatusInternalServerError, "list_relationships_failed", err)
		return
	}
	response.RespondOK(c, http.StatusOK, gin.H{"relationships": related})
}

type linkDocumentsRequest struct {
	SourceDocumentID uuid.UUID `json:"source_document_id" binding:"required"`
	TargetDocumentID uuid.UUID `json:"target_document_id" binding:"required"`
}

// Link creates (or returns) the relationship for a document pair and
// schedules its computation.
func (h *RelationshipHandler) Link(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var req linkDocumentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request_body", err)
		return
	}
	rel, err := h.engine.EnsureComputed(c.Request.Context(), rd.UserID, req.SourceDocumentID, req.TargetDocumentID)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrInvalidArgument) {
			response.RespondError(c, http.StatusBadRequest, "invalid_document_pair", err)
			return
		}
		h.log.Error("Link failed", "error", err, "user_id", rd.UserID)
		response.RespondError(c, http.StatusInternalServerError, "link_documents_failed", err)
		return
	}
	response.RespondOK(c, http.StatusAccepted, gin.H{"relationship": rel})
}

// Recompute re-enqueues stale relationships touching the document.
func (h *RelationshipHandler) Recompute(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	documentID, err := uuid.Parse(c.Param("documentId"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_document_id", err)
		return
	}
	requeued, err := h.engine.RecomputeForDocument(c.Request.Context(), rd.UserID, documentID)
	if err != nil {
		h.log.Error("Recompute failed", "error", err, "user_id", rd.UserID, "document_id", documentID)
		response.RespondError(c, http.StatusInternalServerError, "recompute_failed", err)
		return
	}
	response.RespondOK(c, http.StatusAccepted, gin.H{"requeued": requeued})
}

// Remove deletes a relationship. Idempotent: deleting an unknown id
// responds 204 as well.
func (h *RelationshipHandler) Remove(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	relationshipID, err := uuid.Parse(c.Param("relationshipId"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_relationship_id", err)
		return
	}
	if err := h.engine.RemoveRelationship(c.Request.Context(), rd.UserID, relationshipID); err != nil {
		h.log.Error("Remove failed", "error", err, "user_id", rd.UserID, "relationship_id", relationshipID)
		response.RespondError(c, http.StatusInternalServerError, "remove_relationship_failed", err)
		return
	}
	c.Status(http.StatusNoContent)
}
