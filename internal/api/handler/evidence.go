package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/casetrace/casetrace/internal/content"
	"github.com/casetrace/casetrace/internal/custody"
	"github.com/casetrace/casetrace/internal/evidence"
)

// EvidenceHandler handles evidence ingestion and retrieval.
type EvidenceHandler struct {
	store  evidence.Store
	blobs  content.Store
	chain  custody.Appender
	logger *zap.Logger
}

// NewEvidenceHandler creates a new EvidenceHandler.
func NewEvidenceHandler(store evidence.Store, blobs content.Store, chain custody.Appender, logger *zap.Logger) *EvidenceHandler {
	return &EvidenceHandler{store: store, blobs: blobs, chain: chain, logger: logger}
}

// Register mounts evidence routes on the given router group.
func (h *EvidenceHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/evidence", h.Ingest)
	rg.GET("/evidence/:id", h.Get)
	rg.GET("/evidence/:id/content", h.Content)
	rg.DELETE("/evidence/:id", h.Delete)
}

type ingestRequest struct {
	CaseID uuid.UUID `json:"caseId" binding:"required"`
	Kind   string    `json:"kind" binding:"required,oneof=image video document audio other"`
	// Data is the raw evidence bytes, base64 in JSON.
	Data []byte `json:"data" binding:"required"`
}

// Ingest handles POST /evidence — stores the bytes, computes the content
// fingerprint, creates the record and opens its custody chain with a
// COLLECTION event.
func (h *EvidenceHandler) Ingest(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	contentID, err := h.blobs.Put(ctx, req.Data)
	if err != nil {
		h.logger.Error("store evidence content", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store content"})
		return
	}

	ev := &evidence.Evidence{
		CaseID:    req.CaseID,
		Kind:      req.Kind,
		ContentID: contentID,
		DataHash:  contentID,
	}
	if err := h.store.Create(ctx, ev); err != nil {
		h.logger.Error("create evidence", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create evidence"})
		return
	}

	if _, err := h.chain.Append(ctx, ev.ID.String(), ev.DataHash, custody.Event{
		Type:    custody.Collection,
		To:      requestActor(c),
		Purpose: "evidence ingested",
	}); err != nil {
		// The record exists; a missing opening event shows up in the next
		// chain verification rather than silently losing the evidence.
		h.logger.Error("append collection event", zap.String("evidence_id", ev.ID.String()), zap.Error(err))
	} else {
		recordCustodyAppend()
	}

	c.JSON(http.StatusCreated, gin.H{"evidence": ev})
}

// Get handles GET /evidence/:id.
func (h *EvidenceHandler) Get(c *gin.Context) {
	id, ok := evidenceID(c)
	if !ok {
		return
	}
	ev, err := h.store.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, evidence.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "evidence not found"})
			return
		}
		h.logger.Error("get evidence", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load evidence"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"evidence": ev})
}

// Content handles GET /evidence/:id/content — streams the stored bytes
// after the store has re-verified them against the content fingerprint.
func (h *EvidenceHandler) Content(c *gin.Context) {
	id, ok := evidenceID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	ev, err := h.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, evidence.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "evidence not found"})
			return
		}
		h.logger.Error("get evidence", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load evidence"})
		return
	}

	data, err := h.blobs.Fetch(ctx, ev.ContentID)
	switch {
	case errors.Is(err, content.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "content not found"})
		return
	case errors.Is(err, content.ErrCorrupted):
		h.logger.Error("content integrity check failed",
			zap.String("evidence_id", id.String()),
			zap.String("content_id", ev.ContentID),
		)
		c.JSON(http.StatusConflict, gin.H{"error": "stored content failed its integrity check"})
		return
	case err != nil:
		h.logger.Error("fetch content", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch content"})
		return
	}

	c.Data(http.StatusOK, "application/octet-stream", data)
}

// Delete handles DELETE /evidence/:id — a soft delete. The custody chain
// is retained and gets a closing event.
func (h *EvidenceHandler) Delete(c *gin.Context) {
	id, ok := evidenceID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	ev, err := h.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, evidence.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "evidence not found"})
			return
		}
		h.logger.Error("get evidence", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load evidence"})
		return
	}

	if err := h.store.SoftDelete(ctx, id); err != nil {
		if errors.Is(err, evidence.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "evidence not found"})
			return
		}
		h.logger.Error("soft delete evidence", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete evidence"})
		return
	}

	if _, err := h.chain.Append(ctx, id.String(), ev.DataHash, custody.Event{
		Type:    custody.Other,
		From:    requestActor(c),
		Purpose: "evidence soft-deleted",
	}); err != nil {
		h.logger.Error("append deletion event", zap.Error(err))
	} else {
		recordCustodyAppend()
	}

	c.JSON(http.StatusOK, gin.H{"message": "evidence deleted", "id": id})
}

func evidenceID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid evidence ID"})
		return uuid.Nil, false
	}
	return id, true
}

func requestActor(c *gin.Context) *custody.ActorRef {
	subject := SubjectFromCtx(c)
	if subject == "" {
		subject = "system"
	}
	return &custody.ActorRef{UserID: subject}
}
