package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/casetrace/casetrace/internal/custody"
	"github.com/casetrace/casetrace/internal/evidence"
)

// custodyStore is the interface expected by CustodyHandler, satisfied by
// *custody.Store and *custody.MemoryStore.
type custodyStore interface {
	Append(ctx context.Context, evidenceID, dataHash string, base custody.Event) (*custody.Event, error)
	Load(ctx context.Context, evidenceID string) ([]custody.Event, error)
}

// CustodyHandler handles the chain-of-custody routes.
type CustodyHandler struct {
	chain    custodyStore
	evidence evidence.Store
	logger   *zap.Logger
}

// NewCustodyHandler creates a new CustodyHandler.
func NewCustodyHandler(chain custodyStore, store evidence.Store, logger *zap.Logger) *CustodyHandler {
	return &CustodyHandler{chain: chain, evidence: store, logger: logger}
}

// Register mounts custody routes on the given router group.
func (h *CustodyHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/evidence/:id/custody", h.Append)
	rg.GET("/evidence/:id/custody", h.List)
	rg.GET("/evidence/:id/custody/verify", h.Verify)
}

type appendCustodyRequest struct {
	EventType custody.EventType `json:"eventType" binding:"required,oneof=COLLECTION TRANSFER ANALYSIS OTHER"`
	From      *custody.ActorRef `json:"from"`
	To        *custody.ActorRef `json:"to"`
	Purpose   string            `json:"purpose" binding:"required"`
	Notes     string            `json:"notes"`
}

// Append handles POST /evidence/:id/custody — appends one event to the
// evidence's custody chain.
func (h *CustodyHandler) Append(c *gin.Context) {
	id, ok := evidenceID(c)
	if !ok {
		return
	}
	var req appendCustodyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	ev, err := h.evidence.Get(ctx, id)
	if err != nil {
		if errors.Is(err, evidence.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "evidence not found"})
			return
		}
		h.logger.Error("get evidence", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load evidence"})
		return
	}

	from := req.From
	if from == nil {
		from = requestActor(c)
	}
	event, err := h.chain.Append(ctx, id.String(), ev.DataHash, custody.Event{
		Type:    req.EventType,
		From:    from,
		To:      req.To,
		Purpose: req.Purpose,
		Notes:   req.Notes,
	})
	if err != nil {
		h.logger.Error("append custody event", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to append custody event"})
		return
	}
	recordCustodyAppend()

	c.JSON(http.StatusCreated, gin.H{"event": event})
}

// List handles GET /evidence/:id/custody — returns the chain in append order.
func (h *CustodyHandler) List(c *gin.Context) {
	id, ok := evidenceID(c)
	if !ok {
		return
	}
	events, err := h.chain.Load(c.Request.Context(), id.String())
	if err != nil {
		h.logger.Error("load custody chain", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load custody chain"})
		return
	}
	if events == nil {
		events = []custody.Event{}
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}

// Verify handles GET /evidence/:id/custody/verify — recomputes the chain's
// hashes and reports every break. A tampered chain is still a 200: the
// finding is the payload, not a server fault.
func (h *CustodyHandler) Verify(c *gin.Context) {
	id, ok := evidenceID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	ev, err := h.evidence.Get(ctx, id)
	if err != nil {
		if errors.Is(err, evidence.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "evidence not found"})
			return
		}
		h.logger.Error("get evidence", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load evidence"})
		return
	}

	events, err := h.chain.Load(ctx, id.String())
	if err != nil {
		h.logger.Error("load custody chain", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load custody chain"})
		return
	}

	report := custody.VerifyChain(id.String(), ev.DataHash, events)
	if !report.Valid {
		h.logger.Warn("custody chain verification failed",
			zap.String("evidence_id", id.String()),
			zap.Strings("issues", report.Issues),
		)
	}
	c.JSON(http.StatusOK, report)
}
