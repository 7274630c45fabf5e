package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/casetrace/casetrace/internal/anchor"
	"github.com/casetrace/casetrace/internal/evidence"
	"github.com/casetrace/casetrace/internal/ledger"
)

// anchorService is the interface expected by AnchorHandler, satisfied by
// *anchor.Coordinator.
type anchorService interface {
	Submit(ctx context.Context, evidenceID uuid.UUID, network string) (*anchor.SubmitOutcome, error)
	Bridge(ctx context.Context, evidenceID uuid.UUID, targetNetwork string) (*evidence.BridgeRecord, error)
	Verify(ctx context.Context, evidenceID uuid.UUID, network string) (*anchor.Verification, error)
}

// AnchorHandler handles on-chain anchoring, bridging and verification.
type AnchorHandler struct {
	coord  anchorService
	logger *zap.Logger
}

// NewAnchorHandler creates a new AnchorHandler.
func NewAnchorHandler(coord anchorService, logger *zap.Logger) *AnchorHandler {
	return &AnchorHandler{coord: coord, logger: logger}
}

// Register mounts anchoring routes on the given router group.
func (h *AnchorHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/evidence/:id/anchor", h.Anchor)
	rg.POST("/evidence/:id/bridge", h.Bridge)
	rg.GET("/evidence/:id/verify", h.Verify)
}

type anchorRequest struct {
	Network string `json:"network" binding:"required"`
}

type bridgeRequest struct {
	TargetNetwork string `json:"targetNetwork" binding:"required"`
}

// Anchor handles POST /evidence/:id/anchor — submits the evidence
// fingerprint to the named ledger network.
func (h *AnchorHandler) Anchor(c *gin.Context) {
	id, ok := evidenceID(c)
	if !ok {
		return
	}
	var req anchorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	outcome, err := h.coord.Submit(c.Request.Context(), id, req.Network)
	recordAnchorSubmission(req.Network, err)
	if err != nil {
		h.renderAnchorError(c, err, "anchor")
		return
	}

	c.JSON(http.StatusCreated, outcome)
}

// Bridge handles POST /evidence/:id/bridge — mirrors an anchored
// fingerprint onto another network.
func (h *AnchorHandler) Bridge(c *gin.Context) {
	id, ok := evidenceID(c)
	if !ok {
		return
	}
	var req bridgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	record, err := h.coord.Bridge(c.Request.Context(), id, req.TargetNetwork)
	recordAnchorSubmission(req.TargetNetwork, err)
	if err != nil {
		h.renderAnchorError(c, err, "bridge")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"bridge": record})
}

// Verify handles GET /evidence/:id/verify?network=... — checks presence of
// the fingerprint on one network. Absence is a 200 with verified=false.
func (h *AnchorHandler) Verify(c *gin.Context) {
	id, ok := evidenceID(c)
	if !ok {
		return
	}
	network := c.Query("network")
	if network == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "network query parameter is required"})
		return
	}

	v, err := h.coord.Verify(c.Request.Context(), id, network)
	if err != nil {
		h.renderAnchorError(c, err, "verify")
		return
	}
	recordVerification(network, v.Verified)

	c.JSON(http.StatusOK, v)
}

func (h *AnchorHandler) renderAnchorError(c *gin.Context, err error, op string) {
	switch {
	case errors.Is(err, evidence.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "evidence not found"})
	case errors.Is(err, anchor.ErrUnknownNetwork):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, anchor.ErrNoFingerprint):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "evidence has no content fingerprint"})
	case errors.Is(err, anchor.ErrDuplicateSubmission):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, ledger.ErrContractNotLoaded),
		errors.Is(err, ledger.ErrSignerNotConfigured):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, ledger.ErrInsufficientFunds):
		h.logger.Error("signer account out of funds", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "ledger signer account has insufficient funds"})
	default:
		h.logger.Error(op, zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "ledger operation failed"})
	}
}
