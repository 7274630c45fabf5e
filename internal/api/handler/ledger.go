package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/casetrace/casetrace/internal/ledger"
)

// NetworkClient is the per-network surface the ledger routes need,
// satisfied by *ledger.Client.
type NetworkClient interface {
	ChainID() int64
	ContractAddress() string
	Health(ctx context.Context) ledger.Health
}

// LedgerHandler exposes read-only ledger network information.
type LedgerHandler struct {
	clients map[string]NetworkClient
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(clients map[string]NetworkClient) *LedgerHandler {
	return &LedgerHandler{clients: clients}
}

// Register mounts ledger routes on the given router group.
func (h *LedgerHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/ledger/networks", h.Networks)
	rg.GET("/ledger/:network/health", h.Health)
}

// Networks handles GET /ledger/networks — lists configured networks.
func (h *LedgerHandler) Networks(c *gin.Context) {
	networks := make([]gin.H, 0, len(h.clients))
	for name, client := range h.clients {
		networks = append(networks, gin.H{
			"network":         name,
			"chainId":         client.ChainID(),
			"contractAddress": client.ContractAddress(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"networks": networks, "count": len(networks)})
}

// Health handles GET /ledger/:network/health — probes the network's node.
// The probe itself never errors; an unreachable node reports connected=false.
func (h *LedgerHandler) Health(c *gin.Context) {
	name := c.Param("network")
	client, ok := h.clients[name]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown network"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"network": name,
		"health":  client.Health(c.Request.Context()),
	})
}
