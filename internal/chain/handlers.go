package chain

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/safdo/cryptoshield/internal/logging"
	"github.com/safdo/cryptoshield/internal/validation"
)

// Handler provides HTTP endpoints for balance and chain metadata queries
type Handler struct {
	client *Client
}

// NewHandler creates a chain query handler
func NewHandler(client *Client) *Handler {
	return &Handler{client: client}
}

// RegisterRoutes sets up chain routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/chain/balances", h.GetBalances)
	r.GET("/chain/:chain/info", h.GetChainInfo)
}

// BalancesRequest asks for an address's balance on one or more chains.
type BalancesRequest struct {
	Address string   `json:"address" binding:"required"`
	Chains  []string `json:"chains" binding:"required,min=1"`
}

// GetBalances handles POST /chain/balances
func (h *Handler) GetBalances(c *gin.Context) {
	var req BalancesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	if errs := validation.Validate(
		validation.ValidAddress("address", req.Address),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_failed",
			"details": errs,
		})
		return
	}

	chains := make([]ID, 0, len(req.Chains))
	for _, raw := range req.Chains {
		id, err := ParseID(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_chain",
				"message": err.Error(),
			})
			return
		}
		chains = append(chains, id)
	}

	balances := h.client.GetBalances(c.Request.Context(), req.Address, chains)

	c.JSON(http.StatusOK, gin.H{
		"address":  req.Address,
		"balances": balances,
	})
}

// GetChainInfo handles GET /chain/:chain/info
func (h *Handler) GetChainInfo(c *gin.Context) {
	id, err := ParseID(c.Param("chain"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_chain",
			"message": err.Error(),
		})
		return
	}

	info, err := h.client.GetChainInfo(c.Request.Context(), id)
	if err != nil {
		logging.L(c.Request.Context()).Error("chain info query failed", "chain", id, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "upstream_unavailable",
			"message": "All RPC endpoints failed for " + string(id),
		})
		return
	}

	c.JSON(http.StatusOK, info)
}
