package status

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/safdo/cryptoshield/internal/idgen"
	"github.com/safdo/cryptoshield/internal/logging"
	"github.com/safdo/cryptoshield/internal/validation"
)

// Handler provides HTTP endpoints for client status check-ins
type Handler struct {
	store Store
}

// NewHandler creates a status handler
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes sets up status routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/status", h.CreateCheck)
	r.GET("/status", h.ListChecks)
}

// CreateCheckRequest registers a client check-in.
type CreateCheckRequest struct {
	ClientName string `json:"client_name" binding:"required"`
}

// CreateCheck handles POST /status
func (h *Handler) CreateCheck(c *gin.Context) {
	var req CreateCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	check := &Check{
		ID:         idgen.New(),
		ClientName: validation.SanitizeString(req.ClientName, 128),
		Timestamp:  time.Now().UTC(),
	}

	if err := h.store.Create(c.Request.Context(), check); err != nil {
		logging.L(c.Request.Context()).Error("failed to create status check", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "create_failed",
			"message": "Failed to create status check",
		})
		return
	}

	c.JSON(http.StatusOK, check)
}

// ListChecks handles GET /status
func (h *Handler) ListChecks(c *gin.Context) {
	checks, err := h.store.List(c.Request.Context(), 1000)
	if err != nil {
		logging.L(c.Request.Context()).Error("failed to list status checks", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "list_failed",
			"message": "Failed to list status checks",
		})
		return
	}
	if checks == nil {
		checks = []*Check{}
	}

	c.JSON(http.StatusOK, checks)
}
