package risk

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/safdo/cryptoshield/internal/idgen"
	"github.com/safdo/cryptoshield/internal/logging"
	"github.com/safdo/cryptoshield/internal/metrics"
	"github.com/safdo/cryptoshield/internal/validation"
)

// validChains are the chain identifiers accepted at the boundary.
var validChains = map[string]bool{
	"polkadot": true,
	"kusama":   true,
	"westend":  true,
}

// EventEmitter receives scored assessments for real-time streaming.
// Implementations must not block.
type EventEmitter interface {
	RiskScored(a *Assessment)
}

// Handler provides HTTP endpoints for risk scoring
type Handler struct {
	provider *Provider
	store    Store
	events   EventEmitter
}

// NewHandler creates a risk scoring handler
func NewHandler(provider *Provider, store Store) *Handler {
	return &Handler{provider: provider, store: store}
}

// WithEvents attaches a real-time event emitter.
func (h *Handler) WithEvents(e EventEmitter) *Handler {
	h.events = e
	return h
}

// RegisterRoutes sets up risk routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/risk/score", h.ScoreTransaction)
	r.GET("/risk/assessments", h.ListAssessments)
}

// ScoreRequest is the transaction descriptor submitted for scoring.
type ScoreRequest struct {
	FromAddress string `json:"from_address" binding:"required"`
	ToAddress   string `json:"to_address" binding:"required"`
	Amount      string `json:"amount" binding:"required"`
	Chain       string `json:"chain" binding:"required"`
	Method      string `json:"method"`
}

// ScoreTransaction handles POST /risk/score
func (h *Handler) ScoreTransaction(c *gin.Context) {
	var req ScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	if !validChains[req.Chain] {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_chain",
			"message": "chain must be one of polkadot, kusama, westend",
		})
		return
	}

	if errs := validation.Validate(
		validation.ValidAddress("from_address", req.FromAddress),
		validation.ValidAddress("to_address", req.ToAddress),
		validation.ValidAmount("amount", req.Amount),
		validation.MaxLength("method", req.Method, 256),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_failed",
			"details": errs,
		})
		return
	}

	tx := &Transaction{
		FromAddress: req.FromAddress,
		ToAddress:   req.ToAddress,
		Amount:      req.Amount,
		Chain:       req.Chain,
		Method:      req.Method,
	}

	result := Score(tx, h.provider.Current())
	metrics.RiskAssessmentsTotal.WithLabelValues(string(result.Level)).Inc()

	assessment := &Assessment{
		ID:          idgen.WithPrefix("risk_"),
		Transaction: *tx,
		Score:       result.Score,
		Level:       result.Level,
		Reasons:     result.Reasons,
		CreatedAt:   time.Now().UTC(),
	}

	// Persist asynchronously (best-effort audit trail)
	if h.store != nil {
		logger := logging.L(c.Request.Context())
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := h.store.Record(ctx, assessment); err != nil {
				logger.Warn("failed to record risk assessment", "id", assessment.ID, "error", err)
			}
		}()
	}

	if h.events != nil {
		h.events.RiskScored(assessment)
	}

	c.JSON(http.StatusOK, gin.H{
		"score":     result.Score,
		"level":     result.Level,
		"reasons":   result.Reasons,
		"timestamp": assessment.CreatedAt.Format(time.RFC3339),
	})
}

// ListAssessments handles GET /risk/assessments
func (h *Handler) ListAssessments(c *gin.Context) {
	limit := 50
	if h.store == nil {
		c.JSON(http.StatusOK, gin.H{"assessments": []*Assessment{}})
		return
	}

	assessments, err := h.store.ListRecent(c.Request.Context(), limit)
	if err != nil {
		logging.L(c.Request.Context()).Error("failed to list assessments", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "list_failed",
			"message": "Failed to list assessments",
		})
		return
	}
	if assessments == nil {
		assessments = []*Assessment{}
	}

	c.JSON(http.StatusOK, gin.H{"assessments": assessments})
}
