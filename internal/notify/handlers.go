package notify

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/safdo/cryptoshield/internal/logging"
	"github.com/safdo/cryptoshield/internal/validation"
)

// EventEmitter receives dispatch outcomes for real-time streaming.
// Implementations must not block.
type EventEmitter interface {
	NotificationDispatched(l *Log)
}

// Handler provides HTTP endpoints for notification dispatch, preferences,
// and the audit log
type Handler struct {
	relay  *Relay
	store  Store
	prefs  PreferenceStore
	events EventEmitter
}

// NewHandler creates a notification handler
func NewHandler(relay *Relay, store Store, prefs PreferenceStore) *Handler {
	return &Handler{relay: relay, store: store, prefs: prefs}
}

// WithEvents attaches a real-time event emitter.
func (h *Handler) WithEvents(e EventEmitter) *Handler {
	h.events = e
	return h
}

// RegisterRoutes sets up notification routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/notifications/dispatch", h.Dispatch)
	r.POST("/notifications/preferences", h.SavePreference)
	r.GET("/notifications/preferences/:userId", h.GetPreferences)
	r.GET("/notifications/logs/:userId", h.ListLogs)
}

// DispatchRequest asks for an event to be fanned out to channels.
type DispatchRequest struct {
	EventType string         `json:"event_type" binding:"required"`
	Channels  []string       `json:"channels" binding:"required,min=1"`
	Payload   map[string]any `json:"payload"`
	UserID    string         `json:"user_id" binding:"required"`
}

// Dispatch handles POST /notifications/dispatch
func (h *Handler) Dispatch(c *gin.Context) {
	var req DispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	if errs := validation.Validate(
		validation.MaxLength("event_type", req.EventType, 64),
		validation.MaxLength("user_id", req.UserID, 128),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_failed",
			"details": errs,
		})
		return
	}

	logs := h.relay.Dispatch(c.Request.Context(), &Event{
		EventType: req.EventType,
		Channels:  req.Channels,
		Payload:   req.Payload,
		UserID:    req.UserID,
	})

	if h.events != nil {
		for _, l := range logs {
			h.events.NotificationDispatched(l)
		}
	}

	results := make([]gin.H, 0, len(logs))
	for _, l := range logs {
		entry := gin.H{"channel": l.Channel, "status": l.Status}
		if l.Error != "" {
			entry["error"] = l.Error
		}
		if l.Detail != "" {
			entry["detail"] = l.Detail
		}
		results = append(results, entry)
	}

	c.JSON(http.StatusOK, gin.H{
		"dry_run": h.relay.DryRun(),
		"results": results,
	})
}

// PreferenceRequest upserts a user's channel selection for an event type.
type PreferenceRequest struct {
	UserID    string   `json:"user_id" binding:"required"`
	EventType string   `json:"event_type" binding:"required"`
	Channels  []string `json:"channels" binding:"required"`
	Enabled   *bool    `json:"enabled" binding:"required"`
}

// SavePreference handles POST /notifications/preferences
func (h *Handler) SavePreference(c *gin.Context) {
	var req PreferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	for _, ch := range req.Channels {
		if _, ok := ParseChannel(ch); !ok {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_channel",
				"message": "unknown channel " + strconv.Quote(ch),
			})
			return
		}
	}

	pref := &Preference{
		UserID:    req.UserID,
		EventType: req.EventType,
		Channels:  req.Channels,
		Enabled:   *req.Enabled,
	}
	if err := h.prefs.Save(c.Request.Context(), pref); err != nil {
		logging.L(c.Request.Context()).Error("failed to save preference", "user_id", req.UserID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "save_failed",
			"message": "Failed to save preference",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"saved": true})
}

// GetPreferences handles GET /notifications/preferences/:userId
func (h *Handler) GetPreferences(c *gin.Context) {
	userID := c.Param("userId")

	prefs, err := h.prefs.Load(c.Request.Context(), userID)
	if err != nil {
		logging.L(c.Request.Context()).Error("failed to load preferences", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "load_failed",
			"message": "Failed to load preferences",
		})
		return
	}
	if prefs == nil {
		prefs = []*Preference{}
	}

	c.JSON(http.StatusOK, gin.H{"user_id": userID, "preferences": prefs})
}

// ListLogs handles GET /notifications/logs/:userId
func (h *Handler) ListLogs(c *gin.Context) {
	userID := c.Param("userId")

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	logs, err := h.store.ListByUser(c.Request.Context(), userID, limit)
	if err != nil {
		logging.L(c.Request.Context()).Error("failed to list notification logs", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "list_failed",
			"message": "Failed to list notification logs",
		})
		return
	}
	if logs == nil {
		logs = []*Log{}
	}

	c.JSON(http.StatusOK, gin.H{"user_id": userID, "logs": logs})
}
