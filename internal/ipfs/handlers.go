package ipfs

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/safdo/cryptoshield/internal/logging"
)

// Handler provides the HTTP endpoint for the upload proxy
type Handler struct {
	proxy *Proxy
}

// NewHandler creates an IPFS upload handler
func NewHandler(proxy *Proxy) *Handler {
	return &Handler{proxy: proxy}
}

// RegisterRoutes sets up IPFS routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/ipfs/upload", h.Upload)
}

// Upload handles POST /ipfs/upload (multipart form, field "file")
func (h *Handler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "multipart field 'file' is required",
		})
		return
	}

	if err := h.proxy.ValidateFile(fileHeader.Filename, fileHeader.Size); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_file",
			"message": err.Error(),
		})
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_file",
			"message": "cannot read upload",
		})
		return
	}
	defer func() { _ = f.Close() }()

	content, err := io.ReadAll(io.LimitReader(f, h.proxy.MaxFileSize()))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_file",
			"message": "cannot read upload",
		})
		return
	}

	result := h.proxy.Upload(fileHeader.Filename, content)
	logging.L(c.Request.Context()).Info("mock ipfs upload",
		"filename", fileHeader.Filename, "size", result.Size, "cid", result.CID)

	c.JSON(http.StatusOK, result)
}
