package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"property-marketplace/internal/importer"
)

// ImportHandler prefills submission drafts from external listing pages
type ImportHandler struct {
	importer *importer.Importer
}

// NewImportHandler creates a new import handler
func NewImportHandler(im *importer.Importer) *ImportHandler {
	return &ImportHandler{importer: im}
}

// Import fetches the page at url and returns a draft for the submission form
func (h *ImportHandler) Import(c *gin.Context) {
	var req struct {
		URL string `json:"url" binding:"required,url"`
	}
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.importer.Import(c.Request.Context(), req.URL)
	if err != nil {
		if errors.Is(err, importer.ErrInvalidURL) || errors.Is(err, importer.ErrCircuitOpen) {
			respondError(c, err)
			return
		}
		log.Printf("[API] Import of %s failed: %v", req.URL, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "could not fetch the listing page"})
		return
	}
	c.JSON(http.StatusOK, result)
}
