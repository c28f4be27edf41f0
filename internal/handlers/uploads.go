package handlers

import (
	"mime"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"property-marketplace/internal/storage"
)

// UploadHandler stores listing images
type UploadHandler struct {
	images storage.ImageStore
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(images storage.ImageStore) *UploadHandler {
	return &UploadHandler{images: images}
}

// Upload stores the multipart "file" field and returns its public URL
func (h *UploadHandler) Upload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field \"file\" is required"})
		return
	}

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = mime.TypeByExtension(filepath.Ext(fh.Filename))
	}

	f, err := fh.Open()
	if err != nil {
		respondError(c, err)
		return
	}
	defer f.Close()

	url, err := h.images.Upload(c.Request.Context(), currentUserID(c), fh.Filename, contentType, f, fh.Size)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"url":         url,
		"contentType": contentType,
		"size":        fh.Size,
	})
}
