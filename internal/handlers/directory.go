package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"property-marketplace/internal/directory"
)

// DirectoryHandler serves the public directory and the caller's profile
type DirectoryHandler struct {
	directory *directory.Service
}

// NewDirectoryHandler creates a new directory handler
func NewDirectoryHandler(svc *directory.Service) *DirectoryHandler {
	return &DirectoryHandler{directory: svc}
}

func (h *DirectoryHandler) Agents(c *gin.Context) {
	agents, err := h.directory.Agents(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"agents": agents, "count": len(agents)})
}

func (h *DirectoryHandler) Companies(c *gin.Context) {
	companies, err := h.directory.Companies(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"companies": companies, "count": len(companies)})
}

func (h *DirectoryHandler) BuyersSellers(c *gin.Context) {
	users, err := h.directory.BuyersSellers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users, "count": len(users)})
}

// GetProfile returns the caller's profile
func (h *DirectoryHandler) GetProfile(c *gin.Context) {
	user, err := h.directory.Profile(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// UpdateProfile replaces the caller's editable profile fields
func (h *DirectoryHandler) UpdateProfile(c *gin.Context) {
	var req directory.ProfileUpdate
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.directory.UpdateProfile(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
