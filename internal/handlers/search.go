package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"property-marketplace/internal/search"
)

// SearchHandler serves full-text search over approved properties
type SearchHandler struct {
	search *search.Service
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(searchSvc *search.Service) *SearchHandler {
	return &SearchHandler{search: searchSvc}
}

// Search runs a full-text query with the listing filters
func (h *SearchHandler) Search(c *gin.Context) {
	filters := propertyFilters(c)
	params := search.FilterParams{
		Query:        filters.Query,
		Type:         filters.Type,
		Status:       filters.Status,
		MinPrice:     filters.MinPrice,
		MaxPrice:     filters.MaxPrice,
		MinBedrooms:  filters.MinBedrooms,
		MinBathrooms: filters.MinBathrooms,
		Facets:       c.Query("facets") == "true",
		Limit:        int64(filters.Limit),
		Offset:       int64(filters.Offset),
	}
	// Relevance order unless a sort was asked for
	if c.Query("sort") != "" {
		params.SortBy = filters.SortBy
	}

	c.JSON(http.StatusOK, h.search.FullText(c.Request.Context(), params))
}

// Facets returns facet counts for the filter sidebar
func (h *SearchHandler) Facets(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"facets":  h.search.Facets(),
		"enabled": h.search.Enabled(),
	})
}
