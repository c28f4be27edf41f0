package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"property-marketplace/internal/database"
	"property-marketplace/internal/models"
	"property-marketplace/internal/search"
	"property-marketplace/internal/submission"
)

// PropertyHandler serves listings and the submission pipeline
type PropertyHandler struct {
	store      database.Store
	search     *search.Service
	submission *submission.Service
	admins     AdminChecker
}

// NewPropertyHandler creates a new property handler
func NewPropertyHandler(store database.Store, searchSvc *search.Service, submissionSvc *submission.Service, admins AdminChecker) *PropertyHandler {
	return &PropertyHandler{
		store:      store,
		search:     searchSvc,
		submission: submissionSvc,
		admins:     admins,
	}
}

// List returns approved properties matching the query. Admins may pass
// includeUnapproved=true to see the whole table.
func (h *PropertyHandler) List(c *gin.Context) {
	filters := propertyFilters(c)
	if c.Query("includeUnapproved") == "true" && isAdmin(c, h.admins) {
		filters.IncludeUnapproved = true
	}

	properties := h.search.Properties(c.Request.Context(), filters)
	c.JSON(http.StatusOK, gin.H{
		"properties": properties,
		"count":      len(properties),
		"limit":      filters.Limit,
		"offset":     filters.Offset,
	})
}

// visible loads a property the caller may see. Unapproved listings are shown
// to their owner and to admins only.
func (h *PropertyHandler) visible(c *gin.Context) (*models.Property, bool) {
	p, err := h.store.GetProperty(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	if !p.IsApproved && p.OwnerID != currentUserID(c) && !isAdmin(c, h.admins) {
		respondError(c, database.ErrNotFound)
		return nil, false
	}
	return p, true
}

// Get returns one property
func (h *PropertyHandler) Get(c *gin.Context) {
	p, ok := h.visible(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, p)
}

// History returns the edit history of a property
func (h *PropertyHandler) History(c *gin.Context) {
	p, ok := h.visible(c)
	if !ok {
		return
	}

	changes, err := h.submission.History(c.Request.Context(), p.ID, queryInt(c, "limit", 30))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"propertyId": p.ID,
		"changes":    changes,
		"count":      len(changes),
	})
}

// Submit creates a property and its pending submission
func (h *PropertyHandler) Submit(c *gin.Context) {
	var draft submission.Draft
	if !bindJSON(c, &draft) {
		return
	}

	sub, err := h.submission.Submit(c.Request.Context(), currentUserID(c), draft)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"submission":    sub,
		"tokensAwarded": sub.TokensAwarded,
		"message":       "Property submitted for review",
	})
}

// Update edits a property owned by the caller
func (h *PropertyHandler) Update(c *gin.Context) {
	var draft submission.Draft
	if !bindJSON(c, &draft) {
		return
	}

	p, changes, err := h.submission.Update(c.Request.Context(), currentUserID(c), c.Param("id"), draft)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"property": p,
		"changes":  changes,
	})
}

// MyProperties lists every property the caller owns, approved or not
func (h *PropertyHandler) MyProperties(c *gin.Context) {
	properties, err := h.submission.ListOwned(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"properties": properties,
		"count":      len(properties),
	})
}

// MySubmissions lists the caller's submissions
func (h *PropertyHandler) MySubmissions(c *gin.Context) {
	subs, err := h.submission.ListByUser(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"submissions": subs,
		"count":       len(subs),
	})
}
