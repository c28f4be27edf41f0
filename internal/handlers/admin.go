package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"property-marketplace/internal/admin"
	"property-marketplace/internal/approval"
	"property-marketplace/internal/cleanup"
	"property-marketplace/internal/config"
	"property-marketplace/internal/models"
	"property-marketplace/internal/search"
)

// AdminHandler handles admin-related requests
type AdminHandler struct {
	admin      *admin.Service
	approval   *approval.Service
	cleanup    *cleanup.Service
	search     *search.Service
	cleanupCfg config.CleanupConfig
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(adminSvc *admin.Service, approvalSvc *approval.Service, cleanupSvc *cleanup.Service, searchSvc *search.Service, cleanupCfg config.CleanupConfig) *AdminHandler {
	return &AdminHandler{
		admin:      adminSvc,
		approval:   approvalSvc,
		cleanup:    cleanupSvc,
		search:     searchSvc,
		cleanupCfg: cleanupCfg,
	}
}

// GetStatus reports whether the caller is an admin
func (h *AdminHandler) GetStatus(c *gin.Context) {
	userID := currentUserID(c)
	isAdmin, err := h.admin.IsAdmin(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	apps, err := h.admin.MyApplications(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"isAdmin":      isAdmin,
		"applications": apps,
	})
}

// Apply files an admin application for the caller
func (h *AdminHandler) Apply(c *gin.Context) {
	var req struct {
		Reason string `json:"reason" binding:"required,max=2000"`
	}
	if !bindJSON(c, &req) {
		return
	}

	app, err := h.admin.Apply(c.Request.Context(), currentUserID(c), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, app)
}

// GetApplications lists admin applications, pending by default
func (h *AdminHandler) GetApplications(c *gin.Context) {
	status := models.SubmissionStatus(c.DefaultQuery("status", string(models.SubmissionStatusPending)))
	apps, err := h.admin.Applications(c.Request.Context(), status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"applications": apps,
		"count":        len(apps),
	})
}

// ApproveApplication grants admin rights to the applicant
func (h *AdminHandler) ApproveApplication(c *gin.Context) {
	h.decideApplication(c, true)
}

// RejectApplication declines an admin application
func (h *AdminHandler) RejectApplication(c *gin.Context) {
	h.decideApplication(c, false)
}

func (h *AdminHandler) decideApplication(c *gin.Context, approve bool) {
	app, err := h.admin.Decide(c.Request.Context(), c.Param("id"), approve)
	if err != nil {
		respondError(c, err)
		return
	}
	log.Printf("Admin: %s decided application %s -> %s", currentUserID(c), app.ID, app.Status)
	c.JSON(http.StatusOK, app)
}

// GetPendingSubmissions returns the approval queue with each property
func (h *AdminHandler) GetPendingSubmissions(c *gin.Context) {
	pending, err := h.approval.Pending(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"submissions": pending,
		"count":       len(pending),
	})
}

// ApproveProperty approves a pending property and credits the submitter
func (h *AdminHandler) ApproveProperty(c *gin.Context) {
	result, err := h.approval.Approve(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	resp := gin.H{
		"success":       result.Success,
		"property":      result.Property,
		"tokensAwarded": result.TokensAwarded,
		"balance":       result.Balance,
	}
	if result.CreditErr != nil {
		resp["warning"] = "property approved but tokens could not be credited"
	}
	c.JSON(http.StatusOK, resp)
}

// RejectProperty rejects a pending property and removes it
func (h *AdminHandler) RejectProperty(c *gin.Context) {
	if err := h.approval.Reject(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GrantTokens adds tokens to a user's balance
func (h *AdminHandler) GrantTokens(c *gin.Context) {
	var req struct {
		Amount int `json:"amount" binding:"required,gt=0"`
	}
	if !bindJSON(c, &req) {
		return
	}

	balance, err := h.admin.GrantTokens(c.Request.Context(), c.Param("id"), req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"userId":  c.Param("id"),
		"granted": req.Amount,
		"balance": balance,
	})
}

// GetStats returns system statistics
func (h *AdminHandler) GetStats(c *gin.Context) {
	stats, err := h.admin.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// RunReconcile repairs submissions whose status diverged from their property
func (h *AdminHandler) RunReconcile(c *gin.Context) {
	log.Println("Admin: Manual reconcile requested")

	result, err := h.cleanup.Reconcile(c.Request.Context())
	if err != nil {
		log.Printf("Admin: Reconcile failed: %v", err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// RunCleanup deletes orphaned unapproved properties
func (h *AdminHandler) RunCleanup(c *gin.Context) {
	var req struct {
		OrphanGraceHours int   `json:"orphanGraceHours" binding:"gte=0"`
		MaxDeletionCount int   `json:"maxDeletionCount" binding:"gte=0"`
		DryRun           *bool `json:"dryRun"`
	}
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	// Set defaults
	cfg := cleanup.NewCleanupConfig(h.cleanupCfg)
	if req.OrphanGraceHours > 0 {
		cfg.OrphanGrace = time.Duration(req.OrphanGraceHours) * time.Hour
	}
	if req.MaxDeletionCount > 0 {
		cfg.MaxDeletionCount = req.MaxDeletionCount
	}
	if req.DryRun != nil {
		cfg.DryRun = *req.DryRun
	}

	log.Printf("Admin: Running cleanup (grace: %v, max: %d, dry-run: %v)",
		cfg.OrphanGrace, cfg.MaxDeletionCount, cfg.DryRun)

	result, err := h.cleanup.DeleteOrphans(c.Request.Context(), cfg)
	if err != nil {
		log.Printf("Admin: Cleanup failed: %v", err)
		respondError(c, err)
		return
	}

	log.Printf("Admin: Cleanup completed: %d/%d deleted (dry-run: %v)",
		result.DeletedCount, result.TargetCount, result.DryRun)

	c.JSON(http.StatusOK, result)
}

// GetDeleteLogs returns recent delete log entries
func (h *AdminHandler) GetDeleteLogs(c *gin.Context) {
	logs, err := h.admin.DeleteLogs(c.Request.Context(), queryInt(c, "limit", 100))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"logs":  logs,
		"count": len(logs),
	})
}

// Reindex rebuilds the full-text index from approved properties
func (h *AdminHandler) Reindex(c *gin.Context) {
	if !h.search.Enabled() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Search index not configured"})
		return
	}

	count, err := h.search.Reindex(c.Request.Context())
	if err != nil {
		log.Printf("Admin: Reindex failed after %d properties: %v", count, err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"indexed": count})
}
