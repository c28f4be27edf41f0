package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"property-marketplace/internal/ratelimit"
	"property-marketplace/internal/tokens"
)

// TokenHandler serves balances and the reward schedule
type TokenHandler struct {
	ledger *tokens.Ledger
	policy tokens.RewardPolicy
	quota  *ratelimit.SubmissionQuota
}

// NewTokenHandler creates a new token handler. quota may be nil.
func NewTokenHandler(ledger *tokens.Ledger, policy tokens.RewardPolicy, quota *ratelimit.SubmissionQuota) *TokenHandler {
	return &TokenHandler{ledger: ledger, policy: policy, quota: quota}
}

// Balance returns the caller's token balance and submission quota
func (h *TokenHandler) Balance(c *gin.Context) {
	userID := currentUserID(c)
	balance, err := h.ledger.Balance(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := gin.H{"balance": balance}
	if h.quota != nil {
		resp["quota"] = h.quota.Stats(userID)
	}
	c.JSON(http.StatusOK, resp)
}

// Rewards describes how many tokens a submission earns
func (h *TokenHandler) Rewards(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"policy":    h.policy,
		"maxReward": h.policy.Max(),
	})
}
