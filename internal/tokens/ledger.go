package tokens

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"

	"property-marketplace/internal/config"
	"property-marketplace/internal/database"
	"property-marketplace/internal/metrics"
)

// ErrInvalidAmount is returned for non-positive credits. Balances never decrease.
var ErrInvalidAmount = errors.New("token amount must be positive")

// Credit sources, used as metric labels and in logs
const (
	SourceApproval   = "approval"
	SourceAdminGrant = "admin_grant"
	SourceReconcile  = "reconcile"
)

// RewardPolicy is the schedule of tokens earned for a submission
type RewardPolicy struct {
	Base                int `json:"base"`
	DescriptionBonus    int `json:"descriptionBonus"`
	DescriptionMinChars int `json:"descriptionMinChars"`
	ImageBonus          int `json:"imageBonus"`
}

// DefaultRewardPolicy yields 5, plus 2 for a description over 50 characters, plus 3 with an image
func DefaultRewardPolicy() RewardPolicy {
	return RewardPolicy{Base: 5, DescriptionBonus: 2, DescriptionMinChars: 50, ImageBonus: 3}
}

func NewRewardPolicy(cfg config.TokensConfig) RewardPolicy {
	return RewardPolicy{
		Base:                cfg.BaseReward,
		DescriptionBonus:    cfg.DescriptionBonus,
		DescriptionMinChars: cfg.DescriptionMinChars,
		ImageBonus:          cfg.ImageBonus,
	}
}

// Compute returns the reward for a submission. Description length is counted in characters.
func (p RewardPolicy) Compute(description string, imageCount int) int {
	reward := p.Base
	if utf8.RuneCountInString(description) > p.DescriptionMinChars {
		reward += p.DescriptionBonus
	}
	if imageCount > 0 {
		reward += p.ImageBonus
	}
	return reward
}

// Max is the largest reward a single submission can earn
func (p RewardPolicy) Max() int {
	return p.Base + p.DescriptionBonus + p.ImageBonus
}

// Ledger credits and reads user token balances
type Ledger struct {
	store database.Store
}

func NewLedger(store database.Store) *Ledger {
	return &Ledger{store: store}
}

// Credit atomically adds amount to the user's balance and returns the new balance
func (l *Ledger) Credit(ctx context.Context, userID string, amount int, source string) (int, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	balance, err := l.store.IncrementUserTokens(ctx, userID, amount)
	if err != nil {
		return 0, fmt.Errorf("failed to credit %d tokens to user %s: %w", amount, userID, err)
	}

	metrics.RecordTokens(source, amount)
	log.WithFields(log.Fields{"user_id": userID, "amount": amount, "source": source, "balance": balance}).
		Info("[Tokens] Credited tokens")
	return balance, nil
}

// Balance returns the user's current balance
func (l *Ledger) Balance(ctx context.Context, userID string) (int, error) {
	user, err := l.store.GetUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	return user.Tokens, nil
}
