package cleanup

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"property-marketplace/internal/config"
	"property-marketplace/internal/database"
	"property-marketplace/internal/models"
	"property-marketplace/internal/tokens"
)

// SearchIndex is the part of the search service cleanup keeps in sync
type SearchIndex interface {
	RemoveProperty(id string)
}

// Service physically deletes orphaned properties and repairs approval divergence
type Service struct {
	store  database.Store
	ledger *tokens.Ledger
	index  SearchIndex
}

// NewService creates a new cleanup service. index may be nil.
func NewService(store database.Store, ledger *tokens.Ledger, index SearchIndex) *Service {
	return &Service{store: store, ledger: ledger, index: index}
}

// CleanupConfig holds configuration for cleanup operations
type CleanupConfig struct {
	OrphanGrace      time.Duration // How long an unapproved property may exist without a submission
	MaxDeletionCount int           // Maximum number of properties to delete in one run (safety limit)
	DryRun           bool          // Only log what would be deleted
}

// NewCleanupConfig maps the cleanup section of the config file
func NewCleanupConfig(cfg config.CleanupConfig) CleanupConfig {
	return CleanupConfig{
		OrphanGrace:      cfg.GetOrphanGrace(),
		MaxDeletionCount: cfg.MaxDeletionCount,
		DryRun:           cfg.DryRun,
	}
}

// CleanupResult holds the result of a cleanup operation
type CleanupResult struct {
	TargetCount       int       `json:"targetCount"`
	DeletedCount      int       `json:"deletedCount"`
	ErrorCount        int       `json:"errorCount"`
	DryRun            bool      `json:"dryRun"`
	ExecutedAt        time.Time `json:"executedAt"`
	DeletedProperties []string  `json:"deletedProperties"`
	Errors            []string  `json:"errors,omitempty"`
}

// ReconcileResult reports repairs of properties whose approval flag and submission disagree
type ReconcileResult struct {
	SubmissionsApproved int       `json:"submissionsApproved"`
	TokensCredited      int       `json:"tokensCredited"`
	PropertiesDeleted   int       `json:"propertiesDeleted"`
	ErrorCount          int       `json:"errorCount"`
	ExecutedAt          time.Time `json:"executedAt"`
	Errors              []string  `json:"errors,omitempty"`
}

// DeleteOrphans removes unapproved properties that never got a submission
func (s *Service) DeleteOrphans(ctx context.Context, cfg CleanupConfig) (*CleanupResult, error) {
	result := &CleanupResult{
		DryRun:            cfg.DryRun,
		ExecutedAt:        time.Now(),
		DeletedProperties: []string{},
	}

	cutoff := time.Now().Add(-cfg.OrphanGrace)
	orphans, err := s.store.ListOrphanProperties(ctx, cutoff, cfg.MaxDeletionCount+1)
	if err != nil {
		return nil, fmt.Errorf("failed to find orphan properties: %w", err)
	}
	result.TargetCount = len(orphans)

	if result.TargetCount == 0 {
		log.Println("[Cleanup] No orphan properties found")
		return result, nil
	}

	// Safety check: abort if too many properties would be deleted
	if result.TargetCount > cfg.MaxDeletionCount {
		return nil, fmt.Errorf("safety check failed: more than %d orphan properties, refusing to delete",
			cfg.MaxDeletionCount)
	}

	log.Printf("[Cleanup] Starting: %d orphan properties created before %s (dry-run: %v)",
		result.TargetCount, cutoff.Format(time.RFC3339), cfg.DryRun)

	for _, prop := range orphans {
		if cfg.DryRun {
			log.Printf("[Cleanup] [DRY-RUN] Would delete property %s (Title: %s)", prop.ID, prop.Title)
			result.DeletedProperties = append(result.DeletedProperties, prop.ID)
			result.DeletedCount++
			continue
		}

		if err := s.deleteWithLog(ctx, prop, models.DeleteReasonOrphaned); err != nil {
			errMsg := fmt.Sprintf("Failed to delete property %s: %v", prop.ID, err)
			log.Printf("[Cleanup] ERROR: %s", errMsg)
			result.Errors = append(result.Errors, errMsg)
			result.ErrorCount++
			continue
		}

		result.DeletedProperties = append(result.DeletedProperties, prop.ID)
		result.DeletedCount++
	}

	log.Printf("[Cleanup] Completed: %d/%d deleted, %d errors (dry-run: %v)",
		result.DeletedCount, result.TargetCount, result.ErrorCount, cfg.DryRun)
	return result, nil
}

// Reconcile marks submissions of already approved properties as approved,
// credits the reward they were owed, and deletes properties whose submission
// was rejected. A failed credit is reported but does not undo the status change.
func (s *Service) Reconcile(ctx context.Context) (*ReconcileResult, error) {
	result := &ReconcileResult{ExecutedAt: time.Now()}

	stale, err := s.store.ListStalePendingSubmissions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale submissions: %w", err)
	}
	for _, sub := range stale {
		settled, err := s.settleSubmission(ctx, sub.PropertyID)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("submission of %s: %v", sub.PropertyID, err))
			result.ErrorCount++
			continue
		}
		if !settled {
			continue
		}
		log.Printf("[Cleanup] Marked submission of approved property %s as approved", sub.PropertyID)
		result.SubmissionsApproved++

		if sub.TokensAwarded <= 0 {
			continue
		}
		if _, err := s.ledger.Credit(ctx, sub.UserID, sub.TokensAwarded, tokens.SourceReconcile); err != nil {
			errMsg := fmt.Sprintf("credit %d tokens to %s for %s: %v", sub.TokensAwarded, sub.UserID, sub.PropertyID, err)
			log.Printf("[Cleanup] ERROR: %s", errMsg)
			result.Errors = append(result.Errors, errMsg)
			result.ErrorCount++
			continue
		}
		result.TokensCredited += sub.TokensAwarded
	}

	rejected, err := s.store.ListRejectedWithProperty(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list rejected submissions: %w", err)
	}
	for _, sub := range rejected {
		prop, err := s.store.GetProperty(ctx, sub.PropertyID)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("property %s: %v", sub.PropertyID, err))
			result.ErrorCount++
			continue
		}
		if err := s.deleteWithLog(ctx, *prop, models.DeleteReasonRejected); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("property %s: %v", sub.PropertyID, err))
			result.ErrorCount++
			continue
		}
		result.PropertiesDeleted++
	}

	log.Printf("[Cleanup] Reconcile completed: %d submissions approved (%d tokens), %d rejected properties deleted, %d errors",
		result.SubmissionsApproved, result.TokensCredited, result.PropertiesDeleted, result.ErrorCount)
	return result, nil
}

// settleSubmission flips a still pending submission to approved. It reports
// false when an admin decision landed first.
func (s *Service) settleSubmission(ctx context.Context, propertyID string) (bool, error) {
	settled := false
	err := s.store.WithinTx(ctx, func(tx database.Store) error {
		sub, err := tx.GetSubmissionByProperty(ctx, propertyID)
		if err != nil {
			return err
		}
		if !sub.IsPending() {
			return nil
		}
		settled = true
		return tx.UpdateSubmissionStatus(ctx, propertyID, models.SubmissionStatusApproved)
	})
	return settled && err == nil, err
}

// deleteWithLog writes the delete log and removes the property in one transaction
func (s *Service) deleteWithLog(ctx context.Context, prop models.Property, reason string) error {
	err := s.store.WithinTx(ctx, func(tx database.Store) error {
		if err := tx.CreateDeleteLog(ctx, &models.DeleteLog{
			PropertyID: prop.ID,
			Title:      prop.Title,
			Reason:     reason,
		}); err != nil {
			return fmt.Errorf("failed to create delete log: %w", err)
		}
		return tx.DeleteProperty(ctx, prop.ID)
	})
	if err != nil {
		return err
	}

	if s.index != nil {
		s.index.RemoveProperty(prop.ID)
	}
	log.Printf("[Cleanup] Physically deleted property %s (Title: %s, reason: %s)", prop.ID, prop.Title, reason)
	return nil
}
