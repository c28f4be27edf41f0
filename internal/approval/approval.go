package approval

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"property-marketplace/internal/database"
	"property-marketplace/internal/metrics"
	"property-marketplace/internal/models"
	"property-marketplace/internal/tokens"
)

// ErrNotPending is returned when a decision is made on an already decided submission
var ErrNotPending = errors.New("submission is not pending")

// SearchIndex is the part of the search service the workflow keeps in sync
type SearchIndex interface {
	SyncProperty(p *models.Property)
	RemoveProperty(id string)
}

// ImageStore removes uploaded objects of rejected properties
type ImageStore interface {
	DeleteByURL(ctx context.Context, url string) error
}

// Result is the outcome of an approval. CreditErr is set when the property was
// approved but the token credit failed afterwards.
type Result struct {
	Success       bool             `json:"success"`
	Property      *models.Property `json:"property,omitempty"`
	TokensAwarded int              `json:"tokensAwarded"`
	Balance       int              `json:"balance,omitempty"`
	CreditErr     error            `json:"-"`
}

// Service applies admin decisions to pending submissions. Callers authorize.
type Service struct {
	store  database.Store
	ledger *tokens.Ledger
	index  SearchIndex
	images ImageStore
}

// NewService creates the approval workflow. index and images may be nil.
func NewService(store database.Store, ledger *tokens.Ledger, index SearchIndex, images ImageStore) *Service {
	return &Service{store: store, ledger: ledger, index: index, images: images}
}

// Pending lists pending submissions with their properties, oldest first
func (s *Service) Pending(ctx context.Context) ([]models.PendingSubmission, error) {
	subs, err := s.store.ListSubmissions(ctx, models.SubmissionStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending submissions: %w", err)
	}

	pending := make([]models.PendingSubmission, 0, len(subs))
	for _, sub := range subs {
		p, err := s.store.GetProperty(ctx, sub.PropertyID)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				// rejected but not yet reconciled
				continue
			}
			return nil, err
		}
		pending = append(pending, models.PendingSubmission{Submission: sub, Property: p})
	}
	return pending, nil
}

// Approve publishes the property and credits the submitter with the recorded reward
func (s *Service) Approve(ctx context.Context, propertyID string) (*Result, error) {
	var (
		sub      *models.PropertySubmission
		property *models.Property
	)
	err := s.store.WithinTx(ctx, func(tx database.Store) error {
		var err error
		sub, err = tx.GetSubmissionByProperty(ctx, propertyID)
		if err != nil {
			return err
		}
		if !sub.IsPending() {
			return ErrNotPending
		}
		if err := tx.SetPropertyApproved(ctx, propertyID, true); err != nil {
			return fmt.Errorf("failed to approve property: %w", err)
		}
		if err := tx.UpdateSubmissionStatus(ctx, propertyID, models.SubmissionStatusApproved); err != nil {
			return fmt.Errorf("failed to update submission: %w", err)
		}
		property, err = tx.GetProperty(ctx, propertyID)
		return err
	})
	if err != nil {
		log.Printf("[Approval] Approve %s failed: %v", propertyID, err)
		return nil, err
	}

	metrics.RecordDecision("approved")
	result := &Result{Success: true, Property: property, TokensAwarded: sub.TokensAwarded}

	if sub.TokensAwarded > 0 {
		balance, err := s.ledger.Credit(ctx, sub.UserID, sub.TokensAwarded, tokens.SourceApproval)
		if err != nil {
			result.CreditErr = err
			log.WithFields(log.Fields{
				"property_id": propertyID,
				"user_id":     sub.UserID,
				"amount":      sub.TokensAwarded,
			}).Errorf("[Approval] Property approved but token credit failed: %v", err)
		} else {
			result.Balance = balance
		}
	}

	if s.index != nil {
		s.index.SyncProperty(property)
	}

	log.Printf("[Approval] Approved property %s (%d tokens to %s)", propertyID, sub.TokensAwarded, sub.UserID)
	return result, nil
}

// Reject marks the submission rejected and removes the property
func (s *Service) Reject(ctx context.Context, propertyID string) error {
	var property *models.Property
	err := s.store.WithinTx(ctx, func(tx database.Store) error {
		sub, err := tx.GetSubmissionByProperty(ctx, propertyID)
		if err != nil {
			return err
		}
		if !sub.IsPending() {
			return ErrNotPending
		}
		property, err = tx.GetProperty(ctx, propertyID)
		if err != nil {
			return err
		}
		if err := tx.UpdateSubmissionStatus(ctx, propertyID, models.SubmissionStatusRejected); err != nil {
			return fmt.Errorf("failed to update submission: %w", err)
		}
		if err := tx.DeleteProperty(ctx, propertyID); err != nil {
			return fmt.Errorf("failed to delete property: %w", err)
		}
		return tx.CreateDeleteLog(ctx, &models.DeleteLog{
			PropertyID: propertyID,
			Title:      property.Title,
			Reason:     models.DeleteReasonRejected,
		})
	})
	if err != nil {
		log.Printf("[Approval] Reject %s failed: %v", propertyID, err)
		return err
	}

	metrics.RecordDecision("rejected")
	if s.index != nil {
		s.index.RemoveProperty(propertyID)
	}
	s.removeImages(ctx, property)

	log.Printf("[Approval] Rejected property %s", propertyID)
	return nil
}

func (s *Service) removeImages(ctx context.Context, p *models.Property) {
	if s.images == nil || p == nil {
		return
	}
	for _, url := range p.Images {
		if err := s.images.DeleteByURL(ctx, url); err != nil {
			log.Printf("[Approval] Failed to delete image %s: %v", url, err)
		}
	}
}
