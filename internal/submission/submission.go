package submission

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"property-marketplace/internal/database"
	"property-marketplace/internal/metrics"
	"property-marketplace/internal/models"
	"property-marketplace/internal/ratelimit"
	"property-marketplace/internal/snapshot"
	"property-marketplace/internal/tokens"
)

var (
	ErrQuotaExceeded = errors.New("submission quota exceeded")
	ErrForbidden     = errors.New("only the owner can edit this property")
	ErrInvalidDraft  = errors.New("invalid property draft")
)

// Indexer keeps the full-text index in step with property writes
type Indexer interface {
	SyncProperty(p *models.Property)
}

// Draft is the user-supplied part of a property listing
type Draft struct {
	Title       string               `json:"title" binding:"required,max=255"`
	Description string               `json:"description"`
	Price       float64              `json:"price" binding:"gte=0"`
	Location    string               `json:"location" binding:"required,max=255"`
	Bedrooms    *int                 `json:"bedrooms" binding:"omitempty,gte=0"`
	Bathrooms   *int                 `json:"bathrooms" binding:"omitempty,gte=0"`
	Area        *float64             `json:"area" binding:"omitempty,gte=0"`
	Type        models.PropertyType  `json:"type" binding:"required,oneof=house apartment commercial land"`
	Status      models.ListingStatus `json:"status" binding:"required,oneof=sale rent"`
	Images      []string             `json:"images" binding:"omitempty,max=20,dive,required"`
	AgentID     *string              `json:"agentId"`
	CompanyID   *string              `json:"companyId"`
}

func (d Draft) validate() error {
	if strings.TrimSpace(d.Title) == "" || strings.TrimSpace(d.Location) == "" {
		return fmt.Errorf("%w: title and location are required", ErrInvalidDraft)
	}
	if d.Price < 0 {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidDraft)
	}
	if !d.Type.Valid() {
		return fmt.Errorf("%w: unknown property type %q", ErrInvalidDraft, d.Type)
	}
	if !d.Status.Valid() {
		return fmt.Errorf("%w: unknown listing status %q", ErrInvalidDraft, d.Status)
	}
	return nil
}

// apply copies the draft onto p without touching ownership or approval
func (d Draft) apply(p *models.Property) {
	p.Title = strings.TrimSpace(d.Title)
	p.Description = d.Description
	p.Price = d.Price
	p.Location = strings.TrimSpace(d.Location)
	p.Bedrooms = d.Bedrooms
	p.Bathrooms = d.Bathrooms
	p.Area = d.Area
	p.Type = d.Type
	p.Status = d.Status
	p.Images = append(models.ImageList{}, d.Images...)
}

// Service turns drafts into unapproved properties with pending submissions
type Service struct {
	store   database.Store
	policy  tokens.RewardPolicy
	quota   *ratelimit.SubmissionQuota
	history *snapshot.Service
	indexer Indexer
}

// NewService creates a submission service. quota and indexer may be nil.
func NewService(store database.Store, policy tokens.RewardPolicy, quota *ratelimit.SubmissionQuota, indexer Indexer) *Service {
	return &Service{
		store:   store,
		policy:  policy,
		quota:   quota,
		history: snapshot.NewService(store),
		indexer: indexer,
	}
}

// Policy returns the reward schedule in effect
func (s *Service) Policy() tokens.RewardPolicy {
	return s.policy
}

// Submit creates the property and its pending submission together
func (s *Service) Submit(ctx context.Context, userID string, draft Draft) (*models.PropertySubmission, error) {
	if err := draft.validate(); err != nil {
		metrics.RecordSubmission("invalid")
		return nil, err
	}
	// Allow reserves a slot; it is refunded below if the insert fails
	if s.quota != nil && !s.quota.Allow(userID) {
		metrics.RecordSubmission("quota_exceeded")
		log.Printf("[Submission] Quota exceeded for user %s", userID)
		return nil, ErrQuotaExceeded
	}

	property := &models.Property{
		OwnerID:    userID,
		AgentID:    draft.AgentID,
		CompanyID:  draft.CompanyID,
		IsApproved: false,
	}
	draft.apply(property)

	sub := &models.PropertySubmission{
		UserID:        userID,
		Status:        models.SubmissionStatusPending,
		TokensAwarded: s.policy.Compute(property.Description, len(property.Images)),
	}

	err := s.store.WithinTx(ctx, func(tx database.Store) error {
		if err := tx.CreateProperty(ctx, property); err != nil {
			return fmt.Errorf("failed to create property: %w", err)
		}
		sub.PropertyID = property.ID
		if err := tx.CreateSubmission(ctx, sub); err != nil {
			return fmt.Errorf("failed to create submission: %w", err)
		}
		return s.history.RecordNew(ctx, tx, property)
	})
	if err != nil {
		if s.quota != nil {
			s.quota.Refund(userID)
		}
		metrics.RecordSubmission("failed")
		log.Printf("[Submission] Submit failed for user %s: %v", userID, err)
		return nil, err
	}

	metrics.RecordSubmission("created")
	log.WithFields(log.Fields{
		"user_id":     userID,
		"property_id": property.ID,
		"reward":      sub.TokensAwarded,
	}).Info("[Submission] Property submitted for approval")
	return sub, nil
}

// ListByUser returns the user's submissions, newest first
func (s *Service) ListByUser(ctx context.Context, userID string) ([]models.PropertySubmission, error) {
	subs, err := s.store.ListSubmissionsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if subs == nil {
		subs = []models.PropertySubmission{}
	}
	return subs, nil
}

// ListOwned returns every property owned by the user, approved or not
func (s *Service) ListOwned(ctx context.Context, userID string) ([]models.Property, error) {
	props, err := s.store.QueryProperties(ctx, database.PropertyFilters{
		OwnerID:           userID,
		IncludeUnapproved: true,
		Limit:             database.MaxQueryLimit,
	})
	if err != nil {
		return nil, err
	}
	if props == nil {
		props = []models.Property{}
	}
	return props, nil
}

// Update applies an owner's edit and records what changed. Approval state is kept.
func (s *Service) Update(ctx context.Context, userID, propertyID string, draft Draft) (*models.Property, []models.PropertyChange, error) {
	if err := draft.validate(); err != nil {
		return nil, nil, err
	}

	var (
		updated *models.Property
		changes []models.PropertyChange
	)
	err := s.store.WithinTx(ctx, func(tx database.Store) error {
		before, err := tx.GetProperty(ctx, propertyID)
		if err != nil {
			return err
		}
		if before.OwnerID != userID {
			return ErrForbidden
		}

		after := *before
		draft.apply(&after)
		if err := tx.UpdateProperty(ctx, &after); err != nil {
			return fmt.Errorf("failed to update property: %w", err)
		}
		changes, err = s.history.RecordEdit(ctx, tx, before, &after)
		if err != nil {
			return err
		}
		updated = &after
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	if s.indexer != nil {
		s.indexer.SyncProperty(updated)
	}
	return updated, changes, nil
}

// History returns the change history of a property
func (s *Service) History(ctx context.Context, propertyID string, limit int) ([]models.PropertyChange, error) {
	return s.history.GetPropertyHistory(ctx, propertyID, limit)
}
