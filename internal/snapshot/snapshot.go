package snapshot

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"property-marketplace/internal/database"
	"property-marketplace/internal/models"
)

// DefaultHistoryLimit caps history reads when the caller gives no limit
const DefaultHistoryLimit = 100

// Service records and reads property change history
type Service struct {
	store database.Store
}

// NewService creates a new snapshot service
func NewService(store database.Store) *Service {
	return &Service{store: store}
}

// DetectChanges compares the stored property with its edited version
func DetectChanges(before, after *models.Property) []models.PropertyChange {
	now := time.Now()
	changes := []models.PropertyChange{}

	add := func(changeType, oldVal, newVal string, magnitude *float64) {
		changes = append(changes, models.PropertyChange{
			PropertyID:      after.ID,
			ChangeType:      changeType,
			OldValue:        oldVal,
			NewValue:        newVal,
			ChangeMagnitude: magnitude,
			DetectedAt:      now,
		})
	}

	// Price change
	if before.Price != after.Price {
		magnitude := after.Price - before.Price
		add(models.ChangeTypePrice, formatPrice(before.Price), formatPrice(after.Price), &magnitude)
	}

	if before.Title != after.Title {
		add(models.ChangeTypeTitle, before.Title, after.Title, nil)
	}

	if before.Description != after.Description {
		add(models.ChangeTypeDescription, before.Description, after.Description, nil)
	}

	if before.Location != after.Location {
		add(models.ChangeTypeLocation, before.Location, after.Location, nil)
	}

	if before.Status != after.Status {
		add(models.ChangeTypeStatus, string(before.Status), string(after.Status), nil)
	}

	if before.Type != after.Type {
		add(models.ChangeTypeType, string(before.Type), string(after.Type), nil)
	}

	// Image change
	if !imagesEqual(before.Images, after.Images) {
		add(models.ChangeTypeImages, strings.Join(before.Images, ","), strings.Join(after.Images, ","), nil)
	}

	return changes
}

// RecordNew writes the new_property marker for a freshly submitted property
func (s *Service) RecordNew(ctx context.Context, store database.Store, p *models.Property) error {
	return store.CreatePropertyChanges(ctx, []models.PropertyChange{{
		PropertyID: p.ID,
		ChangeType: models.ChangeTypeNew,
		NewValue:   p.Title,
		DetectedAt: time.Now(),
	}})
}

// RecordEdit diffs and saves the changes of an edit through the given store
// (pass a transactional store to keep history and the edit together).
func (s *Service) RecordEdit(ctx context.Context, store database.Store, before, after *models.Property) ([]models.PropertyChange, error) {
	changes := DetectChanges(before, after)
	if len(changes) == 0 {
		return changes, nil
	}
	if err := store.CreatePropertyChanges(ctx, changes); err != nil {
		return nil, fmt.Errorf("failed to save property changes: %w", err)
	}
	log.Printf("[Snapshot] Detected %d changes for property %s", len(changes), after.ID)
	return changes, nil
}

// GetPropertyHistory retrieves change history for a property, newest first
func (s *Service) GetPropertyHistory(ctx context.Context, propertyID string, limit int) ([]models.PropertyChange, error) {
	if limit <= 0 || limit > DefaultHistoryLimit {
		limit = DefaultHistoryLimit
	}
	return s.store.ListPropertyChanges(ctx, propertyID, limit)
}

func formatPrice(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func imagesEqual(a, b models.ImageList) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
