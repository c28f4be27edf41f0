package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"property-marketplace/internal/database"
	"property-marketplace/internal/models"
	"property-marketplace/internal/tokens"
)

var (
	ErrAlreadyAdmin       = errors.New("user is already an admin")
	ErrApplicationPending = errors.New("an application is already pending")
	ErrNotPending         = errors.New("application is not pending")
	ErrEmptyReason        = errors.New("reason is required")
)

// Service manages admin applications and admin-only account actions
type Service struct {
	store  database.Store
	ledger *tokens.Ledger
}

func NewService(store database.Store, ledger *tokens.Ledger) *Service {
	return &Service{store: store, ledger: ledger}
}

// IsAdmin reports whether the user has an approved application
func (s *Service) IsAdmin(ctx context.Context, userID string) (bool, error) {
	return s.store.HasApprovedAdminApplication(ctx, userID)
}

// Apply files an admin application. A user may have one pending application at a time.
func (s *Service) Apply(ctx context.Context, userID, reason string) (*models.AdminApplication, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrEmptyReason
	}

	app := &models.AdminApplication{
		UserID: userID,
		Reason: reason,
		Status: models.SubmissionStatusPending,
	}
	err := s.store.WithinTx(ctx, func(tx database.Store) error {
		existing, err := tx.ListAdminApplicationsByUser(ctx, userID)
		if err != nil {
			return err
		}
		for _, a := range existing {
			switch a.Status {
			case models.SubmissionStatusApproved:
				return ErrAlreadyAdmin
			case models.SubmissionStatusPending:
				return ErrApplicationPending
			}
		}
		return tx.CreateAdminApplication(ctx, app)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[Admin] User %s applied for admin", userID)
	return app, nil
}

// Applications lists applications, all of them when status is empty
func (s *Service) Applications(ctx context.Context, status models.SubmissionStatus) ([]models.AdminApplication, error) {
	apps, err := s.store.ListAdminApplications(ctx, status)
	if err != nil {
		return nil, err
	}
	if apps == nil {
		apps = []models.AdminApplication{}
	}
	return apps, nil
}

// MyApplications lists the user's own applications
func (s *Service) MyApplications(ctx context.Context, userID string) ([]models.AdminApplication, error) {
	apps, err := s.store.ListAdminApplicationsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if apps == nil {
		apps = []models.AdminApplication{}
	}
	return apps, nil
}

// Decide approves or rejects a pending application
func (s *Service) Decide(ctx context.Context, applicationID string, approve bool) (*models.AdminApplication, error) {
	status := models.SubmissionStatusRejected
	if approve {
		status = models.SubmissionStatusApproved
	}

	var app *models.AdminApplication
	err := s.store.WithinTx(ctx, func(tx database.Store) error {
		var err error
		app, err = tx.GetAdminApplication(ctx, applicationID)
		if err != nil {
			return err
		}
		if app.Status != models.SubmissionStatusPending {
			return ErrNotPending
		}
		if err := tx.UpdateAdminApplicationStatus(ctx, applicationID, status); err != nil {
			return fmt.Errorf("failed to update application: %w", err)
		}
		app.Status = status
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[Admin] Application %s of user %s %s", app.ID, app.UserID, status)
	return app, nil
}

// GrantTokens credits a user outside the submission flow
func (s *Service) GrantTokens(ctx context.Context, userID string, amount int) (int, error) {
	return s.ledger.Credit(ctx, userID, amount, tokens.SourceAdminGrant)
}

// Stats returns dashboard counters
func (s *Service) Stats(ctx context.Context) (*database.Stats, error) {
	return s.store.Stats(ctx)
}

// DeleteLogs returns the most recent property deletions
func (s *Service) DeleteLogs(ctx context.Context, limit int) ([]models.DeleteLog, error) {
	if limit <= 0 || limit > database.MaxQueryLimit {
		limit = database.DefaultQueryLimit
	}
	return s.store.ListDeleteLogs(ctx, limit)
}
