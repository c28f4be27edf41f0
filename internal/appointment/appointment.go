package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"property-marketplace/internal/database"
	"property-marketplace/internal/models"
)

var (
	ErrInvalidTransition = errors.New("appointment cannot move to that status")
	ErrNotAllowed        = errors.New("not a party to this appointment")
	ErrPastTime          = errors.New("appointment must be scheduled in the future")
	ErrNotBookable       = errors.New("property is not available for viewings")
)

// BookRequest asks for a viewing
type BookRequest struct {
	PropertyID  string    `json:"propertyId" binding:"required"`
	ScheduledAt time.Time `json:"scheduledAt" binding:"required"`
	Message     string    `json:"message" binding:"max=2000"`
}

// Service books and moves property viewings through their states
type Service struct {
	store database.Store
	now   func() time.Time
}

func NewService(store database.Store) *Service {
	return &Service{store: store, now: time.Now}
}

// Book creates a pending viewing of an approved property
func (s *Service) Book(ctx context.Context, userID string, req BookRequest) (*models.Appointment, error) {
	if !req.ScheduledAt.After(s.now()) {
		return nil, ErrPastTime
	}

	property, err := s.store.GetProperty(ctx, req.PropertyID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrNotBookable
		}
		return nil, err
	}
	if !property.IsApproved {
		return nil, ErrNotBookable
	}

	appt := &models.Appointment{
		PropertyID:  property.ID,
		UserID:      userID,
		ScheduledAt: req.ScheduledAt.UTC(),
		Message:     strings.TrimSpace(req.Message),
		Status:      models.AppointmentStatusPending,
	}
	if err := s.store.CreateAppointment(ctx, appt); err != nil {
		return nil, fmt.Errorf("failed to create appointment: %w", err)
	}

	log.Printf("[Appointment] User %s booked property %s for %s", userID, property.ID, appt.ScheduledAt.Format(time.RFC3339))
	return appt, nil
}

// Mine lists the viewings the user requested
func (s *Service) Mine(ctx context.Context, userID string) ([]models.Appointment, error) {
	return nonNil(s.store.ListAppointmentsForUser(ctx, userID))
}

// Incoming lists the viewings requested on the user's properties
func (s *Service) Incoming(ctx context.Context, ownerID string) ([]models.Appointment, error) {
	return nonNil(s.store.ListAppointmentsForOwner(ctx, ownerID))
}

func nonNil(appts []models.Appointment, err error) ([]models.Appointment, error) {
	if err != nil {
		return nil, err
	}
	if appts == nil {
		appts = []models.Appointment{}
	}
	return appts, nil
}

// Confirm is done by the property owner on a pending appointment
func (s *Service) Confirm(ctx context.Context, userID, appointmentID string) (*models.Appointment, error) {
	return s.transition(ctx, userID, appointmentID, models.AppointmentStatusConfirmed)
}

// Cancel is done by either party while the appointment is not final
func (s *Service) Cancel(ctx context.Context, userID, appointmentID string) (*models.Appointment, error) {
	return s.transition(ctx, userID, appointmentID, models.AppointmentStatusCancelled)
}

func (s *Service) transition(ctx context.Context, userID, appointmentID string, to models.AppointmentStatus) (*models.Appointment, error) {
	var appt *models.Appointment
	err := s.store.WithinTx(ctx, func(tx database.Store) error {
		var err error
		appt, err = tx.GetAppointment(ctx, appointmentID)
		if err != nil {
			return err
		}

		ownerID := ""
		if p, err := tx.GetProperty(ctx, appt.PropertyID); err == nil {
			ownerID = p.OwnerID
		} else if !errors.Is(err, database.ErrNotFound) {
			return err
		}

		switch to {
		case models.AppointmentStatusConfirmed:
			if userID != ownerID {
				return ErrNotAllowed
			}
			if appt.Status != models.AppointmentStatusPending {
				return ErrInvalidTransition
			}
		case models.AppointmentStatusCancelled:
			if userID != ownerID && userID != appt.UserID {
				return ErrNotAllowed
			}
			if appt.IsFinal() {
				return ErrInvalidTransition
			}
		default:
			return ErrInvalidTransition
		}

		if err := tx.UpdateAppointmentStatus(ctx, appointmentID, to); err != nil {
			return err
		}
		appt.Status = to
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[Appointment] %s -> %s by %s", appointmentID, to, userID)
	return appt, nil
}
