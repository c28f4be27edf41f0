package database

import (
	"context"
	"errors"
	"strings"
	"time"

	"property-marketplace/internal/models"
)

var (
	// ErrNotFound is returned when a requested row does not exist
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique constraint is violated
	ErrDuplicate = errors.New("duplicate record")
)

// Store is the persistence gateway shared by every backend (MySQL, Postgres, memory).
// Implementations translate rows into models and map missing rows to ErrNotFound.
type Store interface {
	// WithinTx runs fn against a transactional view of the store.
	// Returning an error from fn rolls every write back.
	WithinTx(ctx context.Context, fn func(Store) error) error

	// Properties
	CreateProperty(ctx context.Context, p *models.Property) error
	GetProperty(ctx context.Context, id string) (*models.Property, error)
	UpdateProperty(ctx context.Context, p *models.Property) error
	SetPropertyApproved(ctx context.Context, id string, approved bool) error
	DeleteProperty(ctx context.Context, id string) error
	QueryProperties(ctx context.Context, filters PropertyFilters) ([]models.Property, error)
	ListOrphanProperties(ctx context.Context, createdBefore time.Time, limit int) ([]models.Property, error)

	// Submissions
	CreateSubmission(ctx context.Context, s *models.PropertySubmission) error
	GetSubmissionByProperty(ctx context.Context, propertyID string) (*models.PropertySubmission, error)
	UpdateSubmissionStatus(ctx context.Context, propertyID string, status models.SubmissionStatus) error
	ListSubmissions(ctx context.Context, status models.SubmissionStatus) ([]models.PropertySubmission, error)
	ListSubmissionsByUser(ctx context.Context, userID string) ([]models.PropertySubmission, error)
	// ListStalePendingSubmissions returns pending submissions whose property is already approved
	ListStalePendingSubmissions(ctx context.Context) ([]models.PropertySubmission, error)
	// ListRejectedWithProperty returns rejected submissions whose property row still exists
	ListRejectedWithProperty(ctx context.Context) ([]models.PropertySubmission, error)

	// Users
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUserProfile(ctx context.Context, u *models.User) error
	UpdateUserPassword(ctx context.Context, id, passwordHash string) error
	ListUsers(ctx context.Context, userType models.UserType) ([]models.User, error)
	// IncrementUserTokens atomically adds delta to the balance and returns the new balance
	IncrementUserTokens(ctx context.Context, userID string, delta int) (int, error)

	// Admin applications
	CreateAdminApplication(ctx context.Context, a *models.AdminApplication) error
	GetAdminApplication(ctx context.Context, id string) (*models.AdminApplication, error)
	ListAdminApplications(ctx context.Context, status models.SubmissionStatus) ([]models.AdminApplication, error)
	ListAdminApplicationsByUser(ctx context.Context, userID string) ([]models.AdminApplication, error)
	UpdateAdminApplicationStatus(ctx context.Context, id string, status models.SubmissionStatus) error
	HasApprovedAdminApplication(ctx context.Context, userID string) (bool, error)

	// Appointments
	CreateAppointment(ctx context.Context, a *models.Appointment) error
	GetAppointment(ctx context.Context, id string) (*models.Appointment, error)
	ListAppointmentsForUser(ctx context.Context, userID string) ([]models.Appointment, error)
	ListAppointmentsForOwner(ctx context.Context, ownerID string) ([]models.Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id string, status models.AppointmentStatus) error

	// Audit and history
	CreateDeleteLog(ctx context.Context, l *models.DeleteLog) error
	ListDeleteLogs(ctx context.Context, limit int) ([]models.DeleteLog, error)
	CreatePropertyChanges(ctx context.Context, changes []models.PropertyChange) error
	ListPropertyChanges(ctx context.Context, propertyID string, limit int) ([]models.PropertyChange, error)

	Stats(ctx context.Context) (*Stats, error)

	Close() error
}

// Sort orders accepted by QueryProperties
const (
	SortNewest    = "newest"
	SortOldest    = "oldest"
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
)

const (
	DefaultQueryLimit = 50
	MaxQueryLimit     = 200
)

// PropertyFilters describes a property search. The zero value lists approved
// properties, newest first.
type PropertyFilters struct {
	Query        string // substring of location, title or description (case-insensitive)
	Type         models.PropertyType
	Status       models.ListingStatus
	MinPrice     *float64
	MaxPrice     *float64
	MinBedrooms  *int
	MinBathrooms *int
	OwnerID      string
	SortBy       string

	// IncludeUnapproved lifts the approved-only default (owner and admin views)
	IncludeUnapproved bool

	Limit  int
	Offset int
}

// Normalize fills defaults and clamps paging values
func (f PropertyFilters) Normalize() PropertyFilters {
	f.Query = strings.TrimSpace(f.Query)
	switch f.SortBy {
	case SortNewest, SortOldest, SortPriceAsc, SortPriceDesc:
	default:
		f.SortBy = SortNewest
	}
	if f.Limit <= 0 {
		f.Limit = DefaultQueryLimit
	}
	if f.Limit > MaxQueryLimit {
		f.Limit = MaxQueryLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// likePattern builds a lower-cased %substring% pattern with LIKE wildcards escaped
func likePattern(q string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(strings.ToLower(q))
	return "%" + escaped + "%"
}

// Stats summarises marketplace activity for the admin dashboard
type Stats struct {
	ApprovedProperties  int64 `json:"approvedProperties"`
	PendingProperties   int64 `json:"pendingProperties"`
	PendingSubmissions  int64 `json:"pendingSubmissions"`
	ApprovedSubmissions int64 `json:"approvedSubmissions"`
	RejectedSubmissions int64 `json:"rejectedSubmissions"`
	Users               int64 `json:"users"`
	TokensIssued        int64 `json:"tokensIssued"`
	PendingApplications int64 `json:"pendingApplications"`
}
