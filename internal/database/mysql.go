package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"property-marketplace/internal/models"
)

var gormLogLevel = logger.Warn

// SetLogLevel aligns GORM's SQL logging with the application log level
func SetLogLevel(level string) {
	switch level {
	case "debug", "trace":
		gormLogLevel = logger.Info
	case "error", "fatal", "panic":
		gormLogLevel = logger.Error
	case "silent":
		gormLogLevel = logger.Silent
	default:
		gormLogLevel = logger.Warn
	}
}

type GormDB struct {
	db *gorm.DB
}

func NewGormDB(host, port, user, password, dbname string) (*GormDB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		user, password, host, port, dbname)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(gormLogLevel),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().Local()
		},
	})
	if err != nil {
		return nil, err
	}

	// Test connection
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, err
	}

	return &GormDB{db: db}, nil
}

// NewGormDBFromDB creates a GormDB wrapper from an existing gorm.DB instance
func NewGormDBFromDB(db *gorm.DB) *GormDB {
	return &GormDB{db: db}
}

// DB returns the underlying gorm.DB instance
func (gdb *GormDB) DB() *gorm.DB {
	return gdb.db
}

func (gdb *GormDB) Close() error {
	sqlDB, err := gdb.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// InitSchema creates tables using GORM AutoMigrate
func (gdb *GormDB) InitSchema() error {
	return gdb.db.AutoMigrate(
		&models.User{},
		&models.Property{},
		&models.PropertySubmission{},
		&models.AdminApplication{},
		&models.Appointment{},
		&models.PropertyChange{},
		&models.DeleteLog{},
	)
}

func (gdb *GormDB) WithinTx(ctx context.Context, fn func(Store) error) error {
	return gdb.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormDB{db: tx})
	})
}

// translateGormError maps driver-specific errors onto package errors
func translateGormError(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	}
	return err
}

// ---------------------------------------------------------------------------
// Properties

func (gdb *GormDB) CreateProperty(ctx context.Context, p *models.Property) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Images == nil {
		p.Images = models.ImageList{}
	}
	return translateGormError(gdb.db.WithContext(ctx).Create(p).Error)
}

func (gdb *GormDB) GetProperty(ctx context.Context, id string) (*models.Property, error) {
	var property models.Property
	err := gdb.db.WithContext(ctx).Where("id = ?", id).First(&property).Error
	if err != nil {
		return nil, translateGormError(err)
	}
	return &property, nil
}

// UpdateProperty writes the editable listing fields. Approval and ownership are untouched.
func (gdb *GormDB) UpdateProperty(ctx context.Context, p *models.Property) error {
	result := gdb.db.WithContext(ctx).Model(&models.Property{}).
		Where("id = ?", p.ID).
		Updates(map[string]interface{}{
			"title":       p.Title,
			"description": p.Description,
			"price":       p.Price,
			"location":    p.Location,
			"bedrooms":    p.Bedrooms,
			"bathrooms":   p.Bathrooms,
			"area":        p.Area,
			"type":        p.Type,
			"status":      p.Status,
			"images":      p.Images,
			"updated_at":  time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (gdb *GormDB) SetPropertyApproved(ctx context.Context, id string, approved bool) error {
	result := gdb.db.WithContext(ctx).Model(&models.Property{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_approved": approved,
			"updated_at":  time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (gdb *GormDB) DeleteProperty(ctx context.Context, id string) error {
	result := gdb.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Property{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// QueryProperties applies filters, sorting and paging
func (gdb *GormDB) QueryProperties(ctx context.Context, filters PropertyFilters) ([]models.Property, error) {
	f := filters.Normalize()
	query := gdb.db.WithContext(ctx).Model(&models.Property{})

	if !f.IncludeUnapproved {
		query = query.Where("is_approved = ?", true)
	}
	if f.Query != "" {
		pattern := likePattern(f.Query)
		query = query.Where("(LOWER(location) LIKE ? OR LOWER(title) LIKE ? OR LOWER(description) LIKE ?)",
			pattern, pattern, pattern)
	}
	if f.Type != "" {
		query = query.Where("type = ?", f.Type)
	}
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.MinPrice != nil {
		query = query.Where("price >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		query = query.Where("price <= ?", *f.MaxPrice)
	}
	if f.MinBedrooms != nil {
		query = query.Where("bedrooms >= ?", *f.MinBedrooms)
	}
	if f.MinBathrooms != nil {
		query = query.Where("bathrooms >= ?", *f.MinBathrooms)
	}
	if f.OwnerID != "" {
		query = query.Where("owner_id = ?", f.OwnerID)
	}

	var properties []models.Property
	err := query.Order(orderClause(f.SortBy)).Limit(f.Limit).Offset(f.Offset).Find(&properties).Error
	return properties, err
}

// orderClause maps a sort key to an ORDER BY clause shared by the SQL backends
func orderClause(sortBy string) string {
	switch sortBy {
	case SortOldest:
		return "created_at ASC"
	case SortPriceAsc:
		return "price ASC, created_at DESC"
	case SortPriceDesc:
		return "price DESC, created_at DESC"
	default:
		return "created_at DESC"
	}
}

// ListOrphanProperties returns unapproved properties with no submission row
func (gdb *GormDB) ListOrphanProperties(ctx context.Context, createdBefore time.Time, limit int) ([]models.Property, error) {
	var properties []models.Property
	err := gdb.db.WithContext(ctx).
		Where("is_approved = ?", false).
		Where("created_at < ?", createdBefore).
		Where("NOT EXISTS (SELECT 1 FROM property_submissions s WHERE s.property_id = properties.id)").
		Order("created_at ASC").
		Limit(limit).
		Find(&properties).Error
	return properties, err
}

// ---------------------------------------------------------------------------
// Submissions

func (gdb *GormDB) CreateSubmission(ctx context.Context, s *models.PropertySubmission) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return translateGormError(gdb.db.WithContext(ctx).Create(s).Error)
}

func (gdb *GormDB) GetSubmissionByProperty(ctx context.Context, propertyID string) (*models.PropertySubmission, error) {
	var sub models.PropertySubmission
	err := gdb.db.WithContext(ctx).Where("property_id = ?", propertyID).First(&sub).Error
	if err != nil {
		return nil, translateGormError(err)
	}
	return &sub, nil
}

func (gdb *GormDB) UpdateSubmissionStatus(ctx context.Context, propertyID string, status models.SubmissionStatus) error {
	result := gdb.db.WithContext(ctx).Model(&models.PropertySubmission{}).
		Where("property_id = ?", propertyID).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (gdb *GormDB) ListSubmissions(ctx context.Context, status models.SubmissionStatus) ([]models.PropertySubmission, error) {
	var subs []models.PropertySubmission
	query := gdb.db.WithContext(ctx)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	err := query.Order("created_at ASC").Find(&subs).Error
	return subs, err
}

func (gdb *GormDB) ListSubmissionsByUser(ctx context.Context, userID string) ([]models.PropertySubmission, error) {
	var subs []models.PropertySubmission
	err := gdb.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&subs).Error
	return subs, err
}

func (gdb *GormDB) ListStalePendingSubmissions(ctx context.Context) ([]models.PropertySubmission, error) {
	var subs []models.PropertySubmission
	err := gdb.db.WithContext(ctx).
		Select("property_submissions.*").
		Joins("JOIN properties ON properties.id = property_submissions.property_id").
		Where("property_submissions.status = ? AND properties.is_approved = ?", models.SubmissionStatusPending, true).
		Find(&subs).Error
	return subs, err
}

func (gdb *GormDB) ListRejectedWithProperty(ctx context.Context) ([]models.PropertySubmission, error) {
	var subs []models.PropertySubmission
	err := gdb.db.WithContext(ctx).
		Select("property_submissions.*").
		Joins("JOIN properties ON properties.id = property_submissions.property_id").
		Where("property_submissions.status = ?", models.SubmissionStatusRejected).
		Find(&subs).Error
	return subs, err
}

// ---------------------------------------------------------------------------
// Users

func (gdb *GormDB) CreateUser(ctx context.Context, u *models.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return translateGormError(gdb.db.WithContext(ctx).Create(u).Error)
}

func (gdb *GormDB) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := gdb.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		return nil, translateGormError(err)
	}
	return &user, nil
}

func (gdb *GormDB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := gdb.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		return nil, translateGormError(err)
	}
	return &user, nil
}

// UpdateUserProfile writes profile fields only. Tokens and credentials have dedicated writers.
func (gdb *GormDB) UpdateUserProfile(ctx context.Context, u *models.User) error {
	result := gdb.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", u.ID).
		Updates(map[string]interface{}{
			"name":       u.Name,
			"phone":      u.Phone,
			"location":   u.Location,
			"type":       u.Type,
			"company":    u.Company,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (gdb *GormDB) UpdateUserPassword(ctx context.Context, id, passwordHash string) error {
	result := gdb.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"password_hash": passwordHash,
			"updated_at":    time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (gdb *GormDB) ListUsers(ctx context.Context, userType models.UserType) ([]models.User, error) {
	var users []models.User
	query := gdb.db.WithContext(ctx)
	if userType != "" {
		query = query.Where("type = ?", userType)
	}
	err := query.Order("name ASC").Find(&users).Error
	return users, err
}

// IncrementUserTokens performs a server-side tokens = tokens + delta so concurrent
// credits never overwrite each other.
func (gdb *GormDB) IncrementUserTokens(ctx context.Context, userID string, delta int) (int, error) {
	db := gdb.db.WithContext(ctx)
	result := db.Model(&models.User{}).
		Where("id = ?", userID).
		UpdateColumn("tokens", gorm.Expr("tokens + ?", delta))
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, ErrNotFound
	}

	var user models.User
	if err := db.Select("tokens").Where("id = ?", userID).First(&user).Error; err != nil {
		return 0, translateGormError(err)
	}
	return user.Tokens, nil
}

// ---------------------------------------------------------------------------
// Admin applications

func (gdb *GormDB) CreateAdminApplication(ctx context.Context, a *models.AdminApplication) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return gdb.db.WithContext(ctx).Create(a).Error
}

func (gdb *GormDB) GetAdminApplication(ctx context.Context, id string) (*models.AdminApplication, error) {
	var app models.AdminApplication
	err := gdb.db.WithContext(ctx).Where("id = ?", id).First(&app).Error
	if err != nil {
		return nil, translateGormError(err)
	}
	return &app, nil
}

func (gdb *GormDB) ListAdminApplications(ctx context.Context, status models.SubmissionStatus) ([]models.AdminApplication, error) {
	var apps []models.AdminApplication
	query := gdb.db.WithContext(ctx)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	err := query.Order("created_at ASC").Find(&apps).Error
	return apps, err
}

func (gdb *GormDB) ListAdminApplicationsByUser(ctx context.Context, userID string) ([]models.AdminApplication, error) {
	var apps []models.AdminApplication
	err := gdb.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&apps).Error
	return apps, err
}

func (gdb *GormDB) UpdateAdminApplicationStatus(ctx context.Context, id string, status models.SubmissionStatus) error {
	result := gdb.db.WithContext(ctx).Model(&models.AdminApplication{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (gdb *GormDB) HasApprovedAdminApplication(ctx context.Context, userID string) (bool, error) {
	var count int64
	err := gdb.db.WithContext(ctx).Model(&models.AdminApplication{}).
		Where("user_id = ? AND status = ?", userID, models.SubmissionStatusApproved).
		Count(&count).Error
	return count > 0, err
}

// ---------------------------------------------------------------------------
// Appointments

func (gdb *GormDB) CreateAppointment(ctx context.Context, a *models.Appointment) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return gdb.db.WithContext(ctx).Create(a).Error
}

func (gdb *GormDB) GetAppointment(ctx context.Context, id string) (*models.Appointment, error) {
	var appt models.Appointment
	err := gdb.db.WithContext(ctx).Where("id = ?", id).First(&appt).Error
	if err != nil {
		return nil, translateGormError(err)
	}
	return &appt, nil
}

func (gdb *GormDB) ListAppointmentsForUser(ctx context.Context, userID string) ([]models.Appointment, error) {
	var appts []models.Appointment
	err := gdb.db.WithContext(ctx).Where("user_id = ?", userID).Order("scheduled_at ASC").Find(&appts).Error
	return appts, err
}

// ListAppointmentsForOwner returns viewings booked on any property owned by ownerID
func (gdb *GormDB) ListAppointmentsForOwner(ctx context.Context, ownerID string) ([]models.Appointment, error) {
	var appts []models.Appointment
	err := gdb.db.WithContext(ctx).
		Select("appointments.*").
		Joins("JOIN properties ON properties.id = appointments.property_id").
		Where("properties.owner_id = ?", ownerID).
		Order("appointments.scheduled_at ASC").
		Find(&appts).Error
	return appts, err
}

func (gdb *GormDB) UpdateAppointmentStatus(ctx context.Context, id string, status models.AppointmentStatus) error {
	result := gdb.db.WithContext(ctx).Model(&models.Appointment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ---------------------------------------------------------------------------
// Audit and history

func (gdb *GormDB) CreateDeleteLog(ctx context.Context, l *models.DeleteLog) error {
	return gdb.db.WithContext(ctx).Create(l).Error
}

func (gdb *GormDB) ListDeleteLogs(ctx context.Context, limit int) ([]models.DeleteLog, error) {
	var logs []models.DeleteLog
	err := gdb.db.WithContext(ctx).Order("deleted_at DESC").Limit(limit).Find(&logs).Error
	return logs, err
}

func (gdb *GormDB) CreatePropertyChanges(ctx context.Context, changes []models.PropertyChange) error {
	if len(changes) == 0 {
		return nil
	}
	return gdb.db.WithContext(ctx).Create(&changes).Error
}

func (gdb *GormDB) ListPropertyChanges(ctx context.Context, propertyID string, limit int) ([]models.PropertyChange, error) {
	var changes []models.PropertyChange
	err := gdb.db.WithContext(ctx).
		Where("property_id = ?", propertyID).
		Order("detected_at DESC").
		Limit(limit).
		Find(&changes).Error
	return changes, err
}

// Stats runs the dashboard counters
func (gdb *GormDB) Stats(ctx context.Context) (*Stats, error) {
	db := gdb.db.WithContext(ctx)
	var s Stats

	if err := db.Model(&models.Property{}).Where("is_approved = ?", true).Count(&s.ApprovedProperties).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Property{}).Where("is_approved = ?", false).Count(&s.PendingProperties).Error; err != nil {
		return nil, err
	}

	type statusCount struct {
		Status models.SubmissionStatus
		Count  int64
	}
	var counts []statusCount
	if err := db.Model(&models.PropertySubmission{}).Select("status, COUNT(*) as count").Group("status").Scan(&counts).Error; err != nil {
		return nil, err
	}
	for _, c := range counts {
		switch c.Status {
		case models.SubmissionStatusPending:
			s.PendingSubmissions = c.Count
		case models.SubmissionStatusApproved:
			s.ApprovedSubmissions = c.Count
		case models.SubmissionStatusRejected:
			s.RejectedSubmissions = c.Count
		}
	}

	if err := db.Model(&models.User{}).Count(&s.Users).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.User{}).Select("COALESCE(SUM(tokens), 0)").Scan(&s.TokensIssued).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.AdminApplication{}).Where("status = ?", models.SubmissionStatusPending).Count(&s.PendingApplications).Error; err != nil {
		return nil, err
	}
	return &s, nil
}
