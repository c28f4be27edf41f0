package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"property-marketplace/internal/models"
)

// sqlxQueryer is satisfied by both *sqlx.DB and *sqlx.Tx
type sqlxQueryer interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type PostgresDB struct {
	conn *sqlx.DB
	q    sqlxQueryer
}

func NewPostgresDB(host, port, user, password, dbname, sslmode string) (*PostgresDB, error) {
	if sslmode == "" {
		sslmode = "disable"
	}
	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbname, sslmode)

	conn, err := sqlx.Connect("postgres", connStr)
	if err != nil {
		return nil, err
	}

	return NewPostgresDBFromDB(conn), nil
}

// NewPostgresDBFromDB wraps an existing connection pool
func NewPostgresDBFromDB(conn *sqlx.DB) *PostgresDB {
	return &PostgresDB{conn: conn, q: conn}
}

func (db *PostgresDB) Close() error {
	if db.conn == nil {
		return nil
	}
	return db.conn.Close()
}

// InitSchema creates the tables if they don't exist
func (db *PostgresDB) InitSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS users (
		id VARCHAR(36) PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		email VARCHAR(255) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		phone VARCHAR(50) NOT NULL DEFAULT '',
		location VARCHAR(255) NOT NULL DEFAULT '',
		type VARCHAR(20) NOT NULL,
		company VARCHAR(255),
		tokens INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS properties (
		id VARCHAR(36) PRIMARY KEY,
		title VARCHAR(255) NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		price DOUBLE PRECISION NOT NULL,
		location VARCHAR(255) NOT NULL,
		bedrooms INTEGER,
		bathrooms INTEGER,
		area DOUBLE PRECISION,
		type VARCHAR(20) NOT NULL,
		status VARCHAR(10) NOT NULL,
		images JSONB NOT NULL DEFAULT '[]',
		owner_id VARCHAR(36) NOT NULL,
		agent_id VARCHAR(36),
		company_id VARCHAR(36),
		is_approved BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS property_submissions (
		id VARCHAR(36) PRIMARY KEY,
		property_id VARCHAR(36) NOT NULL UNIQUE,
		user_id VARCHAR(36) NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'pending',
		tokens_awarded INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS admin_applications (
		id VARCHAR(36) PRIMARY KEY,
		user_id VARCHAR(36) NOT NULL,
		reason TEXT NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'pending',
		created_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS appointments (
		id VARCHAR(36) PRIMARY KEY,
		property_id VARCHAR(36) NOT NULL,
		user_id VARCHAR(36) NOT NULL,
		scheduled_at TIMESTAMP NOT NULL,
		message TEXT NOT NULL DEFAULT '',
		status VARCHAR(20) NOT NULL DEFAULT 'pending',
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS property_changes (
		id SERIAL PRIMARY KEY,
		property_id VARCHAR(36) NOT NULL,
		change_type VARCHAR(50) NOT NULL,
		old_value TEXT NOT NULL DEFAULT '',
		new_value TEXT NOT NULL DEFAULT '',
		change_magnitude DOUBLE PRECISION,
		detected_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS delete_logs (
		id SERIAL PRIMARY KEY,
		property_id VARCHAR(36) NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		reason VARCHAR(50) NOT NULL,
		deleted_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	-- Create indexes for filtering
	CREATE INDEX IF NOT EXISTS idx_properties_created_at ON properties(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_properties_price ON properties(price);
	CREATE INDEX IF NOT EXISTS idx_properties_is_approved ON properties(is_approved);
	CREATE INDEX IF NOT EXISTS idx_properties_owner_id ON properties(owner_id);
	CREATE INDEX IF NOT EXISTS idx_property_submissions_status ON property_submissions(status);
	CREATE INDEX IF NOT EXISTS idx_property_submissions_user_id ON property_submissions(user_id);
	CREATE INDEX IF NOT EXISTS idx_admin_applications_user_id ON admin_applications(user_id);
	CREATE INDEX IF NOT EXISTS idx_appointments_property_id ON appointments(property_id);
	CREATE INDEX IF NOT EXISTS idx_property_changes_property_id ON property_changes(property_id);
	`
	_, err := db.conn.Exec(query)
	return err
}

func (db *PostgresDB) WithinTx(ctx context.Context, fn func(Store) error) error {
	if db.conn == nil {
		// Already inside a transaction
		return fn(db)
	}

	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(&PostgresDB{q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}
	return tx.Commit()
}

// uniqueViolation is the Postgres SQLSTATE for unique constraint failures
const uniqueViolation = "23505"

func translateSQLError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ErrDuplicate
	}
	return err
}

// execOne runs a write that must touch exactly one row
func (db *PostgresDB) execOne(ctx context.Context, query string, args ...interface{}) error {
	res, err := db.q.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ---------------------------------------------------------------------------
// Properties

const propertyColumns = `id, title, description, price, location, bedrooms, bathrooms, area,
	type, status, images, owner_id, agent_id, company_id, is_approved, created_at, updated_at`

func (db *PostgresDB) CreateProperty(ctx context.Context, p *models.Property) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	query := `
	INSERT INTO properties (` + propertyColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err := db.q.ExecContext(ctx, query,
		p.ID, p.Title, p.Description, p.Price, p.Location, p.Bedrooms, p.Bathrooms, p.Area,
		p.Type, p.Status, p.Images, p.OwnerID, p.AgentID, p.CompanyID, p.IsApproved, p.CreatedAt, p.UpdatedAt)
	return translateSQLError(err)
}

func (db *PostgresDB) GetProperty(ctx context.Context, id string) (*models.Property, error) {
	var p models.Property
	err := db.q.GetContext(ctx, &p, `SELECT `+propertyColumns+` FROM properties WHERE id = $1`, id)
	if err != nil {
		return nil, translateSQLError(err)
	}
	return &p, nil
}

func (db *PostgresDB) UpdateProperty(ctx context.Context, p *models.Property) error {
	query := `
	UPDATE properties SET
		title = $1, description = $2, price = $3, location = $4, bedrooms = $5, bathrooms = $6,
		area = $7, type = $8, status = $9, images = $10, updated_at = NOW()
	WHERE id = $11
	`
	return db.execOne(ctx, query,
		p.Title, p.Description, p.Price, p.Location, p.Bedrooms, p.Bathrooms,
		p.Area, p.Type, p.Status, p.Images, p.ID)
}

func (db *PostgresDB) SetPropertyApproved(ctx context.Context, id string, approved bool) error {
	return db.execOne(ctx, `UPDATE properties SET is_approved = $1, updated_at = NOW() WHERE id = $2`, approved, id)
}

func (db *PostgresDB) DeleteProperty(ctx context.Context, id string) error {
	return db.execOne(ctx, `DELETE FROM properties WHERE id = $1`, id)
}

func (db *PostgresDB) QueryProperties(ctx context.Context, filters PropertyFilters) ([]models.Property, error) {
	f := filters.Normalize()

	var conds []string
	var args []interface{}
	if !f.IncludeUnapproved {
		conds = append(conds, "is_approved = TRUE")
	}
	if f.Query != "" {
		pattern := likePattern(f.Query)
		conds = append(conds, "(location ILIKE ? OR title ILIKE ? OR description ILIKE ?)")
		args = append(args, pattern, pattern, pattern)
	}
	if f.Type != "" {
		conds = append(conds, "type = ?")
		args = append(args, f.Type)
	}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, f.Status)
	}
	if f.MinPrice != nil {
		conds = append(conds, "price >= ?")
		args = append(args, *f.MinPrice)
	}
	if f.MaxPrice != nil {
		conds = append(conds, "price <= ?")
		args = append(args, *f.MaxPrice)
	}
	if f.MinBedrooms != nil {
		conds = append(conds, "bedrooms >= ?")
		args = append(args, *f.MinBedrooms)
	}
	if f.MinBathrooms != nil {
		conds = append(conds, "bathrooms >= ?")
		args = append(args, *f.MinBathrooms)
	}
	if f.OwnerID != "" {
		conds = append(conds, "owner_id = ?")
		args = append(args, f.OwnerID)
	}

	query := `SELECT ` + propertyColumns + ` FROM properties`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY " + orderClause(f.SortBy) + " LIMIT ? OFFSET ?"
	args = append(args, f.Limit, f.Offset)

	properties := []models.Property{}
	if err := db.q.SelectContext(ctx, &properties, sqlx.Rebind(sqlx.DOLLAR, query), args...); err != nil {
		return nil, err
	}
	return properties, nil
}

func (db *PostgresDB) ListOrphanProperties(ctx context.Context, createdBefore time.Time, limit int) ([]models.Property, error) {
	query := `
	SELECT ` + propertyColumns + ` FROM properties
	WHERE is_approved = FALSE
	  AND created_at < $1
	  AND NOT EXISTS (SELECT 1 FROM property_submissions s WHERE s.property_id = properties.id)
	ORDER BY created_at ASC
	LIMIT $2
	`
	properties := []models.Property{}
	err := db.q.SelectContext(ctx, &properties, query, createdBefore, limit)
	return properties, err
}

// ---------------------------------------------------------------------------
// Submissions

const submissionColumns = `id, property_id, user_id, status, tokens_awarded, created_at`

func (db *PostgresDB) CreateSubmission(ctx context.Context, s *models.PropertySubmission) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	_, err := db.q.ExecContext(ctx,
		`INSERT INTO property_submissions (`+submissionColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		s.ID, s.PropertyID, s.UserID, s.Status, s.TokensAwarded, s.CreatedAt)
	return translateSQLError(err)
}

func (db *PostgresDB) GetSubmissionByProperty(ctx context.Context, propertyID string) (*models.PropertySubmission, error) {
	var s models.PropertySubmission
	err := db.q.GetContext(ctx, &s,
		`SELECT `+submissionColumns+` FROM property_submissions WHERE property_id = $1`, propertyID)
	if err != nil {
		return nil, translateSQLError(err)
	}
	return &s, nil
}

func (db *PostgresDB) UpdateSubmissionStatus(ctx context.Context, propertyID string, status models.SubmissionStatus) error {
	return db.execOne(ctx, `UPDATE property_submissions SET status = $1 WHERE property_id = $2`, status, propertyID)
}

func (db *PostgresDB) ListSubmissions(ctx context.Context, status models.SubmissionStatus) ([]models.PropertySubmission, error) {
	subs := []models.PropertySubmission{}
	var err error
	if status == "" {
		err = db.q.SelectContext(ctx, &subs,
			`SELECT `+submissionColumns+` FROM property_submissions ORDER BY created_at ASC`)
	} else {
		err = db.q.SelectContext(ctx, &subs,
			`SELECT `+submissionColumns+` FROM property_submissions WHERE status = $1 ORDER BY created_at ASC`, status)
	}
	return subs, err
}

func (db *PostgresDB) ListSubmissionsByUser(ctx context.Context, userID string) ([]models.PropertySubmission, error) {
	subs := []models.PropertySubmission{}
	err := db.q.SelectContext(ctx, &subs,
		`SELECT `+submissionColumns+` FROM property_submissions WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	return subs, err
}

func (db *PostgresDB) ListStalePendingSubmissions(ctx context.Context) ([]models.PropertySubmission, error) {
	query := `
	SELECT s.id, s.property_id, s.user_id, s.status, s.tokens_awarded, s.created_at
	FROM property_submissions s
	JOIN properties p ON p.id = s.property_id
	WHERE s.status = $1 AND p.is_approved = TRUE
	`
	subs := []models.PropertySubmission{}
	err := db.q.SelectContext(ctx, &subs, query, models.SubmissionStatusPending)
	return subs, err
}

func (db *PostgresDB) ListRejectedWithProperty(ctx context.Context) ([]models.PropertySubmission, error) {
	query := `
	SELECT s.id, s.property_id, s.user_id, s.status, s.tokens_awarded, s.created_at
	FROM property_submissions s
	JOIN properties p ON p.id = s.property_id
	WHERE s.status = $1
	`
	subs := []models.PropertySubmission{}
	err := db.q.SelectContext(ctx, &subs, query, models.SubmissionStatusRejected)
	return subs, err
}

// ---------------------------------------------------------------------------
// Users

const userColumns = `id, name, email, password_hash, phone, location, type, company, tokens, created_at, updated_at`

func (db *PostgresDB) CreateUser(ctx context.Context, u *models.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now()
	u.CreatedAt = now
	u.UpdatedAt = now
	_, err := db.q.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.Phone, u.Location, u.Type, u.Company, u.Tokens, u.CreatedAt, u.UpdatedAt)
	return translateSQLError(err)
}

func (db *PostgresDB) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := db.q.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id = $1`, id); err != nil {
		return nil, translateSQLError(err)
	}
	return &u, nil
}

func (db *PostgresDB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := db.q.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE email = $1`, email); err != nil {
		return nil, translateSQLError(err)
	}
	return &u, nil
}

func (db *PostgresDB) UpdateUserProfile(ctx context.Context, u *models.User) error {
	return db.execOne(ctx,
		`UPDATE users SET name = $1, phone = $2, location = $3, type = $4, company = $5, updated_at = NOW() WHERE id = $6`,
		u.Name, u.Phone, u.Location, u.Type, u.Company, u.ID)
}

func (db *PostgresDB) UpdateUserPassword(ctx context.Context, id, passwordHash string) error {
	return db.execOne(ctx, `UPDATE users SET password_hash = $1, updated_at = NOW() WHERE id = $2`, passwordHash, id)
}

func (db *PostgresDB) ListUsers(ctx context.Context, userType models.UserType) ([]models.User, error) {
	users := []models.User{}
	var err error
	if userType == "" {
		err = db.q.SelectContext(ctx, &users, `SELECT `+userColumns+` FROM users ORDER BY name ASC`)
	} else {
		err = db.q.SelectContext(ctx, &users, `SELECT `+userColumns+` FROM users WHERE type = $1 ORDER BY name ASC`, userType)
	}
	return users, err
}

func (db *PostgresDB) IncrementUserTokens(ctx context.Context, userID string, delta int) (int, error) {
	var balance int
	err := db.q.GetContext(ctx, &balance,
		`UPDATE users SET tokens = tokens + $1, updated_at = NOW() WHERE id = $2 RETURNING tokens`, delta, userID)
	if err != nil {
		return 0, translateSQLError(err)
	}
	return balance, nil
}

// ---------------------------------------------------------------------------
// Admin applications

const adminApplicationColumns = `id, user_id, reason, status, created_at`

func (db *PostgresDB) CreateAdminApplication(ctx context.Context, a *models.AdminApplication) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	_, err := db.q.ExecContext(ctx,
		`INSERT INTO admin_applications (`+adminApplicationColumns+`) VALUES ($1, $2, $3, $4, $5)`,
		a.ID, a.UserID, a.Reason, a.Status, a.CreatedAt)
	return err
}

func (db *PostgresDB) GetAdminApplication(ctx context.Context, id string) (*models.AdminApplication, error) {
	var a models.AdminApplication
	err := db.q.GetContext(ctx, &a, `SELECT `+adminApplicationColumns+` FROM admin_applications WHERE id = $1`, id)
	if err != nil {
		return nil, translateSQLError(err)
	}
	return &a, nil
}

func (db *PostgresDB) ListAdminApplications(ctx context.Context, status models.SubmissionStatus) ([]models.AdminApplication, error) {
	apps := []models.AdminApplication{}
	var err error
	if status == "" {
		err = db.q.SelectContext(ctx, &apps,
			`SELECT `+adminApplicationColumns+` FROM admin_applications ORDER BY created_at ASC`)
	} else {
		err = db.q.SelectContext(ctx, &apps,
			`SELECT `+adminApplicationColumns+` FROM admin_applications WHERE status = $1 ORDER BY created_at ASC`, status)
	}
	return apps, err
}

func (db *PostgresDB) ListAdminApplicationsByUser(ctx context.Context, userID string) ([]models.AdminApplication, error) {
	apps := []models.AdminApplication{}
	err := db.q.SelectContext(ctx, &apps,
		`SELECT `+adminApplicationColumns+` FROM admin_applications WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	return apps, err
}

func (db *PostgresDB) UpdateAdminApplicationStatus(ctx context.Context, id string, status models.SubmissionStatus) error {
	return db.execOne(ctx, `UPDATE admin_applications SET status = $1 WHERE id = $2`, status, id)
}

func (db *PostgresDB) HasApprovedAdminApplication(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := db.q.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM admin_applications WHERE user_id = $1 AND status = $2)`,
		userID, models.SubmissionStatusApproved)
	return exists, err
}

// ---------------------------------------------------------------------------
// Appointments

const appointmentColumns = `id, property_id, user_id, scheduled_at, message, status, created_at, updated_at`

func (db *PostgresDB) CreateAppointment(ctx context.Context, a *models.Appointment) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now
	_, err := db.q.ExecContext(ctx,
		`INSERT INTO appointments (`+appointmentColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.PropertyID, a.UserID, a.ScheduledAt, a.Message, a.Status, a.CreatedAt, a.UpdatedAt)
	return err
}

func (db *PostgresDB) GetAppointment(ctx context.Context, id string) (*models.Appointment, error) {
	var a models.Appointment
	if err := db.q.GetContext(ctx, &a, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id); err != nil {
		return nil, translateSQLError(err)
	}
	return &a, nil
}

func (db *PostgresDB) ListAppointmentsForUser(ctx context.Context, userID string) ([]models.Appointment, error) {
	appts := []models.Appointment{}
	err := db.q.SelectContext(ctx, &appts,
		`SELECT `+appointmentColumns+` FROM appointments WHERE user_id = $1 ORDER BY scheduled_at ASC`, userID)
	return appts, err
}

func (db *PostgresDB) ListAppointmentsForOwner(ctx context.Context, ownerID string) ([]models.Appointment, error) {
	query := `
	SELECT a.id, a.property_id, a.user_id, a.scheduled_at, a.message, a.status, a.created_at, a.updated_at
	FROM appointments a
	JOIN properties p ON p.id = a.property_id
	WHERE p.owner_id = $1
	ORDER BY a.scheduled_at ASC
	`
	appts := []models.Appointment{}
	err := db.q.SelectContext(ctx, &appts, query, ownerID)
	return appts, err
}

func (db *PostgresDB) UpdateAppointmentStatus(ctx context.Context, id string, status models.AppointmentStatus) error {
	return db.execOne(ctx, `UPDATE appointments SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
}

// ---------------------------------------------------------------------------
// Audit and history

func (db *PostgresDB) CreateDeleteLog(ctx context.Context, l *models.DeleteLog) error {
	if l.DeletedAt.IsZero() {
		l.DeletedAt = time.Now()
	}
	return db.q.GetContext(ctx, &l.ID,
		`INSERT INTO delete_logs (property_id, title, reason, deleted_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		l.PropertyID, l.Title, l.Reason, l.DeletedAt)
}

func (db *PostgresDB) ListDeleteLogs(ctx context.Context, limit int) ([]models.DeleteLog, error) {
	logs := []models.DeleteLog{}
	err := db.q.SelectContext(ctx, &logs,
		`SELECT id, property_id, title, reason, deleted_at FROM delete_logs ORDER BY deleted_at DESC LIMIT $1`, limit)
	return logs, err
}

func (db *PostgresDB) CreatePropertyChanges(ctx context.Context, changes []models.PropertyChange) error {
	for i := range changes {
		c := &changes[i]
		if c.DetectedAt.IsZero() {
			c.DetectedAt = time.Now()
		}
		err := db.q.GetContext(ctx, &c.ID, `
			INSERT INTO property_changes (property_id, change_type, old_value, new_value, change_magnitude, detected_at)
			VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
			c.PropertyID, c.ChangeType, c.OldValue, c.NewValue, c.ChangeMagnitude, c.DetectedAt)
		if err != nil {
			return err
		}
	}
	return nil
}

func (db *PostgresDB) ListPropertyChanges(ctx context.Context, propertyID string, limit int) ([]models.PropertyChange, error) {
	changes := []models.PropertyChange{}
	err := db.q.SelectContext(ctx, &changes, `
		SELECT id, property_id, change_type, old_value, new_value, change_magnitude, detected_at
		FROM property_changes WHERE property_id = $1 ORDER BY detected_at DESC LIMIT $2`, propertyID, limit)
	return changes, err
}

func (db *PostgresDB) Stats(ctx context.Context) (*Stats, error) {
	query := `
	SELECT
		(SELECT COUNT(*) FROM properties WHERE is_approved = TRUE) AS approved_properties,
		(SELECT COUNT(*) FROM properties WHERE is_approved = FALSE) AS pending_properties,
		(SELECT COUNT(*) FROM property_submissions WHERE status = 'pending') AS pending_submissions,
		(SELECT COUNT(*) FROM property_submissions WHERE status = 'approved') AS approved_submissions,
		(SELECT COUNT(*) FROM property_submissions WHERE status = 'rejected') AS rejected_submissions,
		(SELECT COUNT(*) FROM users) AS users,
		(SELECT COALESCE(SUM(tokens), 0) FROM users) AS tokens_issued,
		(SELECT COUNT(*) FROM admin_applications WHERE status = 'pending') AS pending_applications
	`
	var row struct {
		ApprovedProperties  int64 `db:"approved_properties"`
		PendingProperties   int64 `db:"pending_properties"`
		PendingSubmissions  int64 `db:"pending_submissions"`
		ApprovedSubmissions int64 `db:"approved_submissions"`
		RejectedSubmissions int64 `db:"rejected_submissions"`
		Users               int64 `db:"users"`
		TokensIssued        int64 `db:"tokens_issued"`
		PendingApplications int64 `db:"pending_applications"`
	}
	if err := db.q.GetContext(ctx, &row, query); err != nil {
		return nil, err
	}
	s := Stats(row)
	return &s, nil
}
