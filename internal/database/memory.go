package database

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"property-marketplace/internal/models"
)

// MemoryDB is an in-process Store used for local development and tests.
// Transactions are serialized and rolled back by restoring a snapshot. Writes
// outside a transaction wait for it, so a rollback never discards them.
type MemoryDB struct {
	*memoryState
	inTx bool
}

type memoryState struct {
	mu   sync.RWMutex
	txMu sync.Mutex

	properties   map[string]models.Property
	submissions  map[string]models.PropertySubmission // keyed by property ID
	users        map[string]models.User
	applications map[string]models.AdminApplication
	appointments map[string]models.Appointment
	deleteLogs   []models.DeleteLog
	changes      []models.PropertyChange
	nextLogID    uint
	nextChangeID uint
}

func NewMemoryDB() *MemoryDB {
	return &MemoryDB{memoryState: &memoryState{
		properties:   make(map[string]models.Property),
		submissions:  make(map[string]models.PropertySubmission),
		users:        make(map[string]models.User),
		applications: make(map[string]models.AdminApplication),
		appointments: make(map[string]models.Appointment),
	}}
}

// exclusive holds txMu for a write made outside a transaction
func (m *MemoryDB) exclusive() func() {
	if m.inTx {
		return func() {}
	}
	m.txMu.Lock()
	return m.txMu.Unlock
}

func (m *MemoryDB) Close() error { return nil }

type memorySnapshot struct {
	properties   map[string]models.Property
	submissions  map[string]models.PropertySubmission
	users        map[string]models.User
	applications map[string]models.AdminApplication
	appointments map[string]models.Appointment
	deleteLogs   []models.DeleteLog
	changes      []models.PropertyChange
	nextLogID    uint
	nextChangeID uint
}

func copyMap[K comparable, V any](src map[K]V) map[K]V {
	dst := make(map[K]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func (m *MemoryDB) snapshot() memorySnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return memorySnapshot{
		properties:   copyMap(m.properties),
		submissions:  copyMap(m.submissions),
		users:        copyMap(m.users),
		applications: copyMap(m.applications),
		appointments: copyMap(m.appointments),
		deleteLogs:   append([]models.DeleteLog(nil), m.deleteLogs...),
		changes:      append([]models.PropertyChange(nil), m.changes...),
		nextLogID:    m.nextLogID,
		nextChangeID: m.nextChangeID,
	}
}

func (m *MemoryDB) restore(s memorySnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.properties = s.properties
	m.submissions = s.submissions
	m.users = s.users
	m.applications = s.applications
	m.appointments = s.appointments
	m.deleteLogs = s.deleteLogs
	m.changes = s.changes
	m.nextLogID = s.nextLogID
	m.nextChangeID = s.nextChangeID
}

// WithinTx hands fn a view that already holds txMu; nested calls join the outer transaction
func (m *MemoryDB) WithinTx(ctx context.Context, fn func(Store) error) error {
	if m.inTx {
		return fn(m)
	}
	m.txMu.Lock()
	defer m.txMu.Unlock()

	snap := m.snapshot()
	if err := fn(&MemoryDB{memoryState: m.memoryState, inTx: true}); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

// ---------------------------------------------------------------------------
// Properties

func cloneProperty(p models.Property) models.Property {
	p.Images = append(models.ImageList{}, p.Images...)
	return p
}

func (m *MemoryDB) CreateProperty(ctx context.Context, p *models.Property) error {
	defer m.exclusive()()
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if p.Images == nil {
		p.Images = models.ImageList{}
	}
	m.properties[p.ID] = cloneProperty(*p)
	return nil
}

func (m *MemoryDB) GetProperty(ctx context.Context, id string) (*models.Property, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.properties[id]
	if !ok {
		return nil, ErrNotFound
	}
	p = cloneProperty(p)
	return &p, nil
}

func (m *MemoryDB) UpdateProperty(ctx context.Context, p *models.Property) error {
	defer m.exclusive()()
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.properties[p.ID]
	if !ok {
		return ErrNotFound
	}
	existing.Title = p.Title
	existing.Description = p.Description
	existing.Price = p.Price
	existing.Location = p.Location
	existing.Bedrooms = p.Bedrooms
	existing.Bathrooms = p.Bathrooms
	existing.Area = p.Area
	existing.Type = p.Type
	existing.Status = p.Status
	existing.Images = append(models.ImageList{}, p.Images...)
	existing.UpdatedAt = time.Now()
	m.properties[p.ID] = existing
	return nil
}

func (m *MemoryDB) SetPropertyApproved(ctx context.Context, id string, approved bool) error {
	defer m.exclusive()()
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.properties[id]
	if !ok {
		return ErrNotFound
	}
	p.IsApproved = approved
	p.UpdatedAt = time.Now()
	m.properties[id] = p
	return nil
}

func (m *MemoryDB) DeleteProperty(ctx context.Context, id string) error {
	defer m.exclusive()()
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.properties[id]; !ok {
		return ErrNotFound
	}
	delete(m.properties, id)
	return nil
}

func matchesFilters(p *models.Property, f PropertyFilters) bool {
	if !f.IncludeUnapproved && !p.IsApproved {
		return false
	}
	if f.Query != "" {
		q := strings.ToLower(f.Query)
		if !strings.Contains(strings.ToLower(p.Location), q) &&
			!strings.Contains(strings.ToLower(p.Title), q) &&
			!strings.Contains(strings.ToLower(p.Description), q) {
			return false
		}
	}
	if f.Type != "" && p.Type != f.Type {
		return false
	}
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	if f.MinPrice != nil && p.Price < *f.MinPrice {
		return false
	}
	if f.MaxPrice != nil && p.Price > *f.MaxPrice {
		return false
	}
	if f.MinBedrooms != nil && (p.Bedrooms == nil || *p.Bedrooms < *f.MinBedrooms) {
		return false
	}
	if f.MinBathrooms != nil && (p.Bathrooms == nil || *p.Bathrooms < *f.MinBathrooms) {
		return false
	}
	if f.OwnerID != "" && p.OwnerID != f.OwnerID {
		return false
	}
	return true
}

func (m *MemoryDB) QueryProperties(ctx context.Context, filters PropertyFilters) ([]models.Property, error) {
	f := filters.Normalize()

	m.mu.RLock()
	result := []models.Property{}
	for _, p := range m.properties {
		if matchesFilters(&p, f) {
			result = append(result, cloneProperty(p))
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(result, func(i, j int) bool {
		a, b := result[i], result[j]
		switch f.SortBy {
		case SortOldest:
			return a.CreatedAt.Before(b.CreatedAt)
		case SortPriceAsc:
			if a.Price != b.Price {
				return a.Price < b.Price
			}
		case SortPriceDesc:
			if a.Price != b.Price {
				return a.Price > b.Price
			}
		}
		return a.CreatedAt.After(b.CreatedAt)
	})

	if f.Offset >= len(result) {
		return []models.Property{}, nil
	}
	result = result[f.Offset:]
	if len(result) > f.Limit {
		result = result[:f.Limit]
	}
	return result, nil
}

func (m *MemoryDB) ListOrphanProperties(ctx context.Context, createdBefore time.Time, limit int) ([]models.Property, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	orphans := []models.Property{}
	for _, p := range m.properties {
		if p.IsApproved || !p.CreatedAt.Before(createdBefore) {
			continue
		}
		if _, ok := m.submissions[p.ID]; ok {
			continue
		}
		orphans = append(orphans, cloneProperty(p))
	}
	sort.Slice(orphans, func(i, j int) bool { return orphans[i].CreatedAt.Before(orphans[j].CreatedAt) })
	if limit > 0 && len(orphans) > limit {
		orphans = orphans[:limit]
	}
	return orphans, nil
}

// ---------------------------------------------------------------------------
// Submissions

func (m *MemoryDB) CreateSubmission(ctx context.Context, s *models.PropertySubmission) error {
	defer m.exclusive()()
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.submissions[s.PropertyID]; exists {
		return ErrDuplicate
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	m.submissions[s.PropertyID] = *s
	return nil
}

func (m *MemoryDB) GetSubmissionByProperty(ctx context.Context, propertyID string) (*models.PropertySubmission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.submissions[propertyID]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (m *MemoryDB) UpdateSubmissionStatus(ctx context.Context, propertyID string, status models.SubmissionStatus) error {
	defer m.exclusive()()
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.submissions[propertyID]
	if !ok {
		return ErrNotFound
	}
	s.Status = status
	m.submissions[propertyID] = s
	return nil
}

func (m *MemoryDB) filterSubmissions(keep func(*models.PropertySubmission) bool, newestFirst bool) []models.PropertySubmission {
	m.mu.RLock()
	defer m.mu.RUnlock()
	subs := []models.PropertySubmission{}
	for _, s := range m.submissions {
		if keep(&s) {
			subs = append(subs, s)
		}
	}
	sort.Slice(subs, func(i, j int) bool {
		if newestFirst {
			return subs[i].CreatedAt.After(subs[j].CreatedAt)
		}
		return subs[i].CreatedAt.Before(subs[j].CreatedAt)
	})
	return subs
}

func (m *MemoryDB) ListSubmissions(ctx context.Context, status models.SubmissionStatus) ([]models.PropertySubmission, error) {
	return m.filterSubmissions(func(s *models.PropertySubmission) bool {
		return status == "" || s.Status == status
	}, false), nil
}

func (m *MemoryDB) ListSubmissionsByUser(ctx context.Context, userID string) ([]models.PropertySubmission, error) {
	return m.filterSubmissions(func(s *models.PropertySubmission) bool {
		return s.UserID == userID
	}, true), nil
}

func (m *MemoryDB) ListStalePendingSubmissions(ctx context.Context) ([]models.PropertySubmission, error) {
	return m.filterSubmissions(func(s *models.PropertySubmission) bool {
		p, ok := m.properties[s.PropertyID]
		return ok && s.IsPending() && p.IsApproved
	}, false), nil
}

func (m *MemoryDB) ListRejectedWithProperty(ctx context.Context) ([]models.PropertySubmission, error) {
	return m.filterSubmissions(func(s *models.PropertySubmission) bool {
		_, ok := m.properties[s.PropertyID]
		return ok && s.Status == models.SubmissionStatusRejected
	}, false), nil
}

// ---------------------------------------------------------------------------
// Users

func (m *MemoryDB) CreateUser(ctx context.Context, u *models.User) error {
	defer m.exclusive()()
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return ErrDuplicate
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now()
	u.CreatedAt = now
	u.UpdatedAt = now
	m.users[u.ID] = *u
	return nil
}

func (m *MemoryDB) GetUser(ctx context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (m *MemoryDB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryDB) UpdateUserProfile(ctx context.Context, u *models.User) error {
	defer m.exclusive()()
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.users[u.ID]
	if !ok {
		return ErrNotFound
	}
	existing.Name = u.Name
	existing.Phone = u.Phone
	existing.Location = u.Location
	existing.Type = u.Type
	existing.Company = u.Company
	existing.UpdatedAt = time.Now()
	m.users[u.ID] = existing
	return nil
}

func (m *MemoryDB) UpdateUserPassword(ctx context.Context, id, passwordHash string) error {
	defer m.exclusive()()
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = time.Now()
	m.users[id] = u
	return nil
}

func (m *MemoryDB) ListUsers(ctx context.Context, userType models.UserType) ([]models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	users := []models.User{}
	for _, u := range m.users {
		if userType == "" || u.Type == userType {
			users = append(users, u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Name < users[j].Name })
	return users, nil
}

func (m *MemoryDB) IncrementUserTokens(ctx context.Context, userID string, delta int) (int, error) {
	defer m.exclusive()()
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return 0, ErrNotFound
	}
	u.Tokens += delta
	u.UpdatedAt = time.Now()
	m.users[userID] = u
	return u.Tokens, nil
}

// ---------------------------------------------------------------------------
// Admin applications

func (m *MemoryDB) CreateAdminApplication(ctx context.Context, a *models.AdminApplication) error {
	defer m.exclusive()()
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	m.applications[a.ID] = *a
	return nil
}

func (m *MemoryDB) GetAdminApplication(ctx context.Context, id string) (*models.AdminApplication, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.applications[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (m *MemoryDB) listApplications(keep func(*models.AdminApplication) bool, newestFirst bool) []models.AdminApplication {
	m.mu.RLock()
	defer m.mu.RUnlock()
	apps := []models.AdminApplication{}
	for _, a := range m.applications {
		if keep(&a) {
			apps = append(apps, a)
		}
	}
	sort.Slice(apps, func(i, j int) bool {
		if newestFirst {
			return apps[i].CreatedAt.After(apps[j].CreatedAt)
		}
		return apps[i].CreatedAt.Before(apps[j].CreatedAt)
	})
	return apps
}

func (m *MemoryDB) ListAdminApplications(ctx context.Context, status models.SubmissionStatus) ([]models.AdminApplication, error) {
	return m.listApplications(func(a *models.AdminApplication) bool {
		return status == "" || a.Status == status
	}, false), nil
}

func (m *MemoryDB) ListAdminApplicationsByUser(ctx context.Context, userID string) ([]models.AdminApplication, error) {
	return m.listApplications(func(a *models.AdminApplication) bool {
		return a.UserID == userID
	}, true), nil
}

func (m *MemoryDB) UpdateAdminApplicationStatus(ctx context.Context, id string, status models.SubmissionStatus) error {
	defer m.exclusive()()
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.applications[id]
	if !ok {
		return ErrNotFound
	}
	a.Status = status
	m.applications[id] = a
	return nil
}

func (m *MemoryDB) HasApprovedAdminApplication(ctx context.Context, userID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.applications {
		if a.UserID == userID && a.Status == models.SubmissionStatusApproved {
			return true, nil
		}
	}
	return false, nil
}

// ---------------------------------------------------------------------------
// Appointments

func (m *MemoryDB) CreateAppointment(ctx context.Context, a *models.Appointment) error {
	defer m.exclusive()()
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now
	m.appointments[a.ID] = *a
	return nil
}

func (m *MemoryDB) GetAppointment(ctx context.Context, id string) (*models.Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (m *MemoryDB) listAppointments(keep func(*models.Appointment) bool) []models.Appointment {
	m.mu.RLock()
	defer m.mu.RUnlock()
	appts := []models.Appointment{}
	for _, a := range m.appointments {
		if keep(&a) {
			appts = append(appts, a)
		}
	}
	sort.Slice(appts, func(i, j int) bool { return appts[i].ScheduledAt.Before(appts[j].ScheduledAt) })
	return appts
}

func (m *MemoryDB) ListAppointmentsForUser(ctx context.Context, userID string) ([]models.Appointment, error) {
	return m.listAppointments(func(a *models.Appointment) bool { return a.UserID == userID }), nil
}

func (m *MemoryDB) ListAppointmentsForOwner(ctx context.Context, ownerID string) ([]models.Appointment, error) {
	return m.listAppointments(func(a *models.Appointment) bool {
		p, ok := m.properties[a.PropertyID]
		return ok && p.OwnerID == ownerID
	}), nil
}

func (m *MemoryDB) UpdateAppointmentStatus(ctx context.Context, id string, status models.AppointmentStatus) error {
	defer m.exclusive()()
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok {
		return ErrNotFound
	}
	a.Status = status
	a.UpdatedAt = time.Now()
	m.appointments[id] = a
	return nil
}

// ---------------------------------------------------------------------------
// Audit and history

func (m *MemoryDB) CreateDeleteLog(ctx context.Context, l *models.DeleteLog) error {
	defer m.exclusive()()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextLogID++
	l.ID = m.nextLogID
	if l.DeletedAt.IsZero() {
		l.DeletedAt = time.Now()
	}
	m.deleteLogs = append(m.deleteLogs, *l)
	return nil
}

func (m *MemoryDB) ListDeleteLogs(ctx context.Context, limit int) ([]models.DeleteLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	logs := []models.DeleteLog{}
	for i := len(m.deleteLogs) - 1; i >= 0; i-- {
		if limit > 0 && len(logs) >= limit {
			break
		}
		logs = append(logs, m.deleteLogs[i])
	}
	return logs, nil
}

func (m *MemoryDB) CreatePropertyChanges(ctx context.Context, changes []models.PropertyChange) error {
	defer m.exclusive()()
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range changes {
		m.nextChangeID++
		changes[i].ID = m.nextChangeID
		if changes[i].DetectedAt.IsZero() {
			changes[i].DetectedAt = time.Now()
		}
		m.changes = append(m.changes, changes[i])
	}
	return nil
}

func (m *MemoryDB) ListPropertyChanges(ctx context.Context, propertyID string, limit int) ([]models.PropertyChange, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	changes := []models.PropertyChange{}
	for i := len(m.changes) - 1; i >= 0; i-- {
		if limit > 0 && len(changes) >= limit {
			break
		}
		if m.changes[i].PropertyID == propertyID {
			changes = append(changes, m.changes[i])
		}
	}
	return changes, nil
}

func (m *MemoryDB) Stats(ctx context.Context) (*Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var s Stats
	for _, p := range m.properties {
		if p.IsApproved {
			s.ApprovedProperties++
		} else {
			s.PendingProperties++
		}
	}
	for _, sub := range m.submissions {
		switch sub.Status {
		case models.SubmissionStatusPending:
			s.PendingSubmissions++
		case models.SubmissionStatusApproved:
			s.ApprovedSubmissions++
		case models.SubmissionStatusRejected:
			s.RejectedSubmissions++
		}
	}
	for _, u := range m.users {
		s.Users++
		s.TokensIssued += int64(u.Tokens)
	}
	for _, a := range m.applications {
		if a.Status == models.SubmissionStatusPending {
			s.PendingApplications++
		}
	}
	return &s, nil
}
