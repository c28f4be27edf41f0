package cleanup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"property-marketplace/internal/database"
	"property-marketplace/internal/models"
	"property-marketplace/internal/tokens"
)

type removedIndex struct {
	ids []string
}

func (r *removedIndex) RemoveProperty(id string) { r.ids = append(r.ids, id) }

// creditFailingStore cannot change balances
type creditFailingStore struct {
	database.Store
}

func (s creditFailingStore) IncrementUserTokens(ctx context.Context, userID string, delta int) (int, error) {
	return 0, errors.New("connection lost")
}

func newService(store database.Store, index SearchIndex) *Service {
	return NewService(store, tokens.NewLedger(store), index)
}

func addSeller(t *testing.T, store database.Store, balance int) {
	t.Helper()
	require.NoError(t, store.CreateUser(context.Background(), &models.User{
		ID: "u1", Name: "Bola", Email: "bola@example.com", Type: models.UserTypeSeller, Tokens: balance,
	}))
}

func addProperty(t *testing.T, store database.Store, title string, approved bool, createdAt time.Time) *models.Property {
	t.Helper()
	p := &models.Property{
		Title:      title,
		Location:   "Ibadan",
		Type:       models.PropertyTypeHouse,
		Status:     models.ListingStatusSale,
		OwnerID:    "u1",
		IsApproved: approved,
		CreatedAt:  createdAt,
	}
	require.NoError(t, store.CreateProperty(context.Background(), p))
	return p
}

func addSubmission(t *testing.T, store database.Store, propertyID string, status models.SubmissionStatus) {
	t.Helper()
	require.NoError(t, store.CreateSubmission(context.Background(), &models.PropertySubmission{
		PropertyID: propertyID, UserID: "u1", Status: status, TokensAwarded: 5,
	}))
}

func TestDeleteOrphans(t *testing.T) {
	store := database.NewMemoryDB()
	index := &removedIndex{}
	svc := newService(store, index)
	ctx := context.Background()
	old := time.Now().Add(-48 * time.Hour)

	orphan := addProperty(t, store, "orphan", false, old)
	fresh := addProperty(t, store, "fresh orphan", false, time.Now())
	submitted := addProperty(t, store, "submitted", false, old)
	addSubmission(t, store, submitted.ID, models.SubmissionStatusPending)

	cfg := CleanupConfig{OrphanGrace: 24 * time.Hour, MaxDeletionCount: 10}

	t.Run("dry run deletes nothing", func(t *testing.T) {
		dry := cfg
		dry.DryRun = true
		result, err := svc.DeleteOrphans(ctx, dry)
		require.NoError(t, err)
		assert.Equal(t, []string{orphan.ID}, result.DeletedProperties)

		_, err = store.GetProperty(ctx, orphan.ID)
		assert.NoError(t, err)
	})

	t.Run("deletes and logs", func(t *testing.T) {
		result, err := svc.DeleteOrphans(ctx, cfg)
		require.NoError(t, err)
		assert.Equal(t, 1, result.DeletedCount)

		_, err = store.GetProperty(ctx, orphan.ID)
		assert.ErrorIs(t, err, database.ErrNotFound)
		_, err = store.GetProperty(ctx, fresh.ID)
		assert.NoError(t, err, "orphans inside the grace period are kept")
		_, err = store.GetProperty(ctx, submitted.ID)
		assert.NoError(t, err)

		logs, err := store.ListDeleteLogs(ctx, 10)
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.Equal(t, models.DeleteReasonOrphaned, logs[0].Reason)
		assert.Equal(t, []string{orphan.ID}, index.ids)
	})
}

func TestDeleteOrphans_SafetyLimit(t *testing.T) {
	store := database.NewMemoryDB()
	svc := newService(store, nil)
	old := time.Now().Add(-48 * time.Hour)
	for i := 0; i < 3; i++ {
		addProperty(t, store, "orphan", false, old)
	}

	_, err := svc.DeleteOrphans(context.Background(), CleanupConfig{OrphanGrace: time.Hour, MaxDeletionCount: 2})
	assert.Error(t, err)

	remaining, err := store.QueryProperties(context.Background(), database.PropertyFilters{IncludeUnapproved: true})
	require.NoError(t, err)
	assert.Len(t, remaining, 3)
}

func TestReconcile(t *testing.T) {
	store := database.NewMemoryDB()
	svc := newService(store, nil)
	ctx := context.Background()
	addSeller(t, store, 5)

	approved := addProperty(t, store, "approved but pending", true, time.Now())
	addSubmission(t, store, approved.ID, models.SubmissionStatusPending)

	rejected := addProperty(t, store, "rejected but present", false, time.Now())
	addSubmission(t, store, rejected.ID, models.SubmissionStatusRejected)

	healthy := addProperty(t, store, "pending", false, time.Now())
	addSubmission(t, store, healthy.ID, models.SubmissionStatusPending)

	result, err := svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.SubmissionsApproved)
	assert.Equal(t, 1, result.PropertiesDeleted)
	assert.Equal(t, 5, result.TokensCredited)
	assert.Zero(t, result.ErrorCount)

	sub, err := store.GetSubmissionByProperty(ctx, approved.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionStatusApproved, sub.Status)

	user, err := store.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 10, user.Tokens, "the settled submission pays its reward")

	_, err = store.GetProperty(ctx, rejected.ID)
	assert.ErrorIs(t, err, database.ErrNotFound)

	sub, err = store.GetSubmissionByProperty(ctx, healthy.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionStatusPending, sub.Status)

	again, err := svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Zero(t, again.SubmissionsApproved+again.PropertiesDeleted)

	user, err = store.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 10, user.Tokens, "a second run credits nothing")
}

func TestReconcile_CreditFailureIsReported(t *testing.T) {
	store := database.NewMemoryDB()
	failing := creditFailingStore{store}
	svc := NewService(failing, tokens.NewLedger(failing), nil)
	ctx := context.Background()
	addSeller(t, store, 5)

	approved := addProperty(t, store, "approved but pending", true, time.Now())
	addSubmission(t, store, approved.ID, models.SubmissionStatusPending)

	result, err := svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.SubmissionsApproved)
	assert.Zero(t, result.TokensCredited)
	assert.Equal(t, 1, result.ErrorCount)

	sub, err := store.GetSubmissionByProperty(ctx, approved.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionStatusApproved, sub.Status)
}
