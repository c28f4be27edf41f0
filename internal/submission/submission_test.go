package submission

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"property-marketplace/internal/database"
	"property-marketplace/internal/models"
	"property-marketplace/internal/ratelimit"
	"property-marketplace/internal/tokens"
)

type recordingIndexer struct {
	synced []string
}

func (r *recordingIndexer) SyncProperty(p *models.Property) {
	r.synced = append(r.synced, p.ID)
}

// failingSubmissionStore fails the second write of the submit transaction
type failingSubmissionStore struct {
	database.Store
}

func (f failingSubmissionStore) WithinTx(ctx context.Context, fn func(database.Store) error) error {
	return f.Store.WithinTx(ctx, func(tx database.Store) error {
		return fn(failingSubmissionStore{tx})
	})
}

func (f failingSubmissionStore) CreateSubmission(ctx context.Context, s *models.PropertySubmission) error {
	return errors.New("insert failed")
}

func validDraft() Draft {
	return Draft{
		Title:       "Three bedroom flat",
		Description: strings.Repeat("Spacious and bright. ", 4),
		Price:       250000,
		Location:    "Lekki, Lagos",
		Type:        models.PropertyTypeApartment,
		Status:      models.ListingStatusSale,
		Images:      []string{"https://cdn.example.com/u1/1-front.jpg"},
	}
}

func TestSubmit_CreatesUnapprovedPropertyAndPendingSubmission(t *testing.T) {
	store := database.NewMemoryDB()
	svc := NewService(store, tokens.DefaultRewardPolicy(), nil, nil)
	ctx := context.Background()

	sub, err := svc.Submit(ctx, "u1", validDraft())
	require.NoError(t, err)

	assert.Equal(t, models.SubmissionStatusPending, sub.Status)
	assert.Equal(t, 10, sub.TokensAwarded)
	assert.Equal(t, "u1", sub.UserID)

	p, err := store.GetProperty(ctx, sub.PropertyID)
	require.NoError(t, err)
	assert.False(t, p.IsApproved)
	assert.Equal(t, "u1", p.OwnerID)

	history, err := svc.History(ctx, p.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.ChangeTypeNew, history[0].ChangeType)
}

func TestSubmit_RewardVariants(t *testing.T) {
	svc := NewService(database.NewMemoryDB(), tokens.DefaultRewardPolicy(), nil, nil)

	d := validDraft()
	d.Description = "short"
	d.Images = nil
	sub, err := svc.Submit(context.Background(), "u1", d)
	require.NoError(t, err)
	assert.Equal(t, 5, sub.TokensAwarded)
}

func TestSubmit_RollsBackPropertyWhenSubmissionFails(t *testing.T) {
	store := database.NewMemoryDB()
	svc := NewService(failingSubmissionStore{store}, tokens.DefaultRewardPolicy(), nil, nil)
	ctx := context.Background()

	sub, err := svc.Submit(ctx, "u1", validDraft())
	assert.Error(t, err)
	assert.Nil(t, sub)

	orphans, err := store.QueryProperties(ctx, database.PropertyFilters{IncludeUnapproved: true})
	require.NoError(t, err)
	assert.Empty(t, orphans, "no property may outlive a failed submission")
}

func TestSubmit_InvalidDraft(t *testing.T) {
	svc := NewService(database.NewMemoryDB(), tokens.DefaultRewardPolicy(), nil, nil)

	d := validDraft()
	d.Type = "castle"
	_, err := svc.Submit(context.Background(), "u1", d)
	assert.ErrorIs(t, err, ErrInvalidDraft)
}

func TestSubmit_Quota(t *testing.T) {
	quota := ratelimit.NewSubmissionQuota(1, 10, true)
	svc := NewService(database.NewMemoryDB(), tokens.DefaultRewardPolicy(), quota, nil)
	ctx := context.Background()

	_, err := svc.Submit(ctx, "u1", validDraft())
	require.NoError(t, err)

	_, err = svc.Submit(ctx, "u1", validDraft())
	assert.ErrorIs(t, err, ErrQuotaExceeded)
}

func TestSubmit_FailedInsertDoesNotUseQuota(t *testing.T) {
	store := database.NewMemoryDB()
	quota := ratelimit.NewSubmissionQuota(1, 10, true)
	ctx := context.Background()

	failing := NewService(failingSubmissionStore{store}, tokens.DefaultRewardPolicy(), quota, nil)
	for i := 0; i < 3; i++ {
		_, err := failing.Submit(ctx, "u1", validDraft())
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrQuotaExceeded)
	}
	assert.Equal(t, 1, quota.Stats("u1").RemainingThisHour)

	svc := NewService(store, tokens.DefaultRewardPolicy(), quota, nil)
	_, err := svc.Submit(ctx, "u1", validDraft())
	require.NoError(t, err)

	_, err = svc.Submit(ctx, "u1", validDraft())
	assert.ErrorIs(t, err, ErrQuotaExceeded)
}

func TestUpdate_OwnerEditRecordsHistory(t *testing.T) {
	store := database.NewMemoryDB()
	indexer := &recordingIndexer{}
	svc := NewService(store, tokens.DefaultRewardPolicy(), nil, indexer)
	ctx := context.Background()

	sub, err := svc.Submit(ctx, "u1", validDraft())
	require.NoError(t, err)
	require.NoError(t, store.SetPropertyApproved(ctx, sub.PropertyID, true))

	edit := validDraft()
	edit.Price = 240000
	updated, changes, err := svc.Update(ctx, "u1", sub.PropertyID, edit)
	require.NoError(t, err)

	assert.True(t, updated.IsApproved, "edits keep the approval state")
	require.Len(t, changes, 1)
	assert.Equal(t, models.ChangeTypePrice, changes[0].ChangeType)
	assert.Equal(t, []string{sub.PropertyID}, indexer.synced)

	history, err := svc.History(ctx, sub.PropertyID, 10)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestUpdate_RejectsNonOwner(t *testing.T) {
	store := database.NewMemoryDB()
	svc := NewService(store, tokens.DefaultRewardPolicy(), nil, nil)
	ctx := context.Background()

	sub, err := svc.Submit(ctx, "u1", validDraft())
	require.NoError(t, err)

	_, _, err = svc.Update(ctx, "intruder", sub.PropertyID, validDraft())
	assert.ErrorIs(t, err, ErrForbidden)

	_, _, err = svc.Update(ctx, "u1", "missing", validDraft())
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestListByUserAndOwned(t *testing.T) {
	svc := NewService(database.NewMemoryDB(), tokens.DefaultRewardPolicy(), nil, nil)
	ctx := context.Background()

	_, err := svc.Submit(ctx, "u1", validDraft())
	require.NoError(t, err)
	_, err = svc.Submit(ctx, "u2", validDraft())
	require.NoError(t, err)

	subs, err := svc.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, subs, 1)

	owned, err := svc.ListOwned(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.False(t, owned[0].IsApproved)

	none, err := svc.ListByUser(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, none)
}
