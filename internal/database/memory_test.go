package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"property-marketplace/internal/models"
)

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func seedProperty(t *testing.T, db *MemoryDB, p models.Property) models.Property {
	t.Helper()
	require.NoError(t, db.CreateProperty(context.Background(), &p))
	return p
}

func TestMemoryDB_QueryProperties_ApprovedOnlyByDefault(t *testing.T) {
	db := NewMemoryDB()
	ctx := context.Background()

	seedProperty(t, db, models.Property{Title: "Visible", Location: "Lagos", Price: 100, IsApproved: true})
	seedProperty(t, db, models.Property{Title: "Hidden", Location: "Lagos", Price: 100})

	got, err := db.QueryProperties(ctx, PropertyFilters{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Visible", got[0].Title)

	all, err := db.QueryProperties(ctx, PropertyFilters{IncludeUnapproved: true})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestMemoryDB_QueryProperties_CaseInsensitiveSubstring(t *testing.T) {
	db := NewMemoryDB()
	ctx := context.Background()

	seedProperty(t, db, models.Property{Title: "Flat", Location: "Lekki, LAGOS", IsApproved: true})
	seedProperty(t, db, models.Property{Title: "Villa", Location: "Abuja", Description: "near lagos road", IsApproved: true})
	seedProperty(t, db, models.Property{Title: "Office", Location: "Kano", IsApproved: true})

	got, err := db.QueryProperties(ctx, PropertyFilters{Query: "  Lagos "})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestMemoryDB_QueryProperties_FiltersAndSort(t *testing.T) {
	db := NewMemoryDB()
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	seedProperty(t, db, models.Property{Title: "A", Price: 300, Type: models.PropertyTypeHouse, Status: models.ListingStatusSale,
		Bedrooms: intPtr(3), IsApproved: true, CreatedAt: base})
	seedProperty(t, db, models.Property{Title: "B", Price: 100, Type: models.PropertyTypeHouse, Status: models.ListingStatusSale,
		Bedrooms: intPtr(4), IsApproved: true, CreatedAt: base.Add(time.Minute)})
	seedProperty(t, db, models.Property{Title: "C", Price: 200, Type: models.PropertyTypeApartment, Status: models.ListingStatusRent,
		Bedrooms: intPtr(1), IsApproved: true, CreatedAt: base.Add(2 * time.Minute)})
	seedProperty(t, db, models.Property{Title: "D", Price: 250, Type: models.PropertyTypeHouse, Status: models.ListingStatusSale,
		IsApproved: true, CreatedAt: base.Add(3 * time.Minute)})

	t.Run("newest first by default", func(t *testing.T) {
		got, err := db.QueryProperties(ctx, PropertyFilters{})
		require.NoError(t, err)
		require.Len(t, got, 4)
		assert.Equal(t, "D", got[0].Title)
		assert.Equal(t, "A", got[3].Title)
	})

	t.Run("price ascending", func(t *testing.T) {
		got, err := db.QueryProperties(ctx, PropertyFilters{SortBy: SortPriceAsc})
		require.NoError(t, err)
		assert.Equal(t, []string{"B", "C", "D", "A"}, titles(got))
	})

	t.Run("type and price range", func(t *testing.T) {
		got, err := db.QueryProperties(ctx, PropertyFilters{
			Type:     models.PropertyTypeHouse,
			MinPrice: floatPtr(150),
			MaxPrice: floatPtr(300),
			SortBy:   SortPriceDesc,
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"A", "D"}, titles(got))
	})

	t.Run("min bedrooms excludes unknown", func(t *testing.T) {
		got, err := db.QueryProperties(ctx, PropertyFilters{MinBedrooms: intPtr(3), SortBy: SortOldest})
		require.NoError(t, err)
		assert.Equal(t, []string{"A", "B"}, titles(got))
	})

	t.Run("paging", func(t *testing.T) {
		got, err := db.QueryProperties(ctx, PropertyFilters{Limit: 2, Offset: 3})
		require.NoError(t, err)
		assert.Equal(t, []string{"A"}, titles(got))
	})
}

func titles(props []models.Property) []string {
	out := make([]string, 0, len(props))
	for _, p := range props {
		out = append(out, p.Title)
	}
	return out
}

func TestMemoryDB_WithinTx_RollsBackOnError(t *testing.T) {
	db := NewMemoryDB()
	ctx := context.Background()
	boom := errors.New("boom")

	err := db.WithinTx(ctx, func(tx Store) error {
		p := &models.Property{Title: "Doomed"}
		if err := tx.CreateProperty(ctx, p); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	all, err := db.QueryProperties(ctx, PropertyFilters{IncludeUnapproved: true})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestMemoryDB_SubmissionUniquePerProperty(t *testing.T) {
	db := NewMemoryDB()
	ctx := context.Background()

	require.NoError(t, db.CreateSubmission(ctx, &models.PropertySubmission{PropertyID: "p1", UserID: "u1", Status: models.SubmissionStatusPending}))
	err := db.CreateSubmission(ctx, &models.PropertySubmission{PropertyID: "p1", UserID: "u2", Status: models.SubmissionStatusPending})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestMemoryDB_IncrementUserTokens(t *testing.T) {
	db := NewMemoryDB()
	ctx := context.Background()

	u := &models.User{Name: "Ada", Email: "ada@example.com", Type: models.UserTypeSeller, Tokens: 10}
	require.NoError(t, db.CreateUser(ctx, u))

	balance, err := db.IncrementUserTokens(ctx, u.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 15, balance)

	_, err = db.IncrementUserTokens(ctx, "missing", 5)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryDB_OrphansAndDivergence(t *testing.T) {
	db := NewMemoryDB()
	ctx := context.Background()
	old := time.Now().Add(-48 * time.Hour)

	orphan := seedProperty(t, db, models.Property{Title: "Orphan", CreatedAt: old})
	seedProperty(t, db, models.Property{Title: "Fresh"})
	tracked := seedProperty(t, db, models.Property{Title: "Tracked", CreatedAt: old})
	require.NoError(t, db.CreateSubmission(ctx, &models.PropertySubmission{PropertyID: tracked.ID, UserID: "u1", Status: models.SubmissionStatusPending}))

	orphans, err := db.ListOrphanProperties(ctx, time.Now().Add(-24*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	assert.Equal(t, orphan.ID, orphans[0].ID)

	require.NoError(t, db.SetPropertyApproved(ctx, tracked.ID, true))
	stale, err := db.ListStalePendingSubmissions(ctx)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, tracked.ID, stale[0].PropertyID)
}

func TestMemoryDB_Stats(t *testing.T) {
	db := NewMemoryDB()
	ctx := context.Background()

	seedProperty(t, db, models.Property{Title: "A", IsApproved: true})
	p := seedProperty(t, db, models.Property{Title: "B"})
	require.NoError(t, db.CreateSubmission(ctx, &models.PropertySubmission{PropertyID: p.ID, UserID: "u1", Status: models.SubmissionStatusPending}))
	require.NoError(t, db.CreateUser(ctx, &models.User{Email: "a@example.com", Tokens: 7}))

	s, err := db.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), s.ApprovedProperties)
	assert.Equal(t, int64(1), s.PendingProperties)
	assert.Equal(t, int64(1), s.PendingSubmissions)
	assert.Equal(t, int64(7), s.TokensIssued)
}

func TestPropertyFilters_Normalize(t *testing.T) {
	f := PropertyFilters{Limit: 1000, Offset: -4, SortBy: "bogus"}.Normalize()
	assert.Equal(t, MaxQueryLimit, f.Limit)
	assert.Equal(t, 0, f.Offset)
	assert.Equal(t, SortNewest, f.SortBy)

	f = PropertyFilters{}.Normalize()
	assert.Equal(t, DefaultQueryLimit, f.Limit)
}

func TestLikePattern_EscapesWildcards(t *testing.T) {
	assert.Equal(t, `%100\% lagos\_x%`, likePattern("100% Lagos_x"))
}

func TestMemoryDB_RollbackKeepsWritesMadeOutsideTx(t *testing.T) {
	db := NewMemoryDB()
	ctx := context.Background()

	u := &models.User{Name: "Ada", Email: "ada@example.com", Type: models.UserTypeSeller, Tokens: 5}
	require.NoError(t, db.CreateUser(ctx, u))

	started := make(chan struct{})
	release := make(chan struct{})
	txDone := make(chan error, 1)
	go func() {
		txDone <- db.WithinTx(ctx, func(tx Store) error {
			close(started)
			<-release
			return ErrNotFound
		})
	}()
	<-started

	incDone := make(chan error, 1)
	go func() {
		_, err := db.IncrementUserTokens(ctx, u.ID, 10)
		incDone <- err
	}()

	close(release)
	assert.ErrorIs(t, <-txDone, ErrNotFound)
	require.NoError(t, <-incDone)

	got, err := db.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 15, got.Tokens)
}

func TestMemoryDB_NestedTxJoinsOuter(t *testing.T) {
	db := NewMemoryDB()
	ctx := context.Background()

	err := db.WithinTx(ctx, func(tx Store) error {
		return tx.WithinTx(ctx, func(inner Store) error {
			return inner.CreateProperty(ctx, &models.Property{Title: "Joined"})
		})
	})
	require.NoError(t, err)

	all, err := db.QueryProperties(ctx, PropertyFilters{IncludeUnapproved: true})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
