package tokens

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"property-marketplace/internal/config"
	"property-marketplace/internal/database"
	"property-marketplace/internal/models"
)

func TestRewardPolicy_Compute(t *testing.T) {
	policy := DefaultRewardPolicy()
	long := strings.Repeat("a", 51)

	tests := []struct {
		name        string
		description string
		images      int
		want        int
	}{
		{"base only", "short", 0, 5},
		{"exactly fifty chars earns no bonus", strings.Repeat("a", 50), 0, 5},
		{"long description", long, 0, 7},
		{"image only", "", 1, 8},
		{"long description and images", long, 3, 10},
		{"multibyte characters counted once", strings.Repeat("é", 51), 0, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, policy.Compute(tt.description, tt.images))
		})
	}
	assert.Equal(t, 10, policy.Max())
}

func TestNewRewardPolicy_FromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	assert.Equal(t, DefaultRewardPolicy(), NewRewardPolicy(cfg.Tokens))
}

func newUser(t *testing.T, store database.Store, tokens int) *models.User {
	t.Helper()
	u := &models.User{Name: "Bola", Email: "bola@example.com", Type: models.UserTypeSeller, Tokens: tokens}
	require.NoError(t, store.CreateUser(context.Background(), u))
	return u
}

func TestLedger_Credit(t *testing.T) {
	store := database.NewMemoryDB()
	ledger := NewLedger(store)
	ctx := context.Background()
	u := newUser(t, store, 5)

	balance, err := ledger.Credit(ctx, u.ID, 10, SourceApproval)
	require.NoError(t, err)
	assert.Equal(t, 15, balance)

	got, err := ledger.Balance(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 15, got)
}

func TestLedger_Credit_RejectsNonPositive(t *testing.T) {
	store := database.NewMemoryDB()
	ledger := NewLedger(store)
	u := newUser(t, store, 5)

	for _, amount := range []int{0, -3} {
		_, err := ledger.Credit(context.Background(), u.ID, amount, SourceAdminGrant)
		assert.ErrorIs(t, err, ErrInvalidAmount)
	}

	got, err := ledger.Balance(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got)
}

func TestLedger_Credit_UnknownUser(t *testing.T) {
	ledger := NewLedger(database.NewMemoryDB())

	_, err := ledger.Credit(context.Background(), "ghost", 5, SourceApproval)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestLedger_ConcurrentCreditsDoNotLoseUpdates(t *testing.T) {
	store := database.NewMemoryDB()
	ledger := NewLedger(store)
	u := newUser(t, store, 0)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.Credit(context.Background(), u.ID, 2, SourceApproval)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := ledger.Balance(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, got)
}
