package directory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"property-marketplace/internal/database"
	"property-marketplace/internal/models"
)

func strPtr(s string) *string { return &s }

func seedUsers(t *testing.T) (*Service, *database.MemoryDB) {
	t.Helper()
	store := database.NewMemoryDB()
	ctx := context.Background()
	users := []*models.User{
		{Name: "A1", Email: "a1@example.com", Type: models.UserTypeAgent, Company: strPtr("Acme Realty")},
		{Name: "A2", Email: "a2@example.com", Type: models.UserTypeAgent, Company: strPtr("acme realty")},
		{Name: "A3", Email: "a3@example.com", Type: models.UserTypeAgent, Company: strPtr("  ")},
		{Name: "A4", Email: "a4@example.com", Type: models.UserTypeAgent, Company: strPtr("Bay Homes")},
		{Name: "B1", Email: "b1@example.com", Type: models.UserTypeBuyer},
		{Name: "S1", Email: "s1@example.com", Type: models.UserTypeSeller},
	}
	for _, u := range users {
		require.NoError(t, store.CreateUser(ctx, u))
	}
	return NewService(store), store
}

func TestDirectoryListings(t *testing.T) {
	svc, _ := seedUsers(t)
	ctx := context.Background()

	agents, err := svc.Agents(ctx)
	require.NoError(t, err)
	assert.Len(t, agents, 4)

	people, err := svc.BuyersSellers(ctx)
	require.NoError(t, err)
	require.Len(t, people, 2)
	assert.Equal(t, models.UserTypeBuyer, people[0].Type)
	assert.Equal(t, models.UserTypeSeller, people[1].Type)

	companies, err := svc.Companies(ctx)
	require.NoError(t, err)
	require.Len(t, companies, 2)
	assert.Equal(t, "Acme Realty", companies[0].Name)
	assert.Equal(t, 2, companies[0].AgentCount)
	assert.Equal(t, "Bay Homes", companies[1].Name)
}

func TestUpdateProfile(t *testing.T) {
	svc, store := seedUsers(t)
	ctx := context.Background()

	u, err := store.GetUserByEmail(ctx, "b1@example.com")
	require.NoError(t, err)

	updated, err := svc.UpdateProfile(ctx, u.ID, ProfileUpdate{
		Name:     " Bisi ",
		Phone:    "+234 800 000 0000",
		Location: "Abuja",
		Type:     models.UserTypeSeller,
		Company:  strPtr(""),
	})
	require.NoError(t, err)
	assert.Equal(t, "Bisi", updated.Name)
	assert.Equal(t, models.UserTypeSeller, updated.Type)
	assert.Nil(t, updated.Company)
	assert.Equal(t, u.Tokens, updated.Tokens)

	_, err = svc.UpdateProfile(ctx, "ghost", ProfileUpdate{Name: "x", Type: models.UserTypeBuyer})
	assert.ErrorIs(t, err, database.ErrNotFound)
}
