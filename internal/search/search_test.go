package search

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"property-marketplace/internal/database"
	"property-marketplace/internal/models"
)

type failingStore struct {
	database.Store
}

func (failingStore) QueryProperties(ctx context.Context, filters database.PropertyFilters) ([]models.Property, error) {
	return nil, errors.New("connection refused")
}

func floatPtr(v float64) *float64 { return &v }

func intPtr(v int) *int { return &v }

func TestService_Properties_EmptyListOnFailure(t *testing.T) {
	svc := NewService(failingStore{}, nil)

	got := svc.Properties(context.Background(), database.PropertyFilters{Query: "Lagos"})
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestService_Properties_LagosApprovedOnly(t *testing.T) {
	store := database.NewMemoryDB()
	ctx := context.Background()
	for _, p := range []models.Property{
		{Title: "Lekki flat", Location: "Lagos", IsApproved: true},
		{Title: "Ikoyi duplex", Location: "LAGOS island", IsApproved: true},
		{Title: "Pending", Location: "Lagos", IsApproved: false},
		{Title: "Abuja home", Location: "Abuja", IsApproved: true},
	} {
		p := p
		require.NoError(t, store.CreateProperty(ctx, &p))
	}

	svc := NewService(store, nil)
	got := svc.Properties(ctx, database.PropertyFilters{Query: "Lagos"})

	require.Len(t, got, 2)
	for _, p := range got {
		assert.True(t, p.IsApproved)
		assert.Contains(t, []string{"Lekki flat", "Ikoyi duplex"}, p.Title)
	}
}

func TestService_FullText_FallsBackToDatabase(t *testing.T) {
	store := database.NewMemoryDB()
	ctx := context.Background()
	p := &models.Property{Title: "Garden house", Location: "Enugu", Price: 500, IsApproved: true}
	require.NoError(t, store.CreateProperty(ctx, p))

	svc := NewService(store, nil)
	result := svc.FullText(ctx, FilterParams{Query: "garden", MinPrice: floatPtr(100)})

	require.Len(t, result.Hits, 1)
	assert.Equal(t, int64(1), result.TotalHits)
	assert.Empty(t, svc.Facets())
}

func TestBuildFilters(t *testing.T) {
	filters := buildFilters(FilterParams{
		Type:        models.PropertyTypeApartment,
		Status:      models.ListingStatusRent,
		MinPrice:    floatPtr(1000.5),
		MaxPrice:    floatPtr(5000),
		MinBedrooms: intPtr(2),
	})

	assert.Equal(t, []string{
		`type = "apartment"`,
		`status = "rent"`,
		"price >= 1000.5",
		"price <= 5000",
		"bedrooms >= 2",
	}, filters)
}

func TestBuildSort(t *testing.T) {
	assert.Equal(t, []string{"price:asc"}, buildSort(database.SortPriceAsc))
	assert.Equal(t, []string{"createdAtUnix:desc"}, buildSort(database.SortNewest))
	assert.Nil(t, buildSort(""))
}

func TestQuote_EscapesQuotes(t *testing.T) {
	assert.Equal(t, `"say \"hi\""`, quote(`say "hi"`))
}

func TestSearchClient_FilterSearch(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"hits": [{"id": "p1", "title": "Flat", "price": 100, "location": "Lagos", "isApproved": true, "createdAtUnix": 1700000000}],
			"estimatedTotalHits": 1,
			"processingTimeMs": 2,
			"query": "flat"
		}`))
	}))
	defer server.Close()

	client := NewSearchClient(server.URL, "", "")
	result, err := client.FilterSearch(FilterParams{Query: "flat"})
	require.NoError(t, err)

	assert.Equal(t, "/indexes/properties/search", gotPath)
	require.Len(t, result.Hits, 1)
	assert.Equal(t, "p1", result.Hits[0].ID)
	assert.Equal(t, 100.0, result.Hits[0].Price)
	assert.Equal(t, int64(1), result.TotalHits)
}
