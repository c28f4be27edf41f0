package search

import (
	"fmt"
	"strconv"
	"strings"

	"property-marketplace/internal/database"
	"property-marketplace/internal/models"
)

type FilterParams struct {
	Query        string
	Type         models.PropertyType
	Status       models.ListingStatus
	MinPrice     *float64
	MaxPrice     *float64
	MinBedrooms  *int
	MinBathrooms *int
	SortBy       string
	Facets       bool
	Limit        int64
	Offset       int64
}

// buildFilters converts params into Meilisearch filter expressions
func buildFilters(params FilterParams) []string {
	var filters []string

	if params.Type != "" {
		filters = append(filters, fmt.Sprintf("type = %s", quote(string(params.Type))))
	}
	if params.Status != "" {
		filters = append(filters, fmt.Sprintf("status = %s", quote(string(params.Status))))
	}

	// Price range filter
	if params.MinPrice != nil {
		filters = append(filters, "price >= "+strconv.FormatFloat(*params.MinPrice, 'f', -1, 64))
	}
	if params.MaxPrice != nil {
		filters = append(filters, "price <= "+strconv.FormatFloat(*params.MaxPrice, 'f', -1, 64))
	}

	if params.MinBedrooms != nil {
		filters = append(filters, fmt.Sprintf("bedrooms >= %d", *params.MinBedrooms))
	}
	if params.MinBathrooms != nil {
		filters = append(filters, fmt.Sprintf("bathrooms >= %d", *params.MinBathrooms))
	}

	return filters
}

// buildSort maps the shared sort keys onto sortable index attributes
func buildSort(sortBy string) []string {
	switch sortBy {
	case database.SortPriceAsc:
		return []string{"price:asc"}
	case database.SortPriceDesc:
		return []string{"price:desc"}
	case database.SortOldest:
		return []string{"createdAtUnix:asc"}
	case database.SortNewest:
		return []string{"createdAtUnix:desc"}
	}
	// Relevance ranking when a query is given without an explicit sort
	return nil
}

// quote renders a string literal for a filter expression
func quote(v string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(v) + `"`
}

// FilterSearch performs a full-text search with structured filters
func (s *SearchClient) FilterSearch(params FilterParams) (*SearchResult, error) {
	req := SearchRequest{
		Query:  params.Query,
		Limit:  params.Limit,
		Offset: params.Offset,
		Filter: buildFilters(params),
		Sort:   buildSort(params.SortBy),
	}
	if params.Facets {
		req.FacetsFilter = FacetAttributes
	}
	return s.AdvancedSearch(req)
}

// toPropertyFilters maps full-text params onto a database query, used when the index is unavailable
func toPropertyFilters(params FilterParams) database.PropertyFilters {
	return database.PropertyFilters{
		Query:        params.Query,
		Type:         params.Type,
		Status:       params.Status,
		MinPrice:     params.MinPrice,
		MaxPrice:     params.MaxPrice,
		MinBedrooms:  params.MinBedrooms,
		MinBathrooms: params.MinBathrooms,
		SortBy:       params.SortBy,
		Limit:        int(params.Limit),
		Offset:       int(params.Offset),
	}
}
