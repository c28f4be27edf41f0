package search

import (
	"encoding/json"
	"strings"

	"github.com/meilisearch/meilisearch-go"

	"property-marketplace/internal/models"
)

type SearchClient struct {
	client *meilisearch.Client
	index  string
}

func NewSearchClient(host, apiKey, index string) *SearchClient {
	client := meilisearch.NewClient(meilisearch.ClientConfig{
		Host:   host,
		APIKey: apiKey,
	})

	if index == "" {
		index = "properties"
	}

	return &SearchClient{
		client: client,
		index:  index,
	}
}

// PropertyDocument is the indexed form of a property. createdAtUnix gives
// Meilisearch a numeric sort key.
type PropertyDocument struct {
	models.Property
	CreatedAtUnix int64 `json:"createdAtUnix"`
}

func newPropertyDocument(p *models.Property) PropertyDocument {
	return PropertyDocument{Property: *p, CreatedAtUnix: p.CreatedAt.Unix()}
}

// FacetAttributes are the attributes exposed as facet counts
var FacetAttributes = []string{"type", "status", "bedrooms", "bathrooms"}

// InitIndex initializes the Meilisearch index
func (s *SearchClient) InitIndex() error {
	// Create index if it doesn't exist
	_, err := s.client.CreateIndex(&meilisearch.IndexConfig{
		Uid:        s.index,
		PrimaryKey: "id",
	})
	if err != nil && !strings.Contains(err.Error(), "index_already_exists") {
		return err
	}

	// Configure searchable attributes
	_, err = s.client.Index(s.index).UpdateSearchableAttributes(&[]string{
		"title",
		"location",
		"description",
	})
	if err != nil {
		return err
	}

	// Configure filterable attributes
	_, err = s.client.Index(s.index).UpdateFilterableAttributes(&[]string{
		"id",
		"type",
		"status",
		"price",
		"bedrooms",
		"bathrooms",
		"ownerId",
	})
	if err != nil {
		return err
	}

	// Configure sortable attributes
	_, err = s.client.Index(s.index).UpdateSortableAttributes(&[]string{
		"price",
		"createdAtUnix",
	})
	if err != nil {
		return err
	}

	return nil
}

// Healthy reports whether the Meilisearch server answers
func (s *SearchClient) Healthy() bool {
	return s.client.IsHealthy()
}

// IndexProperty indexes a single property
func (s *SearchClient) IndexProperty(property *models.Property) error {
	_, err := s.client.Index(s.index).AddDocuments([]PropertyDocument{newPropertyDocument(property)})
	return err
}

// IndexProperties indexes multiple properties
func (s *SearchClient) IndexProperties(properties []models.Property) error {
	if len(properties) == 0 {
		return nil
	}
	docs := make([]PropertyDocument, 0, len(properties))
	for i := range properties {
		docs = append(docs, newPropertyDocument(&properties[i]))
	}
	_, err := s.client.Index(s.index).AddDocuments(docs)
	return err
}

// DeleteProperty removes a property from the index
func (s *SearchClient) DeleteProperty(id string) error {
	_, err := s.client.Index(s.index).DeleteDocument(id)
	return err
}

// DeleteAll empties the index ahead of a full rebuild
func (s *SearchClient) DeleteAll() error {
	_, err := s.client.Index(s.index).DeleteAllDocuments()
	return err
}

// SearchRequest represents advanced search parameters
type SearchRequest struct {
	Query        string
	Limit        int64
	Offset       int64
	Filter       []string
	Sort         []string
	FacetsFilter []string
}

// SearchResult represents search results with facets
type SearchResult struct {
	Hits           []models.Property      `json:"hits"`
	TotalHits      int64                  `json:"totalHits"`
	Facets         map[string]interface{} `json:"facets,omitempty"`
	ProcessingTime int64                  `json:"processingTimeMs"`
}

// AdvancedSearch performs advanced search with facets and filters
func (s *SearchClient) AdvancedSearch(req SearchRequest) (*SearchResult, error) {
	if req.Limit == 0 {
		req.Limit = 20
	}

	searchReq := &meilisearch.SearchRequest{
		Limit:  req.Limit,
		Offset: req.Offset,
	}

	// Add filters
	if len(req.Filter) > 0 {
		searchReq.Filter = strings.Join(req.Filter, " AND ")
	}

	// Add sorting
	if len(req.Sort) > 0 {
		searchReq.Sort = req.Sort
	}

	// Add facets
	if len(req.FacetsFilter) > 0 {
		searchReq.Facets = req.FacetsFilter
	}

	searchRes, err := s.client.Index(s.index).Search(req.Query, searchReq)
	if err != nil {
		return nil, err
	}

	properties := make([]models.Property, 0, len(searchRes.Hits))
	for _, hit := range searchRes.Hits {
		property, ok := propertyFromHit(hit)
		if !ok {
			continue
		}
		properties = append(properties, property)
	}

	var facets map[string]interface{}
	if searchRes.FacetDistribution != nil {
		facets, _ = searchRes.FacetDistribution.(map[string]interface{})
	}

	result := &SearchResult{
		Hits:           properties,
		TotalHits:      searchRes.EstimatedTotalHits,
		Facets:         facets,
		ProcessingTime: searchRes.ProcessingTimeMs,
	}

	return result, nil
}

// propertyFromHit converts a search hit to a Property through its JSON form
func propertyFromHit(hit interface{}) (models.Property, bool) {
	hitJSON, err := json.Marshal(hit)
	if err != nil {
		return models.Property{}, false
	}
	var doc PropertyDocument
	if err := json.Unmarshal(hitJSON, &doc); err != nil {
		return models.Property{}, false
	}
	return doc.Property, true
}

// GetFacets retrieves facet distribution for specified fields
func (s *SearchClient) GetFacets(facets []string) (map[string]interface{}, error) {
	searchRes, err := s.client.Index(s.index).Search("", &meilisearch.SearchRequest{
		Limit:  0,
		Facets: facets,
	})
	if err != nil {
		return nil, err
	}

	if searchRes.FacetDistribution != nil {
		if facetMap, ok := searchRes.FacetDistribution.(map[string]interface{}); ok {
			return facetMap, nil
		}
	}
	return map[string]interface{}{}, nil
}
