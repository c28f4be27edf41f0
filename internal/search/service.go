package search

import (
	"context"

	log "github.com/sirupsen/logrus"

	"property-marketplace/internal/database"
	"property-marketplace/internal/models"
)

// Service is the read side of the marketplace. Structured queries go to the
// store; full-text queries go to Meilisearch when it is configured.
type Service struct {
	store  database.Store
	client *SearchClient
}

// NewService creates a search service. client may be nil when Meilisearch is disabled.
func NewService(store database.Store, client *SearchClient) *Service {
	return &Service{store: store, client: client}
}

// Enabled reports whether a full-text index is attached
func (s *Service) Enabled() bool {
	return s.client != nil
}

// Properties runs a structured query. Failures are logged and yield an empty list.
func (s *Service) Properties(ctx context.Context, filters database.PropertyFilters) []models.Property {
	properties, err := s.store.QueryProperties(ctx, filters)
	if err != nil {
		log.WithFields(log.Fields{"query": filters.Query, "type": filters.Type}).
			Printf("[Search] Property query failed: %v", err)
		return []models.Property{}
	}
	if properties == nil {
		return []models.Property{}
	}
	return properties
}

// FullText searches the index, falling back to the structured query when the
// index is disabled or unreachable.
func (s *Service) FullText(ctx context.Context, params FilterParams) *SearchResult {
	if s.client != nil {
		result, err := s.client.FilterSearch(params)
		if err == nil {
			return result
		}
		log.Printf("[Search] Meilisearch query failed, falling back to database: %v", err)
	}

	hits := s.Properties(ctx, toPropertyFilters(params))
	return &SearchResult{Hits: hits, TotalHits: int64(len(hits))}
}

// Facets returns facet counts, or an empty map when the index is unavailable
func (s *Service) Facets() map[string]interface{} {
	if s.client == nil {
		return map[string]interface{}{}
	}
	facets, err := s.client.GetFacets(FacetAttributes)
	if err != nil {
		log.Printf("[Search] Facet query failed: %v", err)
		return map[string]interface{}{}
	}
	return facets
}

// SyncProperty indexes an approved property or drops an unapproved one. Best effort.
func (s *Service) SyncProperty(p *models.Property) {
	if s.client == nil || p == nil {
		return
	}
	var err error
	if p.IsApproved {
		err = s.client.IndexProperty(p)
	} else {
		err = s.client.DeleteProperty(p.ID)
	}
	if err != nil {
		log.Printf("[Search] Failed to sync property %s: %v", p.ID, err)
	}
}

// RemoveProperty drops a property from the index. Best effort.
func (s *Service) RemoveProperty(id string) {
	if s.client == nil {
		return
	}
	if err := s.client.DeleteProperty(id); err != nil {
		log.Printf("[Search] Failed to remove property %s: %v", id, err)
	}
}

// Reindex rebuilds the index from every approved property and returns the count indexed
func (s *Service) Reindex(ctx context.Context) (int, error) {
	if s.client == nil {
		return 0, nil
	}
	if err := s.client.DeleteAll(); err != nil {
		return 0, err
	}

	total := 0
	offset := 0
	for {
		page, err := s.store.QueryProperties(ctx, database.PropertyFilters{
			SortBy: database.SortOldest,
			Limit:  database.MaxQueryLimit,
			Offset: offset,
		})
		if err != nil {
			return total, err
		}
		if err := s.client.IndexProperties(page); err != nil {
			return total, err
		}
		total += len(page)
		if len(page) < database.MaxQueryLimit {
			break
		}
		offset += len(page)
	}

	log.Printf("[Search] Reindexed %d approved properties", total)
	return total, nil
}
