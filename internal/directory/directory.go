package directory

import (
	"context"
	"sort"
	"strings"

	"property-marketplace/internal/database"
	"property-marketplace/internal/models"
)

// Company is a company name with the agents working for it
type Company struct {
	Name       string `json:"name"`
	AgentCount int    `json:"agentCount"`
}

// ProfileUpdate holds the editable profile fields
type ProfileUpdate struct {
	Name     string          `json:"name" binding:"required,max=255"`
	Phone    string          `json:"phone" binding:"max=50"`
	Location string          `json:"location" binding:"max=255"`
	Type     models.UserType `json:"type" binding:"required,oneof=agent buyer seller"`
	Company  *string         `json:"company" binding:"omitempty,max=255"`
}

// Service serves the public directory and the signed-in user's profile
type Service struct {
	store database.Store
}

func NewService(store database.Store) *Service {
	return &Service{store: store}
}

// Agents lists users of type agent
func (s *Service) Agents(ctx context.Context) ([]models.User, error) {
	return s.list(ctx, models.UserTypeAgent)
}

// BuyersSellers lists buyers followed by sellers
func (s *Service) BuyersSellers(ctx context.Context) ([]models.User, error) {
	buyers, err := s.list(ctx, models.UserTypeBuyer)
	if err != nil {
		return nil, err
	}
	sellers, err := s.list(ctx, models.UserTypeSeller)
	if err != nil {
		return nil, err
	}
	return append(buyers, sellers...), nil
}

// Companies lists distinct non-empty company names of agents
func (s *Service) Companies(ctx context.Context) ([]Company, error) {
	agents, err := s.Agents(ctx)
	if err != nil {
		return nil, err
	}

	counts := map[string]int{}
	names := map[string]string{}
	for _, a := range agents {
		if a.Company == nil {
			continue
		}
		name := strings.TrimSpace(*a.Company)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if _, ok := names[key]; !ok {
			names[key] = name
		}
		counts[key]++
	}

	companies := make([]Company, 0, len(counts))
	for key, n := range counts {
		companies = append(companies, Company{Name: names[key], AgentCount: n})
	}
	sort.Slice(companies, func(i, j int) bool {
		return strings.ToLower(companies[i].Name) < strings.ToLower(companies[j].Name)
	})
	return companies, nil
}

func (s *Service) list(ctx context.Context, t models.UserType) ([]models.User, error) {
	users, err := s.store.ListUsers(ctx, t)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []models.User{}
	}
	return users, nil
}

// Profile returns the user
func (s *Service) Profile(ctx context.Context, userID string) (*models.User, error) {
	return s.store.GetUser(ctx, userID)
}

// UpdateProfile saves the editable fields and returns the refreshed user
func (s *Service) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (*models.User, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.Name = strings.TrimSpace(update.Name)
	user.Phone = strings.TrimSpace(update.Phone)
	user.Location = strings.TrimSpace(update.Location)
	user.Type = update.Type
	user.Company = update.Company
	if user.Company != nil && strings.TrimSpace(*user.Company) == "" {
		user.Company = nil
	}

	if err := s.store.UpdateUserProfile(ctx, user); err != nil {
		return nil, err
	}
	return s.store.GetUser(ctx, userID)
}
