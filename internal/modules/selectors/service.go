package selectors

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Service owns selector creation and listing.
type Service struct {
	repo *Repository
	log  zerolog.Logger
}

// NewService creates a new selector service
func NewService(repo *Repository, log zerolog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With().Str("service", "selectors").Logger(),
	}
}

// Create validates and persists a new selector for the account.
func (s *Service) Create(userID uuid.UUID, name, value string, visibility Visibility) (*Selector, error) {
	sel := &Selector{
		ID:         uuid.New(),
		UserID:     userID,
		Name:       name,
		Value:      value,
		Visibility: visibility,
		CreatedAt:  time.Now(),
	}

	if err := sel.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Create(sel); err != nil {
		return nil, err
	}

	return sel, nil
}

// Get retrieves a selector visible to the account.
func (s *Service) Get(id, userID uuid.UUID) (*Selector, error) {
	return s.repo.GetVisible(id, userID)
}

// List returns selectors visible to the account in creation order.
func (s *Service) List(userID uuid.UUID) ([]*Selector, error) {
	return s.repo.ListVisible(userID)
}

// Delete removes an unreferenced selector owned by the account.
func (s *Service) Delete(id, userID uuid.UUID) error {
	return s.repo.Delete(id, userID)
}
