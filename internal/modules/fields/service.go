package fields

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/corvidlabs/magpie/internal/domain"
	"github.com/corvidlabs/magpie/internal/modules/selectors"
)

// Service owns field creation and listing. Parent selectors are resolved
// through the selector service so visibility rules stay in one place.
type Service struct {
	repo      *Repository
	selectors *selectors.Service
	log       zerolog.Logger
}

// NewService creates a new field service
func NewService(repo *Repository, selectorService *selectors.Service, log zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		selectors: selectorService,
		log:       log.With().Str("service", "fields").Logger(),
	}
}

// Create validates and persists a new field for the account. The referenced
// selector must exist and be visible to the account at creation time.
func (s *Service) Create(userID, selectorID uuid.UUID, name string, fieldType Type, visibility selectors.Visibility) (*Field, error) {
	f := &Field{
		ID:         uuid.New(),
		UserID:     userID,
		SelectorID: selectorID,
		Name:       name,
		Type:       fieldType,
		Visibility: visibility,
		CreatedAt:  time.Now(),
	}

	if err := f.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.selectors.Get(selectorID, userID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("selector %s does not exist: %w", selectorID, domain.ErrDanglingReference)
		}
		return nil, err
	}

	if err := s.repo.Create(f); err != nil {
		return nil, err
	}

	return f, nil
}

// Get retrieves a field owned by the account.
func (s *Service) Get(id, userID uuid.UUID) (*Field, error) {
	return s.repo.Get(id, userID)
}

// List returns the account's fields in creation order.
func (s *Service) List(userID uuid.UUID) ([]*Field, error) {
	return s.repo.List(userID)
}

// Delete removes an unreferenced field owned by the account.
func (s *Service) Delete(id, userID uuid.UUID) error {
	return s.repo.Delete(id, userID)
}
