package filters

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/corvidlabs/magpie/internal/domain"
	"github.com/corvidlabs/magpie/internal/modules/fields"
)

// Service owns filter creation and listing.
type Service struct {
	repo   *Repository
	fields *fields.Service
	log    zerolog.Logger
}

// NewService creates a new filter service
func NewService(repo *Repository, fieldService *fields.Service, log zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		fields: fieldService,
		log:    log.With().Str("service", "filters").Logger(),
	}
}

// Create validates and persists a new filter for the account. The referenced
// field must exist and belong to the account at creation time.
func (s *Service) Create(userID, fieldID uuid.UUID, name string, filterType Type, value string) (*Filter, error) {
	f := &Filter{
		ID:        uuid.New(),
		UserID:    userID,
		FieldID:   fieldID,
		Name:      name,
		Type:      filterType,
		Value:     value,
		CreatedAt: time.Now(),
	}

	if err := f.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.fields.Get(fieldID, userID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("field %s does not exist: %w", fieldID, domain.ErrDanglingReference)
		}
		return nil, err
	}

	if err := s.repo.Create(f); err != nil {
		return nil, err
	}

	return f, nil
}

// Get retrieves a filter owned by the account.
func (s *Service) Get(id, userID uuid.UUID) (*Filter, error) {
	return s.repo.Get(id, userID)
}

// List returns the account's filters in creation order.
func (s *Service) List(userID uuid.UUID) ([]*Filter, error) {
	return s.repo.List(userID)
}

// Delete removes an unattached filter owned by the account.
func (s *Service) Delete(id, userID uuid.UUID) error {
	return s.repo.Delete(id, userID)
}
