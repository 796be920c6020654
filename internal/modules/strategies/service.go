package strategies

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/corvidlabs/magpie/internal/domain"
	"github.com/corvidlabs/magpie/internal/locking"
	"github.com/corvidlabs/magpie/internal/modules/fields"
	"github.com/corvidlabs/magpie/internal/modules/filters"
	"github.com/corvidlabs/magpie/internal/modules/selectors"
)

// Service owns the strategy aggregate. Membership edits are serialized
// per-strategy through the lock manager; edits on different strategies run
// concurrently.
type Service struct {
	repo      *Repository
	selectors *selectors.Service
	fields    *fields.Service
	filters   *filters.Service
	locks     *locking.Manager
	log       zerolog.Logger
}

// NewService creates a new strategy service
func NewService(repo *Repository, selectorService *selectors.Service, fieldService *fields.Service, filterService *filters.Service, locks *locking.Manager, log zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		selectors: selectorService,
		fields:    fieldService,
		filters:   filterService,
		locks:     locks,
		log:       log.With().Str("service", "strategies").Logger(),
	}
}

func lockKey(strategyID uuid.UUID) string {
	return "strategy:" + strategyID.String()
}

// Create persists a new strategy with empty membership.
func (s *Service) Create(userID uuid.UUID, name string) (*Strategy, error) {
	strategy := &Strategy{
		ID:        uuid.New(),
		UserID:    userID,
		Name:      name,
		Selectors: []*selectors.Selector{},
		Fields:    []*fields.Field{},
		Filters:   []*filters.Filter{},
		CreatedAt: time.Now(),
	}

	if err := strategy.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Create(strategy); err != nil {
		return nil, err
	}

	return strategy, nil
}

// Get retrieves a strategy owned by the account, hydrated with its member
// entities. Strategies of other accounts are indistinguishable from absent
// ones.
func (s *Service) Get(id, userID uuid.UUID) (*Strategy, error) {
	strategy, err := s.repo.Get(id, userID)
	if err != nil {
		return nil, err
	}
	if err := s.hydrate(strategy); err != nil {
		return nil, err
	}
	return strategy, nil
}

// List returns the account's strategies in creation order, hydrated.
func (s *Service) List(userID uuid.UUID) ([]*Strategy, error) {
	strategies, err := s.repo.List(userID)
	if err != nil {
		return nil, err
	}
	for _, strategy := range strategies {
		if err := s.hydrate(strategy); err != nil {
			return nil, err
		}
	}
	return strategies, nil
}

// Delete removes a strategy and detaches all members. Registry entities are
// untouched.
func (s *Service) Delete(id, userID uuid.UUID) error {
	return s.locks.WithLock(lockKey(id), func() error {
		return s.repo.Delete(id, userID)
	})
}

// AddSelector attaches a selector to the strategy. Idempotent for present
// members. Returns the updated strategy.
func (s *Service) AddSelector(strategyID, selectorID, userID uuid.UUID) (*Strategy, error) {
	return s.addMember(strategyID, userID, selectorMembers, selectorID, func() error {
		_, err := s.selectors.Get(selectorID, userID)
		return err
	})
}

// RemoveSelector detaches a selector from the strategy.
func (s *Service) RemoveSelector(strategyID, selectorID, userID uuid.UUID) error {
	return s.removeMember(strategyID, userID, selectorMembers, selectorID)
}

// AddField attaches a field to the strategy. Idempotent for present members.
func (s *Service) AddField(strategyID, fieldID, userID uuid.UUID) (*Strategy, error) {
	return s.addMember(strategyID, userID, fieldMembers, fieldID, func() error {
		_, err := s.fields.Get(fieldID, userID)
		return err
	})
}

// RemoveField detaches a field from the strategy.
func (s *Service) RemoveField(strategyID, fieldID, userID uuid.UUID) error {
	return s.removeMember(strategyID, userID, fieldMembers, fieldID)
}

// AddFilter attaches a filter to the strategy. Idempotent for present
// members.
func (s *Service) AddFilter(strategyID, filterID, userID uuid.UUID) (*Strategy, error) {
	return s.addMember(strategyID, userID, filterMembers, filterID, func() error {
		_, err := s.filters.Get(filterID, userID)
		return err
	})
}

// RemoveFilter detaches a filter from the strategy.
func (s *Service) RemoveFilter(strategyID, filterID, userID uuid.UUID) error {
	return s.removeMember(strategyID, userID, filterMembers, filterID)
}

func (s *Service) addMember(strategyID, userID uuid.UUID, mt memberTable, memberID uuid.UUID, resolve func() error) (*Strategy, error) {
	var strategy *Strategy

	err := s.locks.WithLock(lockKey(strategyID), func() error {
		var err error
		strategy, err = s.repo.Get(strategyID, userID)
		if err != nil {
			return err
		}

		if err := resolve(); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("%s %s does not exist: %w", mt.column, memberID, domain.ErrDanglingReference)
			}
			return err
		}

		return s.repo.addMember(mt, strategyID, memberID)
	})
	if err != nil {
		return nil, err
	}

	if err := s.hydrate(strategy); err != nil {
		return nil, err
	}
	return strategy, nil
}

func (s *Service) removeMember(strategyID, userID uuid.UUID, mt memberTable, memberID uuid.UUID) error {
	return s.locks.WithLock(lockKey(strategyID), func() error {
		if _, err := s.repo.Get(strategyID, userID); err != nil {
			return err
		}
		return s.repo.removeMember(mt, strategyID, memberID)
	})
}

// hydrate resolves member ids into full entities. A member whose registry
// row has vanished is skipped rather than failing the whole read; delete
// guards make that unreachable in practice.
func (s *Service) hydrate(strategy *Strategy) error {
	selectorIDs, err := s.repo.SelectorIDs(strategy.ID)
	if err != nil {
		return err
	}
	strategy.Selectors = make([]*selectors.Selector, 0, len(selectorIDs))
	for _, id := range selectorIDs {
		sel, err := s.selectors.Get(id, strategy.UserID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return err
		}
		strategy.Selectors = append(strategy.Selectors, sel)
	}

	fieldIDs, err := s.repo.FieldIDs(strategy.ID)
	if err != nil {
		return err
	}
	strategy.Fields = make([]*fields.Field, 0, len(fieldIDs))
	for _, id := range fieldIDs {
		f, err := s.fields.Get(id, strategy.UserID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return err
		}
		strategy.Fields = append(strategy.Fields, f)
	}

	filterIDs, err := s.repo.FilterIDs(strategy.ID)
	if err != nil {
		return err
	}
	strategy.Filters = make([]*filters.Filter, 0, len(filterIDs))
	for _, id := range filterIDs {
		f, err := s.filters.Get(id, strategy.UserID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return err
		}
		strategy.Filters = append(strategy.Filters, f)
	}

	return nil
}
