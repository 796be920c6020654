package users

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/corvidlabs/magpie/internal/auth"
	"github.com/corvidlabs/magpie/internal/domain"
)

// Service owns account registration and credential checks.
type Service struct {
	repo   *Repository
	tokens *auth.Tokens
	log    zerolog.Logger
}

// NewService creates a new user service
func NewService(repo *Repository, tokens *auth.Tokens, log zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		tokens: tokens,
		log:    log.With().Str("service", "users").Logger(),
	}
}

// Register creates an account and returns it with a fresh bearer token.
func (s *Service) Register(name, email, password string) (*User, string, error) {
	if err := ValidateRegistration(name, email, password); err != nil {
		return nil, "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}

	u := &User{
		ID:           uuid.New(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}

	if err := s.repo.Create(u); err != nil {
		return nil, "", err
	}

	token, err := s.tokens.Issue(u.Account())
	if err != nil {
		return nil, "", err
	}

	s.log.Info().Str("user_id", u.ID.String()).Msg("Account registered")
	return u, token, nil
}

// Authenticate verifies credentials and returns a bearer token.
// Returns domain.ErrUnauthenticated for unknown email or wrong password;
// callers cannot distinguish the two.
func (s *Service) Authenticate(email, password string) (string, error) {
	u, err := s.repo.GetByEmail(email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", domain.ErrUnauthenticated
		}
		return "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", domain.ErrUnauthenticated
	}

	return s.tokens.Issue(u.Account())
}

// Get retrieves an account by id.
func (s *Service) Get(id uuid.UUID) (*User, error) {
	return s.repo.Get(id)
}
