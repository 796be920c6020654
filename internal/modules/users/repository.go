package users

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/corvidlabs/magpie/internal/domain"
)

// Repository handles user rows in core.db.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new user repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "users").Logger(),
	}
}

// Create inserts a new user. Returns domain.ErrConflict when the email is
// already registered.
func (r *Repository) Create(u *User) error {
	_, err := r.db.Exec(`
		INSERT INTO users (id, name, email, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, u.ID.String(), u.Name, u.Email, u.PasswordHash, u.CreatedAt.Unix())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("email %s: %w", u.Email, domain.ErrConflict)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// Get retrieves a user by id. Returns domain.ErrNotFound when absent.
func (r *Repository) Get(id uuid.UUID) (*User, error) {
	return r.scanOne(r.db.QueryRow(`
		SELECT id, name, email, password_hash, created_at
		FROM users WHERE id = ?
	`, id.String()))
}

// GetByEmail retrieves a user by email. Returns domain.ErrNotFound when
// absent.
func (r *Repository) GetByEmail(email string) (*User, error) {
	return r.scanOne(r.db.QueryRow(`
		SELECT id, name, email, password_hash, created_at
		FROM users WHERE email = ?
	`, email))
}

func (r *Repository) scanOne(row *sql.Row) (*User, error) {
	var (
		u         User
		id        string
		createdAt int64
	)

	err := row.Scan(&id, &u.Name, &u.Email, &u.PasswordHash, &createdAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("corrupt user id %q: %w", id, err)
	}

	u.ID = parsed
	u.CreatedAt = time.Unix(createdAt, 0)
	return &u, nil
}

func isUniqueViolation(err error) bool {
	// Both sqlite drivers surface constraint failures in the message; there
	// is no shared typed error across them.
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
