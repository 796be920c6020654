package selectors

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/corvidlabs/magpie/internal/domain"
)

// Repository handles selector rows in core.db.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new selector repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "selectors").Logger(),
	}
}

// Create inserts a new selector.
func (r *Repository) Create(s *Selector) error {
	_, err := r.db.Exec(`
		INSERT INTO selectors (id, user_id, name, value, visibility, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, s.ID.String(), s.UserID.String(), s.Name, s.Value, string(s.Visibility), s.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to create selector: %w", err)
	}
	return nil
}

// GetVisible retrieves a selector the account may read: its own, or a public
// one. Returns domain.ErrNotFound otherwise so existence does not leak.
func (r *Repository) GetVisible(id, userID uuid.UUID) (*Selector, error) {
	row := r.db.QueryRow(`
		SELECT id, user_id, name, value, visibility, created_at
		FROM selectors
		WHERE id = ? AND (user_id = ? OR visibility = 'public')
	`, id.String(), userID.String())

	return scanSelector(row)
}

// ListVisible returns the account's selectors plus public selectors of other
// accounts, in creation order (oldest first).
func (r *Repository) ListVisible(userID uuid.UUID) ([]*Selector, error) {
	rows, err := r.db.Query(`
		SELECT id, user_id, name, value, visibility, created_at
		FROM selectors
		WHERE user_id = ? OR visibility = 'public'
		ORDER BY rowid ASC
	`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list selectors: %w", err)
	}
	defer rows.Close()

	var out []*Selector
	for rows.Next() {
		s, err := scanSelectorRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Delete removes a selector owned by the account. Returns domain.ErrConflict
// while the selector is referenced by a field or a strategy, and
// domain.ErrNotFound when the account owns no such selector.
func (r *Repository) Delete(id, userID uuid.UUID) error {
	var refs int
	err := r.db.QueryRow(`
		SELECT
			(SELECT COUNT(*) FROM fields WHERE selector_id = ?1) +
			(SELECT COUNT(*) FROM strategy_selectors WHERE selector_id = ?1)
	`, id.String()).Scan(&refs)
	if err != nil {
		return fmt.Errorf("failed to count selector references: %w", err)
	}
	if refs > 0 {
		return fmt.Errorf("selector is still referenced: %w", domain.ErrConflict)
	}

	res, err := r.db.Exec(`DELETE FROM selectors WHERE id = ? AND user_id = ?`, id.String(), userID.String())
	if err != nil {
		return fmt.Errorf("failed to delete selector: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanSelector(row *sql.Row) (*Selector, error) {
	var (
		s             Selector
		id, userID    string
		visibility    string
		createdAtUnix int64
	)

	err := row.Scan(&id, &userID, &s.Name, &s.Value, &visibility, &createdAtUnix)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan selector: %w", err)
	}

	return fillSelector(&s, id, userID, visibility, createdAtUnix)
}

func scanSelectorRows(rows *sql.Rows) (*Selector, error) {
	var (
		s             Selector
		id, userID    string
		visibility    string
		createdAtUnix int64
	)

	if err := rows.Scan(&id, &userID, &s.Name, &s.Value, &visibility, &createdAtUnix); err != nil {
		return nil, fmt.Errorf("failed to scan selector row: %w", err)
	}

	return fillSelector(&s, id, userID, visibility, createdAtUnix)
}

func fillSelector(s *Selector, id, userID, visibility string, createdAtUnix int64) (*Selector, error) {
	parsedID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("corrupt selector id %q: %w", id, err)
	}
	parsedUserID, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("corrupt selector user id %q: %w", userID, err)
	}

	s.ID = parsedID
	s.UserID = parsedUserID
	s.Visibility = Visibility(visibility)
	s.CreatedAt = time.Unix(createdAtUnix, 0)
	return s, nil
}
