package filters

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/corvidlabs/magpie/internal/domain"
)

// Repository handles filter rows in core.db.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new filter repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "filters").Logger(),
	}
}

// Create inserts a new filter.
func (r *Repository) Create(f *Filter) error {
	_, err := r.db.Exec(`
		INSERT INTO filters (id, user_id, field_id, name, type, value, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, f.ID.String(), f.UserID.String(), f.FieldID.String(), f.Name, string(f.Type), f.Value, f.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to create filter: %w", err)
	}
	return nil
}

// Get retrieves a filter owned by the account.
func (r *Repository) Get(id, userID uuid.UUID) (*Filter, error) {
	row := r.db.QueryRow(`
		SELECT id, user_id, field_id, name, type, value, created_at
		FROM filters
		WHERE id = ? AND user_id = ?
	`, id.String(), userID.String())

	return scanFilter(row)
}

// List returns the account's filters in creation order (oldest first).
func (r *Repository) List(userID uuid.UUID) ([]*Filter, error) {
	rows, err := r.db.Query(`
		SELECT id, user_id, field_id, name, type, value, created_at
		FROM filters
		WHERE user_id = ?
		ORDER BY rowid ASC
	`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list filters: %w", err)
	}
	defer rows.Close()

	var out []*Filter
	for rows.Next() {
		f, err := scanFilterRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Delete removes a filter owned by the account. Returns domain.ErrConflict
// while the filter is attached to a strategy, domain.ErrNotFound when the
// account owns no such filter.
func (r *Repository) Delete(id, userID uuid.UUID) error {
	var refs int
	err := r.db.QueryRow(`
		SELECT COUNT(*) FROM strategy_filters WHERE filter_id = ?
	`, id.String()).Scan(&refs)
	if err != nil {
		return fmt.Errorf("failed to count filter references: %w", err)
	}
	if refs > 0 {
		return fmt.Errorf("filter is still referenced: %w", domain.ErrConflict)
	}

	res, err := r.db.Exec(`DELETE FROM filters WHERE id = ? AND user_id = ?`, id.String(), userID.String())
	if err != nil {
		return fmt.Errorf("failed to delete filter: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanFilter(row *sql.Row) (*Filter, error) {
	var (
		f                   Filter
		id, userID, fieldID string
		filterType          string
		createdAtUnix       int64
	)

	err := row.Scan(&id, &userID, &fieldID, &f.Name, &filterType, &f.Value, &createdAtUnix)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan filter: %w", err)
	}

	return fillFilter(&f, id, userID, fieldID, filterType, createdAtUnix)
}

func scanFilterRows(rows *sql.Rows) (*Filter, error) {
	var (
		f                   Filter
		id, userID, fieldID string
		filterType          string
		createdAtUnix       int64
	)

	if err := rows.Scan(&id, &userID, &fieldID, &f.Name, &filterType, &f.Value, &createdAtUnix); err != nil {
		return nil, fmt.Errorf("failed to scan filter row: %w", err)
	}

	return fillFilter(&f, id, userID, fieldID, filterType, createdAtUnix)
}

func fillFilter(f *Filter, id, userID, fieldID, filterType string, createdAtUnix int64) (*Filter, error) {
	parsedID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("corrupt filter id %q: %w", id, err)
	}
	parsedUserID, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("corrupt filter user id %q: %w", userID, err)
	}
	parsedFieldID, err := uuid.Parse(fieldID)
	if err != nil {
		return nil, fmt.Errorf("corrupt filter field id %q: %w", fieldID, err)
	}

	f.ID = parsedID
	f.UserID = parsedUserID
	f.FieldID = parsedFieldID
	f.Type = Type(filterType)
	f.CreatedAt = time.Unix(createdAtUnix, 0)
	return f, nil
}
