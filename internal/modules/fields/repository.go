package fields

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/corvidlabs/magpie/internal/domain"
	"github.com/corvidlabs/magpie/internal/modules/selectors"
)

// Repository handles field rows in core.db.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new field repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "fields").Logger(),
	}
}

// Create inserts a new field.
func (r *Repository) Create(f *Field) error {
	_, err := r.db.Exec(`
		INSERT INTO fields (id, user_id, selector_id, name, type, visibility, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, f.ID.String(), f.UserID.String(), f.SelectorID.String(), f.Name, string(f.Type), string(f.Visibility), f.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to create field: %w", err)
	}
	return nil
}

// Get retrieves a field owned by the account.
func (r *Repository) Get(id, userID uuid.UUID) (*Field, error) {
	row := r.db.QueryRow(`
		SELECT id, user_id, selector_id, name, type, visibility, created_at
		FROM fields
		WHERE id = ? AND user_id = ?
	`, id.String(), userID.String())

	return scanField(row)
}

// List returns the account's fields in creation order (oldest first).
func (r *Repository) List(userID uuid.UUID) ([]*Field, error) {
	rows, err := r.db.Query(`
		SELECT id, user_id, selector_id, name, type, visibility, created_at
		FROM fields
		WHERE user_id = ?
		ORDER BY rowid ASC
	`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list fields: %w", err)
	}
	defer rows.Close()

	var out []*Field
	for rows.Next() {
		f, err := scanFieldRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Delete removes a field owned by the account. Returns domain.ErrConflict
// while the field is referenced by a filter or a strategy, and
// domain.ErrNotFound when the account owns no such field.
func (r *Repository) Delete(id, userID uuid.UUID) error {
	var refs int
	err := r.db.QueryRow(`
		SELECT
			(SELECT COUNT(*) FROM filters WHERE field_id = ?1) +
			(SELECT COUNT(*) FROM strategy_fields WHERE field_id = ?1)
	`, id.String()).Scan(&refs)
	if err != nil {
		return fmt.Errorf("failed to count field references: %w", err)
	}
	if refs > 0 {
		return fmt.Errorf("field is still referenced: %w", domain.ErrConflict)
	}

	res, err := r.db.Exec(`DELETE FROM fields WHERE id = ? AND user_id = ?`, id.String(), userID.String())
	if err != nil {
		return fmt.Errorf("failed to delete field: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanField(row *sql.Row) (*Field, error) {
	var (
		f                      Field
		id, userID, selectorID string
		fieldType, visibility  string
		createdAtUnix          int64
	)

	err := row.Scan(&id, &userID, &selectorID, &f.Name, &fieldType, &visibility, &createdAtUnix)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan field: %w", err)
	}

	return fillField(&f, id, userID, selectorID, fieldType, visibility, createdAtUnix)
}

func scanFieldRows(rows *sql.Rows) (*Field, error) {
	var (
		f                      Field
		id, userID, selectorID string
		fieldType, visibility  string
		createdAtUnix          int64
	)

	if err := rows.Scan(&id, &userID, &selectorID, &f.Name, &fieldType, &visibility, &createdAtUnix); err != nil {
		return nil, fmt.Errorf("failed to scan field row: %w", err)
	}

	return fillField(&f, id, userID, selectorID, fieldType, visibility, createdAtUnix)
}

func fillField(f *Field, id, userID, selectorID, fieldType, visibility string, createdAtUnix int64) (*Field, error) {
	parsedID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("corrupt field id %q: %w", id, err)
	}
	parsedUserID, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("corrupt field user id %q: %w", userID, err)
	}
	parsedSelectorID, err := uuid.Parse(selectorID)
	if err != nil {
		return nil, fmt.Errorf("corrupt field selector id %q: %w", selectorID, err)
	}

	f.ID = parsedID
	f.UserID = parsedUserID
	f.SelectorID = parsedSelectorID
	f.Type = Type(fieldType)
	f.Visibility = selectors.Visibility(visibility)
	f.CreatedAt = time.Unix(createdAtUnix, 0)
	return f, nil
}
