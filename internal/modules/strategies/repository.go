package strategies

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/corvidlabs/magpie/internal/database"
	"github.com/corvidlabs/magpie/internal/domain"
)

// memberTable describes one of the three membership tables so the add and
// remove paths can share a single implementation.
type memberTable struct {
	table  string
	column string
}

var (
	selectorMembers = memberTable{table: "strategy_selectors", column: "selector_id"}
	fieldMembers    = memberTable{table: "strategy_fields", column: "field_id"}
	filterMembers   = memberTable{table: "strategy_filters", column: "filter_id"}
)

// Repository handles strategy rows and membership tables in core.db.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new strategy repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "strategies").Logger(),
	}
}

// Create inserts a new strategy with empty membership.
func (r *Repository) Create(s *Strategy) error {
	_, err := r.db.Exec(`
		INSERT INTO strategies (id, user_id, name, created_at)
		VALUES (?, ?, ?, ?)
	`, s.ID.String(), s.UserID.String(), s.Name, s.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to create strategy: %w", err)
	}
	return nil
}

// Get retrieves a bare strategy row owned by the account. Membership is
// hydrated separately by the service.
func (r *Repository) Get(id, userID uuid.UUID) (*Strategy, error) {
	var (
		s             Strategy
		rowID, rowUID string
		createdAtUnix int64
	)

	err := r.db.QueryRow(`
		SELECT id, user_id, name, created_at
		FROM strategies
		WHERE id = ? AND user_id = ?
	`, id.String(), userID.String()).Scan(&rowID, &rowUID, &s.Name, &createdAtUnix)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan strategy: %w", err)
	}

	s.ID, err = uuid.Parse(rowID)
	if err != nil {
		return nil, fmt.Errorf("corrupt strategy id %q: %w", rowID, err)
	}
	s.UserID, err = uuid.Parse(rowUID)
	if err != nil {
		return nil, fmt.Errorf("corrupt strategy user id %q: %w", rowUID, err)
	}
	s.CreatedAt = time.Unix(createdAtUnix, 0)
	return &s, nil
}

// List returns bare strategy rows for the account in creation order.
func (r *Repository) List(userID uuid.UUID) ([]*Strategy, error) {
	rows, err := r.db.Query(`
		SELECT id, user_id, name, created_at
		FROM strategies
		WHERE user_id = ?
		ORDER BY rowid ASC
	`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list strategies: %w", err)
	}
	defer rows.Close()

	var out []*Strategy
	for rows.Next() {
		var (
			s             Strategy
			rowID, rowUID string
			createdAtUnix int64
		)
		if err := rows.Scan(&rowID, &rowUID, &s.Name, &createdAtUnix); err != nil {
			return nil, fmt.Errorf("failed to scan strategy row: %w", err)
		}
		s.ID, err = uuid.Parse(rowID)
		if err != nil {
			return nil, fmt.Errorf("corrupt strategy id %q: %w", rowID, err)
		}
		s.UserID, err = uuid.Parse(rowUID)
		if err != nil {
			return nil, fmt.Errorf("corrupt strategy user id %q: %w", rowUID, err)
		}
		s.CreatedAt = time.Unix(createdAtUnix, 0)
		out = append(out, &s)
	}
	return out, rows.Err()
}

// MemberIDs returns the member ids attached to the strategy for one
// membership table, in attach order.
func (r *Repository) memberIDs(mt memberTable, strategyID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.db.Query(fmt.Sprintf(`
		SELECT %s FROM %s WHERE strategy_id = ? ORDER BY rowid ASC
	`, mt.column, mt.table), strategyID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", mt.table, err)
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", mt.table, err)
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("corrupt %s %q: %w", mt.column, raw, err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// SelectorIDs returns the selector ids attached to the strategy.
func (r *Repository) SelectorIDs(strategyID uuid.UUID) ([]uuid.UUID, error) {
	return r.memberIDs(selectorMembers, strategyID)
}

// FieldIDs returns the field ids attached to the strategy.
func (r *Repository) FieldIDs(strategyID uuid.UUID) ([]uuid.UUID, error) {
	return r.memberIDs(fieldMembers, strategyID)
}

// FilterIDs returns the filter ids attached to the strategy.
func (r *Repository) FilterIDs(strategyID uuid.UUID) ([]uuid.UUID, error) {
	return r.memberIDs(filterMembers, strategyID)
}

// addMember attaches memberID to the strategy. Attaching a member that is
// already present is a no-op.
func (r *Repository) addMember(mt memberTable, strategyID, memberID uuid.UUID) error {
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		_, err := tx.Exec(fmt.Sprintf(`
			INSERT INTO %s (strategy_id, %s, added_at)
			VALUES (?, ?, ?)
			ON CONFLICT (strategy_id, %s) DO NOTHING
		`, mt.table, mt.column, mt.column), strategyID.String(), memberID.String(), time.Now().Unix())
		if err != nil {
			return fmt.Errorf("failed to attach %s: %w", mt.column, err)
		}
		return nil
	})
}

// removeMember detaches memberID from the strategy. Returns
// domain.ErrNotFound when the member is not currently attached. The
// underlying registry entity is never touched.
func (r *Repository) removeMember(mt memberTable, strategyID, memberID uuid.UUID) error {
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		res, err := tx.Exec(fmt.Sprintf(`
			DELETE FROM %s WHERE strategy_id = ? AND %s = ?
		`, mt.table, mt.column), strategyID.String(), memberID.String())
		if err != nil {
			return fmt.Errorf("failed to detach %s: %w", mt.column, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%s not attached: %w", mt.column, domain.ErrNotFound)
		}
		return nil
	})
}

// Delete removes a strategy and its membership rows in one transaction.
func (r *Repository) Delete(id, userID uuid.UUID) error {
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		res, err := tx.Exec(`DELETE FROM strategies WHERE id = ? AND user_id = ?`, id.String(), userID.String())
		if err != nil {
			return fmt.Errorf("failed to delete strategy: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.ErrNotFound
		}

		for _, mt := range []memberTable{selectorMembers, fieldMembers, filterMembers} {
			if _, err := tx.Exec(fmt.Sprintf(`DELETE FROM %s WHERE strategy_id = ?`, mt.table), id.String()); err != nil {
				return fmt.Errorf("failed to clear %s: %w", mt.table, err)
			}
		}
		return nil
	})
}
