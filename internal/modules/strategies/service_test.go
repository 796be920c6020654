package strategies

import (
	"database/sql"
	"testing"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvidlabs/magpie/internal/database"
	"github.com/corvidlabs/magpie/internal/domain"
	"github.com/corvidlabs/magpie/internal/locking"
	"github.com/corvidlabs/magpie/internal/modules/fields"
	"github.com/corvidlabs/magpie/internal/modules/filters"
	"github.com/corvidlabs/magpie/internal/modules/selectors"
)

type testEnv struct {
	strategies *Service
	selectors  *selectors.Service
	fields     *fields.Service
	filters    *filters.Service
	owner      uuid.UUID
	selector   *selectors.Selector
	field      *fields.Field
	filter     *filters.Filter
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	schema, err := database.Schema("core")
	require.NoError(t, err)
	_, err = db.Exec(schema)
	require.NoError(t, err)

	selectorSvc := selectors.NewService(selectors.NewRepository(db, zerolog.Nop()), zerolog.Nop())
	fieldSvc := fields.NewService(fields.NewRepository(db, zerolog.Nop()), selectorSvc, zerolog.Nop())
	filterSvc := filters.NewService(filters.NewRepository(db, zerolog.Nop()), fieldSvc, zerolog.Nop())
	strategySvc := NewService(NewRepository(db, zerolog.Nop()), selectorSvc, fieldSvc, filterSvc, locking.NewManager(), zerolog.Nop())

	owner := uuid.New()
	sel, err := selectorSvc.Create(owner, "row", "//tr", selectors.VisibilityPrivate)
	require.NoError(t, err)
	field, err := fieldSvc.Create(owner, sel.ID, "price", fields.TypeFloat, selectors.VisibilityPrivate)
	require.NoError(t, err)
	filter, err := filterSvc.Create(owner, field.ID, "cheap", filters.TypeNumberLT, "100")
	require.NoError(t, err)

	return &testEnv{
		strategies: strategySvc,
		selectors:  selectorSvc,
		fields:     fieldSvc,
		filters:    filterSvc,
		owner:      owner,
		selector:   sel,
		field:      field,
		filter:     filter,
	}
}

func TestCreateStartsEmpty(t *testing.T) {
	env := newTestEnv(t)

	strategy, err := env.strategies.Create(env.owner, "daily crawl")
	require.NoError(t, err)
	assert.Empty(t, strategy.Selectors)
	assert.Empty(t, strategy.Fields)
	assert.Empty(t, strategy.Filters)

	_, err = env.strategies.Create(env.owner, "")
	assert.True(t, domain.IsValidation(err))
}

func TestAddMembersAndHydrate(t *testing.T) {
	env := newTestEnv(t)

	strategy, err := env.strategies.Create(env.owner, "daily crawl")
	require.NoError(t, err)

	updated, err := env.strategies.AddSelector(strategy.ID, env.selector.ID, env.owner)
	require.NoError(t, err)
	require.Len(t, updated.Selectors, 1)
	assert.Equal(t, env.selector.ID, updated.Selectors[0].ID)

	updated, err = env.strategies.AddField(strategy.ID, env.field.ID, env.owner)
	require.NoError(t, err)
	require.Len(t, updated.Fields, 1)

	updated, err = env.strategies.AddFilter(strategy.ID, env.filter.ID, env.owner)
	require.NoError(t, err)
	require.Len(t, updated.Filters, 1)

	got, err := env.strategies.Get(strategy.ID, env.owner)
	require.NoError(t, err)
	assert.Len(t, got.Selectors, 1)
	assert.Len(t, got.Fields, 1)
	assert.Len(t, got.Filters, 1)
}

func TestAddSelectorIsIdempotent(t *testing.T) {
	env := newTestEnv(t)

	strategy, err := env.strategies.Create(env.owner, "daily crawl")
	require.NoError(t, err)

	_, err = env.strategies.AddSelector(strategy.ID, env.selector.ID, env.owner)
	require.NoError(t, err)
	updated, err := env.strategies.AddSelector(strategy.ID, env.selector.ID, env.owner)
	require.NoError(t, err)

	assert.Len(t, updated.Selectors, 1)
}

func TestAddDanglingMember(t *testing.T) {
	env := newTestEnv(t)

	strategy, err := env.strategies.Create(env.owner, "daily crawl")
	require.NoError(t, err)

	_, err = env.strategies.AddSelector(strategy.ID, uuid.New(), env.owner)
	assert.ErrorIs(t, err, domain.ErrDanglingReference)

	_, err = env.strategies.AddField(strategy.ID, uuid.New(), env.owner)
	assert.ErrorIs(t, err, domain.ErrDanglingReference)

	_, err = env.strategies.AddFilter(strategy.ID, uuid.New(), env.owner)
	assert.ErrorIs(t, err, domain.ErrDanglingReference)
}

func TestRemoveMember(t *testing.T) {
	env := newTestEnv(t)

	strategy, err := env.strategies.Create(env.owner, "daily crawl")
	require.NoError(t, err)

	_, err = env.strategies.AddSelector(strategy.ID, env.selector.ID, env.owner)
	require.NoError(t, err)

	require.NoError(t, env.strategies.RemoveSelector(strategy.ID, env.selector.ID, env.owner))

	got, err := env.strategies.Get(strategy.ID, env.owner)
	require.NoError(t, err)
	assert.Empty(t, got.Selectors)

	// Detaching an absent member fails without touching the rest.
	assert.ErrorIs(t, env.strategies.RemoveSelector(strategy.ID, env.selector.ID, env.owner), domain.ErrNotFound)
}

func TestOwnerIsolation(t *testing.T) {
	env := newTestEnv(t)
	other := uuid.New()

	strategy, err := env.strategies.Create(env.owner, "daily crawl")
	require.NoError(t, err)

	_, err = env.strategies.Get(strategy.ID, other)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = env.strategies.AddSelector(strategy.ID, env.selector.ID, other)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, env.strategies.Delete(strategy.ID, other), domain.ErrNotFound)
}

func TestDeleteDetachesMembers(t *testing.T) {
	env := newTestEnv(t)

	strategy, err := env.strategies.Create(env.owner, "daily crawl")
	require.NoError(t, err)
	_, err = env.strategies.AddSelector(strategy.ID, env.selector.ID, env.owner)
	require.NoError(t, err)
	_, err = env.strategies.AddFilter(strategy.ID, env.filter.ID, env.owner)
	require.NoError(t, err)

	require.NoError(t, env.strategies.Delete(strategy.ID, env.owner))

	_, err = env.strategies.Get(strategy.ID, env.owner)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// Members survive the strategy.
	_, err = env.selectors.Get(env.selector.ID, env.owner)
	assert.NoError(t, err)
	_, err = env.filters.Get(env.filter.ID, env.owner)
	assert.NoError(t, err)
}

func TestListCreationOrder(t *testing.T) {
	env := newTestEnv(t)

	first, err := env.strategies.Create(env.owner, "first")
	require.NoError(t, err)
	second, err := env.strategies.Create(env.owner, "second")
	require.NoError(t, err)

	list, err := env.strategies.List(env.owner)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, second.ID, list[1].ID)
}
