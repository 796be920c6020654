package fields

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
	"github.com/corvidlabs/magpie/internal/modules/selectors"
)

func setupCoreDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	schema, err := database.Schema("core")
	require.NoError(t, err)
	_, err = db.Exec(schema)
	require.NoError(t, err)

	return db
}

func newTestServices(t *testing.T) (*Service, *selectors.Service, *sql.DB) {
	t.Helper()

	db := setupCoreDB(t)
	selectorSvc := selectors.NewService(selectors.NewRepository(db, zerolog.Nop()), zerolog.Nop())
	fieldSvc := NewService(NewRepository(db, zerolog.Nop()), selectorSvc, zerolog.Nop())
	return fieldSvc, selectorSvc, db
}

func TestCreateAndList(t *testing.T) {
	svc, selectorSvc, _ := newTestServices(t)
	owner := uuid.New()

	sel, err := selectorSvc.Create(owner, "row", "//tr", selectors.VisibilityPrivate)
	require.NoError(t, err)

	first, err := svc.Create(owner, sel.ID, "headline", TypeString, selectors.VisibilityPrivate)
	require.NoError(t, err)
	second, err := svc.Create(owner, sel.ID, "count", TypeInteger, selectors.VisibilityPrivate)
	require.NoError(t, err)

	list, err := svc.List(owner)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, second.ID, list[1].ID)
}

func TestCreateValidation(t *testing.T) {
	svc, selectorSvc, _ := newTestServices(t)
	owner := uuid.New()

	sel, err := selectorSvc.Create(owner, "row", "//tr", selectors.VisibilityPrivate)
	require.NoError(t, err)

	_, err = svc.Create(owner, sel.ID, "", TypeString, selectors.VisibilityPrivate)
	assert.True(t, domain.IsValidation(err))

	_, err = svc.Create(owner, sel.ID, "headline", Type("blob"), selectors.VisibilityPrivate)
	assert.True(t, domain.IsValidation(err))
}

func TestCreateDanglingSelector(t *testing.T) {
	svc, _, _ := newTestServices(t)
	owner := uuid.New()

	_, err := svc.Create(owner, uuid.New(), "headline", TypeString, selectors.VisibilityPrivate)
	assert.ErrorIs(t, err, domain.ErrDanglingReference)

	list, err := svc.List(owner)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCreateOnForeignPrivateSelector(t *testing.T) {
	svc, selectorSvc, _ := newTestServices(t)
	owner := uuid.New()
	other := uuid.New()

	private, err := selectorSvc.Create(owner, "row", "//tr", selectors.VisibilityPrivate)
	require.NoError(t, err)
	public, err := selectorSvc.Create(owner, "shared", "//td", selectors.VisibilityPublic)
	require.NoError(t, err)

	// A private selector of another account is indistinguishable from a
	// missing one.
	_, err = svc.Create(other, private.ID, "headline", TypeString, selectors.VisibilityPrivate)
	assert.ErrorIs(t, err, domain.ErrDanglingReference)

	// Public selectors are attachable across accounts.
	_, err = svc.Create(other, public.ID, "headline", TypeString, selectors.VisibilityPrivate)
	assert.NoError(t, err)
}

func TestGetIsOwnerOnly(t *testing.T) {
	svc, selectorSvc, _ := newTestServices(t)
	owner := uuid.New()

	sel, err := selectorSvc.Create(owner, "row", "//tr", selectors.VisibilityPrivate)
	require.NoError(t, err)
	f, err := svc.Create(owner, sel.ID, "headline", TypeString, selectors.VisibilityPublic)
	require.NoError(t, err)

	_, err = svc.Get(f.ID, owner)
	assert.NoError(t, err)

	_, err = svc.Get(f.ID, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDelete(t *testing.T) {
	svc, selectorSvc, db := newTestServices(t)
	owner := uuid.New()

	sel, err := selectorSvc.Create(owner, "row", "//tr", selectors.VisibilityPrivate)
	require.NoError(t, err)
	f, err := svc.Create(owner, sel.ID, "headline", TypeString, selectors.VisibilityPrivate)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(f.ID, owner))
	assert.ErrorIs(t, svc.Delete(f.ID, owner), domain.ErrNotFound)

	// A field referenced by a filter cannot be deleted.
	ref, err := svc.Create(owner, sel.ID, "count", TypeInteger, selectors.VisibilityPrivate)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO filters (id, user_id, field_id, name, type, value, created_at)
		VALUES ('fl1', ?, ?, 'positive', 'number_gt', '0', 0)`, owner.String(), ref.ID.String())
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ref.ID, owner), domain.ErrConflict)
}
