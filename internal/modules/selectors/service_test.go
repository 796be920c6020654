package selectors

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

func newTestService(t *testing.T) (*Service, *sql.DB) {
	t.Helper()

	db := setupCoreDB(t)
	return NewService(NewRepository(db, zerolog.Nop()), zerolog.Nop()), db
}

func TestCreateAndGet(t *testing.T) {
	svc, _ := newTestService(t)
	owner := uuid.New()

	sel, err := svc.Create(owner, "title", "//h1/text()", VisibilityPrivate)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, sel.ID)

	got, err := svc.Get(sel.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, "title", got.Name)
	assert.Equal(t, "//h1/text()", got.Value)
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newTestService(t)
	owner := uuid.New()

	_, err := svc.Create(owner, "", "//h1", VisibilityPrivate)
	assert.True(t, domain.IsValidation(err))

	_, err = svc.Create(owner, "title", "", VisibilityPrivate)
	assert.True(t, domain.IsValidation(err))

	_, err = svc.Create(owner, "title", "//h1", Visibility("secret"))
	assert.True(t, domain.IsValidation(err))
}

func TestListCreationOrder(t *testing.T) {
	svc, _ := newTestService(t)
	owner := uuid.New()

	names := []string{"first", "second", "third"}
	for _, name := range names {
		_, err := svc.Create(owner, name, "//x", VisibilityPrivate)
		require.NoError(t, err)
	}

	list, err := svc.List(owner)
	require.NoError(t, err)
	require.Len(t, list, 3)
	for i, name := range names {
		assert.Equal(t, name, list[i].Name)
	}
}

func TestPublicSelectorsAreShared(t *testing.T) {
	svc, _ := newTestService(t)
	owner := uuid.New()
	other := uuid.New()

	private, err := svc.Create(owner, "private", "//x", VisibilityPrivate)
	require.NoError(t, err)
	public, err := svc.Create(owner, "public", "//y", VisibilityPublic)
	require.NoError(t, err)

	// The other account sees only the public selector.
	list, err := svc.List(other)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, public.ID, list[0].ID)

	_, err = svc.Get(public.ID, other)
	assert.NoError(t, err)

	// A private selector of someone else looks absent, not forbidden.
	_, err = svc.Get(private.ID, other)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDelete(t *testing.T) {
	svc, db := newTestService(t)
	owner := uuid.New()

	sel, err := svc.Create(owner, "title", "//h1", VisibilityPrivate)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(sel.ID, owner))

	_, err = svc.Get(sel.ID, owner)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// Deleting again reports not found.
	assert.ErrorIs(t, svc.Delete(sel.ID, owner), domain.ErrNotFound)

	// A referenced selector cannot be deleted.
	ref, err := svc.Create(owner, "referenced", "//h2", VisibilityPrivate)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO fields (id, user_id, selector_id, name, type, visibility, created_at)
		VALUES ('f1', ?, ?, 'headline', 'string', 'private', 0)`, owner.String(), ref.ID.String())
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ref.ID, owner), domain.ErrConflict)
}

func TestDeleteOtherAccountsSelector(t *testing.T) {
	svc, _ := newTestService(t)
	owner := uuid.New()

	sel, err := svc.Create(owner, "title", "//h1", VisibilityPublic)
	require.NoError(t, err)

	// Even a public selector is only deletable by its owner.
	assert.ErrorIs(t, svc.Delete(sel.ID, uuid.New()), domain.ErrNotFound)
}
