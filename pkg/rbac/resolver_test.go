package rbac

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tollgate-io/tollgate/pkg/observability"
)

type resolverFixture struct {
	resolver *Resolver
	cache    *Cache
	mock     sqlmock.Sqlmock
	redis    *miniredis.Miniredis
}

func newResolverFixture(t *testing.T) *resolverFixture {
	t.Helper()

	store, mock := newTestStore(t)
	cache, mr := newTestCache(t)

	return &resolverFixture{
		resolver: NewResolver(store, cache, observability.NewTestLogger()),
		cache:    cache,
		mock:     mock,
		redis:    mr,
	}
}

func TestResolver_CacheHitSkipsStore(t *testing.T) {
	f := newResolverFixture(t)
	ctx := context.Background()

	require.NoError(t, f.cache.Put(ctx, 1, "widget", Permission{Read: true}))

	perm, err := f.resolver.Resolve(ctx, []int64{1}, "widget")
	require.NoError(t, err)
	assert.Equal(t, Permission{Read: true}, perm)

	// no database expectations were registered, so any query would fail
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestResolver_ProvisionsMissingGroup(t *testing.T) {
	f := newResolverFixture(t)

	f.mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, tag, description FROM access_groups WHERE tag = $1`)).
		WithArgs("widget").
		WillReturnRows(sqlmock.NewRows([]string{"id", "tag", "description"}))
	f.mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO access_groups`)).
		WithArgs("widget").
		WillReturnRows(sqlmock.NewRows([]string{"id", "tag", "description"}).AddRow(8, "widget", ""))

	perm, err := f.resolver.Resolve(context.Background(), []int64{1}, "widget")
	require.NoError(t, err)
	assert.Equal(t, Permission{}, perm)

	// a freshly provisioned group's default deny stays out of the cache
	assert.Empty(t, f.redis.Keys())
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestResolver_MissingGrantIsUncachedDeny(t *testing.T) {
	f := newResolverFixture(t)

	f.mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, tag, description FROM access_groups WHERE tag = $1`)).
		WithArgs("widget").
		WillReturnRows(sqlmock.NewRows([]string{"id", "tag", "description"}).AddRow(8, "widget", ""))
	f.mock.ExpectQuery(regexp.QuoteMeta(`SELECT read, "create", "update", "delete" FROM access_role_permissions`)).
		WithArgs(int64(1), int64(8)).
		WillReturnRows(sqlmock.NewRows([]string{"read", "create", "update", "delete"}))

	perm, err := f.resolver.Resolve(context.Background(), []int64{1}, "widget")
	require.NoError(t, err)
	assert.Equal(t, Permission{}, perm)

	assert.Empty(t, f.redis.Keys())
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestResolver_GrantRowPopulatesCache(t *testing.T) {
	f := newResolverFixture(t)
	ctx := context.Background()

	f.mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, tag, description FROM access_groups WHERE tag = $1`)).
		WithArgs("widget").
		WillReturnRows(sqlmock.NewRows([]string{"id", "tag", "description"}).AddRow(8, "widget", ""))
	f.mock.ExpectQuery(regexp.QuoteMeta(`SELECT read, "create", "update", "delete" FROM access_role_permissions`)).
		WithArgs(int64(1), int64(8)).
		WillReturnRows(sqlmock.NewRows([]string{"read", "create", "update", "delete"}).AddRow(true, false, false, true))

	perm, err := f.resolver.Resolve(ctx, []int64{1}, "widget")
	require.NoError(t, err)
	assert.Equal(t, Permission{Read: true, Delete: true}, perm)

	cached, err := f.cache.Get(ctx, 1, "widget")
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, Permission{Read: true, Delete: true}, *cached)

	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestResolver_MergesAcrossRoles(t *testing.T) {
	f := newResolverFixture(t)
	ctx := context.Background()

	require.NoError(t, f.cache.Put(ctx, 1, "widget", Permission{Read: true}))
	require.NoError(t, f.cache.Put(ctx, 2, "widget", Permission{Update: true}))
	require.NoError(t, f.cache.Put(ctx, 3, "widget", Permission{}))

	perm, err := f.resolver.Resolve(ctx, []int64{1, 2, 3}, "widget")
	require.NoError(t, err)
	assert.Equal(t, Permission{Read: true, Update: true}, perm)
}

func TestResolver_BrokenCacheFallsBackToStore(t *testing.T) {
	f := newResolverFixture(t)

	// cache reads and writes now fail; resolution must still succeed
	f.redis.Close()

	f.mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, tag, description FROM access_groups WHERE tag = $1`)).
		WithArgs("widget").
		WillReturnRows(sqlmock.NewRows([]string{"id", "tag", "description"}).AddRow(8, "widget", ""))
	f.mock.ExpectQuery(regexp.QuoteMeta(`SELECT read, "create", "update", "delete" FROM access_role_permissions`)).
		WithArgs(int64(1), int64(8)).
		WillReturnRows(sqlmock.NewRows([]string{"read", "create", "update", "delete"}).AddRow(true, true, true, true))

	perm, err := f.resolver.Resolve(context.Background(), []int64{1}, "widget")
	require.NoError(t, err)
	assert.Equal(t, Permission{Read: true, Create: true, Update: true, Delete: true}, perm)

	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestResolver_GrantInvalidatesCache(t *testing.T) {
	f := newResolverFixture(t)
	ctx := context.Background()

	require.NoError(t, f.cache.Put(ctx, 1, "widget", Permission{}))
	require.NoError(t, f.cache.Put(ctx, 1, "gadget", Permission{Read: true}))
	require.NoError(t, f.cache.Put(ctx, 2, "widget", Permission{Read: true}))
	require.NoError(t, f.cache.Put(ctx, 2, "gadget", Permission{Read: true}))

	f.mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, tag, description FROM access_groups WHERE tag = $1`)).
		WithArgs("widget").
		WillReturnRows(sqlmock.NewRows([]string{"id", "tag", "description"}).AddRow(8, "widget", ""))
	f.mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO access_role_permissions`)).
		WithArgs(int64(1), int64(8), true, false, false, false).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, f.resolver.Grant(ctx, 1, "widget", Permission{Read: true}))

	// every entry touching the role or the resource tag is evicted
	for _, key := range []struct {
		roleID int64
		tag    string
	}{{1, "widget"}, {1, "gadget"}, {2, "widget"}} {
		cached, err := f.cache.Get(ctx, key.roleID, key.tag)
		require.NoError(t, err)
		assert.Nil(t, cached, "entry for role %d tag %q should be evicted", key.roleID, key.tag)
	}

	cached, err := f.cache.Get(ctx, 2, "gadget")
	require.NoError(t, err)
	assert.NotNil(t, cached)

	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestResolver_GrantProvisionsGroup(t *testing.T) {
	f := newResolverFixture(t)

	f.mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, tag, description FROM access_groups WHERE tag = $1`)).
		WithArgs("widget").
		WillReturnRows(sqlmock.NewRows([]string{"id", "tag", "description"}))
	f.mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO access_groups`)).
		WithArgs("widget").
		WillReturnRows(sqlmock.NewRows([]string{"id", "tag", "description"}).AddRow(8, "widget", ""))
	f.mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO access_role_permissions`)).
		WithArgs(int64(1), int64(8), false, true, false, false).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, f.resolver.Grant(context.Background(), 1, "widget", Permission{Create: true}))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestResolver_RevokeUnknownGroupIsNoop(t *testing.T) {
	f := newResolverFixture(t)

	f.mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, tag, description FROM access_groups WHERE tag = $1`)).
		WithArgs("widget").
		WillReturnRows(sqlmock.NewRows([]string{"id", "tag", "description"}))

	require.NoError(t, f.resolver.Revoke(context.Background(), 1, "widget"))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestResolver_RevokeDeletesGrantAndInvalidates(t *testing.T) {
	f := newResolverFixture(t)
	ctx := context.Background()

	require.NoError(t, f.cache.Put(ctx, 1, "widget", Permission{Read: true}))

	f.mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, tag, description FROM access_groups WHERE tag = $1`)).
		WithArgs("widget").
		WillReturnRows(sqlmock.NewRows([]string{"id", "tag", "description"}).AddRow(8, "widget", ""))
	f.mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM access_role_permissions WHERE role_id = $1 AND group_id = $2`)).
		WithArgs(int64(1), int64(8)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, f.resolver.Revoke(ctx, 1, "widget"))

	cached, err := f.cache.Get(ctx, 1, "widget")
	require.NoError(t, err)
	assert.Nil(t, cached)

	assert.NoError(t, f.mock.ExpectationsWereMet())
}
