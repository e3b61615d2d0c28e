package rbac

import (
	"context"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/tollgate-io/tollgate/pkg/observability"
)

// Resolver computes merged permissions for a set of roles against a
// resource tag, consulting and populating the permission cache.
type Resolver struct {
	store *Store
	cache *Cache
	log   logrus.FieldLogger
}

// NewResolver creates a permission resolver
func NewResolver(store *Store, cache *Cache, log logrus.FieldLogger) *Resolver {
	return &Resolver{
		store: store,
		cache: cache,
		log:   log.WithField("component", "rbac"),
	}
}

// Resolve returns the OR-merge of each role's permission record for the
// resource tag. Per-role lookups fan out concurrently.
func (r *Resolver) Resolve(ctx context.Context, roleIDs []int64, groupTag string) (Permission, error) {
	perms := make([]Permission, len(roleIDs))

	g, ctx := errgroup.WithContext(ctx)
	for i, roleID := range roleIDs {
		i, roleID := i, roleID
		g.Go(func() error {
			perm, err := r.resolveRole(ctx, roleID, groupTag)
			if err != nil {
				return err
			}
			perms[i] = perm
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Permission{}, err
	}

	return Merge(perms...), nil
}

// resolveRole resolves one role's record. Cache first; on miss, the group
// is looked up and lazily provisioned. The default-deny record returned
// for a fresh group or a missing grant row is deliberately NOT cached: a
// grant added moments later must become visible without an invalidation.
func (r *Resolver) resolveRole(ctx context.Context, roleID int64, groupTag string) (Permission, error) {
	cached, err := r.cache.Get(ctx, roleID, groupTag)
	if err != nil {
		// A broken cache degrades to the backing store.
		r.log.WithError(err).WithField("group", groupTag).Warn("permission cache read failed")
	}
	if cached != nil {
		observability.PermissionCacheHits.Inc()
		return *cached, nil
	}
	observability.PermissionCacheMisses.Inc()

	group, err := r.store.GetGroupByTag(ctx, groupTag)
	if err != nil {
		return Permission{}, err
	}
	if group == nil {
		if _, err := r.store.CreateGroup(ctx, groupTag); err != nil {
			return Permission{}, err
		}
		r.log.WithField("group", groupTag).Info("provisioned access group")
		return Permission{}, nil
	}

	grant, err := r.store.GetGrant(ctx, roleID, group.ID)
	if err != nil {
		return Permission{}, err
	}
	if grant == nil {
		return Permission{}, nil
	}

	if err := r.cache.Put(ctx, roleID, groupTag, *grant); err != nil {
		r.log.WithError(err).WithField("group", groupTag).Warn("permission cache write failed")
	}
	return *grant, nil
}

// Grant writes a permission row for (role, resource tag), provisioning
// the group when needed, and invalidates stale cache entries.
func (r *Resolver) Grant(ctx context.Context, roleID int64, groupTag string, perm Permission) error {
	group, err := r.store.GetGroupByTag(ctx, groupTag)
	if err != nil {
		return err
	}
	if group == nil {
		group, err = r.store.CreateGroup(ctx, groupTag)
		if err != nil {
			return err
		}
	}

	if err := r.store.UpsertGrant(ctx, roleID, group.ID, perm); err != nil {
		return err
	}
	return r.invalidate(ctx, roleID, groupTag)
}

// Revoke removes the permission row for (role, resource tag). Revoking a
// grant that never existed is a no-op.
func (r *Resolver) Revoke(ctx context.Context, roleID int64, groupTag string) error {
	group, err := r.store.GetGroupByTag(ctx, groupTag)
	if err != nil {
		return err
	}
	if group == nil {
		return nil
	}

	if err := r.store.DeleteGrant(ctx, roleID, group.ID); err != nil {
		return err
	}
	return r.invalidate(ctx, roleID, groupTag)
}

func (r *Resolver) invalidate(ctx context.Context, roleID int64, groupTag string) error {
	if err := r.cache.InvalidateRole(ctx, roleID); err != nil {
		return err
	}
	return r.cache.InvalidateGroup(ctx, groupTag)
}
