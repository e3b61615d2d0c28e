package rbac

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// cacheScanCount is the page size for pattern scans during invalidation.
const cacheScanCount = 100

// Cache stores per-(role, resource) permission flags as Redis hashes.
// The key shape keeps both wildcard scan directions efficient: by role
// (rbac:role#<id>:group#*) and by resource (rbac:role#*:group#<tag>).
type Cache struct {
	client *redis.Client
}

// NewCache creates a permission cache over an existing Redis client.
func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func permissionKey(roleID, groupTag string) string {
	return fmt.Sprintf("rbac:role#%s:group#%s", roleID, groupTag)
}

// Get returns the cached permission record, or nil on a miss. An entry is
// valid only when all four flags are present; a partially populated entry
// is a full miss and must be recomputed from the backing store.
func (c *Cache) Get(ctx context.Context, roleID int64, groupTag string) (*Permission, error) {
	key := permissionKey(fmt.Sprint(roleID), groupTag)

	fields, err := c.client.HMGet(ctx, key, "read", "create", "update", "delete").Result()
	if err != nil {
		return nil, fmt.Errorf("redis hmget failed: %w", err)
	}

	flags := make([]bool, len(fields))
	for i, field := range fields {
		value, ok := field.(string)
		if !ok {
			// Missing field: never trust a partial entry.
			return nil, nil
		}
		flags[i] = value == "1"
	}

	return &Permission{
		Read:   flags[0],
		Create: flags[1],
		Update: flags[2],
		Delete: flags[3],
	}, nil
}

func flag(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

// Put writes all four flags in a single compound write.
func (c *Cache) Put(ctx context.Context, roleID int64, groupTag string, perm Permission) error {
	key := permissionKey(fmt.Sprint(roleID), groupTag)

	err := c.client.HSet(ctx, key, map[string]interface{}{
		"read":   flag(perm.Read),
		"create": flag(perm.Create),
		"update": flag(perm.Update),
		"delete": flag(perm.Delete),
	}).Err()
	if err != nil {
		return fmt.Errorf("redis hset failed: %w", err)
	}
	return nil
}

// InvalidateRole removes every cached entry for the role across all
// resource tags. A pattern with no matches is a no-op.
func (c *Cache) InvalidateRole(ctx context.Context, roleID int64) error {
	return c.deletePattern(ctx, permissionKey(fmt.Sprint(roleID), "*"))
}

// InvalidateGroup removes every cached entry for the resource tag across
// all roles.
func (c *Cache) InvalidateGroup(ctx context.Context, groupTag string) error {
	return c.deletePattern(ctx, permissionKey("*", groupTag))
}

func (c *Cache) deletePattern(ctx context.Context, pattern string) error {
	iter := c.client.Scan(ctx, 0, pattern, cacheScanCount).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to delete key %s: %w", iter.Val(), err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan failed for pattern %s: %w", pattern, err)
	}
	return nil
}
