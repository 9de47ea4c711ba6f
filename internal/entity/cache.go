package entity

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// NameCache maps (kind, name) to an entity identifier in redis, shortening
// the secondary-index lookup. Entries are written through on create and
// dropped on rename/delete; a stale hit is re-checked against the table, so
// the cache is an optimization, never the source of truth. All methods are
// nil-receiver safe.
type NameCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewNameCache constructs a cache with the given entry TTL.
func NewNameCache(client *redis.Client, ttl time.Duration) *NameCache {
	return &NameCache{client: client, ttl: ttl}
}

func nameKey(kind, name string) string {
	return fmt.Sprintf("arkivo:name:%s:%s", kind, name)
}

// Get looks up a cached identifier.
func (c *NameCache) Get(ctx context.Context, kind, name string) (uuid.UUID, bool) {
	if c == nil || c.client == nil {
		return uuid.Nil, false
	}
	val, err := c.client.Get(ctx, nameKey(kind, name)).Result()
	if err != nil {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(val)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// Put stores an identifier. Failures are ignored; the table remains
// authoritative.
func (c *NameCache) Put(ctx context.Context, kind, name string, id uuid.UUID) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Set(ctx, nameKey(kind, name), id.String(), c.ttl).Err()
}

// Drop invalidates an entry after rename or delete.
func (c *NameCache) Drop(ctx context.Context, kind, name string) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Del(ctx, nameKey(kind, name)).Err()
}
