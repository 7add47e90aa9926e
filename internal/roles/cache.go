package roles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/investly/adminportal/internal/rbac"
)

const cacheVersionKey = "rbac:matrix:version"

// ErrCacheUnavailable wraps Redis failures so callers can fall back to the repository.
var ErrCacheUnavailable = errors.New("roles: cache unavailable")

// Cache stores resolved permission matrices in Redis behind a global version.
// Bumping the version invalidates every cached matrix at once.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

// NewCache instantiates the cache helper.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Version returns the current cache version, initialising when missing.
func (c *Cache) Version(ctx context.Context) (int64, error) {
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.SetNX(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, cacheVersionKey).Int64()
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// Matrix returns the cached matrix of roleID or populates it with load.
// Concurrent misses for the same key share one load.
func (c *Cache) Matrix(ctx context.Context, roleID string, load func(context.Context) (rbac.Matrix, error)) (rbac.Matrix, error) {
	if c == nil || c.client == nil {
		return load(ctx)
	}
	ver, err := c.Version(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	key := matrixKey(roleID, ver)

	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var m rbac.Matrix
		if err := json.Unmarshal(payload, &m); err == nil {
			return m, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		m, err := load(ctx)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(m)
		if err != nil {
			return nil, err
		}
		if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
		}
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(rbac.Matrix).Clone(), nil
}

// Bump invalidates every cached matrix by incrementing the global version.
func (c *Cache) Bump(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, cacheVersionKey).Err()
}

func matrixKey(roleID string, ver int64) string {
	return fmt.Sprintf("rbac:matrix:%s:%d", roleID, ver)
}
