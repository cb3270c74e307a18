package geocode

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/revieqt/taralets-server/internal/geo"
)

const defaultCacheTTL = 24 * time.Hour

// Cache is a Redis-backed store of resolved place names. Reverse geocoding is
// display-only, so entries are keyed on a ~11 m coordinate grid: nearby
// lookups share one provider call.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewCache connects to the Redis instance at addr. A non-positive ttl selects
// the default of 24 hours.
func NewCache(addr string, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Cache{
		rdb: redis.NewClient(&redis.Options{Addr: addr}),
		ttl: ttl,
	}
}

func cacheKey(point geo.Coordinate) string {
	return fmt.Sprintf("geocode:%.4f,%.4f", point.Latitude, point.Longitude)
}

// Get returns the cached place name for a point, if present. Redis errors are
// reported as a miss.
func (c *Cache) Get(ctx context.Context, point geo.Coordinate) (string, bool) {
	name, err := c.rdb.Get(ctx, cacheKey(point)).Result()
	if err != nil {
		return "", false
	}
	return name, true
}

// Set stores a resolved place name. Writes are best effort: a failed write
// only costs a future provider call.
func (c *Cache) Set(ctx context.Context, point geo.Coordinate, name string) {
	c.rdb.Set(ctx, cacheKey(point), name, c.ttl)
}

func (c *Cache) Close() error {
	return c.rdb.Close()
}
