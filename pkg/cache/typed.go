package cache

import (
	"context"
	"encoding/json"
	"time"
)

// Get decodes the value stored under key into T. A value that does not
// decode as T is treated as corrupt: it is evicted and reported as absent.
func Get[T any](ctx context.Context, c *Cache, key Key) (T, bool) {
	var v T
	raw, ok := c.lookup(ctx, key)
	if !ok {
		c.misses.Add(1)
		return v, false
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		c.logger.Warn("cache value decode error, evicting", "key", key.s, "error", err)
		c.corrupt.Add(1)
		c.misses.Add(1)
		c.Remove(ctx, key)
		var zero T
		return zero, false
	}
	c.hits.Add(1)
	return v, true
}

// Set encodes v as JSON and stores it under key for ttl. Failures are logged.
func Set[T any](ctx context.Context, c *Cache, key Key, v T, ttl time.Duration) {
	raw, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("cache encode error", "key", key.s, "error", err)
		return
	}
	c.Put(ctx, key, raw, ttl)
}

// SetIfUnchanged is Set guarded by a sequence obtained from Cache.Sequence.
func SetIfUnchanged[T any](ctx context.Context, c *Cache, key Key, v T, ttl time.Duration, seq uint64) bool {
	raw, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("cache encode error", "key", key.s, "error", err)
		return false
	}
	return c.PutIfUnchanged(ctx, key, raw, ttl, seq)
}
