// Package cache is a namespaced, persistent key/value cache with per-entry
// expiration checked at read time.
//
// The cache never fails its caller: read errors, write errors and corrupt
// records are logged and degrade to a miss or to "not cached this time".
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iopps/iopps-sync/pkg/models"
)

// DefaultPrefix namespaces every record written by a Cache.
const DefaultPrefix = "@iopps:"

// Clock returns the current wall-clock time.
type Clock func() time.Time

// Cache is the handle shared by the read coordinator and screens. Create one
// per process with New and pass it where it is needed.
type Cache struct {
	store  Store
	prefix string
	now    Clock
	logger *slog.Logger

	locks keyLocks

	seqMu sync.Mutex
	seq   map[Key]uint64
	gen   uint64 // bumped by ClearAll

	hits    atomic.Int64
	misses  atomic.Int64
	expired atomic.Int64
	corrupt atomic.Int64
}

// Option configures a Cache.
type Option func(*Cache)

// WithPrefix overrides DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(c *Cache) { c.prefix = prefix }
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now Clock) Option {
	return func(c *Cache) { c.now = now }
}

// WithLogger sets the logger swallowed errors are reported to.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// New creates a Cache over store.
func New(store Store, opts ...Option) *Cache {
	c := &Cache{
		store:  store,
		prefix: DefaultPrefix,
		now:    time.Now,
		logger: slog.Default(),
		seq:    make(map[Key]uint64),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Prefix returns the namespace prefix of this cache.
func (c *Cache) Prefix() string { return c.prefix }

// Now returns the cache clock's current time.
func (c *Cache) Now() time.Time { return c.now() }

func (c *Cache) storageKey(k Key) string { return c.prefix + k.s }

// Lookup returns the raw JSON value stored under key, or false when the key
// is absent, expired or unreadable. Expired and corrupt records are evicted.
func (c *Cache) Lookup(ctx context.Context, key Key) (json.RawMessage, bool) {
	raw, ok := c.lookup(ctx, key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return raw, ok
}

func (c *Cache) lookup(ctx context.Context, key Key) (json.RawMessage, bool) {
	unlock := c.locks.lock(key)
	defer unlock()

	sk := c.storageKey(key)
	rec, err := c.store.Get(ctx, sk)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.logger.Error("cache read error", "key", key.s, "error", err)
		}
		return nil, false
	}

	e, err := decodeEntry(rec)
	if err != nil {
		c.logger.Warn("cache entry corrupt, evicting", "key", key.s, "error", err)
		c.corrupt.Add(1)
		c.evict(ctx, sk)
		return nil, false
	}

	if e.Expired(c.now().UnixMilli()) {
		c.expired.Add(1)
		c.evict(ctx, sk)
		return nil, false
	}
	return e.Value, true
}

func decodeEntry(rec []byte) (models.Entry, error) {
	var e models.Entry
	if err := json.Unmarshal(rec, &e); err != nil {
		return e, err
	}
	if len(e.Value) == 0 {
		return e, errors.New("record has no value")
	}
	return e, nil
}

func (c *Cache) evict(ctx context.Context, sk string) {
	if err := c.store.Delete(ctx, sk); err != nil {
		c.logger.Error("cache remove error", "key", sk, "error", err)
	}
}

// Put stores value under key for ttl, replacing any previous entry. Failures
// are logged and otherwise ignored.
func (c *Cache) Put(ctx context.Context, key Key, value json.RawMessage, ttl time.Duration) {
	unlock := c.locks.lock(key)
	defer unlock()
	c.write(ctx, key, value, ttl)
}

// PutIfUnchanged stores value only if no write, removal or clear of key has
// completed since Sequence returned seq. It reports whether the write happened.
func (c *Cache) PutIfUnchanged(ctx context.Context, key Key, value json.RawMessage, ttl time.Duration, seq uint64) bool {
	unlock := c.locks.lock(key)
	defer unlock()
	if c.Sequence(key) != seq {
		return false
	}
	return c.write(ctx, key, value, ttl)
}

func (c *Cache) write(ctx context.Context, key Key, value json.RawMessage, ttl time.Duration) bool {
	if key.IsZero() {
		c.logger.Error("cache write error", "error", ErrUnknownKey)
		return false
	}
	rec, err := json.Marshal(models.Entry{
		Value:     value,
		WrittenAt: c.now().UnixMilli(),
		TTL:       ttl.Milliseconds(),
	})
	if err != nil {
		c.logger.Error("cache encode error", "key", key.s, "error", err)
		return false
	}
	if err := c.store.Set(ctx, c.storageKey(key), rec); err != nil {
		c.logger.Error("cache write error", "key", key.s, "error", err)
		return false
	}
	c.bump(key)
	return true
}

// Sequence returns a counter that changes every time key is written, removed
// or cleared through this Cache.
func (c *Cache) Sequence(key Key) uint64 {
	c.seqMu.Lock()
	defer c.seqMu.Unlock()
	// Both terms only grow, so any write or clear changes the sum.
	return c.gen + c.seq[key]
}

func (c *Cache) bump(key Key) {
	c.seqMu.Lock()
	c.seq[key]++
	c.seqMu.Unlock()
}

// Remove deletes key. A missing key is not an error.
func (c *Cache) Remove(ctx context.Context, key Key) {
	unlock := c.locks.lock(key)
	defer unlock()
	if err := c.store.Delete(ctx, c.storageKey(key)); err != nil {
		c.logger.Error("cache remove error", "key", key.s, "error", err)
		return
	}
	c.bump(key)
}

// ClearAll removes every record under the prefix. Records outside the prefix
// are left alone. No conditional write that started before ClearAll can land
// after it returns.
func (c *Cache) ClearAll(ctx context.Context) {
	unlock := c.locks.lockAll()
	defer unlock()

	c.seqMu.Lock()
	c.gen++
	c.seqMu.Unlock()

	keys, err := c.store.Keys(ctx, c.prefix)
	if err != nil {
		c.logger.Error("cache clear error", "error", err)
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.store.Delete(ctx, keys...); err != nil {
		c.logger.Error("cache clear error", "error", err)
	}
}

// ClearExpired evicts every expired or corrupt record under the prefix and
// returns how many were removed. It is safe to run alongside reads and writes.
func (c *Cache) ClearExpired(ctx context.Context) int {
	keys, err := c.store.Keys(ctx, c.prefix)
	if err != nil {
		c.logger.Error("clear expired cache error", "error", err)
		return 0
	}

	removed := 0
	for _, sk := range keys {
		if ctx.Err() != nil {
			break
		}
		if c.sweepOne(ctx, Key{strings.TrimPrefix(sk, c.prefix)}) {
			removed++
		}
	}
	return removed
}

func (c *Cache) sweepOne(ctx context.Context, key Key) bool {
	unlock := c.locks.lock(key)
	defer unlock()

	sk := c.storageKey(key)
	rec, err := c.store.Get(ctx, sk)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.logger.Error("cache read error", "key", key.s, "error", err)
		}
		return false
	}
	e, err := decodeEntry(rec)
	switch {
	case err != nil:
		c.corrupt.Add(1)
	case e.Expired(c.now().UnixMilli()):
		c.expired.Add(1)
	default:
		return false
	}
	if err := c.store.Delete(ctx, sk); err != nil {
		c.logger.Error("cache remove error", "key", key.s, "error", err)
		return false
	}
	return true
}

// Keys lists the keys currently stored under the prefix, expired or not.
func (c *Cache) Keys(ctx context.Context) ([]Key, error) {
	sks, err := c.store.Keys(ctx, c.prefix)
	if err != nil {
		return nil, err
	}
	keys := make([]Key, 0, len(sks))
	for _, sk := range sks {
		keys = append(keys, Key{strings.TrimPrefix(sk, c.prefix)})
	}
	return keys, nil
}

// Stats returns entry count and read outcome counters.
func (c *Cache) Stats(ctx context.Context) (models.CacheStats, error) {
	keys, err := c.store.Keys(ctx, c.prefix)
	if err != nil {
		return models.CacheStats{}, err
	}
	return models.CacheStats{
		Entries: int64(len(keys)),
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Expired: c.expired.Load(),
		Corrupt: c.corrupt.Load(),
	}, nil
}

// Close closes the underlying store.
func (c *Cache) Close() error {
	return c.store.Close()
}
