// Package memory implements cache.Store in process memory. Records do not
// survive a restart.
package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/jellydator/ttlcache/v3"

	"github.com/iopps/iopps-sync/pkg/cache"
)

// Store keeps records in a ttlcache.Cache. Expiry is decided by the record's
// own timestamp and TTL, so items are stored without a ttlcache TTL.
type Store struct {
	items *ttlcache.Cache[string, []byte]
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		items: ttlcache.New[string, []byte](
			ttlcache.WithTTL[string, []byte](ttlcache.NoTTL),
			ttlcache.WithDisableTouchOnHit[string, []byte](),
		),
	}
}

// Get returns a copy of the record for key or cache.ErrNotFound.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	item := s.items.Get(key)
	if item == nil {
		return nil, cache.ErrNotFound
	}
	return append([]byte(nil), item.Value()...), nil
}

// Set stores a copy of record under key.
func (s *Store) Set(_ context.Context, key string, record []byte) error {
	s.items.Set(key, append([]byte(nil), record...), ttlcache.NoTTL)
	return nil
}

// Delete removes keys.
func (s *Store) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		s.items.Delete(k)
	}
	return nil
}

// Keys lists keys starting with prefix in sorted order.
func (s *Store) Keys(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	for _, k := range s.items.Keys() {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Close drops all records.
func (s *Store) Close() error {
	s.items.DeleteAll()
	return nil
}
