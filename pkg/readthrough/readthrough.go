// Package readthrough serves cached values immediately and keeps them fresh
// in the background (stale-while-revalidate).
//
// A hit returns the cached value without touching the network and starts one
// background refresh. A miss fetches synchronously and propagates the fetch
// error. Screens that offer pull-to-refresh use Refresh, which skips the
// cache lookup entirely.
package readthrough

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/iopps/iopps-sync/pkg/cache"
)

// DefaultRefreshTimeout bounds a background refresh when no timeout is configured.
const DefaultRefreshTimeout = 30 * time.Second

// Fetcher retrieves the authoritative value from the remote service.
type Fetcher[T any] func(ctx context.Context) (T, error)

// Result is what a screen renders.
type Result[T any] struct {
	Value     T
	FromCache bool
}

// Coordinator runs reads against one Cache.
type Coordinator struct {
	cache          *cache.Cache
	coalesce       bool
	refreshTimeout time.Duration
	logger         *slog.Logger

	group singleflight.Group
	wg    sync.WaitGroup
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithCoalescing makes concurrent misses on the same key share one fetch.
func WithCoalescing(on bool) Option {
	return func(co *Coordinator) { co.coalesce = on }
}

// WithRefreshTimeout bounds each background refresh. Zero disables the bound.
func WithRefreshTimeout(d time.Duration) Option {
	return func(co *Coordinator) { co.refreshTimeout = d }
}

// WithLogger sets the logger background refresh failures are reported to.
func WithLogger(l *slog.Logger) Option {
	return func(co *Coordinator) { co.logger = l }
}

// New creates a Coordinator over c.
func New(c *cache.Cache, opts ...Option) *Coordinator {
	co := &Coordinator{
		cache:          c,
		refreshTimeout: DefaultRefreshTimeout,
		logger:         slog.Default(),
	}
	for _, o := range opts {
		o(co)
	}
	return co
}

// Cache returns the cache this coordinator reads from.
func (co *Coordinator) Cache() *cache.Cache { return co.cache }

// Wait blocks until every background refresh started so far has settled.
// A fetcher that ignores its context and never returns blocks Wait forever.
func (co *Coordinator) Wait() {
	co.wg.Wait()
}

// Read returns the cached value for key when one is valid, starting a
// background refresh, or fetches, stores and returns a fresh value.
func Read[T any](ctx context.Context, co *Coordinator, key cache.Key, fetch Fetcher[T], ttl time.Duration) (Result[T], error) {
	if v, ok := cache.Get[T](ctx, co.cache, key); ok {
		revalidate(ctx, co, key, fetch, ttl)
		return Result[T]{Value: v, FromCache: true}, nil
	}

	if co.coalesce {
		ch := co.group.DoChan(key.String(), func() (any, error) {
			// The flight outlives any one caller; each caller waits on its own ctx.
			fctx, cancel := co.detach(ctx)
			defer cancel()
			return fetchAndStore(fctx, co, key, fetch, ttl)
		})
		select {
		case <-ctx.Done():
			return Result[T]{}, ctx.Err()
		case res := <-ch:
			if res.Err != nil {
				return Result[T]{}, res.Err
			}
			if v, ok := res.Val.(T); ok {
				return Result[T]{Value: v}, nil
			}
			// Another caller shared the flight with a different T.
		}
	}

	v, err := fetchAndStore(ctx, co, key, fetch, ttl)
	if err != nil {
		return Result[T]{}, err
	}
	return Result[T]{Value: v}, nil
}

// Refresh is the force-refresh path: it fetches without consulting the
// cache and stores the result on success.
func Refresh[T any](ctx context.Context, co *Coordinator, key cache.Key, fetch Fetcher[T], ttl time.Duration) (T, error) {
	return fetchAndStore(ctx, co, key, fetch, ttl)
}

func fetchAndStore[T any](ctx context.Context, co *Coordinator, key cache.Key, fetch Fetcher[T], ttl time.Duration) (T, error) {
	v, err := fetch(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	cache.Set(ctx, co.cache, key, v, ttl)
	return v, nil
}

// detach returns a context that keeps ctx's values but not its cancellation,
// bounded by the refresh timeout.
func (co *Coordinator) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	dctx := context.WithoutCancel(ctx)
	if co.refreshTimeout > 0 {
		return context.WithTimeout(dctx, co.refreshTimeout)
	}
	return context.WithCancel(dctx)
}

// revalidate refreshes key in the background. The result is stored only if
// nothing else wrote, removed or cleared key after the refresh started.
func revalidate[T any](ctx context.Context, co *Coordinator, key cache.Key, fetch Fetcher[T], ttl time.Duration) {
	seq := co.cache.Sequence(key)

	co.wg.Add(1)
	go func() {
		defer co.wg.Done()

		rctx, cancel := co.detach(ctx)
		defer cancel()

		start := time.Now()
		v, err := fetch(rctx)
		if err != nil {
			co.logger.Warn("background refresh error", "key", key.String(), "error", err)
			return
		}
		if !cache.SetIfUnchanged(rctx, co.cache, key, v, ttl, seq) {
			co.logger.Debug("background refresh discarded", "key", key.String())
			return
		}
		co.logger.Debug("background refresh stored", "key", key.String(), "elapsed", time.Since(start))
	}()
}
