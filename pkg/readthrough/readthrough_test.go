package readthrough_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iopps/iopps-sync/pkg/cache"
	"github.com/iopps/iopps-sync/pkg/cache/memory"
	"github.com/iopps/iopps-sync/pkg/models"
	"github.com/iopps/iopps-sync/pkg/readthrough"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func setup(t *testing.T, opts ...readthrough.Option) (*readthrough.Coordinator, *memory.Store, *fakeClock) {
	t.Helper()
	store := memory.New()
	clock := &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
	c := cache.New(store, cache.WithClock(clock.Now))
	co := readthrough.New(c, opts...)
	t.Cleanup(func() {
		co.Wait()
		_ = c.Close()
	})
	return co, store, clock
}

func value[T any](v T) readthrough.Fetcher[T] {
	return func(context.Context) (T, error) { return v, nil }
}

func failing[T any](err error) readthrough.Fetcher[T] {
	return func(context.Context) (T, error) {
		var zero T
		return zero, err
	}
}

// gated blocks until release is closed, then returns v and err.
func gated[T any](release <-chan struct{}, v T, err error) readthrough.Fetcher[T] {
	return func(context.Context) (T, error) {
		<-release
		return v, err
	}
}

func TestMissFetchesAndStores(t *testing.T) {
	co, _, _ := setup(t)
	ctx := context.Background()

	res, err := readthrough.Read(ctx, co, cache.Jobs, value([]string{"a"}), cache.TTLMedium)
	require.NoError(t, err)
	assert.False(t, res.FromCache)
	assert.Equal(t, []string{"a"}, res.Value)

	got, ok := cache.Get[[]string](ctx, co.Cache(), cache.Jobs)
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, got)
}

func TestHitDoesNotWaitForFetcher(t *testing.T) {
	co, _, _ := setup(t)
	ctx := context.Background()
	cache.Set(ctx, co.Cache(), cache.Jobs, "cached", cache.TTLMedium)

	release := make(chan struct{})
	defer close(release)

	done := make(chan readthrough.Result[string], 1)
	go func() {
		res, err := readthrough.Read(ctx, co, cache.Jobs, gated(release, "", errors.New("never")), cache.TTLMedium)
		assert.NoError(t, err)
		done <- res
	}()

	select {
	case res := <-done:
		assert.True(t, res.FromCache)
		assert.Equal(t, "cached", res.Value)
	case <-time.After(2 * time.Second):
		t.Fatal("Read blocked on the fetcher")
	}
}

func TestBackgroundRefreshVisibleOnNextRead(t *testing.T) {
	co, _, _ := setup(t)
	ctx := context.Background()
	cache.Set(ctx, co.Cache(), cache.Jobs, "v1", cache.TTLMedium)

	res, err := readthrough.Read(ctx, co, cache.Jobs, value("v2"), cache.TTLMedium)
	require.NoError(t, err)
	assert.Equal(t, "v1", res.Value)
	co.Wait()

	var calls atomic.Int32
	res, err = readthrough.Read(ctx, co, cache.Jobs, func(context.Context) (string, error) {
		calls.Add(1)
		return "v3", nil
	}, cache.TTLMedium)
	require.NoError(t, err)
	assert.True(t, res.FromCache)
	assert.Equal(t, "v2", res.Value)
	co.Wait()
	assert.Equal(t, int32(1), calls.Load(), "one background call per hit")
}

func TestFailedRefreshKeepsEntry(t *testing.T) {
	co, _, _ := setup(t)
	ctx := context.Background()
	cache.Set(ctx, co.Cache(), cache.Jobs, "v1", cache.TTLMedium)

	_, err := readthrough.Read(ctx, co, cache.Jobs, failing[string](errors.New("offline")), cache.TTLMedium)
	require.NoError(t, err)
	co.Wait()

	got, ok := cache.Get[string](ctx, co.Cache(), cache.Jobs)
	require.True(t, ok)
	assert.Equal(t, "v1", got)
}

func TestMissPropagatesFetchError(t *testing.T) {
	co, store, _ := setup(t)
	ctx := context.Background()
	errOffline := errors.New("offline")

	_, err := readthrough.Read(ctx, co, cache.Jobs, failing[string](errOffline), cache.TTLMedium)
	require.ErrorIs(t, err, errOffline)

	_, err = store.Get(ctx, "@iopps:jobs")
	assert.ErrorIs(t, err, cache.ErrNotFound, "nothing is written on a failed miss")
}

func TestRefreshSkipsCache(t *testing.T) {
	co, _, _ := setup(t)
	ctx := context.Background()
	cache.Set(ctx, co.Cache(), cache.Jobs, "old", cache.TTLMedium)

	got, err := readthrough.Refresh(ctx, co, cache.Jobs, value("new"), cache.TTLMedium)
	require.NoError(t, err)
	assert.Equal(t, "new", got)

	cached, _ := cache.Get[string](ctx, co.Cache(), cache.Jobs)
	assert.Equal(t, "new", cached)
}

func TestForceRefreshWinsOverSlowBackgroundRefresh(t *testing.T) {
	co, _, _ := setup(t)
	ctx := context.Background()
	cache.Set(ctx, co.Cache(), cache.Jobs, "v1", cache.TTLMedium)

	release := make(chan struct{})
	_, err := readthrough.Read(ctx, co, cache.Jobs, gated(release, "stale", nil), cache.TTLMedium)
	require.NoError(t, err)

	_, err = readthrough.Refresh(ctx, co, cache.Jobs, value("forced"), cache.TTLMedium)
	require.NoError(t, err)

	close(release)
	co.Wait()

	got, _ := cache.Get[string](ctx, co.Cache(), cache.Jobs)
	assert.Equal(t, "forced", got)
}

func TestBackgroundRefreshIsDetachedFromCaller(t *testing.T) {
	co, _, _ := setup(t)
	cache.Set(context.Background(), co.Cache(), cache.Jobs, "v1", cache.TTLMedium)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var fetchErr atomic.Value
	_, err := readthrough.Read(ctx, co, cache.Jobs, func(fctx context.Context) (string, error) {
		if fctx.Err() != nil {
			fetchErr.Store(fctx.Err())
		}
		return "v2", nil
	}, cache.TTLMedium)
	require.NoError(t, err)
	co.Wait()

	assert.Nil(t, fetchErr.Load())
	got, _ := cache.Get[string](context.Background(), co.Cache(), cache.Jobs)
	assert.Equal(t, "v2", got)
}

func TestRefreshTimeoutCancelsFetch(t *testing.T) {
	co, _, _ := setup(t, readthrough.WithRefreshTimeout(10*time.Millisecond))
	ctx := context.Background()
	cache.Set(ctx, co.Cache(), cache.Jobs, "v1", cache.TTLMedium)

	_, err := readthrough.Read(ctx, co, cache.Jobs, func(fctx context.Context) (string, error) {
		<-fctx.Done()
		return "", fctx.Err()
	}, cache.TTLMedium)
	require.NoError(t, err)
	co.Wait()

	got, _ := cache.Get[string](ctx, co.Cache(), cache.Jobs)
	assert.Equal(t, "v1", got)
}

func TestJobsScenario(t *testing.T) {
	co, _, clock := setup(t)
	ctx := context.Background()

	jobs := []models.Job{{ID: "1", Title: "Band Administrator"}}
	cache.Set(ctx, co.Cache(), cache.Jobs, jobs, cache.TTLMedium)

	// t=120s: served from cache while the remote call hangs.
	clock.Advance(120 * time.Second)
	release := make(chan struct{})
	res, err := readthrough.Read(ctx, co, cache.Jobs, gated[[]models.Job](release, nil, errors.New("timeout")), cache.TTLMedium)
	require.NoError(t, err)
	assert.True(t, res.FromCache)
	assert.Equal(t, jobs, res.Value)
	close(release)
	co.Wait()

	// t=310s: expired, the fetch is awaited.
	clock.Advance(190 * time.Second)
	fresh := []models.Job{{ID: "2", Title: "Youth Coordinator"}}
	var calls atomic.Int32
	res, err = readthrough.Read(ctx, co, cache.Jobs, func(context.Context) ([]models.Job, error) {
		calls.Add(1)
		return fresh, nil
	}, cache.TTLMedium)
	require.NoError(t, err)
	assert.False(t, res.FromCache)
	assert.Equal(t, fresh, res.Value)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCoalescedMissesShareOneFetch(t *testing.T) {
	co, _, _ := setup(t, readthrough.WithCoalescing(true))
	ctx := context.Background()

	var calls atomic.Int32
	release := make(chan struct{})
	fetch := func(context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "shared", nil
	}

	const readers = 5
	var wg sync.WaitGroup
	results := make(chan readthrough.Result[string], readers)
	for range readers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := readthrough.Read(ctx, co, cache.Conferences, fetch, cache.TTLLong)
			assert.NoError(t, err)
			results <- res
		}()
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(results)

	for res := range results {
		assert.Equal(t, "shared", res.Value)
		assert.False(t, res.FromCache)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestCoalescedMissSurvivesLeaderCancel(t *testing.T) {
	co, _, _ := setup(t, readthrough.WithCoalescing(true))

	started := make(chan struct{}, 2)
	release := make(chan struct{})
	fetch := func(ctx context.Context) (string, error) {
		started <- struct{}{}
		select {
		case <-release:
			return "fresh", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := readthrough.Read(leaderCtx, co, cache.Powwows, fetch, cache.TTLLong)
		leaderErr <- err
	}()
	<-started

	type outcome struct {
		res readthrough.Result[string]
		err error
	}
	follower := make(chan outcome, 1)
	go func() {
		res, err := readthrough.Read(context.Background(), co, cache.Powwows, fetch, cache.TTLLong)
		follower <- outcome{res, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelLeader()
	select {
	case err := <-leaderErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller did not return")
	}

	close(release)
	got := <-follower
	require.NoError(t, got.err)
	assert.Equal(t, "fresh", got.res.Value)

	v, ok := cache.Get[string](context.Background(), co.Cache(), cache.Powwows)
	require.True(t, ok)
	assert.Equal(t, "fresh", v)
}
