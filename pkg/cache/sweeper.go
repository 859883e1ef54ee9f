package cache

import (
	"context"
	"sync"
	"time"
)

// DefaultSweepInterval is used when NewSweeper gets a non-positive interval.
const DefaultSweepInterval = 10 * time.Minute

// Sweeper periodically evicts expired records from a Cache.
type Sweeper struct {
	cache    *Cache
	interval time.Duration
	done     chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
}

// NewSweeper runs one sweep right away and then one every interval until
// Close is called. A non-positive interval means DefaultSweepInterval.
func NewSweeper(c *Cache, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	s := &Sweeper{
		cache:    c,
		interval: interval,
		done:     make(chan struct{}),
	}
	s.wg.Add(1)
	go s.loop()
	return s
}

func (s *Sweeper) loop() {
	defer s.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-s.done
		cancel()
	}()

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	if n := s.cache.ClearExpired(ctx); n > 0 {
		s.cache.logger.Info("swept expired cache entries", "removed", n)
	}
}

// Interval returns the time between sweeps.
func (s *Sweeper) Interval() time.Duration { return s.interval }

// Close stops the sweeper and waits for an in-progress sweep to finish.
func (s *Sweeper) Close() {
	s.once.Do(func() { close(s.done) })
	s.wg.Wait()
}
