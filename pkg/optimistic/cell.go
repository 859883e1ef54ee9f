package optimistic

import (
	"context"
	"sync"
)

// Cell holds the state a screen currently renders. Mutations run through
// Mutate are serialized per cell so a rollback never discards another
// attempt's applied change.
type Cell[S any] struct {
	mu sync.RWMutex
	v  S

	attempt sync.Mutex
}

// NewCell creates a Cell holding v.
func NewCell[S any](v S) *Cell[S] {
	return &Cell[S]{v: v}
}

// Load returns the rendered state.
func (c *Cell[S]) Load() S {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.v
}

// Store replaces the rendered state.
func (c *Cell[S]) Store(v S) {
	c.mu.Lock()
	c.v = v
	c.mu.Unlock()
}

// Update replaces the rendered state with fn applied to it.
func (c *Cell[S]) Update(fn func(S) S) {
	c.mu.Lock()
	c.v = fn(c.v)
	c.mu.Unlock()
}

// Mutate runs m against c. Capture and Publish default to c.Load and c.Store.
func Mutate[S, R any](ctx context.Context, r *Runner, c *Cell[S], m Mutation[S, R]) (Outcome[S], error) {
	c.attempt.Lock()
	defer c.attempt.Unlock()

	if m.Capture == nil {
		m.Capture = c.Load
	}
	if m.Publish == nil {
		m.Publish = c.Store
	}
	return Run(ctx, r, m)
}
