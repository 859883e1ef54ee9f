// Package optimistic applies a local change before the remote write confirms
// it, then either reconciles with the authoritative result or restores the
// exact pre-mutation state.
//
// Every attempt moves Idle → Applied → Reconciled or RolledBack and always
// reaches a terminal phase, including when the commit times out.
package optimistic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Phase is the lifecycle position of one mutation attempt.
type Phase int

const (
	Idle Phase = iota
	Applied
	Reconciled
	RolledBack
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Applied:
		return "applied"
	case Reconciled:
		return "reconciled"
	case RolledBack:
		return "rolled_back"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Terminal reports whether no further transition can happen.
func (p Phase) Terminal() bool { return p == Reconciled || p == RolledBack }

// ErrRolledBack matches every error returned for a rolled back attempt.
var ErrRolledBack = errors.New("optimistic update rolled back")

// RollbackError is returned when the remote write failed and the rendered
// state was restored. The user may retry the same action.
type RollbackError struct {
	Name string
	Err  error
}

func (e *RollbackError) Error() string {
	return fmt.Sprintf("%s: rolled back: %v", e.Name, e.Err)
}

func (e *RollbackError) Unwrap() []error { return []error{ErrRolledBack, e.Err} }

// Retryable is always true: the state is back where it was before the attempt.
func (e *RollbackError) Retryable() bool { return true }

// Mutation describes one optimistic write over rendered state S with a
// remote result R.
//
// Apply must return a new value rather than modify its argument, otherwise
// the captured snapshot is lost. Use slices.Clone or maps.Clone on
// collections.
type Mutation[S, R any] struct {
	// Name and Key identify the attempt in logs and the journal.
	Name string
	Key  string

	Capture func() S
	Apply   func(S) S
	Commit  func(ctx context.Context) (R, error)
	// Reconcile merges the remote result into the applied state. When nil the
	// applied state is kept.
	Reconcile func(applied S, result R) S
	// Rollback restores the snapshot. When nil the snapshot is published.
	Rollback func(snapshot S)
	Publish  func(S)
}

// Outcome is the terminal state of one attempt.
type Outcome[S any] struct {
	Phase   Phase
	State   S
	Latency time.Duration
}

// Attempt is what an Observer is told about a finished mutation.
type Attempt struct {
	Name    string
	Key     string
	Phase   Phase
	Err     error
	Latency time.Duration
	At      time.Time
}

// Observer receives every finished attempt.
type Observer interface {
	Observe(ctx context.Context, a Attempt)
}

// Runner holds the policy shared by all mutations: commit timeout, logger
// and observer.
type Runner struct {
	timeout  time.Duration
	logger   *slog.Logger
	observer Observer
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithTimeout bounds each commit. A commit that outlives it is rolled back.
func WithTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) { r.timeout = d }
}

func WithLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

func WithObserver(o Observer) RunnerOption {
	return func(r *Runner) { r.observer = o }
}

// NewRunner creates a Runner. Without WithTimeout commits are bounded only by
// the caller's context.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{logger: slog.Default()}
	for _, o := range opts {
		o(r)
	}
	return r
}

type commitResult[R any] struct {
	res R
	err error
}

// Run executes m: capture, apply and publish, commit, then reconcile or roll
// back. On failure the returned error is a *RollbackError.
func Run[S, R any](ctx context.Context, r *Runner, m Mutation[S, R]) (Outcome[S], error) {
	if r == nil {
		r = NewRunner()
	}
	start := time.Now()

	snapshot := m.Capture()
	applied := m.Apply(snapshot)
	m.Publish(applied)

	res, err := commit(ctx, r.timeout, m.Commit)
	latency := time.Since(start)

	if err != nil {
		if m.Rollback != nil {
			m.Rollback(snapshot)
		} else {
			m.Publish(snapshot)
		}
		r.logger.Warn("optimistic update rolled back", "name", m.Name, "key", m.Key, "error", err)
		r.observe(ctx, m.Name, m.Key, RolledBack, err, latency, start)
		return Outcome[S]{Phase: RolledBack, State: snapshot, Latency: latency},
			&RollbackError{Name: m.Name, Err: err}
	}

	final := applied
	if m.Reconcile != nil {
		final = m.Reconcile(applied, res)
	}
	m.Publish(final)
	r.observe(ctx, m.Name, m.Key, Reconciled, nil, latency, start)
	return Outcome[S]{Phase: Reconciled, State: final, Latency: latency}, nil
}

// commit runs fn and gives up when ctx or the timeout expires, even if fn
// ignores its context.
func commit[R any](ctx context.Context, timeout time.Duration, fn func(context.Context) (R, error)) (R, error) {
	cctx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ch := make(chan commitResult[R], 1)
	go func() {
		res, err := fn(cctx)
		ch <- commitResult[R]{res, err}
	}()

	select {
	case out := <-ch:
		return out.res, out.err
	case <-cctx.Done():
		var zero R
		return zero, fmt.Errorf("commit: %w", cctx.Err())
	}
}

func (r *Runner) observe(ctx context.Context, name, key string, p Phase, err error, latency time.Duration, at time.Time) {
	if r.observer == nil {
		return
	}
	r.observer.Observe(context.WithoutCancel(ctx), Attempt{
		Name:    name,
		Key:     key,
		Phase:   p,
		Err:     err,
		Latency: latency,
		At:      at,
	})
}
