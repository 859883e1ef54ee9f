package optimistic_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iopps/iopps-sync/pkg/optimistic"
)

type item struct {
	ID    string
	Read  bool
	Title string
	Tags  []string
}

type inbox struct {
	Items  []item
	Unread int
}

func sampleInbox() inbox {
	return inbox{
		Items: []item{
			{ID: "a", Title: "Welcome", Tags: []string{"system"}},
			{ID: "b", Title: "New job", Read: true},
			{ID: "c", Title: "Message", Tags: []string{"chat", "urgent"}},
		},
		Unread: 2,
	}
}

func markAllRead(s inbox) inbox {
	items := slices.Clone(s.Items)
	for i := range items {
		items[i].Read = true
	}
	return inbox{Items: items, Unread: 0}
}

type recorder struct {
	mu       sync.Mutex
	attempts []optimistic.Attempt
}

func (r *recorder) Observe(_ context.Context, a optimistic.Attempt) {
	r.mu.Lock()
	r.attempts = append(r.attempts, a)
	r.mu.Unlock()
}

func TestRollbackRestoresExactState(t *testing.T) {
	cell := optimistic.NewCell(sampleInbox())
	errDenied := errors.New("permission denied")

	var published []inbox
	out, err := optimistic.Run(context.Background(), nil, optimistic.Mutation[inbox, struct{}]{
		Name:    "mark_all_read",
		Capture: cell.Load,
		Apply:   markAllRead,
		Commit: func(context.Context) (struct{}, error) {
			assert.Equal(t, 0, cell.Load().Unread, "applied state is rendered before commit")
			return struct{}{}, errDenied
		},
		Publish: func(s inbox) {
			published = append(published, s)
			cell.Store(s)
		},
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, errDenied)
	assert.ErrorIs(t, err, optimistic.ErrRolledBack)

	var rb *optimistic.RollbackError
	require.ErrorAs(t, err, &rb)
	assert.Equal(t, "mark_all_read", rb.Name)
	assert.True(t, rb.Retryable())

	assert.Equal(t, optimistic.RolledBack, out.Phase)
	assert.Equal(t, sampleInbox(), cell.Load())
	assert.Equal(t, sampleInbox(), out.State)
	require.Len(t, published, 2)
	assert.Equal(t, 0, published[0].Unread)
}

func TestReconcileMergesResult(t *testing.T) {
	cell := optimistic.NewCell([]item{{ID: "a"}})

	out, err := optimistic.Mutate(context.Background(), nil, cell, optimistic.Mutation[[]item, item]{
		Name: "send",
		Apply: func(s []item) []item {
			return append(slices.Clone(s), item{ID: "temp-1", Title: "hello"})
		},
		Commit: func(context.Context) (item, error) {
			return item{ID: "srv-9", Title: "hello"}, nil
		},
		Reconcile: func(applied []item, res item) []item {
			out := slices.Clone(applied)
			for i := range out {
				if out[i].ID == "temp-1" {
					out[i] = res
				}
			}
			return out
		},
	})

	require.NoError(t, err)
	assert.Equal(t, optimistic.Reconciled, out.Phase)
	assert.Equal(t, []item{{ID: "a"}, {ID: "srv-9", Title: "hello"}}, cell.Load())
}

func TestNilReconcileKeepsAppliedState(t *testing.T) {
	cell := optimistic.NewCell(3)
	out, err := optimistic.Mutate(context.Background(), nil, cell, optimistic.Mutation[int, string]{
		Apply:  func(n int) int { return n + 1 },
		Commit: func(context.Context) (string, error) { return "ok", nil },
	})
	require.NoError(t, err)
	assert.Equal(t, 4, out.State)
	assert.Equal(t, 4, cell.Load())
}

func TestTimeoutRollsBackEvenIfCommitIgnoresContext(t *testing.T) {
	cell := optimistic.NewCell(1)
	r := optimistic.NewRunner(optimistic.WithTimeout(20 * time.Millisecond))

	block := make(chan struct{})
	defer close(block)

	out, err := optimistic.Mutate(context.Background(), r, cell, optimistic.Mutation[int, int]{
		Apply: func(n int) int { return n * 10 },
		Commit: func(context.Context) (int, error) {
			<-block
			return 0, nil
		},
	})

	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, optimistic.RolledBack, out.Phase)
	assert.Equal(t, 1, cell.Load())
}

func TestCustomRollbackIsUsed(t *testing.T) {
	cell := optimistic.NewCell("draft")
	var restored string
	_, err := optimistic.Mutate(context.Background(), nil, cell, optimistic.Mutation[string, int]{
		Apply:    func(string) string { return "" },
		Commit:   func(context.Context) (int, error) { return 0, errors.New("offline") },
		Rollback: func(s string) { restored = s; cell.Store(s) },
	})
	require.Error(t, err)
	assert.Equal(t, "draft", restored)
	assert.Equal(t, "draft", cell.Load())
}

func TestObserverSeesEveryAttempt(t *testing.T) {
	rec := &recorder{}
	r := optimistic.NewRunner(optimistic.WithObserver(rec))
	cell := optimistic.NewCell(0)
	ctx := context.Background()

	_, err := optimistic.Mutate(ctx, r, cell, optimistic.Mutation[int, int]{
		Name: "inc", Key: "counter",
		Apply:  func(n int) int { return n + 1 },
		Commit: func(context.Context) (int, error) { return 1, nil },
	})
	require.NoError(t, err)

	_, err = optimistic.Mutate(ctx, r, cell, optimistic.Mutation[int, int]{
		Name: "inc", Key: "counter",
		Apply:  func(n int) int { return n + 1 },
		Commit: func(context.Context) (int, error) { return 0, errors.New("boom") },
	})
	require.Error(t, err)

	require.Len(t, rec.attempts, 2)
	assert.Equal(t, optimistic.Reconciled, rec.attempts[0].Phase)
	assert.NoError(t, rec.attempts[0].Err)
	assert.Equal(t, optimistic.RolledBack, rec.attempts[1].Phase)
	assert.EqualError(t, rec.attempts[1].Err, "boom")
	assert.Equal(t, "counter", rec.attempts[1].Key)
	assert.Equal(t, 1, cell.Load())
}

func TestConcurrentMutationsOnOneCellAreSerialized(t *testing.T) {
	cell := optimistic.NewCell(0)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fail := i%2 == 0
			_, _ = optimistic.Mutate(ctx, nil, cell, optimistic.Mutation[int, int]{
				Apply: func(n int) int { return n + 1 },
				Commit: func(context.Context) (int, error) {
					if fail {
						return 0, errors.New("nope")
					}
					return 0, nil
				},
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, cell.Load(), "only successful attempts leave a trace")
}

func TestPhaseStrings(t *testing.T) {
	assert.Equal(t, "idle", optimistic.Idle.String())
	assert.Equal(t, "applied", optimistic.Applied.String())
	assert.Equal(t, "reconciled", optimistic.Reconciled.String())
	assert.Equal(t, "rolled_back", optimistic.RolledBack.String())
	assert.False(t, optimistic.Applied.Terminal())
	assert.True(t, optimistic.RolledBack.Terminal())
}
