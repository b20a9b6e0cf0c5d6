package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/talent-screener/internal/queue"
)

func newScheduler(store *queue.Store, backend *fakeBackend, limit int) *Scheduler {
	w := NewWorker(store, backend, nil).WithEncoder(nameEncoder)
	return NewScheduler(store, w, limit, nil)
}

func TestProcessRequiresJobDescription(t *testing.T) {
	t.Parallel()

	store := queue.NewStore()
	backend := newFakeBackend()
	store.Enqueue(file("a.pdf"), file("b.pdf"))

	_, err := newScheduler(store, backend, 3).Process(context.Background(), "   ")
	require.ErrorIs(t, err, ErrMissingJobDescription)

	assert.Empty(t, backend.creates())
	assert.Equal(t, 2, store.Count(queue.StatusPending))
}

func TestProcessBatchesRespectConcurrencyLimit(t *testing.T) {
	t.Parallel()

	store := queue.NewStore()
	backend := newFakeBackend()

	var mu sync.Mutex
	inflight, maxInflight, completed := 0, 0, 0
	completedAtStart := map[string]int{}
	maxUploading := 0

	backend.create = func(_ context.Context, _, cv string) (string, error) {
		mu.Lock()
		inflight++
		maxInflight = max(maxInflight, inflight)
		completedAtStart[cv] = completed
		maxUploading = max(maxUploading, store.Count(queue.StatusUploading))
		mu.Unlock()

		time.Sleep(20 * time.Millisecond)

		mu.Lock()
		inflight--
		completed++
		mu.Unlock()
		return "c-" + cv, nil
	}

	store.Enqueue(file("a.pdf"), file("b.pdf"), file("c.pdf"), file("d.pdf"), file("e.pdf"))

	summary, err := newScheduler(store, backend, 3).Process(context.Background(), "Backend Engineer")
	require.NoError(t, err)

	assert.Equal(t, Summary{Dispatched: 5, Accepted: 5, Batches: 2}, summary)
	assert.LessOrEqual(t, maxInflight, 3)
	assert.LessOrEqual(t, maxUploading, 3)
	assert.Equal(t, 3, maxInflight, "first batch runs concurrently")

	for _, name := range []string{"a.pdf", "b.pdf", "c.pdf"} {
		assert.Less(t, completedAtStart[name], 3, "%s is in the first batch", name)
	}
	for _, name := range []string{"d.pdf", "e.pdf"} {
		assert.Equal(t, 3, completedAtStart[name], "%s starts after the first batch settled", name)
	}

	assert.Equal(t, 5, store.Count(queue.StatusPolling))
}

func TestProcessRefusesReentry(t *testing.T) {
	t.Parallel()

	store := queue.NewStore()
	backend := newFakeBackend()

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	backend.create = func(_ context.Context, _, cv string) (string, error) {
		once.Do(func() { close(started) })
		<-release
		return "c-" + cv, nil
	}

	store.Enqueue(file("a.pdf"))
	s := newScheduler(store, backend, 3)

	done := make(chan error, 1)
	go func() {
		_, err := s.Process(context.Background(), "jd")
		done <- err
	}()

	<-started
	assert.True(t, s.Processing())

	_, err := s.Process(context.Background(), "jd")
	require.ErrorIs(t, err, ErrAlreadyProcessing)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, s.Processing())
	assert.Len(t, backend.creates(), 1)
}

func TestProcessOnlySchedulesItemsPendingAtStart(t *testing.T) {
	t.Parallel()

	store := queue.NewStore()
	backend := newFakeBackend()

	var once sync.Once
	var late string
	backend.create = func(_ context.Context, _, cv string) (string, error) {
		once.Do(func() { late = store.Enqueue(file("late.pdf"))[0].ID })
		return "c-" + cv, nil
	}

	store.Enqueue(file("a.pdf"))
	summary, err := newScheduler(store, backend, 3).Process(context.Background(), "jd")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Dispatched)

	item, ok := store.Get(late)
	require.True(t, ok)
	assert.Equal(t, queue.StatusPending, item.Status)
}

func TestProcessIgnoresNonPendingItems(t *testing.T) {
	t.Parallel()

	store := queue.NewStore()
	backend := newFakeBackend()
	pollingItem(t, store, "old.pdf", "c-old")
	store.Enqueue(file("new.pdf"))

	summary, err := newScheduler(store, backend, 3).Process(context.Background(), "jd")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Dispatched)
	assert.Equal(t, []string{"new.pdf"}, backend.creates())
}

func TestProcessCountsFailures(t *testing.T) {
	t.Parallel()

	store := queue.NewStore()
	backend := newFakeBackend()
	backend.create = func(_ context.Context, _, cv string) (string, error) {
		if cv == "bad.pdf" {
			return "", errors.New("boom")
		}
		return "c-" + cv, nil
	}

	store.Enqueue(file("good.pdf"), file("bad.pdf"))
	summary, err := newScheduler(store, backend, 1).Process(context.Background(), "jd")
	require.NoError(t, err)
	assert.Equal(t, Summary{Dispatched: 2, Accepted: 1, Failed: 1, Batches: 2}, summary)
}

func TestProcessStopsOnCancelledContext(t *testing.T) {
	t.Parallel()

	store := queue.NewStore()
	backend := newFakeBackend()
	for i := 0; i < 4; i++ {
		store.Enqueue(file(fmt.Sprintf("%d.pdf", i)))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := newScheduler(store, backend, 2).Process(ctx, "jd")
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Dispatched)
	assert.Equal(t, 4, store.Count(queue.StatusPending))
}

func TestNewSchedulerDefaultsLimit(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DefaultConcurrency, newScheduler(queue.NewStore(), newFakeBackend(), 0).Limit())
}
