package pipeline

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spigell/talent-screener/internal/api"
	"github.com/spigell/talent-screener/internal/cvfile"
	"github.com/spigell/talent-screener/internal/queue"
)

type fakeResult struct {
	candidate *api.Candidate
	err       error
}

type fakeBackend struct {
	mu          sync.Mutex
	create      func(ctx context.Context, jd, cv string) (string, error)
	onGet       func(id string)
	results     map[string][]fakeResult
	createCalls []string
	getCalls    []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{results: make(map[string][]fakeResult)}
}

func (f *fakeBackend) enqueue(id string, candidate *api.Candidate, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[id] = append(f.results[id], fakeResult{candidate: candidate, err: err})
}

func (f *fakeBackend) CreateCandidate(ctx context.Context, jd, cv string) (string, error) {
	f.mu.Lock()
	f.createCalls = append(f.createCalls, cv)
	create := f.create
	f.mu.Unlock()

	if create == nil {
		return "c-" + cv, nil
	}
	return create(ctx, jd, cv)
}

func (f *fakeBackend) GetCandidate(ctx context.Context, id string) (*api.Candidate, error) {
	f.mu.Lock()
	f.getCalls = append(f.getCalls, id)
	onGet := f.onGet
	var res fakeResult
	if queued := f.results[id]; len(queued) > 0 {
		res = queued[0]
		f.results[id] = queued[1:]
	} else {
		res = fakeResult{err: api.ErrNotReady}
	}
	f.mu.Unlock()

	if onGet != nil {
		onGet(id)
	}
	return res.candidate, res.err
}

func (f *fakeBackend) creates() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.createCalls...)
}

func (f *fakeBackend) gets() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.getCalls...)
}

// nameEncoder encodes a file as its name, so backend calls identify the file.
func nameEncoder(_ context.Context, f *cvfile.File) (string, error) {
	return f.Name, nil
}

func file(name string) *cvfile.File {
	return cvfile.FromBytes(name, []byte("%PDF-1.4"))
}

// pollingItem enqueues a file and moves it to polling with the candidate id.
func pollingItem(t *testing.T, s *queue.Store, name, candidateID string) string {
	t.Helper()
	id := s.Enqueue(file(name))[0].ID
	require.NoError(t, s.Update(id, queue.Change{Status: queue.StatusUploading}))
	require.NoError(t, s.Update(id, queue.Change{Status: queue.StatusPolling, CandidateID: candidateID}))
	return id
}

// statusRecorder collects every status each item passes through.
type statusRecorder struct {
	mu   sync.Mutex
	seen map[string][]queue.Status
}

func recordStatuses(s *queue.Store) *statusRecorder {
	r := &statusRecorder{seen: make(map[string][]queue.Status)}
	s.OnChange(func(e queue.Event) {
		if e.Kind != queue.EventUpdated {
			return
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		r.seen[e.Item.ID] = append(r.seen[e.Item.ID], e.Item.Status)
	})
	return r
}

func (r *statusRecorder) statuses(id string) []queue.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]queue.Status(nil), r.seen[id]...)
}
