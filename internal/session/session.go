// Package session owns the queue and the pipeline for one screening run.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/talent-screener/internal/cvfile"
	"github.com/spigell/talent-screener/internal/logger"
	"github.com/spigell/talent-screener/internal/pipeline"
	"github.com/spigell/talent-screener/internal/queue"
)

var ErrNoBackend = errors.New("backend is required")

type Options struct {
	Backend pipeline.Backend
	Logger  *zap.Logger

	// Encoder replaces cvfile.Encode when set.
	Encoder pipeline.Encoder

	Concurrency   int
	PollInterval  time.Duration
	MaxAttempts   int
	SubmitTimeout time.Duration
}

// Session is the state container shared by everything that reads or
// mutates the queue during one run.
type Session struct {
	store     *queue.Store
	scheduler *pipeline.Scheduler
	poller    *pipeline.Poller
	logger    *zap.Logger

	mu   sync.Mutex
	poll *pollRun
}

func New(opts Options) (*Session, error) {
	if opts.Backend == nil {
		return nil, ErrNoBackend
	}

	l := logger.WithFields(opts.Logger)
	store := queue.NewStore()

	worker := pipeline.NewWorker(store, opts.Backend, l)
	if opts.Encoder != nil {
		worker.WithEncoder(opts.Encoder)
	}
	worker.Timeout = opts.SubmitTimeout

	return &Session{
		store:     store,
		scheduler: pipeline.NewScheduler(store, worker, opts.Concurrency, l),
		poller:    pipeline.NewPoller(store, opts.Backend, opts.PollInterval, opts.MaxAttempts, l),
		logger:    l,
	}, nil
}

// OnChange registers a queue observer.
func (s *Session) OnChange(fn func(queue.Event)) {
	s.store.OnChange(fn)
}

// Add enqueues files as pending items.
func (s *Session) Add(files ...*cvfile.File) []queue.Item {
	return s.store.Enqueue(files...)
}

// Remove deletes a pending or finished item. Items being uploaded or polled
// are refused with queue.ErrInFlight.
func (s *Session) Remove(id string) error {
	return s.store.RemoveSettled(id)
}

// Clear empties the queue unless something is in flight.
func (s *Session) Clear() (int, error) {
	if s.scheduler.Processing() {
		return 0, queue.ErrInFlight
	}
	return s.store.ClearSettled()
}

// Process submits every pending item.
func (s *Session) Process(ctx context.Context, jobDescription string) (pipeline.Summary, error) {
	return s.scheduler.Process(ctx, jobDescription)
}

// Poll checks polling items until none is left or ctx is done.
func (s *Session) Poll(ctx context.Context) error {
	return s.poller.Run(ctx, true)
}

// pollRun is one background poller loop.
type pollRun struct {
	ctx  context.Context
	stop func()
	done chan struct{}
}

// StartPolling runs the poller in the background until the returned stop
// function is called or ctx is done. While a poller is running, further calls
// return its stop function; once it has ended a new one is started.
func (s *Session) StartPolling(ctx context.Context) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run := s.poll; run != nil {
		if run.ctx.Err() == nil {
			return run.stop
		}
		// the loop closes done before it takes the lock
		<-run.done
		s.poll = nil
	}

	ctx, cancel := context.WithCancel(ctx)
	run := &pollRun{ctx: ctx, done: make(chan struct{})}

	go func() {
		err := s.poller.Run(ctx, false)
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("background polling stopped", zap.Error(err))
		}

		cancel()
		close(run.done)

		s.mu.Lock()
		if s.poll == run {
			s.poll = nil
		}
		s.mu.Unlock()
	}()

	var once sync.Once
	run.stop = func() {
		once.Do(func() {
			cancel()
			<-run.done
		})
	}
	s.poll = run

	return run.stop
}

// Polling reports whether a background poller is running.
func (s *Session) Polling() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.poll != nil && s.poll.ctx.Err() == nil
}

// Busy reports whether a drain is running or an item is still in flight.
func (s *Session) Busy() bool {
	return s.scheduler.Processing() || s.store.InFlight()
}

// Items returns the queue in insertion order.
func (s *Session) Items() []queue.Item {
	return s.store.Snapshot()
}

// Counts returns the number of items per status.
func (s *Session) Counts() map[queue.Status]int {
	counts := make(map[queue.Status]int)
	for _, item := range s.store.Snapshot() {
		counts[item.Status]++
	}
	return counts
}
