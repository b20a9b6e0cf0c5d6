package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/talent-screener/internal/api"
	"github.com/spigell/talent-screener/internal/logger"
	"github.com/spigell/talent-screener/internal/queue"
	"github.com/spigell/talent-screener/internal/utils"
)

const (
	DefaultPollInterval = 3 * time.Second
	DefaultMaxAttempts  = 20
)

var wait = utils.WaitFor

// Poller re-checks polling items on every tick and finalises them.
type Poller struct {
	store   *queue.Store
	backend Backend
	logger  *zap.Logger

	interval    time.Duration
	maxAttempts int

	mu       sync.Mutex
	attempts map[string]int
}

// NewPoller returns a poller. maxAttempts of zero polls without bound.
func NewPoller(store *queue.Store, backend Backend, interval time.Duration, maxAttempts int, l *zap.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if maxAttempts < 0 {
		maxAttempts = 0
	}

	return &Poller{
		store:       store,
		backend:     backend,
		logger:      logger.WithFields(l),
		interval:    interval,
		maxAttempts: maxAttempts,
		attempts:    make(map[string]int),
	}
}

func (p *Poller) Interval() time.Duration {
	return p.interval
}

// Tick queries the backend once for every polling item that has a candidate
// id and returns how many were queried. With nothing polling it issues no
// requests.
func (p *Poller) Tick(ctx context.Context) int {
	var items []queue.Item
	for _, item := range p.store.ByStatus(queue.StatusPolling) {
		if item.CandidateID != "" {
			items = append(items, item)
		}
	}

	p.prune(items)

	if len(items) == 0 {
		return 0
	}

	var g errgroup.Group
	for _, item := range items {
		g.Go(func() error {
			p.check(ctx, item)
			return nil
		})
	}
	_ = g.Wait()

	return len(items)
}

// Run ticks every interval until ctx is done. With untilIdle it returns nil
// as soon as no item is polling anymore.
func (p *Poller) Run(ctx context.Context, untilIdle bool) error {
	for {
		if untilIdle && p.store.Count(queue.StatusPolling) == 0 {
			return nil
		}

		if err := wait(ctx, p.interval); err != nil {
			return err
		}

		n := p.Tick(ctx)
		p.logger.Debug("poll tick", zap.Int("queried", n))
	}
}

func (p *Poller) check(ctx context.Context, item queue.Item) {
	log := p.logger.With(logger.ItemFields(item.ID, item.FileName(), "", item.CandidateID)...)

	result, err := p.backend.GetCandidate(ctx, item.CandidateID)
	switch {
	case err == nil:
		p.forget(item.ID)
		p.finalize(log, item.ID, queue.Change{Status: queue.StatusSuccess, Result: result, Message: MessageComplete})

	case errors.Is(err, api.ErrNotReady):
		n := p.attempt(item.ID)
		if p.maxAttempts > 0 && n >= p.maxAttempts {
			p.forget(item.ID)
			p.finalize(log, item.ID, queue.Change{Status: queue.StatusError, Message: fmt.Sprintf(messageTimeout, n)})
			return
		}
		log.Debug("analysis not ready", zap.Int("attempt", n))

	case ctx.Err() != nil:
		// the caller stopped polling; the item stays polling for a later run
		log.Debug("poll interrupted", zap.Error(err))

	default:
		p.forget(item.ID)
		p.finalize(log, item.ID, queue.Change{Status: queue.StatusError, Message: fmt.Sprintf("%s: %v", MessageFetchFail, err)})
	}
}

func (p *Poller) finalize(log *zap.Logger, id string, c queue.Change) {
	if err := p.store.Update(id, c); err != nil {
		// removed or already finalised by an overlapping tick
		log.Debug("dropping poll result", zap.Error(err))
		return
	}

	if c.Status == queue.StatusError {
		log.Warn("analysis failed", zap.String("message", c.Message))
		return
	}
	log.Debug("analysis finalised", zap.String("status", string(c.Status)))
}

func (p *Poller) attempt(id string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempts[id]++
	return p.attempts[id]
}

func (p *Poller) forget(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.attempts, id)
}

// Attempts returns the number of not-ready answers recorded for id.
func (p *Poller) Attempts(id string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts[id]
}

// prune drops counters of items that are no longer polling.
func (p *Poller) prune(polling []queue.Item) {
	keep := make(map[string]struct{}, len(polling))
	for _, item := range polling {
		keep[item.ID] = struct{}{}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for id := range p.attempts {
		if _, ok := keep[id]; !ok {
			delete(p.attempts, id)
		}
	}
}
