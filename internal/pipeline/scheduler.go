package pipeline

import (
	"context"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/talent-screener/internal/logger"
	"github.com/spigell/talent-screener/internal/queue"
	"github.com/spigell/talent-screener/internal/utils"
)

const DefaultConcurrency = 3

// Summary describes one drain of the queue.
type Summary struct {
	Dispatched int
	Accepted   int
	Failed     int
	Skipped    int
	Batches    int
}

// Scheduler drains pending items through a Worker in fixed size batches.
// A batch is fully settled before the next one starts.
type Scheduler struct {
	store  *queue.Store
	worker *Worker
	limit  int
	logger *zap.Logger

	processing atomic.Bool
}

func NewScheduler(store *queue.Store, worker *Worker, limit int, l *zap.Logger) *Scheduler {
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	return &Scheduler{
		store:  store,
		worker: worker,
		limit:  limit,
		logger: logger.WithFields(l),
	}
}

// Limit returns the batch size.
func (s *Scheduler) Limit() int {
	return s.limit
}

// Processing reports whether a drain is running.
func (s *Scheduler) Processing() bool {
	return s.processing.Load()
}

// Process submits every item that is pending at the moment of the call.
// It fails fast, before any network call, when the job description is blank
// and refuses to run concurrently with itself.
func (s *Scheduler) Process(ctx context.Context, jobDescription string) (Summary, error) {
	if strings.TrimSpace(jobDescription) == "" {
		return Summary{}, ErrMissingJobDescription
	}

	if !s.processing.CompareAndSwap(false, true) {
		return Summary{}, ErrAlreadyProcessing
	}
	defer s.processing.Store(false)

	pending := s.store.ByStatus(queue.StatusPending)
	batches := utils.Chunk(pending, s.limit)

	s.logger.Info("processing queue",
		zap.Int("pending", len(pending)),
		zap.Int("batches", len(batches)),
		zap.Int("concurrency", s.limit),
		zap.String("job_description", logger.TruncateForLog(jobDescription, 60)),
	)

	var accepted, failed, skipped atomic.Int64
	summary := Summary{}

	for _, batch := range batches {
		if ctx.Err() != nil {
			s.logger.Warn("stopping queue processing", zap.Error(ctx.Err()))
			break
		}

		summary.Batches++
		summary.Dispatched += len(batch)

		var g errgroup.Group
		for _, item := range batch {
			g.Go(func() error {
				switch s.worker.Submit(ctx, item, jobDescription) {
				case queue.StatusPolling:
					accepted.Add(1)
				case queue.StatusError:
					failed.Add(1)
				default:
					skipped.Add(1)
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	summary.Accepted = int(accepted.Load())
	summary.Failed = int(failed.Load())
	summary.Skipped = int(skipped.Load())

	s.logger.Info("queue processed",
		zap.Int("accepted", summary.Accepted),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
	)

	return summary, nil
}
