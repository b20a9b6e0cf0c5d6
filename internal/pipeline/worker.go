package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/talent-screener/internal/api"
	"github.com/spigell/talent-screener/internal/cvfile"
	"github.com/spigell/talent-screener/internal/logger"
	"github.com/spigell/talent-screener/internal/queue"
)

// Worker submits a single queued item to the backend.
type Worker struct {
	store   *queue.Store
	backend Backend
	encode  Encoder
	logger  *zap.Logger

	// Timeout bounds one create call. Zero relies on the HTTP client timeout.
	Timeout time.Duration
}

func NewWorker(store *queue.Store, backend Backend, l *zap.Logger) *Worker {
	return &Worker{
		store:   store,
		backend: backend,
		encode:  cvfile.Encode,
		logger:  logger.WithFields(l),
	}
}

// WithEncoder replaces the file encoder.
func (w *Worker) WithEncoder(enc Encoder) *Worker {
	w.encode = enc
	return w
}

// Submit moves item from pending to uploading, encodes and submits it, and
// leaves it either polling with a candidate id or in error. Failures are
// recorded on the item, never returned. The returned status is the one the
// worker wrote last; an empty status means the item was gone or not pending.
func (w *Worker) Submit(ctx context.Context, item queue.Item, jobDescription string) queue.Status {
	log := w.logger.With(logger.ItemFields(item.ID, item.FileName(), "", "")...)

	if err := w.store.Update(item.ID, queue.Change{Status: queue.StatusUploading, Message: MessageSending}); err != nil {
		log.Debug("skipping item", zap.Error(err))
		return ""
	}

	encoded, err := w.encode(ctx, item.File)
	if err != nil {
		return w.fail(log, item.ID, fmt.Sprintf("Could not read file: %v", err), err)
	}

	if w.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.Timeout)
		defer cancel()
	}

	candidateID, err := w.backend.CreateCandidate(ctx, jobDescription, encoded)
	if err != nil {
		return w.fail(log, item.ID, submitFailureMessage(err), err)
	}

	err = w.store.Update(item.ID, queue.Change{
		Status:      queue.StatusPolling,
		CandidateID: candidateID,
		Message:     MessageProcessing,
	})
	if err != nil {
		log.Debug("dropping accepted job", zap.String("candidate_id", candidateID), zap.Error(err))
		return ""
	}

	log.Debug("job accepted", zap.String("candidate_id", candidateID))

	return queue.StatusPolling
}

func (w *Worker) fail(log *zap.Logger, id, message string, cause error) queue.Status {
	log.Warn("submission failed", zap.String("message", message), zap.Error(cause))

	if err := w.store.Update(id, queue.Change{Status: queue.StatusError, Message: message}); err != nil {
		log.Debug("dropping failure", zap.Error(err))
		return ""
	}

	return queue.StatusError
}

// submitFailureMessage prefers the server provided text.
func submitFailureMessage(err error) string {
	var statusErr *api.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Error()
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return MessageUploadFail + ": request timed out"
	}

	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		return MessageUploadFail
	}

	return fmt.Sprintf("%s: %s", MessageUploadFail, msg)
}
