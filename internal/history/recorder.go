package history

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"squash/internal/convergence"
	"squash/internal/logging"
)

const saveTimeout = 10 * time.Second

// Recorder is a convergence.Sink that saves the final report when a run
// finishes. Saves survive cancellation of the run context so interrupted
// runs are still recorded.
type Recorder struct {
	ctx    context.Context
	store  *Store
	logger *slog.Logger

	mu  sync.Mutex
	err error
}

// NewRecorder binds a recorder to store.
func NewRecorder(ctx context.Context, store *Store, logger *slog.Logger) *Recorder {
	return &Recorder{
		ctx:    context.WithoutCancel(ctx),
		store:  store,
		logger: logging.NewComponentLogger(logger, "history"),
	}
}

// Handle implements convergence.Sink.
func (r *Recorder) Handle(evt convergence.Event) {
	if r == nil || r.store == nil || evt.Kind != convergence.EventFinished || evt.Report == nil {
		return
	}
	ctx, cancel := context.WithTimeout(r.ctx, saveTimeout)
	defer cancel()
	err := r.store.Save(ctx, *evt.Report)
	if err != nil {
		r.logger.Warn("history save failed",
			logging.String(logging.FieldRunID, evt.Report.RunID),
			logging.Error(err),
		)
	} else {
		r.logger.Debug("run recorded",
			logging.String(logging.FieldRunID, evt.Report.RunID),
			logging.String("state", evt.Report.State.String()),
		)
	}
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}

// Err returns the error from the last save, if any.
func (r *Recorder) Err() error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}
