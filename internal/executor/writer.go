package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/JaimeStill/verdict/internal/store"
)

// writer owns the open batch. Only the goroutine running run touches it.
type writer struct {
	store        Store
	tracker      Tracker
	logger       *slog.Logger
	job          Job
	interval     int
	sessionStart time.Time
	abort        context.CancelFunc

	batch   store.BatchWriter
	pending int
	err     error
	summary Summary
}

func (w *writer) begin(ctx context.Context) error {
	b, err := w.store.BeginBatch(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	w.batch = b
	w.pending = 0
	return nil
}

// run consumes results until the channel closes. After a storage failure the
// remaining results are drained and dropped. The final commit is left to the
// caller, which knows whether the feed ended cleanly.
func (w *writer) run(ctx context.Context, results <-chan store.Result) {
	for r := range results {
		if w.err != nil {
			continue
		}

		w.summary.Attempted++
		if r.ErrorOccurred {
			w.summary.Failed++
		} else {
			w.summary.Succeeded++
		}

		if err := w.batch.UpsertResult(ctx, r); err != nil {
			w.fail(fmt.Errorf("%w: %w", ErrStorage, err))
			continue
		}
		w.pending++

		if w.pending >= w.interval {
			if err := w.commit(ctx, true); err != nil {
				w.fail(err)
			}
		}
	}
}

// commit makes the batch durable, publishes progress, and opens the next
// batch when reopen is set.
func (w *writer) commit(ctx context.Context, reopen bool) error {
	if err := w.batch.Commit(); err != nil {
		w.batch = nil
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}

	w.summary.Commits++
	w.summary.Committed += w.pending
	if w.job.Mode == store.ModeMissing {
		w.summary.Completed = w.job.Completed + w.summary.Committed
	}
	w.batch = nil

	w.logger.DebugContext(ctx, "batch committed", "items", w.pending, "committed", w.summary.Committed)

	var err error
	if w.job.Mode == store.ModeMissing {
		_, err = w.tracker.Update(ctx, w.job.RunID, w.summary.Completed, w.job.Total, w.sessionStart)
	} else {
		_, err = w.tracker.UpdatePass(ctx, w.job.RunID, w.summary.Completed, w.job.Total,
			w.summary.Committed, w.job.Pending, w.sessionStart)
	}
	if err != nil {
		w.logger.WarnContext(ctx, "progress not recorded", "error", err)
	}

	if !reopen {
		w.pending = 0
		return nil
	}
	return w.begin(ctx)
}

func (w *writer) fail(err error) {
	w.rollback()
	w.err = err
	w.abort()
}

func (w *writer) rollback() {
	if w.batch == nil {
		return
	}
	if err := w.batch.Rollback(); err != nil {
		w.logger.Warn("rollback failed", "error", err)
	}
	w.batch = nil
}
