// Package executor drives classification over the remaining work of a run.
//
// Items are classified by a bounded pool of workers and written by a single
// writer that owns the open batch transaction. Every CommitInterval writes the
// batch is committed, progress is published, and a new batch is opened, so a
// crash loses at most one commit window. A classification failure is written
// as an error row and never stops the loop; a storage failure rolls back the
// open batch and stops the run.
package executor

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/verdict/internal/classifier"
	"github.com/JaimeStill/verdict/internal/progress"
	"github.com/JaimeStill/verdict/internal/store"
)

// ErrStorage marks a failure to read remaining work or persist results.
var ErrStorage = errors.New("storage failure")

// Store is the persistence the executor needs.
type Store interface {
	RemainingWork(ctx context.Context, runID string, mode store.Mode) iter.Seq2[store.InputRecord, error]
	BeginBatch(ctx context.Context) (store.BatchWriter, error)
}

// Tracker receives a progress update after every commit. Retry passes report
// through UpdatePass since they do not advance the completed count.
type Tracker interface {
	Update(ctx context.Context, runID string, completedSoFar, totalExpected int, sessionStart time.Time) (progress.Snapshot, error)
	UpdatePass(ctx context.Context, runID string, completed, total, passDone, passTotal int, sessionStart time.Time) (progress.Snapshot, error)
}

// Options tunes the executor.
type Options struct {
	CommitInterval int
	Concurrency    int
	ItemTimeout    time.Duration
}

func (o *Options) normalize() {
	if o.CommitInterval < 1 {
		o.CommitInterval = 100
	}
	if o.Concurrency < 1 {
		o.Concurrency = 1
	}
	if o.ItemTimeout <= 0 {
		o.ItemTimeout = 2 * time.Minute
	}
}

// Job is one pass over the remaining work of a run.
type Job struct {
	RunID      string
	Mode       store.Mode
	Classifier classifier.Classifier
	Config     classifier.Config
	// Completed is the run's durable completed count when the pass starts.
	Completed int
	Total     int
	// Pending is the number of records the pass expects to visit.
	Pending int
}

// Summary reports what a pass did.
type Summary struct {
	Attempted int
	Succeeded int
	Failed    int
	// Committed counts result rows made durable by this pass.
	Committed int
	Commits   int
	// Completed is the run's completed count after the last commit.
	Completed int
	Cancelled bool
}

// Executor runs jobs.
type Executor struct {
	store   Store
	tracker Tracker
	logger  *slog.Logger
	opts    Options
	now     func() time.Time
}

// New creates an Executor. Zero options take their defaults.
func New(s Store, tracker Tracker, logger *slog.Logger, opts Options) *Executor {
	opts.normalize()
	return &Executor{
		store:   s,
		tracker: tracker,
		logger:  logger.With("system", "executor"),
		opts:    opts,
		now:     time.Now,
	}
}

// Execute classifies every record RemainingWork yields for job.
//
// Cancelling ctx stops dispatch at the next item boundary. Items already
// dispatched finish, their results are committed, and Summary.Cancelled is
// set with a nil error. Storage and classifier calls run detached from ctx so
// a shutdown request never aborts a write or a call in flight; the per-item
// timeout bounds the latter.
func (e *Executor) Execute(ctx context.Context, job Job) (Summary, error) {
	logger := e.logger.With("run_id", job.RunID, "mode", job.Mode)
	detached := context.WithoutCancel(ctx)

	abortCtx, abort := context.WithCancel(detached)
	defer abort()

	w := &writer{
		store:        e.store,
		tracker:      e.tracker,
		logger:       logger,
		job:          job,
		interval:     e.opts.CommitInterval,
		sessionStart: e.now(),
		abort:        abort,
	}
	w.summary.Completed = job.Completed

	if err := w.begin(detached); err != nil {
		return w.summary, err
	}

	logger.InfoContext(ctx, "execution started",
		"completed", job.Completed,
		"total", job.Total,
		"commit_interval", e.opts.CommitInterval,
		"concurrency", e.opts.Concurrency,
	)

	results := make(chan store.Result, e.opts.Concurrency)
	written := make(chan struct{})
	go func() {
		defer close(written)
		w.run(detached, results)
	}()

	// A slot is taken before the cancellation check, so with one worker the
	// check always follows the previous item's completion.
	slots := make(chan struct{}, e.opts.Concurrency)
	var g errgroup.Group

	var feedErr error
	cancelled := false

	for item, err := range e.store.RemainingWork(detached, job.RunID, job.Mode) {
		if err != nil {
			feedErr = fmt.Errorf("%w: %w", ErrStorage, err)
			break
		}

		slots <- struct{}{}
		if abortCtx.Err() != nil {
			<-slots
			break
		}
		if ctx.Err() != nil {
			<-slots
			cancelled = true
			break
		}

		g.Go(func() error {
			defer func() { <-slots }()
			results <- e.classify(abortCtx, job, item)
			return nil
		})
	}

	if feedErr != nil {
		abort()
	}

	g.Wait()
	close(results)
	<-written

	w.summary.Cancelled = cancelled

	switch {
	case w.err != nil:
	case feedErr != nil:
		w.rollback()
		w.err = feedErr
	default:
		if err := w.commit(detached, false); err != nil {
			w.fail(err)
		}
	}

	if w.err != nil {
		logger.ErrorContext(ctx, "execution stopped", "error", w.err)
		return w.summary, w.err
	}

	logger.InfoContext(ctx, "execution finished",
		"attempted", w.summary.Attempted,
		"succeeded", w.summary.Succeeded,
		"failed", w.summary.Failed,
		"commits", w.summary.Commits,
		"cancelled", cancelled,
	)
	return w.summary, nil
}

// classify runs one item under the item timeout and converts the outcome to
// a result row. It never fails: errors become error rows.
func (e *Executor) classify(ctx context.Context, job Job, item store.InputRecord) store.Result {
	callCtx, cancel := context.WithTimeout(ctx, e.opts.ItemTimeout)
	defer cancel()

	start := e.now()
	done := make(chan classification, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- classification{err: classifier.NewPermanent(fmt.Errorf("classifier panic: %v", r))}
			}
		}()
		v, usage, err := job.Classifier.Classify(callCtx, item, job.Config)
		done <- classification{verdict: v, usage: usage, err: err}
	}()

	select {
	case c := <-done:
		return buildResult(job.RunID, item.RecordID, c.verdict, c.usage, c.err, e.now())
	case <-callCtx.Done():
	}

	select {
	case c := <-done:
		return buildResult(job.RunID, item.RecordID, c.verdict, c.usage, c.err, e.now())
	default:
	}

	// The classifier ignored cancellation. Its goroutine finishes into the
	// buffered channel and is discarded.
	now := e.now()
	err := classifier.NewTransient(fmt.Errorf("classify %s abandoned after %s: %w",
		item.RecordID, now.Sub(start).Round(time.Millisecond), callCtx.Err()))
	return buildResult(job.RunID, item.RecordID, classifier.Verdict{}, classifier.Usage{Elapsed: now.Sub(start)}, err, now)
}

type classification struct {
	verdict classifier.Verdict
	usage   classifier.Usage
	err     error
}
