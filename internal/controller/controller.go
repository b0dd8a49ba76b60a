// Package controller owns the lifecycle of a run: creating it, deciding
// whether it may resume, executing it under its lock, and recording how it
// ended.
package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/verdict/internal/classifier"
	"github.com/JaimeStill/verdict/internal/evaluation"
	"github.com/JaimeStill/verdict/internal/executor"
	"github.com/JaimeStill/verdict/internal/ingest"
	"github.com/JaimeStill/verdict/internal/lock"
	"github.com/JaimeStill/verdict/internal/progress"
	"github.com/JaimeStill/verdict/internal/store"
)

var (
	ErrEmptySource  = errors.New("source has no records")
	ErrRunCompleted = errors.New("run already completed")
	ErrCancelled    = errors.New("run cancelled before completion")
	ErrIncomplete   = errors.New("run has unprocessed records")
)

// Snapshot is the configuration stored on a run when it starts.
type Snapshot struct {
	Classifier classifier.Config `json:"classifier"`
	Aggregator string            `json:"aggregator"`
}

func decodeSnapshot(run *store.Run) (Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal([]byte(run.ConfigJSON), &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode config snapshot of %s: %w", run.RunID, err)
	}
	return snap, nil
}

// RunContext carries everything one invocation knows about a run. It is
// built once and passed through; the classifier configuration always comes
// from the run row, never from the experiment file.
type RunContext struct {
	Run        *store.Run
	Config     classifier.Config
	Aggregator string
	Mode       store.Mode
	// Source is the ingest record of the run's source, nil if unknown.
	Source *store.Source
}

// Resumption is the outcome of a successful ValidateResume.
type Resumption struct {
	Run            *store.Run
	PriorCompleted int
	// Warning is set when the run may resume but the operator should know
	// why it stopped.
	Warning string
}

// Report summarizes an Execute call.
type Report struct {
	RunID   string
	Status  store.Status
	Summary executor.Summary
	Metrics *evaluation.Metrics
}

// Controller coordinates the store, lock manager, executor, and tracker.
type Controller struct {
	store      *store.Store
	locks      *lock.Manager
	executor   *executor.Executor
	tracker    *progress.Tracker
	aggregator evaluation.Aggregator
	logger     *slog.Logger
	newID      func() string
	now        func() time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithIDGenerator replaces uuid v4 run ids.
func WithIDGenerator(fn func() string) Option {
	return func(c *Controller) { c.newID = fn }
}

// WithAggregator sets the aggregator recorded on runs this controller starts.
// Finalize uses the aggregator recorded on the run.
func WithAggregator(a evaluation.Aggregator) Option {
	return func(c *Controller) { c.aggregator = a }
}

// New creates a Controller.
func New(
	s *store.Store,
	locks *lock.Manager,
	exec *executor.Executor,
	tracker *progress.Tracker,
	logger *slog.Logger,
	opts ...Option,
) *Controller {
	c := &Controller{
		store:      s,
		locks:      locks,
		executor:   exec,
		tracker:    tracker,
		aggregator: evaluation.Binary{},
		logger:     logger.With("system", "controller"),
		newID:      func() string { return uuid.New().String() },
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start creates a run over sourceName with a snapshot of cfg and returns its id.
func (c *Controller) Start(ctx context.Context, name, sourceName string, cfg classifier.Config) (string, error) {
	if _, err := c.store.FindSource(ctx, sourceName); err != nil {
		return "", err
	}

	total, err := c.store.CountRecords(ctx, sourceName)
	if err != nil {
		return "", err
	}
	if total == 0 {
		return "", fmt.Errorf("%w: %s", ErrEmptySource, sourceName)
	}

	snapshot, err := json.Marshal(Snapshot{Classifier: cfg, Aggregator: c.aggregator.Name()})
	if err != nil {
		return "", fmt.Errorf("snapshot config: %w", err)
	}

	runID := c.newID()
	if err := c.store.CreateRun(ctx, store.Run{
		RunID:      runID,
		Name:       name,
		SourceName: sourceName,
		Status:     store.StatusRunning,
		ConfigJSON: string(snapshot),
		TotalItems: total,
	}); err != nil {
		return "", err
	}

	c.logger.InfoContext(ctx, "run created",
		"run_id", runID,
		"name", name,
		"source", sourceName,
		"total", total,
		"provider", cfg.Provider,
		"model", cfg.Model,
	)
	return runID, nil
}

// ValidateResume decides whether runID may resume. A missing run wraps
// store.ErrRunNotFound and a completed run wraps ErrRunCompleted; neither
// touches the run. A cancelled run resumes with a warning.
func (c *Controller) ValidateResume(ctx context.Context, runID string) (Resumption, error) {
	run, err := c.store.FindRun(ctx, runID)
	if err != nil {
		return Resumption{}, fmt.Errorf("cannot resume: %w", err)
	}

	if run.Status == store.StatusCompleted {
		return Resumption{}, fmt.Errorf(
			"%w: %s finished with %d of %d items; use finalize to recompute metrics",
			ErrRunCompleted, runID, run.CompletedItems, run.TotalItems,
		)
	}

	completed, err := c.store.CountResults(ctx, runID)
	if err != nil {
		return Resumption{}, err
	}

	r := Resumption{Run: run, PriorCompleted: completed}
	switch run.Status {
	case store.StatusCancelled:
		r.Warning = fmt.Sprintf("run %s was cancelled; resuming", runID)
	case store.StatusFailed:
		reason := "unknown"
		if run.FailureReason != nil {
			reason = *run.FailureReason
		}
		r.Warning = fmt.Sprintf("run %s previously failed: %s", runID, reason)
	case store.StatusRunning:
		r.Warning = fmt.Sprintf("run %s was interrupted while running", runID)
	}

	if r.Warning != "" {
		c.logger.WarnContext(ctx, r.Warning, "run_id", runID, "status", run.Status)
	}
	return r, nil
}

// Load builds the RunContext for runID from its stored snapshot.
func (c *Controller) Load(ctx context.Context, runID string, mode store.Mode) (*RunContext, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("%w: %q", store.ErrInvalidMode, mode)
	}

	run, err := c.store.FindRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	snap, err := decodeSnapshot(run)
	if err != nil {
		return nil, err
	}

	src, err := c.store.FindSource(ctx, run.SourceName)
	if err != nil && !errors.Is(err, store.ErrSourceNotFound) {
		return nil, err
	}

	return &RunContext{
		Run:        run,
		Config:     snap.Classifier,
		Aggregator: snap.Aggregator,
		Mode:       mode,
		Source:     src,
	}, nil
}

// Preview reports where a run stands before work begins. Throughput is the
// run's historical rate between its start and its last progress write.
func (c *Controller) Preview(ctx context.Context, rc *RunContext) (progress.Snapshot, error) {
	remaining, err := c.store.CountRemaining(ctx, rc.Run.RunID, rc.Mode)
	if err != nil {
		return progress.Snapshot{}, err
	}

	total := rc.Run.TotalItems
	completed := max(total-remaining, 0)

	var elapsed time.Duration
	if rc.Run.LastProgressAt != nil {
		elapsed = rc.Run.LastProgressAt.Sub(rc.Run.StartedAt)
	}
	return progress.Estimate(completed, total, rc.Run.CompletedItems, elapsed, c.now()), nil
}

// Finalize aggregates every result of runID and marks it completed. Calling
// it again recomputes the same metrics from the same rows.
func (c *Controller) Finalize(ctx context.Context, runID string) (evaluation.Metrics, error) {
	run, err := c.store.FindRun(ctx, runID)
	if err != nil {
		return evaluation.Metrics{}, err
	}
	snap, err := decodeSnapshot(run)
	if err != nil {
		return evaluation.Metrics{}, err
	}
	aggregator, err := evaluation.ForName(snap.Aggregator)
	if err != nil {
		return evaluation.Metrics{}, err
	}

	outcomes, err := c.store.Outcomes(ctx, runID)
	if err != nil {
		return evaluation.Metrics{}, err
	}

	metrics, err := aggregator.Aggregate(outcomes)
	if err != nil {
		return evaluation.Metrics{}, fmt.Errorf("aggregate %s: %w", runID, err)
	}

	data, err := metrics.JSON()
	if err != nil {
		return evaluation.Metrics{}, err
	}

	if err := c.store.FinalizeRun(ctx, runID, data, metrics.Total); err != nil {
		return evaluation.Metrics{}, err
	}

	c.logger.InfoContext(ctx, "run finalized",
		"run_id", runID,
		"total", metrics.Total,
		"errored", metrics.Errored,
		"evaluated", metrics.Evaluated,
	)
	return metrics, nil
}

// MarkFailed records that runID stopped on an unrecoverable error.
func (c *Controller) MarkFailed(ctx context.Context, runID, reason string) error {
	c.logger.ErrorContext(ctx, "run failed", "run_id", runID, "reason", reason)
	return c.store.SetRunStatus(ctx, runID, store.StatusFailed, reason)
}

// MarkCancelled records that runID stopped on an operator request.
func (c *Controller) MarkCancelled(ctx context.Context, runID string) error {
	c.logger.WarnContext(ctx, "run cancelled", "run_id", runID)
	return c.store.SetRunStatus(ctx, runID, store.StatusCancelled, "")
}

// Execute runs rc to completion under its lock.
//
// A held lock is returned without touching the run. A changed source file,
// or a storage failure during execution, marks the run failed. Cancelling
// ctx commits the work in flight, marks the run cancelled, and returns
// ErrCancelled.
func (c *Controller) Execute(ctx context.Context, rc *RunContext, cls classifier.Classifier) (Report, error) {
	runID := rc.Run.RunID
	report := Report{RunID: runID}

	handle, err := c.locks.Acquire(runID)
	if err != nil {
		return report, err
	}
	defer func() {
		if err := handle.Release(); err != nil {
			c.logger.WarnContext(ctx, "lock release failed", "run_id", runID, "error", err)
		}
	}()

	current, err := c.store.FindRun(ctx, runID)
	if err != nil {
		return report, err
	}
	if current.Status == store.StatusCompleted {
		return report, fmt.Errorf("%w: %s", ErrRunCompleted, runID)
	}

	// Status writes must land even after a shutdown request.
	detached := context.WithoutCancel(ctx)

	fail := func(cause error) (Report, error) {
		if err := c.MarkFailed(detached, runID, cause.Error()); err != nil {
			c.logger.ErrorContext(ctx, "mark failed", "run_id", runID, "error", err)
		}
		report.Status = store.StatusFailed
		return report, cause
	}

	if err := c.verifySource(ctx, rc); err != nil {
		return fail(err)
	}

	if err := c.store.MarkRunning(ctx, runID); err != nil {
		return fail(err)
	}

	completed, err := c.store.CountResults(ctx, runID)
	if err != nil {
		return fail(err)
	}
	pending, err := c.store.CountRemaining(ctx, runID, rc.Mode)
	if err != nil {
		return fail(err)
	}
	c.tracker.Begin(runID, completed)

	summary, err := c.executor.Execute(ctx, executor.Job{
		RunID:      runID,
		Mode:       rc.Mode,
		Classifier: cls,
		Config:     rc.Config,
		Completed:  completed,
		Total:      rc.Run.TotalItems,
		Pending:    pending,
	})
	report.Summary = summary
	if err != nil {
		return fail(err)
	}

	if summary.Cancelled {
		if err := c.MarkCancelled(detached, runID); err != nil {
			return fail(err)
		}
		report.Status = store.StatusCancelled
		return report, fmt.Errorf("%w: %d of %d items recorded", ErrCancelled, summary.Completed, rc.Run.TotalItems)
	}

	// A retry pass only revisits error rows, so records never attempted may
	// remain. Such a run cannot be completed yet.
	missing, err := c.store.CountRemaining(detached, runID, store.ModeMissing)
	if err != nil {
		return fail(err)
	}
	if missing > 0 {
		return fail(fmt.Errorf("%w: %d records never attempted; resume without --retry-errors-only",
			ErrIncomplete, missing))
	}

	metrics, err := c.Finalize(detached, runID)
	if err != nil {
		return fail(err)
	}
	report.Status = store.StatusCompleted
	report.Metrics = &metrics
	return report, nil
}

// verifySource re-hashes the source file when it is still on disk. A missing
// file is not an error: the records were captured at ingest.
func (c *Controller) verifySource(ctx context.Context, rc *RunContext) error {
	if rc.Source == nil || rc.Source.Path == "" {
		return nil
	}

	sum, err := ingest.Checksum(rc.Source.Path)
	if errors.Is(err, os.ErrNotExist) {
		c.logger.WarnContext(ctx, "source file not found; using ingested records",
			"run_id", rc.Run.RunID, "path", rc.Source.Path)
		return nil
	}
	if err != nil {
		return err
	}

	if sum != rc.Source.Checksum {
		return fmt.Errorf("%w: %s changed since source %q was ingested",
			store.ErrChecksumMismatch, rc.Source.Path, rc.Source.SourceName)
	}
	return nil
}
