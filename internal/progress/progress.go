// Package progress persists and reports run progress on a fixed cadence.
package progress

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/JaimeStill/verdict/pkg/telemetry"
)

// Store is the persistence the tracker needs.
type Store interface {
	UpdateProgress(ctx context.Context, runID string, completed, total int, etaAt *time.Time) error
}

// Snapshot is one progress computation.
type Snapshot struct {
	Completed    int
	Total        int
	Remaining    int
	SessionItems int
	Elapsed      time.Duration
	// Rate is session throughput in items per second.
	Rate float64
	// ETA is nil until a positive rate is observed.
	ETA *time.Time
}

// Percent returns the completed share of Total in [0, 100].
func (s Snapshot) Percent() float64 {
	if s.Total <= 0 {
		return 0
	}
	p := float64(s.Completed) / float64(s.Total) * 100
	return min(p, 100)
}

// String renders the snapshot for operators.
func (s Snapshot) String() string {
	eta := "unknown"
	if s.ETA != nil {
		eta = humanize.Time(*s.ETA)
	}
	return fmt.Sprintf("%s/%s (%.1f%%) at %.2f items/s, remaining %s, eta %s",
		humanize.Comma(int64(s.Completed)),
		humanize.Comma(int64(s.Total)),
		s.Percent(),
		s.Rate,
		humanize.Comma(int64(s.Remaining)),
		eta,
	)
}

// Estimate computes a snapshot without side effects. sessionItems is the
// number of items completed since the session started elapsed ago.
func Estimate(completed, total, sessionItems int, elapsed time.Duration, now time.Time) Snapshot {
	remaining := max(total-completed, 0)

	s := Snapshot{
		Completed:    completed,
		Total:        total,
		Remaining:    remaining,
		SessionItems: sessionItems,
		Elapsed:      elapsed,
	}

	if elapsed > 0 && sessionItems > 0 {
		s.Rate = float64(sessionItems) / elapsed.Seconds()
	}
	if s.Rate > 0 {
		eta := now.Add(time.Duration(float64(remaining) / s.Rate * float64(time.Second)))
		s.ETA = &eta
	}
	return s
}

// Tracker computes and records progress for runs.
type Tracker struct {
	store    Store
	logger   *slog.Logger
	recorder *telemetry.Recorder
	now      func() time.Time

	mu        sync.Mutex
	baselines map[string]int
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithRecorder publishes every snapshot to recorder.
func WithRecorder(r *telemetry.Recorder) Option {
	return func(t *Tracker) { t.recorder = r }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// New creates a Tracker.
func New(store Store, logger *slog.Logger, opts ...Option) *Tracker {
	t := &Tracker{
		store:     store,
		logger:    logger.With("system", "progress"),
		now:       time.Now,
		baselines: make(map[string]int),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Begin records the completed count a session starts from, so throughput only
// counts items processed by this process.
func (t *Tracker) Begin(runID string, completed int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.baselines[runID] = completed
}

// Update computes progress, persists it, logs it, and publishes metrics.
// A persistence failure is logged and returned; callers treat it as non-fatal.
func (t *Tracker) Update(ctx context.Context, runID string, completedSoFar, totalExpected int, sessionStart time.Time) (Snapshot, error) {
	now := t.now()

	t.mu.Lock()
	baseline := t.baselines[runID]
	t.mu.Unlock()

	snap := Estimate(completedSoFar, totalExpected, max(completedSoFar-baseline, 0), now.Sub(sessionStart), now)
	return snap, t.publish(ctx, runID, snap)
}

// UpdatePass records progress for a pass that revisits rows the run already
// counts as completed. Rate and ETA come from the pass itself: passDone of
// passTotal rows rewritten since sessionStart. Completed and Total still
// describe the run.
func (t *Tracker) UpdatePass(ctx context.Context, runID string, completed, total, passDone, passTotal int, sessionStart time.Time) (Snapshot, error) {
	now := t.now()

	snap := Estimate(passDone, passTotal, passDone, now.Sub(sessionStart), now)
	snap.Completed = completed
	snap.Total = total
	return snap, t.publish(ctx, runID, snap)
}

func (t *Tracker) publish(ctx context.Context, runID string, snap Snapshot) error {
	t.logger.InfoContext(ctx, "progress "+snap.String(),
		"run_id", runID,
		"completed", snap.Completed,
		"total", snap.Total,
		"rate", snap.Rate,
	)

	if t.recorder != nil {
		sample := telemetry.Sample{
			Completed: snap.Completed,
			Total:     snap.Total,
			Rate:      snap.Rate,
		}
		if snap.ETA != nil {
			sample.ETA = *snap.ETA
		}
		t.recorder.ObserveProgress(runID, sample)
		if err := t.recorder.Flush(); err != nil {
			t.logger.WarnContext(ctx, "telemetry flush failed", "run_id", runID, "error", err)
		}
	}

	if err := t.store.UpdateProgress(ctx, runID, snap.Completed, snap.Total, snap.ETA); err != nil {
		t.logger.ErrorContext(ctx, "progress update failed", "run_id", runID, "error", err)
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}
