package progress_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/verdict/internal/progress"
	"github.com/JaimeStill/verdict/pkg/telemetry"
)

type update struct {
	runID     string
	completed int
	total     int
	eta       *time.Time
}

type fakeStore struct {
	mu      sync.Mutex
	updates []update
	err     error
}

func (f *fakeStore) UpdateProgress(_ context.Context, runID string, completed, total int, etaAt *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, update{runID, completed, total, etaAt})
	return f.err
}

func TestEstimate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	snap := progress.Estimate(300, 500, 100, 50*time.Second, now)

	assert.Equal(t, 200, snap.Remaining)
	assert.InDelta(t, 2.0, snap.Rate, 1e-9)
	require.NotNil(t, snap.ETA)
	assert.Equal(t, now.Add(100*time.Second), *snap.ETA)
	assert.InDelta(t, 60.0, snap.Percent(), 1e-9)
}

func TestEstimateNoThroughput(t *testing.T) {
	snap := progress.Estimate(237, 500, 0, 0, time.Now())

	assert.Equal(t, 263, snap.Remaining)
	assert.Zero(t, snap.Rate)
	assert.Nil(t, snap.ETA)
	assert.InDelta(t, 47.4, snap.Percent(), 1e-9)
	assert.Contains(t, snap.String(), "eta unknown")
}

func TestEstimateOvershoot(t *testing.T) {
	snap := progress.Estimate(510, 500, 10, time.Second, time.Now())
	assert.Zero(t, snap.Remaining)
	assert.Equal(t, 100.0, snap.Percent())
}

func TestUpdateUsesSessionBaseline(t *testing.T) {
	store := &fakeStore{}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	start := now.Add(-100 * time.Second)

	var logs bytes.Buffer
	tracker := progress.New(store, slog.New(slog.NewTextHandler(&logs, nil)),
		progress.WithClock(func() time.Time { return now }))

	tracker.Begin("run-1", 237)

	snap, err := tracker.Update(context.Background(), "run-1", 337, 500, start)
	require.NoError(t, err)

	assert.Equal(t, 100, snap.SessionItems)
	assert.InDelta(t, 1.0, snap.Rate, 1e-9)
	require.NotNil(t, snap.ETA)
	assert.Equal(t, now.Add(163*time.Second), *snap.ETA)

	require.Len(t, store.updates, 1)
	assert.Equal(t, update{"run-1", 337, 500, snap.ETA}, store.updates[0])
	assert.Contains(t, logs.String(), "337/500")
	assert.Contains(t, logs.String(), "run_id=run-1")
}

func TestUpdatePassRatesThePass(t *testing.T) {
	store := &fakeStore{}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	start := now.Add(-20 * time.Second)

	tracker := progress.New(store, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
		progress.WithClock(func() time.Time { return now }))

	// Every record already has a row, so the run's completed count does not
	// move while 40 error rows are rewritten.
	tracker.Begin("run-1", 500)

	snap, err := tracker.UpdatePass(context.Background(), "run-1", 500, 500, 40, 100, start)
	require.NoError(t, err)

	assert.Equal(t, 500, snap.Completed)
	assert.Equal(t, 500, snap.Total)
	assert.Equal(t, 60, snap.Remaining)
	assert.InDelta(t, 2.0, snap.Rate, 1e-9)
	require.NotNil(t, snap.ETA)
	assert.Equal(t, now.Add(30*time.Second), *snap.ETA)

	require.Len(t, store.updates, 1)
	assert.Equal(t, update{"run-1", 500, 500, snap.ETA}, store.updates[0])
}

func TestUpdateStoreFailureIsReturned(t *testing.T) {
	store := &fakeStore{err: errors.New("disk full")}
	tracker := progress.New(store, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))

	snap, err := tracker.Update(context.Background(), "run-1", 10, 20, time.Now().Add(-time.Second))
	require.Error(t, err)
	assert.Equal(t, 10, snap.Completed)
}

func TestUpdatePublishesTelemetry(t *testing.T) {
	textfile := filepath.Join(t.TempDir(), "metrics", "verdict.prom")
	recorder := telemetry.New(textfile)
	tracker := progress.New(&fakeStore{}, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
		progress.WithRecorder(recorder))

	_, err := tracker.Update(context.Background(), "run-1", 40, 80, time.Now().Add(-10*time.Second))
	require.NoError(t, err)

	data, err := os.ReadFile(textfile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `verdict_run_completed_items{run_id="run-1"} 40`)
	assert.Contains(t, string(data), `verdict_run_total_items{run_id="run-1"} 80`)
}
