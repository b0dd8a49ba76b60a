// Package storetest opens migrated SQLite stores for tests.
package storetest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/verdict/internal/store"
	"github.com/JaimeStill/verdict/pkg/database"
)

// Config returns a SQLite configuration rooted in a fresh temp directory.
func Config(t testing.TB) *database.Config {
	t.Helper()
	return &database.Config{
		Driver:          database.DriverSQLite,
		Path:            filepath.Join(t.TempDir(), "verdict.db"),
		BusyTimeout:     "5s",
		MaxOpenConns:    4,
		MaxIdleConns:    2,
		ConnMaxLifetime: "15m",
		ConnTimeout:     "5s",
	}
}

// Discard is a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Open opens a database at cfg and migrates it.
func Open(t testing.TB, cfg *database.Config, opts ...store.Option) *store.Store {
	t.Helper()

	db, err := database.New(cfg, Discard())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := store.New(db, Discard(), opts...)
	require.NoError(t, s.EnsureSchema(context.Background()))
	return s
}

// New opens a migrated store in a temp directory.
func New(t testing.TB, opts ...store.Option) *store.Store {
	t.Helper()
	return Open(t, Config(t), opts...)
}

// Seed ingests n records named rec-0001.. under sourceName and returns them.
// Every third record carries ground truth "true", the rest "false".
func Seed(t testing.TB, s *store.Store, sourceName string, n int) []store.InputRecord {
	t.Helper()
	ctx := context.Background()

	ok, err := s.VerifyOrRecordChecksum(ctx, sourceName, "checksum-"+sourceName, sourceName+".csv")
	require.NoError(t, err)
	require.True(t, ok)

	records := make([]store.InputRecord, n)
	for i := range records {
		truth := "false"
		if i%3 == 0 {
			truth = "true"
		}
		records[i] = store.InputRecord{
			SourceName:     sourceName,
			RecordID:       RecordID(i + 1),
			Text:           "record text " + RecordID(i+1),
			GroundTruth:    &truth,
			SourceChecksum: "checksum-" + sourceName,
		}
	}

	inserted, err := s.InsertRecords(ctx, records)
	require.NoError(t, err)
	require.Equal(t, n, inserted)
	return records
}

// RecordID formats the seeded record id for position i (1-based).
func RecordID(i int) string {
	return fmt.Sprintf("rec-%04d", i)
}

// CreateRun inserts a running run over sourceName.
func CreateRun(t testing.TB, s *store.Store, runID, sourceName string, total int) {
	t.Helper()
	require.NoError(t, s.CreateRun(context.Background(), store.Run{
		RunID:      runID,
		Name:       "test-" + runID,
		SourceName: sourceName,
		Status:     store.StatusRunning,
		ConfigJSON: `{"provider":"fake","model":"fake-1"}`,
		TotalItems: total,
	}))
}
