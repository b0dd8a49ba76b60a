package database_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/JaimeStill/verdict/pkg/database"
	"github.com/JaimeStill/verdict/pkg/lifecycle"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSQLiteLifecycle(t *testing.T) {
	cfg := &database.Config{Path: filepath.Join(t.TempDir(), "nested", "v.db")}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	db, err := database.New(cfg, discard())
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}

	lc := lifecycle.New(context.Background())
	if err := db.Start(lc); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := lc.WaitForStartup(); err != nil {
		t.Fatalf("startup failed: %v", err)
	}

	var mode string
	if err := db.Connection().Get(&mode, "PRAGMA journal_mode"); err != nil {
		t.Fatalf("pragma: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}

	if err := lc.Shutdown(5 * time.Second); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}
	if err := db.Ping(context.Background()); !errors.Is(err, database.ErrNotReady) {
		t.Errorf("Ping after shutdown = %v, want ErrNotReady", err)
	}
}
