package storage_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/JaimeStill/verdict/pkg/storage"
)

// Azurite's published development account; no request leaves the process in these tests.
const devConnection = "DefaultEndpointsProtocol=http;AccountName=devstoreaccount1;" +
	"AccountKey=Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw==;" +
	"BlobEndpoint=http://127.0.0.1:10000/devstoreaccount1;"

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestConfigFinalize(t *testing.T) {
	cfg := storage.Config{}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	if cfg.Enabled() {
		t.Error("empty connection string should disable storage")
	}
	if cfg.ContainerName != "verdict-runs" || cfg.Prefix != "runs" {
		t.Errorf("defaults = %+v", cfg)
	}

	t.Setenv("TEST_STORAGE_CONN", devConnection)
	t.Setenv("TEST_STORAGE_PREFIX", "exports")
	cfg = storage.Config{}
	if err := cfg.Finalize(&storage.Env{ConnectionString: "TEST_STORAGE_CONN", Prefix: "TEST_STORAGE_PREFIX"}); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	if !cfg.Enabled() || cfg.Prefix != "exports" {
		t.Errorf("env overrides = %+v", cfg)
	}
}

func TestConfigMerge(t *testing.T) {
	base := storage.Config{ContainerName: "a", Prefix: "p"}
	base.Merge(&storage.Config{ContainerName: "b"})
	if base.ContainerName != "b" || base.Prefix != "p" {
		t.Errorf("Merge = %+v", base)
	}
}

func TestNewDisabled(t *testing.T) {
	_, err := storage.New(&storage.Config{}, discard())
	if !errors.Is(err, storage.ErrDisabled) {
		t.Errorf("New = %v, want ErrDisabled", err)
	}
}

func TestKeyAndValidation(t *testing.T) {
	sys, err := storage.New(&storage.Config{
		ConnectionString: devConnection,
		ContainerName:    "verdict-runs",
		Prefix:           "verdict",
	}, discard())
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}

	if got := sys.Key("runs", "r-1", "results.jsonl"); got != "verdict/runs/r-1/results.jsonl" {
		t.Errorf("Key = %q", got)
	}

	ctx := context.Background()
	if err := sys.Upload(ctx, "", strings.NewReader("x"), "text/plain"); !errors.Is(err, storage.ErrEmptyKey) {
		t.Errorf("Upload empty key = %v", err)
	}
	if _, err := sys.Exists(ctx, "verdict/../secrets"); !errors.Is(err, storage.ErrInvalidKey) {
		t.Errorf("Exists traversal key = %v", err)
	}
}
