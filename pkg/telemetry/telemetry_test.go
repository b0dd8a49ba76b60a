package telemetry_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/JaimeStill/verdict/pkg/telemetry"
)

func TestObserveAndFlush(t *testing.T) {
	path := filepath.Join(t.TempDir(), "textfile", "verdict.prom")
	r := telemetry.New(path)

	r.ObserveProgress("run-1", telemetry.Sample{
		Completed: 237,
		Total:     500,
		Rate:      2.5,
		ETA:       time.Unix(1_800_000_000, 0),
	})
	r.ObserveItem("run-1", "success")
	r.ObserveItem("run-1", "success")
	r.ObserveItem("run-1", "error")

	n, err := testutil.GatherAndCount(r.Gatherer(), "verdict_items_processed_total")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if n != 2 {
		t.Errorf("outcome series = %d, want 2", n)
	}

	if err := r.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	text := string(data)
	for _, want := range []string{
		`verdict_run_completed_items{run_id="run-1"} 237`,
		`verdict_run_total_items{run_id="run-1"} 500`,
		`verdict_run_estimated_completion_timestamp_seconds{run_id="run-1"} 1.8e+09`,
		`verdict_items_processed_total{outcome="success",run_id="run-1"} 2`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("textfile missing %q", want)
		}
	}
}

func TestUnknownETAIsNotExported(t *testing.T) {
	r := telemetry.New("")
	r.ObserveProgress("run-2", telemetry.Sample{Completed: 1, Total: 10})

	n, err := testutil.GatherAndCount(r.Gatherer(), "verdict_run_estimated_completion_timestamp_seconds")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if n != 0 {
		t.Errorf("eta series = %d, want 0", n)
	}
}

func TestFlushDisabled(t *testing.T) {
	if err := telemetry.New("").Flush(); err != nil {
		t.Errorf("Flush without textfile = %v", err)
	}
}
