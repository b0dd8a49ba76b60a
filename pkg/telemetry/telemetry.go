// Package telemetry exposes run progress as Prometheus metrics. Batch runs have no
// scrape endpoint, so metrics are written to a node-exporter textfile when a path
// is configured.
package telemetry

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Sample is one progress observation for a run.
type Sample struct {
	Completed int
	Total     int
	Rate      float64
	ETA       time.Time
}

// Recorder holds the run gauges in a private registry.
type Recorder struct {
	registry  *prometheus.Registry
	completed *prometheus.GaugeVec
	total     *prometheus.GaugeVec
	rate      *prometheus.GaugeVec
	eta       *prometheus.GaugeVec
	items     *prometheus.CounterVec
	textfile  string
}

// New creates a Recorder. An empty textfile disables Flush.
func New(textfile string) *Recorder {
	labels := []string{"run_id"}

	r := &Recorder{
		registry: prometheus.NewRegistry(),
		completed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "verdict",
			Name:      "run_completed_items",
			Help:      "Items with a durable result row.",
		}, labels),
		total: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "verdict",
			Name:      "run_total_items",
			Help:      "Items in the run's source.",
		}, labels),
		rate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "verdict",
			Name:      "run_items_per_second",
			Help:      "Session throughput.",
		}, labels),
		eta: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "verdict",
			Name:      "run_estimated_completion_timestamp_seconds",
			Help:      "Estimated completion as a unix timestamp.",
		}, labels),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "verdict",
			Name:      "items_processed_total",
			Help:      "Classification attempts recorded, by outcome.",
		}, []string{"run_id", "outcome"}),
		textfile: textfile,
	}

	r.registry.MustRegister(r.completed, r.total, r.rate, r.eta, r.items)
	return r
}

// Gatherer exposes the private registry.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// ObserveProgress records a progress sample for runID.
func (r *Recorder) ObserveProgress(runID string, s Sample) {
	r.completed.WithLabelValues(runID).Set(float64(s.Completed))
	r.total.WithLabelValues(runID).Set(float64(s.Total))
	r.rate.WithLabelValues(runID).Set(s.Rate)
	if !s.ETA.IsZero() {
		r.eta.WithLabelValues(runID).Set(float64(s.ETA.Unix()))
	}
}

// ObserveItem counts one recorded attempt with the given outcome.
func (r *Recorder) ObserveItem(runID, outcome string) {
	r.items.WithLabelValues(runID, outcome).Inc()
}

// Flush writes the registry to the configured textfile. No-op when unset.
func (r *Recorder) Flush() error {
	if r.textfile == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(r.textfile), 0o755); err != nil {
		return fmt.Errorf("create textfile directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(r.textfile, r.registry); err != nil {
		return fmt.Errorf("write textfile: %w", err)
	}
	return nil
}
