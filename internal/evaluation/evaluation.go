// Package evaluation aggregates the result rows of a run into summary metrics.
// Aggregation is a pure function of the rows, so finalizing a run twice yields
// the same metrics.
package evaluation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/JaimeStill/verdict/internal/store"
)

// Aggregator computes metrics over every outcome of a run.
type Aggregator interface {
	Name() string
	Aggregate(outcomes []store.Outcome) (Metrics, error)
}

// Metrics is the summary stored in runs.metrics_json.
type Metrics struct {
	Aggregator string `json:"aggregator"`
	Total      int    `json:"total"`
	Errored    int    `json:"errored"`
	// Evaluated counts successful rows that carry ground truth.
	Evaluated int                `json:"evaluated"`
	Scores    map[string]float64 `json:"scores"`
	Latency   Latency            `json:"latency"`
	Tokens    Tokens             `json:"tokens"`
}

// Latency summarizes classifier call time over rows that recorded usage.
type Latency struct {
	MeanMS  float64 `json:"mean_ms"`
	TotalMS int64   `json:"total_ms"`
}

// Tokens totals token usage across all rows.
type Tokens struct {
	Input  int64 `json:"input"`
	Output int64 `json:"output"`
}

// JSON encodes m for storage.
func (m Metrics) JSON() (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshal metrics: %w", err)
	}
	return string(data), nil
}

type usage struct {
	ElapsedMS    int64 `json:"elapsed_ms"`
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// common fills the counts and usage totals every aggregator reports.
func common(name string, outcomes []store.Outcome) (Metrics, error) {
	m := Metrics{
		Aggregator: name,
		Total:      len(outcomes),
		Scores:     make(map[string]float64),
	}

	timed := 0
	for _, o := range outcomes {
		if o.ErrorOccurred {
			m.Errored++
		}
		if o.UsageJSON == nil {
			continue
		}

		var u usage
		if err := json.Unmarshal([]byte(*o.UsageJSON), &u); err != nil {
			return Metrics{}, fmt.Errorf("record %s: decode usage: %w", o.RecordID, err)
		}
		m.Latency.TotalMS += u.ElapsedMS
		m.Tokens.Input += u.InputTokens
		m.Tokens.Output += u.OutputTokens
		timed++
	}

	if timed > 0 {
		m.Latency.MeanMS = float64(m.Latency.TotalMS) / float64(timed)
	}
	return m, nil
}

// ForName returns the aggregator registered under name. An empty name selects
// the binary aggregator.
func ForName(name string) (Aggregator, error) {
	switch strings.ToLower(name) {
	case "", "binary":
		return Binary{}, nil
	case "label", "multiclass":
		return Label{}, nil
	default:
		return nil, fmt.Errorf("unknown aggregator %q", name)
	}
}
