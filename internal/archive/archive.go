// Package archive exports the results of a run as JSON Lines to blob storage.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"time"

	"github.com/JaimeStill/verdict/internal/store"
	"github.com/JaimeStill/verdict/pkg/storage"
)

const contentType = "application/x-ndjson"

// Source yields the rows to export.
type Source interface {
	FindRun(ctx context.Context, runID string) (*store.Run, error)
	StreamResults(ctx context.Context, runID string) iter.Seq2[store.Result, error]
}

// Manifest describes an uploaded export.
type Manifest struct {
	RunID   string
	Key     string
	Results int
}

// Export streams every result of runID to <prefix>/runs/<runID>/results.jsonl
// and the run row to <prefix>/runs/<runID>/run.json. Rows are encoded as
// they are read, so memory does not grow with the run.
func Export(ctx context.Context, src Source, blobs storage.System, runID string, logger *slog.Logger) (Manifest, error) {
	run, err := src.FindRun(ctx, runID)
	if err != nil {
		return Manifest{}, err
	}

	m := Manifest{RunID: runID, Key: blobs.Key("runs", runID, "results.jsonl")}

	pr, pw := io.Pipe()
	written := make(chan int, 1)
	go func() {
		n, err := Write(ctx, pw, src.StreamResults(ctx, runID))
		written <- n
		pw.CloseWithError(err)
	}()

	if err := blobs.Upload(ctx, m.Key, pr, contentType); err != nil {
		pr.CloseWithError(err)
		return Manifest{}, fmt.Errorf("upload results: %w", err)
	}
	m.Results = <-written

	runJSON, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return Manifest{}, fmt.Errorf("marshal run: %w", err)
	}
	if err := blobs.Upload(ctx, blobs.Key("runs", runID, "run.json"), bytes.NewReader(runJSON), "application/json"); err != nil {
		return Manifest{}, fmt.Errorf("upload run: %w", err)
	}

	logger.InfoContext(ctx, "run archived", "run_id", runID, "key", m.Key, "results", m.Results)
	return m, nil
}

// line is the exported form of a result. Stored JSON columns are embedded
// as objects rather than strings.
type line struct {
	RunID             string          `json:"run_id"`
	RecordID          string          `json:"record_id"`
	Label             string          `json:"label,omitempty"`
	Verdict           json.RawMessage `json:"verdict,omitempty"`
	Usage             json.RawMessage `json:"usage,omitempty"`
	AttemptCount      int             `json:"attempt_count"`
	ErrorOccurred     bool            `json:"error_occurred"`
	FirstErrorMessage *string         `json:"first_error_message,omitempty"`
	LastErrorMessage  *string         `json:"last_error_message,omitempty"`
	ErrorCategory     *string         `json:"error_category,omitempty"`
	ProcessedAt       time.Time       `json:"processed_at"`
}

func raw(s *string) json.RawMessage {
	if s == nil || *s == "" {
		return nil
	}
	return json.RawMessage(*s)
}

// Write encodes rows as JSON Lines to w and returns the number written.
func Write(ctx context.Context, w io.Writer, rows iter.Seq2[store.Result, error]) (int, error) {
	enc := json.NewEncoder(w)
	n := 0
	for r, err := range rows {
		if err != nil {
			return n, err
		}
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if err := enc.Encode(line{
			RunID:             r.RunID,
			RecordID:          r.RecordID,
			Label:             r.Label,
			Verdict:           raw(r.VerdictJSON),
			Usage:             raw(r.UsageJSON),
			AttemptCount:      r.AttemptCount,
			ErrorOccurred:     r.ErrorOccurred,
			FirstErrorMessage: r.FirstErrorMessage,
			LastErrorMessage:  r.LastErrorMessage,
			ErrorCategory:     r.ErrorCategory,
			ProcessedAt:       r.ProcessedAt,
		}); err != nil {
			return n, fmt.Errorf("encode %s: %w", r.RecordID, err)
		}
		n++
	}
	return n, nil
}
