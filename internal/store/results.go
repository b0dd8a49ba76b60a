package store

import (
	"context"
	"fmt"
	"iter"

	"github.com/jmoiron/sqlx"

	"github.com/JaimeStill/verdict/pkg/repository"
)

const upsertResultSQL = `
	INSERT INTO results (
		run_id, record_id, label, verdict_json, usage_json, attempt_count,
		error_occurred, first_error_message, last_error_message, error_category, processed_at
	)
	VALUES (?, ?, ?, ?, ?, 1, ?, ?, ?, ?, ?)
	ON CONFLICT (run_id, record_id) DO UPDATE SET
		label = excluded.label,
		verdict_json = excluded.verdict_json,
		usage_json = excluded.usage_json,
		attempt_count = results.attempt_count + 1,
		error_occurred = excluded.error_occurred,
		first_error_message = COALESCE(results.first_error_message, excluded.first_error_message),
		last_error_message = COALESCE(excluded.last_error_message, results.last_error_message),
		error_category = excluded.error_category,
		processed_at = excluded.processed_at`

// BatchWriter is one commit window of result writes.
type BatchWriter interface {
	// UpsertResult inserts the result or updates the row already present for
	// (run_id, record_id): attempt_count is incremented and the first error
	// message is kept. r.LastErrorMessage carries this attempt's error, if any;
	// r.FirstErrorMessage and r.AttemptCount are ignored.
	UpsertResult(ctx context.Context, r Result) error
	Commit() error
	Rollback() error
}

type batch struct {
	tx   *sqlx.Tx
	stmt *sqlx.Stmt
}

// BeginBatch opens a transaction for a window of result writes.
func (s *Store) BeginBatch(ctx context.Context) (BatchWriter, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin batch: %w", err)
	}

	stmt, err := tx.PreparexContext(ctx, tx.Rebind(upsertResultSQL))
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("prepare upsert: %w", err)
	}

	return &batch{tx: tx, stmt: stmt}, nil
}

func (b *batch) UpsertResult(ctx context.Context, r Result) error {
	_, err := b.stmt.ExecContext(ctx,
		r.RunID, r.RecordID, r.Label, r.VerdictJSON, r.UsageJSON,
		r.ErrorOccurred, r.LastErrorMessage, r.LastErrorMessage, r.ErrorCategory, r.ProcessedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert result %s: %w", r.RecordID, err)
	}
	return nil
}

func (b *batch) Commit() error {
	b.stmt.Close()
	if err := b.tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

func (b *batch) Rollback() error {
	b.stmt.Close()
	return b.tx.Rollback()
}

// UpsertResult writes a single result in its own transaction.
func (s *Store) UpsertResult(ctx context.Context, r Result) error {
	b, err := s.BeginBatch(ctx)
	if err != nil {
		return err
	}
	if err := b.UpsertResult(ctx, r); err != nil {
		b.Rollback()
		return err
	}
	return b.Commit()
}

// FindResult loads the result row for (runID, recordID).
func (s *Store) FindResult(ctx context.Context, runID, recordID string) (*Result, error) {
	r, err := repository.QueryOne[Result](ctx, s.db, `
		SELECT run_id, record_id, label, verdict_json, usage_json, attempt_count,
			error_occurred, first_error_message, last_error_message, error_category, processed_at
		FROM results
		WHERE run_id = ? AND record_id = ?`, runID, recordID)
	if err != nil {
		return nil, fmt.Errorf("find result %s/%s: %w", runID, recordID, err)
	}
	return &r, nil
}

// CountResults returns the number of result rows for a run.
func (s *Store) CountResults(ctx context.Context, runID string) (int, error) {
	n, err := repository.QueryScalar[int](ctx, s.db,
		`SELECT COUNT(*) FROM results WHERE run_id = ?`, runID)
	if err != nil {
		return 0, fmt.Errorf("count results: %w", err)
	}
	return n, nil
}

// Stats returns the total and errored result counts for a run.
func (s *Store) Stats(ctx context.Context, runID string) (ResultStats, error) {
	stats, err := repository.QueryOne[ResultStats](ctx, s.db, `
		SELECT
			COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN error_occurred THEN 1 ELSE 0 END), 0) AS errored
		FROM results
		WHERE run_id = ?`, runID)
	if err != nil {
		return ResultStats{}, fmt.Errorf("result stats: %w", err)
	}
	return stats, nil
}

// Outcomes returns every result of a run joined with its record's ground truth.
func (s *Store) Outcomes(ctx context.Context, runID string) ([]Outcome, error) {
	outcomes, err := repository.QueryMany[Outcome](ctx, s.db, `
		SELECT
			r.record_id, i.ground_truth, r.label, r.verdict_json, r.usage_json,
			r.error_occurred, r.attempt_count
		FROM results r
		JOIN runs u ON u.run_id = r.run_id
		LEFT JOIN input_records i
			ON i.source_name = u.source_name AND i.record_id = r.record_id
		WHERE r.run_id = ?
		ORDER BY r.record_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	return outcomes, nil
}

// StreamResults yields every result of a run in record order without
// buffering the full set.
func (s *Store) StreamResults(ctx context.Context, runID string) iter.Seq2[Result, error] {
	return func(yield func(Result, error) bool) {
		rows, err := s.db.QueryxContext(ctx, s.db.Rebind(`
			SELECT run_id, record_id, label, verdict_json, usage_json, attempt_count,
				error_occurred, first_error_message, last_error_message, error_category, processed_at
			FROM results
			WHERE run_id = ?
			ORDER BY record_id`), runID)
		if err != nil {
			yield(Result{}, fmt.Errorf("query results: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var r Result
			if err := rows.StructScan(&r); err != nil {
				yield(Result{}, fmt.Errorf("scan result: %w", err))
				return
			}
			if !yield(r, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(Result{}, fmt.Errorf("iterate results: %w", err))
		}
	}
}
