package store

import (
	"context"
	"fmt"
	"time"

	"github.com/JaimeStill/verdict/pkg/pagination"
	"github.com/JaimeStill/verdict/pkg/query"
	"github.com/JaimeStill/verdict/pkg/repository"
)

// CreateRun inserts a new run row. A colliding run id returns ErrDuplicateRun.
func (s *Store) CreateRun(ctx context.Context, run Run) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = s.timestamp()
	}
	if run.Status == "" {
		run.Status = StatusRunning
	}

	_, err := repository.Exec(ctx, s.db, `
		INSERT INTO runs (
			run_id, name, source_name, status, config_json,
			total_items, completed_items, started_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Name, run.SourceName, run.Status, run.ConfigJSON,
		run.TotalItems, run.CompletedItems, run.StartedAt,
	)
	if err != nil {
		return repository.MapError(err, ErrRunNotFound, fmt.Errorf("%w: %s", ErrDuplicateRun, run.RunID))
	}
	return nil
}

// FindRun loads a run by id.
func (s *Store) FindRun(ctx context.Context, runID string) (*Run, error) {
	q, args := query.NewBuilder(runProjection).BuildSingle("RunID", runID)

	run, err := repository.QueryOne[Run](ctx, s.db, q, args...)
	if err != nil {
		return nil, repository.MapError(err, fmt.Errorf("%w: %s", ErrRunNotFound, runID), ErrDuplicateRun)
	}
	return &run, nil
}

// ListRuns returns a page of runs, newest first unless page.Sort says otherwise.
func (s *Store) ListRuns(ctx context.Context, page pagination.PageRequest, filters RunFilters) (*pagination.PageResult[Run], error) {
	qb := query.
		NewBuilder(runProjection, defaultRunSort).
		WhereSearch(page.Search, "Name", "RunID")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	total, err := repository.QueryScalar[int](ctx, s.db, countSQL, countArgs...)
	if err != nil {
		return nil, fmt.Errorf("count runs: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	runs, err := repository.QueryMany[Run](ctx, s.db, pageSQL, pageArgs...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}

	result := pagination.NewPageResult(runs, total, page.Page, page.PageSize)
	return &result, nil
}

// MarkRunning moves a run back to running for a resume and clears its end time.
func (s *Store) MarkRunning(ctx context.Context, runID string) error {
	err := repository.ExecExpectOne(ctx, s.db, `
		UPDATE runs
		SET status = ?, ended_at = NULL, failure_reason = NULL
		WHERE run_id = ?`,
		StatusRunning, runID,
	)
	return s.mapRunErr(err, runID)
}

// SetRunStatus records a terminal or interrupted status. reason is stored as
// the failure reason and may be empty.
func (s *Store) SetRunStatus(ctx context.Context, runID string, status Status, reason string) error {
	var failure *string
	if reason != "" {
		failure = &reason
	}

	err := repository.ExecExpectOne(ctx, s.db, `
		UPDATE runs
		SET status = ?, failure_reason = ?, ended_at = ?
		WHERE run_id = ?`,
		status, failure, s.timestamp(), runID,
	)
	return s.mapRunErr(err, runID)
}

// UpdateProgress writes the progress fields of a run. It always runs on the
// pool, outside any batch transaction, so a failed progress write never
// undoes committed results. completed_items never decreases.
func (s *Store) UpdateProgress(ctx context.Context, runID string, completed, total int, etaAt *time.Time) error {
	err := repository.ExecExpectOne(ctx, s.db, `
		UPDATE runs
		SET completed_items = CASE WHEN ? > completed_items THEN ? ELSE completed_items END,
			total_items = ?,
			last_progress_at = ?,
			estimated_completion_at = ?
		WHERE run_id = ?`,
		completed, completed, total, s.timestamp(), utc(etaAt), runID,
	)
	return s.mapRunErr(err, runID)
}

// FinalizeRun marks a run completed with its aggregate metrics. Calling it
// again on a completed run rewrites the metrics and end time.
func (s *Store) FinalizeRun(ctx context.Context, runID, metricsJSON string, completed int) error {
	err := repository.ExecExpectOne(ctx, s.db, `
		UPDATE runs
		SET status = ?,
			metrics_json = ?,
			completed_items = CASE WHEN ? > completed_items THEN ? ELSE completed_items END,
			estimated_completion_at = NULL,
			failure_reason = NULL,
			ended_at = ?
		WHERE run_id = ?`,
		StatusCompleted, metricsJSON, completed, completed, s.timestamp(), runID,
	)
	return s.mapRunErr(err, runID)
}

func (s *Store) mapRunErr(err error, runID string) error {
	if err == nil {
		return nil
	}
	return repository.MapError(err, fmt.Errorf("%w: %s", ErrRunNotFound, runID), ErrDuplicateRun)
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
