package store

import (
	"context"
	"fmt"
	"iter"

	"github.com/JaimeStill/verdict/pkg/repository"
)

const remainingColumns = `i.source_name, i.record_id, i.text, i.ground_truth, i.source_checksum`

// remainingPredicate returns the result-table predicate for mode along with
// its arguments. Both forms are correlated on i.record_id so each page is a
// single anti-join or semi-join.
func remainingPredicate(runID string, mode Mode) (string, []any, error) {
	switch mode {
	case ModeMissing:
		return `NOT EXISTS (
			SELECT 1 FROM results r
			WHERE r.run_id = ? AND r.record_id = i.record_id
		)`, []any{runID}, nil
	case ModeRetryErrors:
		return `EXISTS (
			SELECT 1 FROM results r
			WHERE r.run_id = ? AND r.record_id = i.record_id AND r.error_occurred = ?
		)`, []any{runID, true}, nil
	default:
		return "", nil, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
}

// RemainingWork yields the records of the run's source that still need a
// result under mode, ordered by record_id. Records are fetched in keyset pages
// (record_id > last seen), so rows written while iterating never shift a page
// and memory stays bounded by the page size.
func (s *Store) RemainingWork(ctx context.Context, runID string, mode Mode) iter.Seq2[InputRecord, error] {
	return func(yield func(InputRecord, error) bool) {
		run, err := s.FindRun(ctx, runID)
		if err != nil {
			yield(InputRecord{}, err)
			return
		}

		predicate, predArgs, err := remainingPredicate(runID, mode)
		if err != nil {
			yield(InputRecord{}, err)
			return
		}

		q := fmt.Sprintf(`
			SELECT %s
			FROM input_records i
			WHERE i.source_name = ?
				AND i.record_id > ?
				AND %s
			ORDER BY i.record_id
			LIMIT ?`, remainingColumns, predicate)

		cursor := ""
		for {
			args := make([]any, 0, len(predArgs)+3)
			args = append(args, run.SourceName, cursor)
			args = append(args, predArgs...)
			args = append(args, s.pageSize)

			page, err := repository.QueryMany[InputRecord](ctx, s.db, q, args...)
			if err != nil {
				yield(InputRecord{}, fmt.Errorf("remaining work after %q: %w", cursor, err))
				return
			}

			for _, rec := range page {
				if !yield(rec, nil) {
					return
				}
			}

			if len(page) < s.pageSize {
				return
			}
			cursor = page[len(page)-1].RecordID
		}
	}
}

// CountRemaining counts the records RemainingWork would yield.
func (s *Store) CountRemaining(ctx context.Context, runID string, mode Mode) (int, error) {
	run, err := s.FindRun(ctx, runID)
	if err != nil {
		return 0, err
	}

	predicate, predArgs, err := remainingPredicate(runID, mode)
	if err != nil {
		return 0, err
	}

	q := fmt.Sprintf(`
		SELECT COUNT(*)
		FROM input_records i
		WHERE i.source_name = ?
			AND %s`, predicate)

	args := append([]any{run.SourceName}, predArgs...)
	n, err := repository.QueryScalar[int](ctx, s.db, q, args...)
	if err != nil {
		return 0, fmt.Errorf("count remaining: %w", err)
	}
	return n, nil
}
