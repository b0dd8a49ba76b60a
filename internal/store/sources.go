package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/JaimeStill/verdict/pkg/repository"
)

// VerifyOrRecordChecksum records checksum on the first ingest of sourceName and
// compares against it on every later call. It returns false on mismatch.
func (s *Store) VerifyOrRecordChecksum(ctx context.Context, sourceName, checksum, path string) (bool, error) {
	if _, err := repository.Exec(ctx, s.db, `
		INSERT INTO sources (source_name, checksum, path, record_count, ingested_at)
		VALUES (?, ?, ?, 0, ?)
		ON CONFLICT (source_name) DO NOTHING`,
		sourceName, checksum, path, s.timestamp(),
	); err != nil {
		return false, fmt.Errorf("record checksum: %w", err)
	}

	recorded, err := repository.QueryScalar[string](ctx, s.db,
		`SELECT checksum FROM sources WHERE source_name = ?`, sourceName)
	if err != nil {
		return false, fmt.Errorf("read checksum: %w", err)
	}

	if recorded != checksum {
		s.logger.WarnContext(ctx, "source checksum mismatch",
			"source", sourceName, "recorded", recorded, "actual", checksum)
		return false, nil
	}
	return true, nil
}

// FindSource returns the ingest record for sourceName.
func (s *Store) FindSource(ctx context.Context, sourceName string) (*Source, error) {
	src, err := repository.QueryOne[Source](ctx, s.db, `
		SELECT source_name, checksum, path, record_count, ingested_at
		FROM sources
		WHERE source_name = ?`, sourceName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, sourceName)
		}
		return nil, fmt.Errorf("find source: %w", err)
	}
	return &src, nil
}

// InsertRecords adds records in a single transaction. Records already present
// for (source_name, record_id) are left untouched, so re-ingesting the same
// file is a no-op. It returns the number of newly inserted rows.
func (s *Store) InsertRecords(ctx context.Context, records []InputRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	return repository.WithTx(ctx, s.db, func(tx *sqlx.Tx) (int, error) {
		stmt, err := tx.PreparexContext(ctx, tx.Rebind(`
			INSERT INTO input_records (source_name, record_id, text, ground_truth, source_checksum)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (source_name, record_id) DO NOTHING`))
		if err != nil {
			return 0, fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		inserted := 0
		sources := make(map[string]struct{})

		for _, r := range records {
			res, err := stmt.ExecContext(ctx, r.SourceName, r.RecordID, r.Text, r.GroundTruth, r.SourceChecksum)
			if err != nil {
				return 0, fmt.Errorf("insert record %s: %w", r.RecordID, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return 0, err
			}
			inserted += int(n)
			sources[r.SourceName] = struct{}{}
		}

		for name := range sources {
			if _, err := repository.Exec(ctx, tx, `
				UPDATE sources
				SET record_count = (SELECT COUNT(*) FROM input_records WHERE source_name = ?)
				WHERE source_name = ?`, name, name); err != nil {
				return 0, fmt.Errorf("update record count: %w", err)
			}
		}

		return inserted, nil
	})
}

// CountRecords returns the number of input records for sourceName.
func (s *Store) CountRecords(ctx context.Context, sourceName string) (int, error) {
	n, err := repository.QueryScalar[int](ctx, s.db,
		`SELECT COUNT(*) FROM input_records WHERE source_name = ?`, sourceName)
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}
