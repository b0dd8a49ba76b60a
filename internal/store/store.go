// Package store is the durable state of the run engine: input records, runs,
// and per-record results. Every fact needed to resume a run lives here.
package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"

	"github.com/JaimeStill/verdict/pkg/database"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrations embed.FS

const defaultPageSize = 500

// Store provides access to the verdict schema over either supported driver.
type Store struct {
	db       *sqlx.DB
	cfg      *database.Config
	logger   *slog.Logger
	pageSize int
	now      func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithPageSize sets the keyset page size used by RemainingWork.
func WithPageSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithClock replaces time.Now for timestamps written by the store.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates a Store over the database system's connection pool.
func New(db database.System, logger *slog.Logger, opts ...Option) *Store {
	s := &Store{
		db:       db.Connection(),
		cfg:      db.Config(),
		logger:   logger.With("system", "store"),
		pageSize: defaultPageSize,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB exposes the underlying pool.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Migrations returns the embedded migration files for driver.
func Migrations(driver string) (fs.FS, error) {
	switch driver {
	case database.DriverPostgres, database.DriverSQLite:
		return fs.Sub(migrations, "migrations/"+driver)
	default:
		return nil, fmt.Errorf("no migrations for driver %q", driver)
	}
}

// NewMigrator builds a golang-migrate instance over the embedded migrations for cfg.
// The caller closes it.
func NewMigrator(cfg *database.Config) (*migrate.Migrate, error) {
	files, err := Migrations(cfg.Driver)
	if err != nil {
		return nil, err
	}

	source, err := iofs.New(files, ".")
	if err != nil {
		return nil, fmt.Errorf("create migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, cfg.MigrationURL())
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	return m, nil
}

// EnsureSchema applies any pending migrations and confirms the store accepts
// writes. It is safe to call on every start.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", database.ErrNotReady, err)
	}

	m, err := NewMigrator(s.cfg)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if dirty {
		return fmt.Errorf("schema version %d is dirty", version)
	}

	if err := s.checkWritable(ctx); err != nil {
		return err
	}

	s.logger.Debug("schema ready", "version", version)
	return nil
}

// checkWritable inserts a row inside a transaction that is always rolled back.
// A read-only file or a read-only replica fails here instead of at the first batch.
func (s *Store) checkWritable(ctx context.Context) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrReadOnly, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO sources (source_name, checksum, path, record_count, ingested_at)
		VALUES (?, '', '', 0, ?)`),
		"__verdict_write_check__", s.timestamp(),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrReadOnly, err)
	}
	return nil
}

func (s *Store) timestamp() time.Time {
	return s.now().UTC()
}
