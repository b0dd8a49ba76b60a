// Package repository provides database helper functions for transaction management
// and query execution. Queries are written with ? placeholders and rebound to the
// driver's bind style before execution.
package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// Queryer is implemented by *sqlx.DB and *sqlx.Tx.
type Queryer interface {
	sqlx.QueryerContext
	Rebind(query string) string
}

// Executor is implemented by *sqlx.DB and *sqlx.Tx.
type Executor interface {
	sqlx.ExecerContext
	Rebind(query string) string
}

// WithTx executes fn within a database transaction.
// It handles Begin, Commit, and Rollback automatically.
func WithTx[T any](ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) (T, error)) (T, error) {
	var zero T

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return zero, err
	}
	defer tx.Rollback()

	result, err := fn(tx)
	if err != nil {
		return zero, err
	}

	if err := tx.Commit(); err != nil {
		return zero, err
	}

	return result, nil
}

// QueryOne executes a query expected to return a single row and scans it into T
// by db struct tags. Returns sql.ErrNoRows when nothing matches.
func QueryOne[T any](ctx context.Context, q Queryer, query string, args ...any) (T, error) {
	var result T
	if err := sqlx.GetContext(ctx, q, &result, q.Rebind(query), args...); err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

// QueryMany executes a query expected to return multiple rows.
// Returns an empty slice if no rows are found.
func QueryMany[T any](ctx context.Context, q Queryer, query string, args ...any) ([]T, error) {
	results := make([]T, 0)
	if err := sqlx.SelectContext(ctx, q, &results, q.Rebind(query), args...); err != nil {
		return nil, err
	}
	return results, nil
}

// QueryScalar executes a query returning a single column of a single row.
func QueryScalar[T any](ctx context.Context, q Queryer, query string, args ...any) (T, error) {
	var result T
	if err := q.QueryRowxContext(ctx, q.Rebind(query), args...).Scan(&result); err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

// Exec executes a statement and returns the number of affected rows.
func Exec(ctx context.Context, e Executor, query string, args ...any) (int64, error) {
	result, err := e.ExecContext(ctx, e.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// ExecExpectOne executes a statement expected to affect exactly one row.
// Returns sql.ErrNoRows if no rows were affected.
func ExecExpectOne(ctx context.Context, e Executor, query string, args ...any) error {
	rows, err := Exec(ctx, e, query, args...)
	if err != nil {
		return err
	}

	if rows == 0 {
		return sql.ErrNoRows
	}

	return nil
}
