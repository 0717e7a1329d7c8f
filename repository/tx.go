package repository

import (
	"context"
	"database/sql"
)

// inTx runs fn inside a transaction, committing on success and rolling
// back on any error. No intermediate state is visible outside the
// transaction until commit.
func inTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// queryer is the subset of *sql.DB / *sql.Tx the lookup helpers need, so
// validations can run either standalone or inside a cascade transaction.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}
