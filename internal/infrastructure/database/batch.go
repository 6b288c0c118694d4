package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// execBatch runs query once per row using a prepared statement; rowArgs
// returns the arguments of row i. On a pool the rows get their own
// transaction, on a *sqlx.Tx they join the caller's.
func execBatch(ctx context.Context, db DBTX, what, query string, n int, rowArgs func(i int) []interface{}) error {
	if n == 0 {
		return nil
	}

	pool, ok := db.(*sqlx.DB)
	if !ok {
		return execRows(ctx, db, what, query, n, rowArgs)
	}

	tx, err := pool.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := execRows(ctx, tx, what, query, n, rowArgs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func execRows(ctx context.Context, db DBTX, what, query string, n int, rowArgs func(i int) []interface{}) error {
	stmt, err := db.PreparexContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, rowArgs(i)...); err != nil {
			return fmt.Errorf("failed to insert %s: %w", what, err)
		}
	}
	return nil
}
