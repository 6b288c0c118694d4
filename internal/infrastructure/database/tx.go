package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/bimakw/vesting-indexer/internal/domain/repositories"
)

// DBTX is the query surface shared by *sqlx.DB and *sqlx.Tx, so every
// repository runs the same on a pool or inside a transaction.
type DBTX interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	PreparexContext(ctx context.Context, query string) (*sqlx.Stmt, error)
}

var (
	_ DBTX = (*sqlx.DB)(nil)
	_ DBTX = (*sqlx.Tx)(nil)

	_ repositories.Transactor = (*Transactor)(nil)
)

// Transactor opens one PostgreSQL transaction per unit of work
type Transactor struct {
	db *sqlx.DB
}

// NewTransactor creates a transactor on db
func NewTransactor(db *sqlx.DB) *Transactor {
	return &Transactor{db: db}
}

// InTx runs fn against a Store bound to a fresh transaction and commits
// when fn succeeds
func (t *Transactor) InTx(ctx context.Context, fn func(ctx context.Context, store repositories.Store) error) error {
	tx, err := t.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(ctx, NewStore(tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
