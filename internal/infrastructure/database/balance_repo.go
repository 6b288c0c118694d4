package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/bimakw/vesting-indexer/internal/domain/entities"
	"github.com/bimakw/vesting-indexer/internal/domain/repositories"
)

var _ repositories.BalanceRepository = (*BalanceRepo)(nil)

const upsertBalanceQuery = `
	INSERT INTO balances (name, balances)
	VALUES ($1, $2)
	ON CONFLICT (name) DO UPDATE SET
		balances = EXCLUDED.balances,
		updated_at = NOW()
`

// BalanceRepo implements BalanceRepository using PostgreSQL.
// Entries are kept as a JSONB array so the per-symbol order is preserved.
type BalanceRepo struct {
	db DBTX
}

// NewBalanceRepo creates a new balance repository
func NewBalanceRepo(db DBTX) *BalanceRepo {
	return &BalanceRepo{db: db}
}

// Get retrieves an account's balances
func (r *BalanceRepo) Get(ctx context.Context, name string) (*entities.Balance, error) {
	var balance entities.Balance
	query := `SELECT name, balances, updated_at FROM balances WHERE name = $1`

	if err := r.db.GetContext(ctx, &balance, query, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}

	return &balance, nil
}

// Upsert replaces an account's entry list
func (r *BalanceRepo) Upsert(ctx context.Context, balance *entities.Balance) error {
	if _, err := r.db.ExecContext(ctx, upsertBalanceQuery, balance.Name, balance.Balances); err != nil {
		return fmt.Errorf("failed to upsert balance: %w", err)
	}
	return nil
}

// BatchUpsert upserts multiple accounts in a single transaction
func (r *BalanceRepo) BatchUpsert(ctx context.Context, balances []entities.Balance) error {
	return execBatch(ctx, r.db, "balance", upsertBalanceQuery, len(balances), func(i int) []interface{} {
		return []interface{}{balances[i].Name, balances[i].Balances}
	})
}
