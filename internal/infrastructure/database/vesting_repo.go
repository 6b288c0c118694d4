package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/bimakw/vesting-indexer/internal/domain/entities"
	"github.com/bimakw/vesting-indexer/internal/domain/repositories"
)

// Ensure VestingRepo implements VestingRepository
var _ repositories.VestingRepository = (*VestingRepo)(nil)

const upsertVestingBalanceQuery = `
	INSERT INTO vesting_balances (account, vesting, delegated, received)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (account) DO UPDATE SET
		vesting = EXCLUDED.vesting,
		delegated = EXCLUDED.delegated,
		received = EXCLUDED.received,
		updated_at = NOW()
`

// VestingRepo implements VestingRepository using PostgreSQL
type VestingRepo struct {
	db DBTX
}

// NewVestingRepo creates a new vesting repository
func NewVestingRepo(db DBTX) *VestingRepo {
	return &VestingRepo{db: db}
}

// GetStat retrieves the total vesting supply for a symbol
func (r *VestingRepo) GetStat(ctx context.Context, symbol string) (*entities.VestingStat, error) {
	var stat entities.VestingStat
	query := `SELECT symbol, stat, updated_at FROM vesting_stats WHERE symbol = $1`

	if err := r.db.GetContext(ctx, &stat, query, symbol); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get vesting stat: %w", err)
	}

	return &stat, nil
}

// UpsertStat creates or updates the vesting stat
func (r *VestingRepo) UpsertStat(ctx context.Context, stat *entities.VestingStat) error {
	query := `
		INSERT INTO vesting_stats (symbol, stat)
		VALUES ($1, $2)
		ON CONFLICT (symbol) DO UPDATE SET
			stat = EXCLUDED.stat,
			updated_at = NOW()
	`

	if _, err := r.db.ExecContext(ctx, query, stat.Symbol, stat.Stat); err != nil {
		return fmt.Errorf("failed to upsert vesting stat: %w", err)
	}

	return nil
}

// GetBalance retrieves an account's vesting position
func (r *VestingRepo) GetBalance(ctx context.Context, account string) (*entities.VestingBalance, error) {
	var balance entities.VestingBalance
	query := `
		SELECT account, vesting, delegated, received, updated_at
		FROM vesting_balances WHERE account = $1
	`

	if err := r.db.GetContext(ctx, &balance, query, account); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get vesting balance: %w", err)
	}

	return &balance, nil
}

// UpsertBalance creates or updates an account's vesting position
func (r *VestingRepo) UpsertBalance(ctx context.Context, b *entities.VestingBalance) error {
	if _, err := r.db.ExecContext(ctx, upsertVestingBalanceQuery, b.Account, b.Vesting, b.Delegated, b.Received); err != nil {
		return fmt.Errorf("failed to upsert vesting balance: %w", err)
	}
	return nil
}

// BatchUpsertBalances upserts multiple vesting positions in a single transaction
func (r *VestingRepo) BatchUpsertBalances(ctx context.Context, balances []entities.VestingBalance) error {
	return execBatch(ctx, r.db, "vesting balance", upsertVestingBalanceQuery, len(balances), func(i int) []interface{} {
		b := balances[i]
		return []interface{}{b.Account, b.Vesting, b.Delegated, b.Received}
	})
}

// GetParams retrieves the withdrawal params singleton
func (r *VestingRepo) GetParams(ctx context.Context) (*entities.VestingParams, error) {
	var params entities.VestingParams
	query := `SELECT intervals, interval_seconds, updated_at FROM vesting_params WHERE id = 1`

	if err := r.db.GetContext(ctx, &params, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get vesting params: %w", err)
	}

	return &params, nil
}

// UpsertParams creates or updates the withdrawal params singleton
func (r *VestingRepo) UpsertParams(ctx context.Context, params *entities.VestingParams) error {
	query := `
		INSERT INTO vesting_params (id, intervals, interval_seconds)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET
			intervals = EXCLUDED.intervals,
			interval_seconds = EXCLUDED.interval_seconds,
			updated_at = NOW()
	`

	if _, err := r.db.ExecContext(ctx, query, params.Intervals, params.IntervalSeconds); err != nil {
		return fmt.Errorf("failed to upsert vesting params: %w", err)
	}

	return nil
}

// InsertChange stores a vesting change audit row
func (r *VestingRepo) InsertChange(ctx context.Context, c *entities.VestingChange) error {
	query := `
		INSERT INTO vesting_changes (who, diff, block_num, trx_id, block_time)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	if err := r.db.GetContext(ctx, &c.ID, query, c.Who, c.Diff, c.BlockNum, c.TrxID, c.Timestamp); err != nil {
		return fmt.Errorf("failed to insert vesting change: %w", err)
	}

	return nil
}
