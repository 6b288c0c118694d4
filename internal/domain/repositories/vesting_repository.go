package repositories

import (
	"context"

	"github.com/bimakw/vesting-indexer/internal/domain/entities"
)

// VestingRepository defines the interface for vesting state: the global stat,
// per-account positions, withdrawal params and the change audit log
type VestingRepository interface {
	GetStat(ctx context.Context, symbol string) (*entities.VestingStat, error)
	UpsertStat(ctx context.Context, stat *entities.VestingStat) error

	GetBalance(ctx context.Context, account string) (*entities.VestingBalance, error)
	UpsertBalance(ctx context.Context, balance *entities.VestingBalance) error
	BatchUpsertBalances(ctx context.Context, balances []entities.VestingBalance) error

	// GetParams returns the singleton params row, nil before the first setparams
	GetParams(ctx context.Context) (*entities.VestingParams, error)
	UpsertParams(ctx context.Context, params *entities.VestingParams) error

	InsertChange(ctx context.Context, change *entities.VestingChange) error
}
