package services

import (
	"context"

	"github.com/bimakw/vesting-indexer/internal/domain/entities"
)

// SnapshotCache serves the two globals behind the vesting/token ratio.
// Implemented by cache.VestingSnapshotCache; a miss returns nil, nil.
type SnapshotCache interface {
	GetStat(ctx context.Context, symbol string) (*entities.VestingStat, error)
	SetStat(ctx context.Context, stat *entities.VestingStat) error
	GetLiquid(ctx context.Context, account, symbol string) (*entities.BalanceEntry, error)
	SetLiquid(ctx context.Context, account string, entry entities.BalanceEntry) error
	Invalidate(ctx context.Context, key string) error
}

// BlockSubscriber delivers irreversible blocks in chain order.
// The error channel carries at most one fatal error; the block channel is
// closed after it.
type BlockSubscriber interface {
	Subscribe(ctx context.Context, fromBlock int64) (<-chan entities.Block, <-chan error, error)
	Close() error
}

// GenesisSource yields genesis records in feed order and io.EOF at the end
type GenesisSource interface {
	Next() (*entities.GenesisRecord, error)
}
