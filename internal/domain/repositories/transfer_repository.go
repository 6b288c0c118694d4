package repositories

import (
	"context"

	"github.com/bimakw/vesting-indexer/internal/domain/entities"
)

// TransferRepository defines the interface for transfer data operations
type TransferRepository interface {
	// Insert stores a single transfer
	Insert(ctx context.Context, transfer *entities.Transfer) error

	// BatchInsert inserts multiple transfers in a single transaction
	BatchInsert(ctx context.Context, transfers []entities.Transfer) error
}

// RewardRepository defines the interface for reward data operations
type RewardRepository interface {
	Insert(ctx context.Context, reward *entities.Reward) error
	BatchInsert(ctx context.Context, rewards []entities.Reward) error
}
