package repositories

import (
	"context"

	"github.com/bimakw/vesting-indexer/internal/domain/entities"
)

// TokenRepository defines the interface for token data operations
type TokenRepository interface {
	// GetBySymbol retrieves a token by symbol, nil when absent
	GetBySymbol(ctx context.Context, symbol string) (*entities.Token, error)

	// Upsert creates or updates a token keyed by symbol
	Upsert(ctx context.Context, token *entities.Token) error

	// BatchUpsert upserts multiple tokens in a single transaction
	BatchUpsert(ctx context.Context, tokens []entities.Token) error
}

// BalanceRepository defines the interface for account balances
type BalanceRepository interface {
	// Get retrieves an account's balances, nil when absent
	Get(ctx context.Context, name string) (*entities.Balance, error)

	// Upsert replaces an account's entry list
	Upsert(ctx context.Context, balance *entities.Balance) error

	// BatchUpsert upserts multiple accounts in a single transaction
	BatchUpsert(ctx context.Context, balances []entities.Balance) error
}
