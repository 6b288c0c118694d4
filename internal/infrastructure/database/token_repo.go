package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/bimakw/vesting-indexer/internal/domain/entities"
	"github.com/bimakw/vesting-indexer/internal/domain/repositories"
)

// Ensure TokenRepo implements TokenRepository
var _ repositories.TokenRepository = (*TokenRepo)(nil)

const upsertTokenQuery = `
	INSERT INTO tokens (symbol, issuer, supply, max_supply)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (symbol) DO UPDATE SET
		issuer = EXCLUDED.issuer,
		supply = EXCLUDED.supply,
		max_supply = EXCLUDED.max_supply,
		updated_at = NOW()
`

// TokenRepo implements TokenRepository using PostgreSQL
type TokenRepo struct {
	db DBTX
}

// NewTokenRepo creates a new token repository
func NewTokenRepo(db DBTX) *TokenRepo {
	return &TokenRepo{db: db}
}

// GetBySymbol retrieves a token by its symbol
func (r *TokenRepo) GetBySymbol(ctx context.Context, symbol string) (*entities.Token, error) {
	var token entities.Token
	query := `SELECT symbol, issuer, supply, max_supply, updated_at FROM tokens WHERE symbol = $1`

	if err := r.db.GetContext(ctx, &token, query, symbol); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get token: %w", err)
	}

	return &token, nil
}

// Upsert creates or updates a token
func (r *TokenRepo) Upsert(ctx context.Context, token *entities.Token) error {
	_, err := r.db.ExecContext(ctx, upsertTokenQuery,
		token.Symbol,
		token.Issuer,
		token.Supply,
		token.MaxSupply,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert token: %w", err)
	}

	return nil
}

// BatchUpsert upserts multiple tokens in a single transaction
func (r *TokenRepo) BatchUpsert(ctx context.Context, tokens []entities.Token) error {
	return execBatch(ctx, r.db, "token", upsertTokenQuery, len(tokens), func(i int) []interface{} {
		t := tokens[i]
		return []interface{}{t.Symbol, t.Issuer, t.Supply, t.MaxSupply}
	})
}
