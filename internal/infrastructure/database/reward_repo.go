package database

import (
	"context"
	"fmt"

	"github.com/bimakw/vesting-indexer/internal/domain/entities"
	"github.com/bimakw/vesting-indexer/internal/domain/repositories"
)

var _ repositories.RewardRepository = (*RewardRepo)(nil)

const insertRewardQuery = `
	INSERT INTO rewards (user_id, type, quantity, symbol, token_type, vesting_quantity,
						 content_author, content_permlink, block_num, trx_id, block_time)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
`

// RewardRepo implements RewardRepository using PostgreSQL
type RewardRepo struct {
	db DBTX
}

// NewRewardRepo creates a new reward repository
func NewRewardRepo(db DBTX) *RewardRepo {
	return &RewardRepo{db: db}
}

// Insert stores a single reward
func (r *RewardRepo) Insert(ctx context.Context, reward *entities.Reward) error {
	if _, err := r.db.ExecContext(ctx, insertRewardQuery, rewardArgs(reward)...); err != nil {
		return fmt.Errorf("failed to insert reward: %w", err)
	}
	return nil
}

// BatchInsert inserts multiple rewards in a single transaction
func (r *RewardRepo) BatchInsert(ctx context.Context, rewards []entities.Reward) error {
	return execBatch(ctx, r.db, "reward", insertRewardQuery, len(rewards), func(i int) []interface{} {
		return rewardArgs(&rewards[i])
	})
}

func rewardArgs(rw *entities.Reward) []interface{} {
	return []interface{}{
		rw.UserID,
		string(rw.Type),
		rw.Quantity,
		rw.Symbol,
		string(rw.TokenType),
		rw.VestingQuantity,
		rw.ContentAuthor,
		rw.ContentPermlink,
		rw.BlockNum,
		rw.TrxID,
		rw.Timestamp,
	}
}
