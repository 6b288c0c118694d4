package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/bimakw/vesting-indexer/internal/domain/entities"
	"github.com/bimakw/vesting-indexer/internal/domain/repositories"
)

var _ repositories.UserMetaRepository = (*UserMetaRepo)(nil)

// Empty incoming values keep what is stored
const upsertUserMetaQuery = `
	INSERT INTO user_metas (user_id, username, name)
	VALUES ($1, $2, $3)
	ON CONFLICT (user_id) DO UPDATE SET
		username = COALESCE(NULLIF(EXCLUDED.username, ''), user_metas.username),
		name = COALESCE(NULLIF(EXCLUDED.name, ''), user_metas.name),
		updated_at = NOW()
`

// UserMetaRepo implements UserMetaRepository using PostgreSQL
type UserMetaRepo struct {
	db DBTX
}

// NewUserMetaRepo creates a new user meta repository
func NewUserMetaRepo(db DBTX) *UserMetaRepo {
	return &UserMetaRepo{db: db}
}

// Get retrieves an account's metadata
func (r *UserMetaRepo) Get(ctx context.Context, userID string) (*entities.UserMeta, error) {
	var meta entities.UserMeta
	query := `SELECT user_id, username, name, updated_at FROM user_metas WHERE user_id = $1`

	if err := r.db.GetContext(ctx, &meta, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user meta: %w", err)
	}

	return &meta, nil
}

// Upsert merges non-empty fields into the stored row
func (r *UserMetaRepo) Upsert(ctx context.Context, meta *entities.UserMeta) error {
	if _, err := r.db.ExecContext(ctx, upsertUserMetaQuery, meta.UserID, meta.Username, meta.Name); err != nil {
		return fmt.Errorf("failed to upsert user meta: %w", err)
	}
	return nil
}

// BatchUpsert upserts multiple accounts in a single transaction
func (r *UserMetaRepo) BatchUpsert(ctx context.Context, metas []entities.UserMeta) error {
	return execBatch(ctx, r.db, "user meta", upsertUserMetaQuery, len(metas), func(i int) []interface{} {
		return []interface{}{metas[i].UserID, metas[i].Username, metas[i].Name}
	})
}
