package repositories

import (
	"context"

	"github.com/bimakw/vesting-indexer/internal/domain/entities"
)

// UserMetaRepository defines the interface for account metadata
type UserMetaRepository interface {
	Get(ctx context.Context, userID string) (*entities.UserMeta, error)

	// Upsert merges non-empty fields into the stored row
	Upsert(ctx context.Context, meta *entities.UserMeta) error

	BatchUpsert(ctx context.Context, metas []entities.UserMeta) error
}
