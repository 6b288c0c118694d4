package repositories

import (
	"context"
	"time"

	"github.com/bimakw/vesting-indexer/internal/domain/entities"
)

// ServiceMetaRepository defines the interface for the pipeline checkpoint
type ServiceMetaRepository interface {
	// Get retrieves the checkpoint, or nil when it has never been written
	Get(ctx context.Context) (*entities.ServiceMeta, error)

	// Upsert creates or replaces the checkpoint
	Upsert(ctx context.Context, meta *entities.ServiceMeta) error

	// SetGenesisApplied marks the genesis import as complete
	SetGenesisApplied(ctx context.Context) error

	// UpdateLastBlock records the last dispersed block
	UpdateLastBlock(ctx context.Context, sequence int64, blockTime time.Time) error

	// ResetDerived empties every table built from genesis and blocks,
	// leaving the checkpoint row alone
	ResetDerived(ctx context.Context) error
}
