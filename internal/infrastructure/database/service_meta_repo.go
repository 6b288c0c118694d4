package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bimakw/vesting-indexer/internal/domain/entities"
	"github.com/bimakw/vesting-indexer/internal/domain/repositories"
)

// Ensure ServiceMetaRepo implements ServiceMetaRepository
var _ repositories.ServiceMetaRepository = (*ServiceMetaRepo)(nil)

// ServiceMetaRepo implements ServiceMetaRepository using PostgreSQL.
// The checkpoint is a single row with id = 1.
type ServiceMetaRepo struct {
	db DBTX
}

// NewServiceMetaRepo creates a new checkpoint repository
func NewServiceMetaRepo(db DBTX) *ServiceMetaRepo {
	return &ServiceMetaRepo{db: db}
}

// Get retrieves the checkpoint
func (r *ServiceMetaRepo) Get(ctx context.Context) (*entities.ServiceMeta, error) {
	var meta entities.ServiceMeta
	query := `
		SELECT is_genesis_applied, last_sequence, last_block_time, updated_at
		FROM service_meta WHERE id = 1
	`

	if err := r.db.GetContext(ctx, &meta, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get service meta: %w", err)
	}

	return &meta, nil
}

// Upsert creates or replaces the checkpoint
func (r *ServiceMetaRepo) Upsert(ctx context.Context, meta *entities.ServiceMeta) error {
	query := `
		INSERT INTO service_meta (id, is_genesis_applied, last_sequence, last_block_time)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			is_genesis_applied = EXCLUDED.is_genesis_applied,
			last_sequence = EXCLUDED.last_sequence,
			last_block_time = EXCLUDED.last_block_time,
			updated_at = NOW()
	`

	_, err := r.db.ExecContext(ctx, query, meta.IsGenesisApplied, meta.LastSequence, meta.LastBlockTime)
	if err != nil {
		return fmt.Errorf("failed to upsert service meta: %w", err)
	}

	return nil
}

// SetGenesisApplied marks the genesis import as complete
func (r *ServiceMetaRepo) SetGenesisApplied(ctx context.Context) error {
	query := `
		INSERT INTO service_meta (id, is_genesis_applied)
		VALUES (1, TRUE)
		ON CONFLICT (id) DO UPDATE SET
			is_genesis_applied = TRUE,
			updated_at = NOW()
	`

	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to set genesis applied: %w", err)
	}

	return nil
}

// UpdateLastBlock records the last dispersed block
func (r *ServiceMetaRepo) UpdateLastBlock(ctx context.Context, sequence int64, blockTime time.Time) error {
	query := `
		INSERT INTO service_meta (id, last_sequence, last_block_time)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET
			last_sequence = EXCLUDED.last_sequence,
			last_block_time = EXCLUDED.last_block_time,
			updated_at = NOW()
	`

	if _, err := r.db.ExecContext(ctx, query, sequence, blockTime); err != nil {
		return fmt.Errorf("failed to update last block: %w", err)
	}

	return nil
}

// derivedTables lists every table rebuilt from genesis and blocks
var derivedTables = []string{
	"transfers", "rewards", "balances", "tokens",
	"vesting_stats", "vesting_balances", "vesting_params", "vesting_changes",
	"delegations", "withdrawals", "user_metas", "delegate_vesting_proposals",
}

// ResetDerived empties every derived table in one statement
func (r *ServiceMetaRepo) ResetDerived(ctx context.Context) error {
	query := "TRUNCATE " + strings.Join(derivedTables, ", ") + " RESTART IDENTITY"

	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to reset derived tables: %w", err)
	}

	return nil
}
