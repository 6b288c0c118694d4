package database

import (
	"context"
	"fmt"

	"github.com/bimakw/vesting-indexer/internal/domain/entities"
	"github.com/bimakw/vesting-indexer/internal/domain/repositories"
)

// Ensure TransferRepo implements TransferRepository
var _ repositories.TransferRepository = (*TransferRepo)(nil)

const insertTransferQuery = `
	INSERT INTO transfers (sender, receiver, quantity, symbol, memo, block_num, trx_id, block_time)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`

// TransferRepo implements TransferRepository using PostgreSQL
type TransferRepo struct {
	db DBTX
}

// NewTransferRepo creates a new transfer repository
func NewTransferRepo(db DBTX) *TransferRepo {
	return &TransferRepo{db: db}
}

// Insert stores a single transfer
func (r *TransferRepo) Insert(ctx context.Context, t *entities.Transfer) error {
	if _, err := r.db.ExecContext(ctx, insertTransferQuery, transferArgs(t)...); err != nil {
		return fmt.Errorf("failed to insert transfer: %w", err)
	}
	return nil
}

// BatchInsert inserts multiple transfers in a single transaction
func (r *TransferRepo) BatchInsert(ctx context.Context, transfers []entities.Transfer) error {
	return execBatch(ctx, r.db, "transfer", insertTransferQuery, len(transfers), func(i int) []interface{} {
		return transferArgs(&transfers[i])
	})
}

func transferArgs(t *entities.Transfer) []interface{} {
	return []interface{}{
		t.Sender,
		t.Receiver,
		t.Quantity,
		t.Symbol,
		t.Memo,
		t.BlockNum,
		t.TrxID,
		t.Timestamp,
	}
}
