package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/bimakw/vesting-indexer/internal/domain/entities"
	"github.com/bimakw/vesting-indexer/internal/domain/repositories"
)

var _ repositories.WithdrawalRepository = (*WithdrawalRepo)(nil)

// WithdrawalRepo implements WithdrawalRepository using PostgreSQL
type WithdrawalRepo struct {
	db DBTX
}

// NewWithdrawalRepo creates a new withdrawal repository
func NewWithdrawalRepo(db DBTX) *WithdrawalRepo {
	return &WithdrawalRepo{db: db}
}

// Get retrieves an owner's withdrawal schedule
func (r *WithdrawalRepo) Get(ctx context.Context, owner string) (*entities.Withdrawal, error) {
	var w entities.Withdrawal
	query := `
		SELECT owner, to_user, quantity, rate, remaining_payments, interval_seconds,
			   next_payout, to_withdraw, updated_at
		FROM withdrawals WHERE owner = $1
	`

	if err := r.db.GetContext(ctx, &w, query, owner); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get withdrawal: %w", err)
	}

	return &w, nil
}

// Upsert creates or refreshes a withdrawal schedule
func (r *WithdrawalRepo) Upsert(ctx context.Context, w *entities.Withdrawal) error {
	query := `
		INSERT INTO withdrawals (owner, to_user, quantity, rate, remaining_payments,
								 interval_seconds, next_payout, to_withdraw)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (owner) DO UPDATE SET
			to_user = EXCLUDED.to_user,
			quantity = EXCLUDED.quantity,
			rate = EXCLUDED.rate,
			remaining_payments = EXCLUDED.remaining_payments,
			interval_seconds = EXCLUDED.interval_seconds,
			next_payout = EXCLUDED.next_payout,
			to_withdraw = EXCLUDED.to_withdraw,
			updated_at = NOW()
	`

	_, err := r.db.ExecContext(ctx, query,
		w.Owner,
		w.To,
		w.Quantity,
		w.Rate,
		w.RemainingPayments,
		w.IntervalSeconds,
		w.NextPayout,
		w.ToWithdraw,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert withdrawal: %w", err)
	}

	return nil
}

// Delete removes an owner's schedule if present
func (r *WithdrawalRepo) Delete(ctx context.Context, owner string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM withdrawals WHERE owner = $1`, owner); err != nil {
		return fmt.Errorf("failed to delete withdrawal: %w", err)
	}
	return nil
}
