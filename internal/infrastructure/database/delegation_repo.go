package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/bimakw/vesting-indexer/internal/domain/entities"
	"github.com/bimakw/vesting-indexer/internal/domain/repositories"
)

// Ensure DelegationRepo implements DelegationRepository
var _ repositories.DelegationRepository = (*DelegationRepo)(nil)

// DelegationRepo implements DelegationRepository using PostgreSQL
type DelegationRepo struct {
	db DBTX
}

// NewDelegationRepo creates a new delegation repository
func NewDelegationRepo(db DBTX) *DelegationRepo {
	return &DelegationRepo{db: db}
}

// GetActive retrieves the active delegation between two accounts
func (r *DelegationRepo) GetActive(ctx context.Context, from, to string) (*entities.Delegation, error) {
	var d entities.Delegation
	query := `
		SELECT id, from_user, to_user, quantity, interest_rate, is_actual, created_at, updated_at
		FROM delegations
		WHERE from_user = $1 AND to_user = $2 AND is_actual
	`

	if err := r.db.GetContext(ctx, &d, query, from, to); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get delegation: %w", err)
	}

	return &d, nil
}

// Create inserts a new delegation row
func (r *DelegationRepo) Create(ctx context.Context, d *entities.Delegation) error {
	query := `
		INSERT INTO delegations (from_user, to_user, quantity, interest_rate, is_actual)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`

	row := r.db.QueryRowxContext(ctx, query, d.From, d.To, d.Quantity, d.InterestRate, d.IsActual)
	if err := row.Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return fmt.Errorf("failed to create delegation: %w", err)
	}

	return nil
}

// Update persists quantity, interest rate and the active flag
func (r *DelegationRepo) Update(ctx context.Context, d *entities.Delegation) error {
	query := `
		UPDATE delegations SET
			quantity = $2,
			interest_rate = $3,
			is_actual = $4,
			updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, d.ID, d.Quantity, d.InterestRate, d.IsActual)
	if err != nil {
		return fmt.Errorf("failed to update delegation: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("delegation %d not found", d.ID)
	}

	return nil
}
