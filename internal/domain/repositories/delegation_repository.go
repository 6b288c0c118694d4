package repositories

import (
	"context"

	"github.com/bimakw/vesting-indexer/internal/domain/entities"
)

// DelegationRepository defines the interface for delegation rows
type DelegationRepository interface {
	// GetActive returns the single active row for the pair, nil when none
	GetActive(ctx context.Context, from, to string) (*entities.Delegation, error)

	// Create inserts a new row and sets its ID
	Create(ctx context.Context, delegation *entities.Delegation) error

	// Update persists quantity, interest rate and the active flag
	Update(ctx context.Context, delegation *entities.Delegation) error
}

// ProposalRepository defines the interface for tracked delegate proposals
type ProposalRepository interface {
	Get(ctx context.Context, proposer, proposalID string) (*entities.DelegateVestingProposal, error)
	Upsert(ctx context.Context, proposal *entities.DelegateVestingProposal) error

	// SetSignedByAuthor updates the flag; it reports false when no row matched
	SetSignedByAuthor(ctx context.Context, proposer, proposalID string, signed bool) (bool, error)

	// Delete removes the row if present
	Delete(ctx context.Context, proposer, proposalID string) error
}

// WithdrawalRepository defines the interface for withdrawal schedules
type WithdrawalRepository interface {
	Get(ctx context.Context, owner string) (*entities.Withdrawal, error)
	Upsert(ctx context.Context, withdrawal *entities.Withdrawal) error
	Delete(ctx context.Context, owner string) error
}
