package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/bimakw/vesting-indexer/internal/domain/entities"
	"github.com/bimakw/vesting-indexer/internal/domain/repositories"
)

var _ repositories.ProposalRepository = (*ProposalRepo)(nil)

// ProposalRepo implements ProposalRepository using PostgreSQL
type ProposalRepo struct {
	db DBTX
}

// NewProposalRepo creates a new proposal repository
func NewProposalRepo(db DBTX) *ProposalRepo {
	return &ProposalRepo{db: db}
}

// Get retrieves a tracked proposal
func (r *ProposalRepo) Get(ctx context.Context, proposer, proposalID string) (*entities.DelegateVestingProposal, error) {
	var p entities.DelegateVestingProposal
	query := `
		SELECT community_id, proposer, proposal_id, user_id, to_user_id, approvers,
			   is_signed_by_author, expiration, quantity, interest_rate, created_at
		FROM delegate_vesting_proposals
		WHERE proposer = $1 AND proposal_id = $2
	`

	if err := r.db.GetContext(ctx, &p, query, proposer, proposalID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get proposal: %w", err)
	}

	return &p, nil
}

// Upsert creates or replaces a tracked proposal
func (r *ProposalRepo) Upsert(ctx context.Context, p *entities.DelegateVestingProposal) error {
	query := `
		INSERT INTO delegate_vesting_proposals (community_id, proposer, proposal_id, user_id, to_user_id,
			approvers, is_signed_by_author, expiration, quantity, interest_rate)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (proposer, proposal_id) DO UPDATE SET
			community_id = EXCLUDED.community_id,
			user_id = EXCLUDED.user_id,
			to_user_id = EXCLUDED.to_user_id,
			approvers = EXCLUDED.approvers,
			is_signed_by_author = EXCLUDED.is_signed_by_author,
			expiration = EXCLUDED.expiration,
			quantity = EXCLUDED.quantity,
			interest_rate = EXCLUDED.interest_rate
	`

	_, err := r.db.ExecContext(ctx, query,
		p.CommunityID,
		p.Proposer,
		p.ProposalID,
		p.UserID,
		p.ToUserID,
		p.Approvers,
		p.IsSignedByAuthor,
		p.Expiration,
		p.Quantity,
		p.InterestRate,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert proposal: %w", err)
	}

	return nil
}

// SetSignedByAuthor updates the author signature flag
func (r *ProposalRepo) SetSignedByAuthor(ctx context.Context, proposer, proposalID string, signed bool) (bool, error) {
	query := `
		UPDATE delegate_vesting_proposals SET is_signed_by_author = $3
		WHERE proposer = $1 AND proposal_id = $2
	`

	result, err := r.db.ExecContext(ctx, query, proposer, proposalID, signed)
	if err != nil {
		return false, fmt.Errorf("failed to update proposal signature: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows > 0, nil
}

// Delete removes a proposal if present
func (r *ProposalRepo) Delete(ctx context.Context, proposer, proposalID string) error {
	query := `DELETE FROM delegate_vesting_proposals WHERE proposer = $1 AND proposal_id = $2`

	if _, err := r.db.ExecContext(ctx, query, proposer, proposalID); err != nil {
		return fmt.Errorf("failed to delete proposal: %w", err)
	}

	return nil
}
