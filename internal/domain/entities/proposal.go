package entities

import (
	"time"

	"github.com/lib/pq"
)

// DelegateVestingProposal tracks an open multisig proposal wrapping a single delegate action
type DelegateVestingProposal struct {
	CommunityID      string         `db:"community_id"`
	Proposer         string         `db:"proposer"`
	ProposalID       string         `db:"proposal_id"`
	UserID           string         `db:"user_id"`
	ToUserID         string         `db:"to_user_id"`
	Approvers        pq.StringArray `db:"approvers"`
	IsSignedByAuthor bool           `db:"is_signed_by_author"`
	Expiration       time.Time      `db:"expiration"`
	Quantity         string         `db:"quantity"`
	InterestRate     int            `db:"interest_rate"`
	CreatedAt        time.Time      `db:"created_at"`
}
