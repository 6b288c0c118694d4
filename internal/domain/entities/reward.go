package entities

import (
	"time"
)

// RewardType is the reward category carried in the payout memo
type RewardType string

const (
	RewardAuthor      RewardType = "author"
	RewardCurators    RewardType = "curators"
	RewardBeneficiary RewardType = "beneficiary"
	RewardDelegator   RewardType = "delegator"
	RewardUnsent      RewardType = "unsent"
)

// TokenType tells whether a reward was paid liquid or converted to vesting
type TokenType string

const (
	TokenLiquid  TokenType = "liquid"
	TokenVesting TokenType = "vesting"
)

// ContentID identifies the post a reward was paid for
type ContentID struct {
	Author   string `json:"author"`
	Permlink string `json:"permlink"`
}

// Reward is a payout derived from a transfer whose memo follows the reward grammar
type Reward struct {
	ID              int64      `db:"id"`
	UserID          string     `db:"user_id"`
	Type            RewardType `db:"type"`
	Quantity        string     `db:"quantity"`
	Symbol          string     `db:"symbol"`
	TokenType       TokenType  `db:"token_type"`
	VestingQuantity *string    `db:"vesting_quantity"` // set for vesting rewards, in vesting units
	ContentAuthor   string     `db:"content_author"`
	ContentPermlink string     `db:"content_permlink"`
	BlockNum        int64      `db:"block_num"`
	TrxID           string     `db:"trx_id"`
	Timestamp       time.Time  `db:"block_time"`
	CreatedAt       time.Time  `db:"created_at"`
}

// ContentID returns the rewarded post
func (r Reward) ContentID() ContentID {
	return ContentID{Author: r.ContentAuthor, Permlink: r.ContentPermlink}
}
