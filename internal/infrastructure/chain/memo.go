package chain

import (
	"regexp"
	"strings"

	"github.com/bimakw/vesting-indexer/internal/domain/entities"
)

// rewardMemoRegexp matches payout memos:
//
//	[send to: <user>;] [<type>] reward for post <author>:<permlink>
var rewardMemoRegexp = regexp.MustCompile(
	`^(?:send to: ?([a-z0-9.\-]+);\s*)?(?:([a-z]+) )?reward for post ([a-z0-9.\-]+):(\S+)$`,
)

// rewardTypes maps memo type words to reward types; an absent word means author
var rewardTypes = map[string]entities.RewardType{
	"":            entities.RewardAuthor,
	"author":      entities.RewardAuthor,
	"curators":    entities.RewardCurators,
	"curation":    entities.RewardCurators,
	"curator":     entities.RewardCurators,
	"beneficiary": entities.RewardBeneficiary,
	"benefactor":  entities.RewardBeneficiary,
	"delegator":   entities.RewardDelegator,
	"unsent":      entities.RewardUnsent,
}

// MemoKind tags the result of ParseMemo
type MemoKind int

const (
	// MemoTransfer is any memo outside the reward grammar
	MemoTransfer MemoKind = iota
	// MemoReward is a payout memo
	MemoReward
)

// RewardMemo is the reward variant of a parsed memo.
// User is set only for vesting rewards ("send to:" prefix).
type RewardMemo struct {
	IsVesting bool
	User      string
	Type      entities.RewardType
	Author    string
	Permlink  string
}

// Memo is a classified transfer memo
type Memo struct {
	Kind   MemoKind
	Reward RewardMemo
}

// IsReward reports whether the memo matched the reward grammar
func (m Memo) IsReward() bool {
	return m.Kind == MemoReward
}

// ParseMemo classifies a transfer memo. Anything not matching the reward
// grammar is a plain transfer; that is not an error.
func ParseMemo(memo string) Memo {
	m := rewardMemoRegexp.FindStringSubmatch(strings.TrimSpace(memo))
	if m == nil {
		return Memo{Kind: MemoTransfer}
	}

	rewardType, ok := rewardTypes[m[2]]
	if !ok {
		return Memo{Kind: MemoTransfer}
	}

	return Memo{
		Kind: MemoReward,
		Reward: RewardMemo{
			IsVesting: m[1] != "",
			User:      m[1],
			Type:      rewardType,
			Author:    m[3],
			Permlink:  m[4],
		},
	}
}

// IsWithdrawPayout reports whether a transfer is a scheduled withdrawal payout
func IsWithdrawPayout(sender, memo, vestingAccount string) bool {
	return sender == vestingAccount && strings.Contains(memo, "withdraw")
}
