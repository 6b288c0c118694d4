package repositories

import "context"

// Store bundles every repository the materialization pipeline writes to
type Store struct {
	Transfers   TransferRepository
	Rewards     RewardRepository
	Tokens      TokenRepository
	Balances    BalanceRepository
	Vesting     VestingRepository
	Delegations DelegationRepository
	Proposals   ProposalRepository
	Withdrawals WithdrawalRepository
	UserMetas   UserMetaRepository
	ServiceMeta ServiceMetaRepository
}

// Transactor runs a unit of work against a Store bound to one transaction.
// Every write made through that Store commits when fn returns nil and is
// rolled back otherwise.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context, store Store) error) error
}
