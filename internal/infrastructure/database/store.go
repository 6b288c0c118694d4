package database

import (
	"github.com/bimakw/vesting-indexer/internal/domain/repositories"
)

// NewStore wires every PostgreSQL repository on db, a pool or a transaction
func NewStore(db DBTX) repositories.Store {
	return repositories.Store{
		Transfers:   NewTransferRepo(db),
		Rewards:     NewRewardRepo(db),
		Tokens:      NewTokenRepo(db),
		Balances:    NewBalanceRepo(db),
		Vesting:     NewVestingRepo(db),
		Delegations: NewDelegationRepo(db),
		Proposals:   NewProposalRepo(db),
		Withdrawals: NewWithdrawalRepo(db),
		UserMetas:   NewUserMetaRepo(db),
		ServiceMeta: NewServiceMetaRepo(db),
	}
}
