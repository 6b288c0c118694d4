package testutil

import (
	"encoding/json"
	"time"

	"github.com/bimakw/vesting-indexer/internal/config"
	"github.com/bimakw/vesting-indexer/internal/domain/entities"
)

// Common test accounts and contracts
const (
	TokenContract   = "cyber.token"
	VestingContract = "gls.vesting"
	ControlContract = "gls.ctrl"
	SocialContract  = "gls.social"
	MsigContract    = "cyber.msig"
	CommunityID     = "gls"

	Alice   = "alice"
	Bob     = "bob"
	Charlie = "charlie"
)

// TestBlockTime is the default block time of fixtures
var TestBlockTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// ChainConfig returns the contract names used by fixtures
func ChainConfig() config.ChainConfig {
	return config.ChainConfig{
		TokenContract:   TokenContract,
		VestingContract: VestingContract,
		ControlContract: ControlContract,
		SocialContract:  SocialContract,
		MsigContract:    MsigContract,
		CommunityID:     CommunityID,
		TokenSymbol:     "GOLOS",
		VestingSymbol:   "GOLOS",
	}
}

// PipelineConfig returns small batching settings with the fallback withdraw params
func PipelineConfig() config.PipelineConfig {
	return config.PipelineConfig{
		BulkBatchSize:           100,
		BulkMaxInFlight:         2,
		WithdrawIntervals:       13,
		WithdrawIntervalSeconds: 604800,
	}
}

// MustJSON marshals v or panics; for fixture payloads only
func MustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

// CreateTestBlock creates a block with one transaction per given action list
func CreateTestBlock(blockNum int64, trxs ...entities.Transaction) entities.Block {
	b := entities.Block{
		BlockNum:     blockNum,
		BlockTime:    TestBlockTime.Add(time.Duration(blockNum) * 3 * time.Second),
		Transactions: make([]entities.Transaction, 0, len(trxs)),
	}
	for _, trx := range trxs {
		trx.BlockNum = blockNum
		if trx.BlockTime.IsZero() {
			trx.BlockTime = b.BlockTime
		}
		b.Transactions = append(b.Transactions, trx)
	}
	return b
}

// CreateTestTransaction wraps actions into a transaction; block position is
// filled in by CreateTestBlock
func CreateTestTransaction(id string, actions ...entities.Action) entities.Transaction {
	return entities.Transaction{
		ID:      id,
		Actions: actions,
	}
}

// CreateTestAction creates an action; receiver defaults to code
func CreateTestAction(code, action string, args interface{}, opts ...ActionOption) entities.Action {
	a := entities.Action{
		Code:     code,
		Receiver: code,
		Action:   action,
	}
	if args != nil {
		a.Args = MustJSON(args)
	}

	for _, opt := range opts {
		opt(&a)
	}

	return a
}

type ActionOption func(*entities.Action)

func WithReceiver(receiver string) ActionOption {
	return func(a *entities.Action) {
		a.Receiver = receiver
	}
}

func WithRawArgs(args json.RawMessage) ActionOption {
	return func(a *entities.Action) {
		a.Args = args
	}
}

func WithEvents(events ...entities.Event) ActionOption {
	return func(a *entities.Action) {
		a.Events = append(a.Events, events...)
	}
}

// CreateTestEvent creates an event with JSON args
func CreateTestEvent(code, event string, args interface{}) entities.Event {
	return entities.Event{Code: code, Event: event, Args: MustJSON(args)}
}

// TokenBalanceEvent is a token contract balance event
func TokenBalanceEvent(account, balance string) entities.Event {
	return CreateTestEvent(TokenContract, "balance", map[string]string{
		"account": account,
		"balance": balance,
	})
}

// VestingStatEvent is a vesting contract stat event
func VestingStatEvent(supply string) entities.Event {
	return CreateTestEvent(VestingContract, "stat", map[string]string{"supply": supply})
}

// VestingBalanceEvent is a vesting contract balance event
func VestingBalanceEvent(account, vesting, delegated, received string) entities.Event {
	return CreateTestEvent(VestingContract, "balance", map[string]string{
		"account":   account,
		"vesting":   vesting,
		"delegated": delegated,
		"received":  received,
	})
}

// TransferAction is a token transfer with the given memo
func TransferAction(from, to, quantity, memo string, opts ...ActionOption) entities.Action {
	return CreateTestAction(TokenContract, "transfer", map[string]string{
		"from":     from,
		"to":       to,
		"quantity": quantity,
		"memo":     memo,
	}, opts...)
}

// DelegateAction is a vesting delegate action
func DelegateAction(from, to, quantity string, interestRate int) entities.Action {
	return CreateTestAction(VestingContract, "delegate", map[string]interface{}{
		"from":          from,
		"to":            to,
		"quantity":      quantity,
		"interest_rate": interestRate,
	})
}

// UndelegateAction is a vesting undelegate action
func UndelegateAction(from, to, quantity string) entities.Action {
	return CreateTestAction(VestingContract, "undelegate", map[string]string{
		"from":     from,
		"to":       to,
		"quantity": quantity,
	})
}

// CreateTestServiceMeta creates a checkpoint
func CreateTestServiceMeta(genesisApplied bool, lastSequence int64) *entities.ServiceMeta {
	t := TestBlockTime
	return &entities.ServiceMeta{
		IsGenesisApplied: genesisApplied,
		LastSequence:     lastSequence,
		LastBlockTime:    &t,
		UpdatedAt:        time.Now(),
	}
}
