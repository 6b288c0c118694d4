package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/bimakw/vesting-indexer/internal/domain/entities"
	"github.com/bimakw/vesting-indexer/internal/domain/errs"
	"github.com/bimakw/vesting-indexer/internal/testutil"
)

// testDispersal disperses straight into the mock store, without a transaction
type testDispersal struct {
	*DispersalService
	store *testutil.MockStore
}

func setupDispersalTest() (*testDispersal, *testutil.MockStore) {
	store := testutil.NewMockStore()
	logger := zap.NewNop()
	chainCfg := testutil.ChainConfig()

	converter := NewVestingConverter(store.Vesting, store.Balances, nil, chainCfg, logger)
	tracker := NewProposalTracker(store.Proposals, chainCfg, logger)
	service := NewDispersalService(converter, tracker, chainCfg, testutil.PipelineConfig(), logger)
	return &testDispersal{DispersalService: service, store: store}, store
}

// disperse runs actions as one transaction of one block
func disperse(t *testing.T, s *testDispersal, blockNum int64, actions ...entities.Action) error {
	t.Helper()
	block := testutil.CreateTestBlock(blockNum, testutil.CreateTestTransaction(fmt.Sprintf("trx-%d", blockNum), actions...))
	_, err := s.Disperse(context.Background(), s.store.Store(), &block)
	return err
}

func mustDisperse(t *testing.T, s *testDispersal, blockNum int64, actions ...entities.Action) {
	t.Helper()
	if err := disperse(t, s, blockNum, actions...); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDispersalService_RouteTable(t *testing.T) {
	service, _ := setupDispersalTest()

	tests := []struct {
		code     string
		receiver string
		action   string
		want     string
	}{
		{"cyber.token", "cyber.token", "transfer", "transfer"},
		{"cyber.token", "cyber.token", "payment", "transfer"},
		{"cyber.token", "cyber.token", "bulktransfer", "bulk_transfer"},
		{"cyber.token", "cyber.token", "bulkpayment", "bulk_transfer"},
		{"cyber.token", "cyber.token", "issue", "token_events"},
		{"cyber.token", "cyber.token", "create", "token_events"},
		{"cyber.token", "cyber.token", "claim", "token_events"},
		{"cyber.token", "gls.vesting", "transfer", "vesting_events"},
		{"gls.vesting", "gls.vesting", "delegate", "delegate"},
		{"gls.vesting", "gls.vesting", "undelegate", "undelegate"},
		{"gls.vesting", "gls.vesting", "timeoutconv", "vesting_events"},
		{"gls.vesting", "gls.vesting", "withdraw", "withdraw"},
		{"gls.vesting", "gls.vesting", "stopwithdraw", "stop_withdraw"},
		{"gls.vesting", "gls.vesting", "setparams", "set_params"},
		{"gls.ctrl", "gls.ctrl", "changevest", "change_vest"},
		{"gls.social", "gls.social", "updatemeta", "update_meta"},
		{"cyber.domain", "cyber.domain", "newusername", "new_username"},
		{"cyber.msig", "cyber.msig", "propose", "proposal"},
		{"cyber.msig", "cyber.msig", "approve", "proposal"},
		{"cyber.msig", "cyber.msig", "unapprove", "proposal"},
		{"cyber.msig", "cyber.msig", "exec", "proposal"},
		{"cyber.msig", "cyber.msig", "cancel", "proposal"},

		// Notifications to other receivers are not ours
		{"cyber.token", "alice", "transfer", ""},
		{"gls.vesting", "alice", "delegate", ""},
		{"cyber.token", "cyber.token", "open", ""},
		{"gls.social", "gls.social", "pin", ""},
	}

	for _, tt := range tests {
		t.Run(tt.code+"/"+tt.receiver+"/"+tt.action, func(t *testing.T) {
			r := service.resolve(&entities.Action{Code: tt.code, Receiver: tt.receiver, Action: tt.action})
			got := ""
			if r != nil {
				got = r.name
			}
			if got != tt.want {
				t.Errorf("expected route %q, got %q", tt.want, got)
			}
		})
	}
}

func TestDispersalService_PlainTransfer(t *testing.T) {
	service, store := setupDispersalTest()

	mustDisperse(t, service, 10,
		testutil.TransferAction(testutil.Alice, testutil.Bob, "1.500 GOLOS", "thanks",
			testutil.WithEvents(
				testutil.TokenBalanceEvent(testutil.Alice, "8.500 GOLOS"),
				testutil.TokenBalanceEvent(testutil.Bob, "1.500 GOLOS"),
			),
		),
	)

	transfers := store.Transfers.All()
	if len(transfers) != 1 {
		t.Fatalf("expected 1 transfer, got %d", len(transfers))
	}
	tr := transfers[0]
	if tr.Sender != testutil.Alice || tr.Receiver != testutil.Bob {
		t.Errorf("unexpected parties: %+v", tr)
	}
	if tr.Quantity != "1.500" || tr.Symbol != "GOLOS" {
		t.Errorf("expected 1.500 GOLOS, got %s %s", tr.Quantity, tr.Symbol)
	}
	if tr.BlockNum != 10 || tr.TrxID != "trx-10" {
		t.Errorf("unexpected position: block %d trx %s", tr.BlockNum, tr.TrxID)
	}
	if len(store.Rewards.All()) != 0 {
		t.Error("expected no rewards")
	}

	balance, _ := store.Balances.Get(context.Background(), testutil.Bob)
	if balance == nil {
		t.Fatal("expected bob's balance")
	}
	if entry, _ := balance.Entry("GOLOS"); entry.String() != "1.500 GOLOS" {
		t.Errorf("expected 1.500 GOLOS, got %s", entry.String())
	}
}

func TestDispersalService_BalanceEntryPerSymbol(t *testing.T) {
	service, store := setupDispersalTest()

	mustDisperse(t, service, 1,
		testutil.CreateTestAction(testutil.TokenContract, "issue", map[string]string{"to": testutil.Alice},
			testutil.WithEvents(
				testutil.TokenBalanceEvent(testutil.Alice, "1.000 GOLOS"),
				testutil.TokenBalanceEvent(testutil.Alice, "5.00 CYBER"),
				testutil.TokenBalanceEvent(testutil.Alice, "2.000 GOLOS"),
				testutil.CreateTestEvent(testutil.TokenContract, "currency", map[string]string{
					"supply":     "100.000 GOLOS",
					"max_supply": "1000.000 GOLOS",
					"issuer":     "gls",
				}),
			),
		),
	)

	balance, _ := store.Balances.Get(context.Background(), testutil.Alice)
	if len(balance.Balances) != 2 {
		t.Fatalf("expected one entry per symbol, got %+v", balance.Balances)
	}
	if balance.Balances[0].String() != "2.000 GOLOS" || balance.Balances[1].String() != "5.00 CYBER" {
		t.Errorf("unexpected entries: %v, %v", balance.Balances[0], balance.Balances[1])
	}

	token, _ := store.Tokens.GetBySymbol(context.Background(), "GOLOS")
	if token == nil || token.Supply != "100.000 GOLOS" || token.Issuer != "gls" {
		t.Errorf("unexpected token: %+v", token)
	}
}

func TestDispersalService_Rewards(t *testing.T) {
	service, store := setupDispersalTest()
	seedSnapshot(t, store, "2000.000000 GOLOS", "1000.000 GOLOS")

	mustDisperse(t, service, 5,
		testutil.TransferAction("gls.publish", testutil.Bob, "1.000 GOLOS", "curators reward for post carol:hello-world"),
		testutil.TransferAction("gls.publish", testutil.VestingContract, "3.000 GOLOS", "send to: alice; reward for post bob:permlink123"),
	)

	rewards := store.Rewards.All()
	if len(rewards) != 2 {
		t.Fatalf("expected 2 rewards, got %d", len(rewards))
	}
	if len(store.Transfers.All()) != 0 {
		t.Error("expected rewards not to be stored as transfers")
	}

	liquid := rewards[0]
	if liquid.UserID != testutil.Bob || liquid.Type != entities.RewardCurators || liquid.TokenType != entities.TokenLiquid {
		t.Errorf("unexpected liquid reward: %+v", liquid)
	}
	if liquid.VestingQuantity != nil {
		t.Error("expected no vesting quantity on liquid reward")
	}
	if liquid.ContentID() != (entities.ContentID{Author: "carol", Permlink: "hello-world"}) {
		t.Errorf("unexpected content id: %+v", liquid.ContentID())
	}

	vesting := rewards[1]
	if vesting.UserID != testutil.Alice || vesting.Type != entities.RewardAuthor || vesting.TokenType != entities.TokenVesting {
		t.Errorf("unexpected vesting reward: %+v", vesting)
	}
	if vesting.VestingQuantity == nil || *vesting.VestingQuantity != "6.000000 GOLOS" {
		t.Errorf("expected vesting quantity 6.000000 GOLOS, got %v", vesting.VestingQuantity)
	}
	if vesting.Quantity != "3.000" {
		t.Errorf("expected quantity 3.000, got %s", vesting.Quantity)
	}
}

func TestDispersalService_VestingRewardWithoutSnapshot(t *testing.T) {
	service, _ := setupDispersalTest()

	err := disperse(t, service, 5,
		testutil.TransferAction("gls.publish", testutil.VestingContract, "3.000 GOLOS", "send to: alice; reward for post bob:p"),
	)
	if !errors.Is(err, errs.DataAbsent) {
		t.Errorf("expected DataAbsent, got %v", err)
	}
}

func TestDispersalService_BulkTransfer(t *testing.T) {
	service, store := setupDispersalTest()

	recipients := make([]map[string]string, 0, 235)
	for i := 0; i < 235; i++ {
		recipients = append(recipients, map[string]string{
			"to":       fmt.Sprintf("user%d", i),
			"quantity": "0.001 GOLOS",
			"memo":     "",
		})
	}

	mustDisperse(t, service, 7,
		testutil.CreateTestAction(testutil.TokenContract, "bulktransfer", map[string]interface{}{
			"from":       testutil.Alice,
			"recipients": recipients,
		}),
	)

	all := store.Transfers.All()
	if len(all) != 235 {
		t.Fatalf("expected 235 transfers, got %d", len(all))
	}
	seen := make(map[string]bool, len(all))
	for _, tr := range all {
		if seen[tr.Receiver] {
			t.Errorf("duplicate transfer to %s", tr.Receiver)
		}
		seen[tr.Receiver] = true
	}

	var sizes []int
	for _, call := range store.Transfers.Calls {
		if call.Method == "BatchInsert" {
			sizes = append(sizes, len(call.Args[0].([]entities.Transfer)))
		}
	}
	sort.Ints(sizes)
	if fmt.Sprint(sizes) != "[35 100 100]" {
		t.Errorf("expected batches [35 100 100], got %v", sizes)
	}
	if store.Transfers.CallCount("Insert") != 0 {
		t.Error("expected bulk transfers not to use single inserts")
	}
}

func TestDispersalService_BulkTransferMissingRecipientField(t *testing.T) {
	service, store := setupDispersalTest()

	err := disperse(t, service, 7,
		testutil.CreateTestAction(testutil.TokenContract, "bulkpayment", map[string]interface{}{
			"from": testutil.Alice,
			"recipients": []map[string]string{
				{"to": testutil.Charlie, "quantity": "1.000 GOLOS"},
				{"to": testutil.Bob},
			},
		}),
	)
	if errs.KindOf(err) != errs.KindMalformedAction {
		t.Errorf("expected MalformedAction, got %v", err)
	}

	// The recipient queued before the bad one must not be flushed
	if n := len(store.Transfers.All()); n != 0 {
		t.Errorf("expected no transfers from a failed bulk action, got %d", n)
	}
	if store.Transfers.CallCount("BatchInsert") != 0 {
		t.Error("expected queued entries to be discarded, not flushed")
	}
}

func TestDispersalService_DelegationNetsToZero(t *testing.T) {
	service, store := setupDispersalTest()

	mustDisperse(t, service, 1, testutil.DelegateAction(testutil.Alice, testutil.Bob, "10.000000 GOLOS", 500))
	mustDisperse(t, service, 2, testutil.DelegateAction(testutil.Alice, testutil.Bob, "5.000000 GOLOS", 500))

	active, _ := store.Delegations.GetActive(context.Background(), testutil.Alice, testutil.Bob)
	if active == nil || active.Quantity != "15.000000 GOLOS" {
		t.Fatalf("expected active delegation of 15.000000 GOLOS, got %+v", active)
	}

	mustDisperse(t, service, 3, testutil.UndelegateAction(testutil.Alice, testutil.Bob, "15.000000 GOLOS"))

	rows := store.Delegations.All()
	if len(rows) != 1 {
		t.Fatalf("expected a single row, got %d", len(rows))
	}
	if rows[0].IsActual {
		t.Error("expected delegation to be closed")
	}
	if rows[0].Quantity != "0.000000 GOLOS" {
		t.Errorf("expected 0.000000 GOLOS, got %s", rows[0].Quantity)
	}

	// A new delegate after close starts a fresh active row
	mustDisperse(t, service, 4, testutil.DelegateAction(testutil.Alice, testutil.Bob, "1.000000 GOLOS", 0))
	if len(store.Delegations.All()) != 2 {
		t.Errorf("expected a second row, got %d", len(store.Delegations.All()))
	}
}

func TestDispersalService_UndelegateEdgeCases(t *testing.T) {
	t.Run("without active delegation", func(t *testing.T) {
		service, store := setupDispersalTest()

		mustDisperse(t, service, 1, testutil.UndelegateAction(testutil.Alice, testutil.Bob, "1.000000 GOLOS"))
		if len(store.Delegations.All()) != 0 {
			t.Error("expected undelegate without a row to be ignored")
		}
	})

	t.Run("clamped to zero", func(t *testing.T) {
		service, store := setupDispersalTest()

		mustDisperse(t, service, 1, testutil.DelegateAction(testutil.Alice, testutil.Bob, "2.000000 GOLOS", 0))
		mustDisperse(t, service, 2, testutil.UndelegateAction(testutil.Alice, testutil.Bob, "3.000000 GOLOS"))

		rows := store.Delegations.All()
		if rows[0].IsActual || rows[0].Quantity != "0.000000 GOLOS" {
			t.Errorf("expected closed zero row, got %+v", rows[0])
		}
	})
}

func TestDispersalService_WithdrawalSchedule(t *testing.T) {
	service, store := setupDispersalTest()
	ctx := context.Background()

	mustDisperse(t, service, 1,
		testutil.CreateTestAction(testutil.VestingContract, "setparams", map[string]interface{}{
			"params": []interface{}{
				[]interface{}{"vesting_withdraw", map[string]int{"intervals": 4, "interval_seconds": 86400}},
				[]interface{}{"vesting_min_amount", map[string]int{"min_amount": 10}},
			},
		}),
	)

	withdraw := testutil.CreateTestAction(testutil.VestingContract, "withdraw", map[string]string{
		"from":     testutil.Alice,
		"to":       testutil.Alice,
		"quantity": "100.000000 GOLOS",
	})
	mustDisperse(t, service, 2, withdraw)

	w, _ := store.Withdrawals.Get(ctx, testutil.Alice)
	if w == nil {
		t.Fatal("expected withdrawal schedule")
	}
	if w.Rate != "25.000000" || w.RemainingPayments != 4 || w.ToWithdraw != "100.000000" {
		t.Errorf("unexpected schedule: %+v", w)
	}
	if w.IntervalSeconds != 86400 {
		t.Errorf("expected interval 86400, got %d", w.IntervalSeconds)
	}

	payout := func(blockNum int64) {
		mustDisperse(t, service, blockNum,
			testutil.TransferAction(testutil.VestingContract, testutil.Alice, "25.000 GOLOS", "withdraw from vesting"))
	}

	payout(3)
	w, _ = store.Withdrawals.Get(ctx, testutil.Alice)
	if w == nil {
		t.Fatal("expected schedule after first payout")
	}
	if w.RemainingPayments != 3 || w.ToWithdraw != "75.000000" {
		t.Errorf("expected 3 remaining and 75.000000 left, got %d and %s", w.RemainingPayments, w.ToWithdraw)
	}
	blockTime := testutil.CreateTestBlock(3).BlockTime
	if !w.NextPayout.Equal(blockTime.Add(24 * time.Hour)) {
		t.Errorf("unexpected next payout %v", w.NextPayout)
	}

	payout(4)
	payout(5)
	payout(6)
	if w, _ := store.Withdrawals.Get(ctx, testutil.Alice); w != nil {
		t.Errorf("expected schedule deleted after last payout, got %+v", w)
	}

	// Payouts without a schedule are still transfers and never recreate it
	payout(7)
	if w, _ := store.Withdrawals.Get(ctx, testutil.Alice); w != nil {
		t.Error("expected completed schedule to stay absent")
	}
	if len(store.Transfers.All()) != 5 {
		t.Errorf("expected 5 payout transfers, got %d", len(store.Transfers.All()))
	}
}

func TestDispersalService_WithdrawUsesFallbackParams(t *testing.T) {
	service, store := setupDispersalTest()

	mustDisperse(t, service, 1,
		testutil.CreateTestAction(testutil.VestingContract, "withdraw", map[string]string{
			"from":     testutil.Bob,
			"to":       testutil.Bob,
			"quantity": "13.000000 GOLOS",
		}),
	)

	w, _ := store.Withdrawals.Get(context.Background(), testutil.Bob)
	if w == nil {
		t.Fatal("expected withdrawal schedule")
	}
	if w.RemainingPayments != 13 || w.Rate != "1.000000" || w.IntervalSeconds != 604800 {
		t.Errorf("expected fallback params, got %+v", w)
	}

	mustDisperse(t, service, 2,
		testutil.CreateTestAction(testutil.VestingContract, "stopwithdraw", map[string]string{"owner": testutil.Bob}),
	)
	if w, _ := store.Withdrawals.Get(context.Background(), testutil.Bob); w != nil {
		t.Error("expected stopwithdraw to delete the schedule")
	}
}

func TestDispersalService_VestingEvents(t *testing.T) {
	service, store := setupDispersalTest()
	ctx := context.Background()

	mustDisperse(t, service, 1,
		testutil.CreateTestAction(testutil.TokenContract, "transfer", map[string]string{
			"from": testutil.Alice, "to": testutil.VestingContract, "quantity": "1.000 GOLOS", "memo": "",
		},
			testutil.WithReceiver(testutil.VestingContract),
			testutil.WithEvents(
				testutil.VestingStatEvent("1000.000000 GOLOS"),
				testutil.CreateTestEvent(testutil.VestingContract, "balance", map[string]string{
					"account": testutil.Alice,
					"vesting": "10.000000 GOLOS",
				}),
			),
		),
	)

	stat, _ := store.Vesting.GetStat(ctx, "GOLOS")
	if stat == nil || stat.Stat != "1000.000000 GOLOS" {
		t.Errorf("unexpected stat: %+v", stat)
	}

	vb, _ := store.Vesting.GetBalance(ctx, testutil.Alice)
	if vb == nil {
		t.Fatal("expected vesting balance")
	}
	if vb.Delegated != "0.000000 GOLOS" || vb.Received != "0.000000 GOLOS" {
		t.Errorf("expected zero delegated and received, got %+v", vb)
	}

	// The vesting notification is not a token transfer
	if len(store.Transfers.All()) != 0 {
		t.Error("expected no transfer from the vesting notification")
	}
}

func TestDispersalService_AccountsAndAudit(t *testing.T) {
	service, store := setupDispersalTest()
	ctx := context.Background()

	mustDisperse(t, service, 1,
		testutil.CreateTestAction("cyber.domain", "newusername", map[string]string{
			"creator": "gls", "owner": testutil.Alice, "name": "alice-golos",
		}),
		testutil.CreateTestAction(testutil.SocialContract, "updatemeta", map[string]interface{}{
			"account": testutil.Alice, "meta": map[string]string{"name": "Alice"},
		}),
		testutil.CreateTestAction(testutil.SocialContract, "updatemeta", map[string]interface{}{
			"account": testutil.Alice, "meta": map[string]string{"about": "hi"},
		}),
		testutil.CreateTestAction(testutil.ControlContract, "changevest", map[string]string{
			"owner": testutil.Alice, "diff": "-1.000000 GOLOS",
		}),
	)

	meta, _ := store.UserMetas.Get(ctx, testutil.Alice)
	if meta == nil || meta.Username != "alice-golos" || meta.Name != "Alice" {
		t.Errorf("unexpected meta: %+v", meta)
	}

	changes := store.Vesting.Changes()
	if len(changes) != 1 || changes[0].Who != testutil.Alice || changes[0].Diff != "-1.000000 GOLOS" {
		t.Errorf("unexpected vesting changes: %+v", changes)
	}
}

func TestDispersalService_MalformedActions(t *testing.T) {
	tests := []struct {
		name   string
		action entities.Action
		field  string
	}{
		{
			name:   "transfer without args",
			action: testutil.CreateTestAction(testutil.TokenContract, "transfer", nil),
			field:  "args",
		},
		{
			name:   "transfer without to",
			action: testutil.CreateTestAction(testutil.TokenContract, "transfer", map[string]string{"from": testutil.Alice, "quantity": "1.000 GOLOS"}),
			field:  "to",
		},
		{
			name:   "delegate without quantity",
			action: testutil.CreateTestAction(testutil.VestingContract, "delegate", map[string]string{"from": testutil.Alice, "to": testutil.Bob}),
			field:  "quantity",
		},
		{
			name:   "setparams without params",
			action: testutil.CreateTestAction(testutil.VestingContract, "setparams", map[string]string{}),
			field:  "params",
		},
		{
			name:   "stopwithdraw without owner",
			action: testutil.CreateTestAction(testutil.VestingContract, "stopwithdraw", map[string]string{}),
			field:  "owner",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, _ := setupDispersalTest()

			err := disperse(t, service, 1, tt.action)
			if !errors.Is(err, errs.MalformedAction) {
				t.Fatalf("expected MalformedAction, got %v", err)
			}

			var e *errs.Error
			if errors.As(err, &e) && e.Field != tt.field {
				t.Errorf("expected field %q, got %q", tt.field, e.Field)
			}
		})
	}
}

func TestDispersalService_StopsAtFirstError(t *testing.T) {
	service, store := setupDispersalTest()

	err := disperse(t, service, 1,
		testutil.TransferAction(testutil.Alice, testutil.Bob, "1.000 GOLOS", ""),
		testutil.CreateTestAction(testutil.TokenContract, "transfer", nil),
		testutil.TransferAction(testutil.Bob, testutil.Alice, "1.000 GOLOS", ""),
	)
	if err == nil {
		t.Fatal("expected error")
	}
	if len(store.Transfers.All()) != 1 {
		t.Errorf("expected processing to stop at the malformed action, got %d transfers", len(store.Transfers.All()))
	}
}

func TestDispersalService_UnroutedActionsIgnored(t *testing.T) {
	service, store := setupDispersalTest()

	mustDisperse(t, service, 1,
		testutil.CreateTestAction("cyber.stake", "delegateuse", map[string]string{"grantor_name": testutil.Alice}),
		testutil.TransferAction(testutil.Alice, testutil.Bob, "1.000 GOLOS", "", testutil.WithReceiver(testutil.Bob)),
	)

	if len(store.Transfers.All()) != 0 {
		t.Error("expected unrouted actions to write nothing")
	}
}

func TestDispersalService_StoreErrorPropagates(t *testing.T) {
	service, store := setupDispersalTest()
	store.Transfers.InsertFunc = func(ctx context.Context, transfer *entities.Transfer) error {
		return errors.New("connection reset")
	}

	err := disperse(t, service, 1, testutil.TransferAction(testutil.Alice, testutil.Bob, "1.000 GOLOS", ""))
	if err == nil {
		t.Fatal("expected error")
	}
	if errs.KindOf(err) != errs.KindUnknown {
		t.Errorf("expected unclassified error, got %v", errs.KindOf(err))
	}
}
