package services

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/bimakw/vesting-indexer/internal/domain/errs"
	"github.com/bimakw/vesting-indexer/internal/infrastructure/chain"
	"github.com/bimakw/vesting-indexer/internal/testutil"
)

func setupProposalTrackerTest() (*ProposalTracker, *testutil.MockProposalRepository) {
	repo := testutil.NewMockProposalRepository()
	tracker := NewProposalTracker(repo, testutil.ChainConfig(), zap.NewNop())
	return tracker, repo
}

func proposeArgsJSON(proposer, name string, actions ...map[string]interface{}) json.RawMessage {
	return testutil.MustJSON(map[string]interface{}{
		"proposer":      proposer,
		"proposal_name": name,
		"requested": []map[string]string{
			{"actor": testutil.Alice, "permission": "active"},
			{"actor": testutil.Bob, "permission": "active"},
		},
		"trx": map[string]interface{}{
			"expiration": "2024-03-08T12:00:00",
			"actions":    actions,
		},
	})
}

func delegateInner(data interface{}) map[string]interface{} {
	return map[string]interface{}{
		"account":       testutil.VestingContract,
		"name":          "delegate",
		"authorization": []map[string]string{{"actor": testutil.Alice, "permission": "active"}},
		"data":          data,
	}
}

func approveArgsJSON(proposer, name, actor string) json.RawMessage {
	return testutil.MustJSON(map[string]interface{}{
		"proposer":      proposer,
		"proposal_name": name,
		"level":         map[string]string{"actor": actor, "permission": "active"},
	})
}

func closeArgsJSON(proposer, name string) json.RawMessage {
	return testutil.MustJSON(map[string]string{"proposer": proposer, "proposal_name": name})
}

func TestProposalTracker_Lifecycle(t *testing.T) {
	tracker, repo := setupProposalTrackerTest()
	ctx := context.Background()

	data := map[string]interface{}{
		"from":          testutil.Alice,
		"to":            testutil.Bob,
		"quantity":      "10.000000 GOLOS",
		"interest_rate": 250,
	}
	if err := tracker.Handle(ctx, "propose", proposeArgsJSON(testutil.Charlie, "deleg1", delegateInner(data))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p, _ := repo.Get(ctx, testutil.Charlie, "deleg1")
	if p == nil {
		t.Fatal("expected tracked proposal")
	}
	if p.CommunityID != testutil.CommunityID || p.UserID != testutil.Alice || p.ToUserID != testutil.Bob {
		t.Errorf("unexpected proposal: %+v", p)
	}
	if p.Quantity != "10.000000 GOLOS" || p.InterestRate != 250 {
		t.Errorf("unexpected delegate data: %s %d", p.Quantity, p.InterestRate)
	}
	if len(p.Approvers) != 2 || p.Approvers[0] != testutil.Alice || p.Approvers[1] != testutil.Bob {
		t.Errorf("unexpected approvers: %v", p.Approvers)
	}
	if !p.Expiration.Equal(time.Date(2024, 3, 8, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected expiration: %v", p.Expiration)
	}
	if p.IsSignedByAuthor {
		t.Error("expected new proposal to be unsigned")
	}

	// Approval by someone other than the delegating user changes nothing
	if err := tracker.Handle(ctx, "approve", approveArgsJSON(testutil.Charlie, "deleg1", testutil.Bob)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p, _ = repo.Get(ctx, testutil.Charlie, "deleg1")
	if p.IsSignedByAuthor {
		t.Error("expected approval by another actor to be ignored")
	}

	if err := tracker.Handle(ctx, "approve", approveArgsJSON(testutil.Charlie, "deleg1", testutil.Alice)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p, _ = repo.Get(ctx, testutil.Charlie, "deleg1")
	if !p.IsSignedByAuthor {
		t.Error("expected proposal signed by author")
	}

	if err := tracker.Handle(ctx, "unapprove", approveArgsJSON(testutil.Charlie, "deleg1", testutil.Alice)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p, _ = repo.Get(ctx, testutil.Charlie, "deleg1")
	if p.IsSignedByAuthor {
		t.Error("expected unapprove to clear the flag")
	}

	if err := tracker.Handle(ctx, "approve", approveArgsJSON(testutil.Charlie, "deleg1", testutil.Alice)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := tracker.Handle(ctx, "exec", closeArgsJSON(testutil.Charlie, "deleg1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p, _ := repo.Get(ctx, testutil.Charlie, "deleg1"); p != nil {
		t.Fatal("expected proposal removed after exec")
	}

	// A second approve after exec has nothing to update
	signs := repo.CallCount("SetSignedByAuthor")
	if err := tracker.Handle(ctx, "approve", approveArgsJSON(testutil.Charlie, "deleg1", testutil.Alice)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.CallCount("SetSignedByAuthor") != signs {
		t.Error("expected no update after exec")
	}
	if p, _ := repo.Get(ctx, testutil.Charlie, "deleg1"); p != nil {
		t.Error("expected approve not to resurrect the proposal")
	}
}

func TestProposalTracker_HexDelegateData(t *testing.T) {
	tracker, repo := setupProposalTrackerTest()
	ctx := context.Background()

	packed, err := chain.PackDelegateArgs(chain.DelegateArgs{
		From:         testutil.Alice,
		To:           testutil.Bob,
		Quantity:     "1.500000 GOLOS",
		InterestRate: 100,
	})
	if err != nil {
		t.Fatalf("failed to pack: %v", err)
	}

	args := proposeArgsJSON(testutil.Alice, "hexprop", delegateInner(hex.EncodeToString(packed)))
	if err := tracker.Handle(ctx, "propose", args); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p, _ := repo.Get(ctx, testutil.Alice, "hexprop")
	if p == nil {
		t.Fatal("expected tracked proposal")
	}
	if p.UserID != testutil.Alice || p.ToUserID != testutil.Bob || p.Quantity != "1.500000 GOLOS" || p.InterestRate != 100 {
		t.Errorf("unexpected proposal from hex data: %+v", p)
	}
}

func TestProposalTracker_IgnoresOtherProposals(t *testing.T) {
	tracker, repo := setupProposalTrackerTest()
	ctx := context.Background()

	data := map[string]interface{}{"from": testutil.Alice, "to": testutil.Bob, "quantity": "1.000000 GOLOS", "interest_rate": 0}

	tests := []struct {
		name string
		args json.RawMessage
	}{
		{"two actions", proposeArgsJSON(testutil.Alice, "multi", delegateInner(data), delegateInner(data))},
		{"not a delegate", proposeArgsJSON(testutil.Alice, "other", map[string]interface{}{
			"account": testutil.TokenContract,
			"name":    "transfer",
			"data":    map[string]string{"from": testutil.Alice},
		})},
		{"no actions", proposeArgsJSON(testutil.Alice, "empty")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tracker.Handle(ctx, "propose", tt.args); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}

	if repo.CallCount("Upsert") != 0 {
		t.Errorf("expected nothing tracked, got %d upserts", repo.CallCount("Upsert"))
	}
}

func TestProposalTracker_CancelUntracked(t *testing.T) {
	tracker, repo := setupProposalTrackerTest()

	if err := tracker.Handle(context.Background(), "cancel", closeArgsJSON(testutil.Alice, "unknown")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.CallCount("Delete") != 1 {
		t.Error("expected delete regardless of tracking")
	}
}

func TestProposalTracker_Malformed(t *testing.T) {
	tracker, _ := setupProposalTrackerTest()
	ctx := context.Background()

	tests := []struct {
		name   string
		action string
		args   json.RawMessage
	}{
		{"propose without args", "propose", nil},
		{"propose without trx", "propose", testutil.MustJSON(map[string]string{"proposer": testutil.Alice, "proposal_name": "p"})},
		{"propose with bad data", "propose", proposeArgsJSON(testutil.Alice, "p", delegateInner("zz"))},
		{"approve without level", "approve", closeArgsJSON(testutil.Alice, "p")},
		{"exec without proposal name", "exec", testutil.MustJSON(map[string]string{"proposer": testutil.Alice})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tracker.Handle(ctx, tt.action, tt.args)
			if !errors.Is(err, errs.MalformedAction) {
				t.Errorf("expected MalformedAction, got %v", err)
			}
		})
	}
}
