package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/bimakw/vesting-indexer/internal/domain/entities"
	"github.com/bimakw/vesting-indexer/internal/domain/repositories"
)

func TestMockTransferRepository_BatchInsert(t *testing.T) {
	repo := NewMockTransferRepository()
	ctx := context.Background()

	transfers := []entities.Transfer{
		{Sender: Alice, Receiver: Bob, Quantity: "1.000", Symbol: "GOLOS"},
		{Sender: Bob, Receiver: Charlie, Quantity: "2.000", Symbol: "GOLOS"},
	}

	if err := repo.BatchInsert(ctx, transfers); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := repo.Insert(ctx, &entities.Transfer{Sender: Charlie, Receiver: Alice}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	all := repo.All()
	if len(all) != 3 {
		t.Errorf("expected 3 transfers, got %d", len(all))
	}
	if repo.CallCount("BatchInsert") != 1 || repo.CallCount("Insert") != 1 {
		t.Errorf("unexpected call log: %+v", repo.Calls)
	}
}

func TestMockDelegationRepository_SingleActiveRow(t *testing.T) {
	repo := NewMockDelegationRepository()
	ctx := context.Background()

	d := &entities.Delegation{From: Alice, To: Bob, Quantity: "1.000000 GOLOS", IsActual: true}
	if err := repo.Create(ctx, d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.ID == 0 {
		t.Error("expected ID to be assigned")
	}

	dup := &entities.Delegation{From: Alice, To: Bob, Quantity: "2.000000 GOLOS", IsActual: true}
	if err := repo.Create(ctx, dup); err == nil {
		t.Error("expected error for second active row")
	}

	d.IsActual = false
	if err := repo.Update(ctx, d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	active, err := repo.GetActive(ctx, Alice, Bob)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if active != nil {
		t.Errorf("expected no active row, got %+v", active)
	}
}

func TestMockUserMetaRepository_Merge(t *testing.T) {
	repo := NewMockUserMetaRepository()
	ctx := context.Background()

	_ = repo.Upsert(ctx, &entities.UserMeta{UserID: Alice, Username: "alice-name"})
	_ = repo.Upsert(ctx, &entities.UserMeta{UserID: Alice, Name: "Alice"})

	meta, err := repo.Get(ctx, Alice)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if meta.Username != "alice-name" || meta.Name != "Alice" {
		t.Errorf("expected merged meta, got %+v", meta)
	}
}

func TestMockServiceMetaRepository_Checkpoint(t *testing.T) {
	repo := NewMockServiceMetaRepository()
	ctx := context.Background()

	meta, err := repo.Get(ctx)
	if err != nil || meta != nil {
		t.Fatalf("expected empty checkpoint, got %+v, %v", meta, err)
	}

	if err := repo.SetGenesisApplied(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := repo.UpdateLastBlock(ctx, 42, TestBlockTime); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	meta, _ = repo.Get(ctx)
	if !meta.IsGenesisApplied {
		t.Error("expected genesis applied")
	}
	if meta.LastSequence != 42 {
		t.Errorf("expected last sequence 42, got %d", meta.LastSequence)
	}
}

func TestMockStore_Store(t *testing.T) {
	ms := NewMockStore()
	store := ms.Store()

	if err := store.Tokens.Upsert(context.Background(), &entities.Token{Symbol: "GOLOS", Supply: "1.000 GOLOS"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	token, _ := ms.Tokens.GetBySymbol(context.Background(), "GOLOS")
	if token == nil || token.Supply != "1.000 GOLOS" {
		t.Errorf("expected token through store, got %+v", token)
	}
}

func TestMockHealthChecker(t *testing.T) {
	ctx := context.Background()

	// Test healthy checker
	healthy := NewMockHealthChecker(true)
	if err := healthy.HealthCheck(ctx); err != nil {
		t.Errorf("expected no error for healthy checker, got %v", err)
	}

	// Test unhealthy checker
	unhealthy := NewMockHealthChecker(false)
	if err := unhealthy.HealthCheck(ctx); err == nil {
		t.Error("expected error for unhealthy checker")
	}

	// Test SetHealthy
	unhealthy.SetHealthy(true)
	if err := unhealthy.HealthCheck(ctx); err != nil {
		t.Errorf("expected no error after SetHealthy(true), got %v", err)
	}
}

func TestMockStore_InTxRollsBack(t *testing.T) {
	store := NewMockStore()
	ctx := context.Background()

	_ = store.Delegations.Create(ctx, &entities.Delegation{From: Alice, To: Bob, Quantity: "10.000000 GOLOS", IsActual: true})

	err := store.InTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		active, _ := tx.Delegations.GetActive(ctx, Alice, Bob)
		active.Quantity = "15.000000 GOLOS"
		_ = tx.Delegations.Update(ctx, active)
		_ = tx.Transfers.Insert(ctx, &entities.Transfer{Sender: Alice, Receiver: Bob})
		_ = tx.ServiceMeta.UpdateLastBlock(ctx, 2, TestBlockTime)
		return errors.New("bad action")
	})
	if err == nil {
		t.Fatal("expected error from InTx")
	}

	active, _ := store.Delegations.GetActive(ctx, Alice, Bob)
	if active == nil || active.Quantity != "10.000000 GOLOS" {
		t.Errorf("expected delegation to be rolled back, got %+v", active)
	}
	if n := len(store.Transfers.All()); n != 0 {
		t.Errorf("expected no transfers after rollback, got %d", n)
	}
	if meta, _ := store.ServiceMeta.Get(ctx); meta != nil {
		t.Errorf("expected no checkpoint after rollback, got %+v", meta)
	}
	if store.Rollbacks != 1 {
		t.Errorf("expected 1 rollback, got %d", store.Rollbacks)
	}
}

func TestMockStore_ResetDerivedKeepsCheckpoint(t *testing.T) {
	store := NewMockStore()
	ctx := context.Background()

	_ = store.Balances.Upsert(ctx, &entities.Balance{Name: Alice})
	_ = store.ServiceMeta.UpdateLastBlock(ctx, 7, TestBlockTime)

	if err := store.ServiceMeta.ResetDerived(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.Balances.Count() != 0 {
		t.Errorf("expected balances to be cleared, got %d", store.Balances.Count())
	}
	meta, _ := store.ServiceMeta.Get(ctx)
	if meta == nil || meta.LastSequence != 7 {
		t.Errorf("expected checkpoint to survive, got %+v", meta)
	}
}
