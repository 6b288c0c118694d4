package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bimakw/vesting-indexer/internal/domain/entities"
	"github.com/bimakw/vesting-indexer/internal/domain/repositories"
)

func TestRepositories_PostgreSQL(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	blockTime := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("migrations are re-runnable", func(t *testing.T) {
		_, err := RunMigrations(ctx, db)
		require.NoError(t, err)
	})

	t.Run("service meta", func(t *testing.T) {
		repo := NewServiceMetaRepo(db)

		meta, err := repo.Get(ctx)
		require.NoError(t, err)
		assert.Nil(t, meta)

		require.NoError(t, repo.SetGenesisApplied(ctx))
		require.NoError(t, repo.UpdateLastBlock(ctx, 42, blockTime))

		meta, err = repo.Get(ctx)
		require.NoError(t, err)
		require.NotNil(t, meta)
		assert.True(t, meta.IsGenesisApplied)
		assert.Equal(t, int64(42), meta.LastSequence)
		require.NotNil(t, meta.LastBlockTime)
		assert.True(t, meta.LastBlockTime.Equal(blockTime))
	})

	t.Run("balances keep entry order", func(t *testing.T) {
		repo := NewBalanceRepo(db)

		b := &entities.Balance{Name: "alice"}
		b.Set(entities.BalanceEntry{Amount: 1500, Decimals: 3, Symbol: "GOLOS"})
		b.Set(entities.BalanceEntry{Amount: 7, Decimals: 0, Symbol: "CYBER"})
		require.NoError(t, repo.Upsert(ctx, b))

		got, err := repo.Get(ctx, "alice")
		require.NoError(t, err)
		require.NotNil(t, got)
		require.Len(t, got.Balances, 2)
		assert.Equal(t, "1.500 GOLOS", got.Balances[0].String())
		assert.Equal(t, "7 CYBER", got.Balances[1].String())

		missing, err := repo.Get(ctx, "nobody")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("bulk writer through transfer repo", func(t *testing.T) {
		repo := NewTransferRepo(db)
		w := NewBulkWriter[entities.Transfer](ctx, "transfers", 100, 2, repo.BatchInsert, zap.NewNop())

		for i := 0; i < 235; i++ {
			require.NoError(t, w.AddEntry(entities.Transfer{
				Sender:    "alice",
				Receiver:  "bob",
				Quantity:  "1.000",
				Symbol:    "GOLOS",
				BlockNum:  int64(i + 1),
				Timestamp: blockTime,
			}))
		}
		require.NoError(t, w.Finish(ctx))

		var count int
		require.NoError(t, db.GetContext(ctx, &count, `SELECT COUNT(*) FROM transfers`))
		assert.Equal(t, 235, count)

		var distinct int
		require.NoError(t, db.GetContext(ctx, &distinct, `SELECT COUNT(DISTINCT block_num) FROM transfers`))
		assert.Equal(t, 235, distinct)
	})

	t.Run("delegation soft close", func(t *testing.T) {
		repo := NewDelegationRepo(db)

		d := &entities.Delegation{From: "alice", To: "bob", Quantity: "10.000000 GOLOS", IsActual: true}
		require.NoError(t, repo.Create(ctx, d))
		assert.NotZero(t, d.ID)

		d.Quantity = "0.000000 GOLOS"
		d.IsActual = false
		require.NoError(t, repo.Update(ctx, d))

		active, err := repo.GetActive(ctx, "alice", "bob")
		require.NoError(t, err)
		assert.Nil(t, active)

		// a new active row is allowed once the previous one is closed
		next := &entities.Delegation{From: "alice", To: "bob", Quantity: "1.000000 GOLOS", IsActual: true}
		require.NoError(t, repo.Create(ctx, next))
	})

	t.Run("user meta merges fields", func(t *testing.T) {
		repo := NewUserMetaRepo(db)

		require.NoError(t, repo.Upsert(ctx, &entities.UserMeta{UserID: "alice", Username: "alice-golos"}))
		require.NoError(t, repo.Upsert(ctx, &entities.UserMeta{UserID: "alice", Name: "Alice"}))

		meta, err := repo.Get(ctx, "alice")
		require.NoError(t, err)
		require.NotNil(t, meta)
		assert.Equal(t, "alice-golos", meta.Username)
		assert.Equal(t, "Alice", meta.Name)
	})

	t.Run("proposals", func(t *testing.T) {
		repo := NewProposalRepo(db)

		p := &entities.DelegateVestingProposal{
			CommunityID: "gls",
			Proposer:    "carol",
			ProposalID:  "deleg1",
			UserID:      "alice",
			ToUserID:    "bob",
			Approvers:   []string{"alice"},
			Expiration:  blockTime.Add(time.Hour),
			Quantity:    "5.000000 GOLOS",
		}
		require.NoError(t, repo.Upsert(ctx, p))

		updated, err := repo.SetSignedByAuthor(ctx, "carol", "deleg1", true)
		require.NoError(t, err)
		assert.True(t, updated)

		got, err := repo.Get(ctx, "carol", "deleg1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.True(t, got.IsSignedByAuthor)
		assert.Equal(t, []string{"alice"}, []string(got.Approvers))

		require.NoError(t, repo.Delete(ctx, "carol", "deleg1"))
		updated, err = repo.SetSignedByAuthor(ctx, "carol", "deleg1", true)
		require.NoError(t, err)
		assert.False(t, updated)
	})

	t.Run("vesting params singleton", func(t *testing.T) {
		repo := NewVestingRepo(db)

		params, err := repo.GetParams(ctx)
		require.NoError(t, err)
		assert.Nil(t, params)

		require.NoError(t, repo.UpsertParams(ctx, &entities.VestingParams{Intervals: 13, IntervalSeconds: 604800}))
		require.NoError(t, repo.UpsertParams(ctx, &entities.VestingParams{Intervals: 4, IntervalSeconds: 60}))

		params, err = repo.GetParams(ctx)
		require.NoError(t, err)
		require.NotNil(t, params)
		assert.Equal(t, 4, params.Intervals)
		assert.Equal(t, time.Minute, params.Interval())
	})
}

func TestTransactor_PostgreSQL(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	blockTime := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tx := NewTransactor(db)
	meta := NewServiceMetaRepo(db)
	delegations := NewDelegationRepo(db)

	t.Run("commit applies writes and checkpoint together", func(t *testing.T) {
		err := tx.InTx(ctx, func(ctx context.Context, store repositories.Store) error {
			d := &entities.Delegation{From: "alice", To: "bob", Quantity: "10.000000 GOLOS", IsActual: true}
			if err := store.Delegations.Create(ctx, d); err != nil {
				return err
			}
			return store.ServiceMeta.UpdateLastBlock(ctx, 1, blockTime)
		})
		require.NoError(t, err)

		active, err := delegations.GetActive(ctx, "alice", "bob")
		require.NoError(t, err)
		require.NotNil(t, active)
		assert.Equal(t, "10.000000 GOLOS", active.Quantity)

		m, err := meta.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), m.LastSequence)
	})

	t.Run("failure rolls back writes and checkpoint", func(t *testing.T) {
		boom := errors.New("malformed action")
		err := tx.InTx(ctx, func(ctx context.Context, store repositories.Store) error {
			active, err := store.Delegations.GetActive(ctx, "alice", "bob")
			if err != nil {
				return err
			}
			active.Quantity = "15.000000 GOLOS"
			if err := store.Delegations.Update(ctx, active); err != nil {
				return err
			}
			if err := store.Transfers.BatchInsert(ctx, []entities.Transfer{
				{Sender: "alice", Receiver: "bob", Quantity: "1.000", Symbol: "GOLOS", BlockNum: 2, Timestamp: blockTime},
			}); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		active, err := delegations.GetActive(ctx, "alice", "bob")
		require.NoError(t, err)
		assert.Equal(t, "10.000000 GOLOS", active.Quantity)

		var count int
		require.NoError(t, db.GetContext(ctx, &count, `SELECT COUNT(*) FROM transfers WHERE block_num = 2`))
		assert.Zero(t, count)

		m, err := meta.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), m.LastSequence)
	})

	t.Run("reset derived keeps the checkpoint", func(t *testing.T) {
		require.NoError(t, meta.ResetDerived(ctx))

		active, err := delegations.GetActive(ctx, "alice", "bob")
		require.NoError(t, err)
		assert.Nil(t, active)

		m, err := meta.Get(ctx)
		require.NoError(t, err)
		require.NotNil(t, m)
		assert.Equal(t, int64(1), m.LastSequence)
	})
}
