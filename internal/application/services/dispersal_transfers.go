package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bimakw/vesting-indexer/internal/domain/asset"
	"github.com/bimakw/vesting-indexer/internal/domain/entities"
	"github.com/bimakw/vesting-indexer/internal/domain/repositories"
	"github.com/bimakw/vesting-indexer/internal/infrastructure/chain"
	"github.com/bimakw/vesting-indexer/internal/infrastructure/database"
)

type transferArgs struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Quantity string `json:"quantity"`
	Memo     string `json:"memo"`
}

type bulkRecipient struct {
	To       string `json:"to"`
	Quantity string `json:"quantity"`
	Memo     string `json:"memo"`
}

type bulkTransferArgs struct {
	From       string          `json:"from"`
	Recipients []bulkRecipient `json:"recipients"`
}

// transferSink receives the records classified from transfer-shaped actions
type transferSink interface {
	transfer(ctx context.Context, t *entities.Transfer) error
	reward(ctx context.Context, r *entities.Reward) error
}

// directSink writes each record immediately
type directSink struct {
	store repositories.Store
}

func (d directSink) transfer(ctx context.Context, t *entities.Transfer) error {
	if err := d.store.Transfers.Insert(ctx, t); err != nil {
		return fmt.Errorf("failed to insert transfer: %w", err)
	}
	return nil
}

func (d directSink) reward(ctx context.Context, r *entities.Reward) error {
	if err := d.store.Rewards.Insert(ctx, r); err != nil {
		return fmt.Errorf("failed to insert reward: %w", err)
	}
	return nil
}

// bulkSink batches records of one bulk action
type bulkSink struct {
	transfers *database.BulkWriter[entities.Transfer]
	rewards   *database.BulkWriter[entities.Reward]
}

func (b bulkSink) transfer(ctx context.Context, t *entities.Transfer) error {
	return b.transfers.AddEntry(*t)
}

func (b bulkSink) reward(ctx context.Context, r *entities.Reward) error {
	return b.rewards.AddEntry(*r)
}

// finish drains both writers into the block's transaction
func (b bulkSink) finish(ctx context.Context) error {
	return errors.Join(b.transfers.Finish(ctx), b.rewards.Finish(ctx))
}

// discard drops whatever a failed action left queued
func (b bulkSink) discard() {
	b.transfers.Discard()
	b.rewards.Discard()
}

func (s *DispersalService) handleTransfer(ctx context.Context, ac *actionContext) error {
	op := ac.op("args")

	var args transferArgs
	if err := decodeArgs(op, ac.action.Args, &args); err != nil {
		return err
	}
	if err := requireFields(op, "from", args.From, "to", args.To, "quantity", args.Quantity); err != nil {
		return err
	}

	return s.recordTransfer(ctx, ac, directSink{ac.store}, args)
}

func (s *DispersalService) handleBulkTransfer(ctx context.Context, ac *actionContext) error {
	op := ac.op("args")

	var args bulkTransferArgs
	if err := decodeArgs(op, ac.action.Args, &args); err != nil {
		return err
	}
	if err := requireFields(op, "from", args.From); err != nil {
		return err
	}

	// Inline flushes: the batches share the block's transaction with the
	// reads and writes of the surrounding handlers
	sink := bulkSink{
		transfers: database.NewBulkWriter[entities.Transfer](ctx, "live_transfers", s.pipeline.BulkBatchSize, 0,
			ac.store.Transfers.BatchInsert, s.logger),
		rewards: database.NewBulkWriter[entities.Reward](ctx, "live_rewards", s.pipeline.BulkBatchSize, 0,
			ac.store.Rewards.BatchInsert, s.logger),
	}

	for i, r := range args.Recipients {
		if err := requireFields(fmt.Sprintf("%s.recipients[%d]", op, i), "to", r.To, "quantity", r.Quantity); err != nil {
			sink.discard()
			return err
		}

		t := transferArgs{From: args.From, To: r.To, Quantity: r.Quantity, Memo: r.Memo}
		if err := s.recordTransfer(ctx, ac, sink, t); err != nil {
			sink.discard()
			return err
		}
	}

	if err := sink.finish(ctx); err != nil {
		return fmt.Errorf("failed to flush bulk transfer: %w", err)
	}
	return nil
}

// recordTransfer classifies one transfer by memo and writes either a Reward
// or a plain Transfer. Withdrawal payouts also advance their schedule.
func (s *DispersalService) recordTransfer(ctx context.Context, ac *actionContext, sink transferSink, args transferArgs) error {
	quantity, err := asset.Parse(args.Quantity)
	if err != nil {
		return err
	}

	memo := chain.ParseMemo(args.Memo)
	if memo.IsReward() {
		reward, err := s.buildReward(ctx, ac, args, quantity, memo.Reward)
		if err != nil {
			return err
		}
		if err := sink.reward(ctx, reward); err != nil {
			return err
		}
		recordsWrittenTotal.WithLabelValues("reward").Inc()
	} else {
		transfer := &entities.Transfer{
			Sender:    args.From,
			Receiver:  args.To,
			Quantity:  quantity.Amount(),
			Symbol:    quantity.Symbol,
			Memo:      args.Memo,
			BlockNum:  ac.blockNum,
			TrxID:     ac.trxID,
			Timestamp: ac.blockTime,
		}
		if err := sink.transfer(ctx, transfer); err != nil {
			return err
		}
		recordsWrittenTotal.WithLabelValues("transfer").Inc()
	}

	if chain.IsWithdrawPayout(args.From, args.Memo, s.chain.VestingContract) {
		return s.advanceWithdrawal(ctx, ac, args.To)
	}
	return nil
}

func (s *DispersalService) buildReward(ctx context.Context, ac *actionContext, args transferArgs, quantity asset.Asset, memo chain.RewardMemo) (*entities.Reward, error) {
	reward := &entities.Reward{
		UserID:          args.To,
		Type:            memo.Type,
		Quantity:        quantity.Amount(),
		Symbol:          quantity.Symbol,
		TokenType:       entities.TokenLiquid,
		ContentAuthor:   memo.Author,
		ContentPermlink: memo.Permlink,
		BlockNum:        ac.blockNum,
		TrxID:           ac.trxID,
		Timestamp:       ac.blockTime,
	}

	if memo.IsVesting {
		vesting, err := ac.converter.TokensToVesting(ctx, quantity)
		if err != nil {
			return nil, err
		}
		vq := vesting.String()
		reward.UserID = memo.User
		reward.TokenType = entities.TokenVesting
		reward.VestingQuantity = &vq
	}

	return reward, nil
}

// advanceWithdrawal records one scheduled payout to owner. A payout with no
// schedule is ignored so completed schedules never come back.
func (s *DispersalService) advanceWithdrawal(ctx context.Context, ac *actionContext, owner string) error {
	w, err := ac.store.Withdrawals.Get(ctx, owner)
	if err != nil {
		return fmt.Errorf("failed to get withdrawal: %w", err)
	}
	if w == nil {
		s.logger.Debug("Withdrawal payout without schedule", append(ac.fields(), zap.String("owner", owner))...)
		return nil
	}

	if w.RemainingPayments <= 1 {
		if err := ac.store.Withdrawals.Delete(ctx, owner); err != nil {
			return fmt.Errorf("failed to delete withdrawal: %w", err)
		}
		s.logger.Info("Withdrawal completed", zap.String("owner", owner), zap.Int64("block_num", ac.blockNum))
		return nil
	}

	quantity, err := asset.Parse(w.Quantity)
	if err != nil {
		return fmt.Errorf("invalid withdrawal quantity for %s: %w", owner, err)
	}
	left, err := decimal.NewFromString(w.ToWithdraw)
	if err != nil {
		return fmt.Errorf("invalid to_withdraw for %s: %w", owner, err)
	}
	rate, err := decimal.NewFromString(w.Rate)
	if err != nil {
		return fmt.Errorf("invalid withdraw rate for %s: %w", owner, err)
	}

	w.RemainingPayments--
	w.ToWithdraw = left.Sub(rate).StringFixed(quantity.Decimals)
	w.NextPayout = ac.blockTime.Add(withdrawInterval(w.IntervalSeconds))

	if err := ac.store.Withdrawals.Upsert(ctx, w); err != nil {
		return fmt.Errorf("failed to update withdrawal: %w", err)
	}
	recordsWrittenTotal.WithLabelValues("withdrawal").Inc()
	return nil
}
