package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bimakw/vesting-indexer/internal/domain/asset"
	"github.com/bimakw/vesting-indexer/internal/domain/entities"
	"github.com/bimakw/vesting-indexer/internal/domain/errs"
)

type delegateArgs struct {
	From         string `json:"from"`
	To           string `json:"to"`
	Quantity     string `json:"quantity"`
	InterestRate int    `json:"interest_rate"`
}

type withdrawArgs struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Quantity string `json:"quantity"`
}

type stopWithdrawArgs struct {
	Owner string `json:"owner"`
}

type changeVestArgs struct {
	Owner string `json:"owner"`
	Diff  string `json:"diff"`
}

type setParamsArgs struct {
	Params []json.RawMessage `json:"params"`
}

type withdrawParams struct {
	Intervals       int   `json:"intervals"`
	IntervalSeconds int64 `json:"interval_seconds"`
}

// vestingWithdrawParam is the setparams variant name carrying withdraw params
const vestingWithdrawParam = "vesting_withdraw"

func withdrawInterval(seconds int64) time.Duration {
	return time.Duration(seconds) * time.Second
}

func (s *DispersalService) handleDelegate(ctx context.Context, ac *actionContext) error {
	op := ac.op("args")

	var args delegateArgs
	if err := decodeArgs(op, ac.action.Args, &args); err != nil {
		return err
	}
	if err := requireFields(op, "from", args.From, "to", args.To, "quantity", args.Quantity); err != nil {
		return err
	}

	quantity, err := asset.Parse(args.Quantity)
	if err != nil {
		return err
	}

	active, err := ac.store.Delegations.GetActive(ctx, args.From, args.To)
	if err != nil {
		return fmt.Errorf("failed to get delegation: %w", err)
	}

	if active == nil {
		d := &entities.Delegation{
			From:         args.From,
			To:           args.To,
			Quantity:     quantity.String(),
			InterestRate: args.InterestRate,
			IsActual:     !quantity.IsZero(),
		}
		if err := ac.store.Delegations.Create(ctx, d); err != nil {
			return fmt.Errorf("failed to create delegation: %w", err)
		}
		recordsWrittenTotal.WithLabelValues("delegation").Inc()
		return nil
	}

	current, err := asset.Parse(active.Quantity)
	if err != nil {
		return fmt.Errorf("invalid stored delegation %d: %w", active.ID, err)
	}
	sum, err := current.Add(quantity)
	if err != nil {
		return err
	}

	active.Quantity = sum.String()
	active.InterestRate = args.InterestRate
	active.IsActual = !sum.IsZero()

	return s.updateDelegation(ctx, ac, active)
}

func (s *DispersalService) handleUndelegate(ctx context.Context, ac *actionContext) error {
	op := ac.op("args")

	var args delegateArgs
	if err := decodeArgs(op, ac.action.Args, &args); err != nil {
		return err
	}
	if err := requireFields(op, "from", args.From, "to", args.To, "quantity", args.Quantity); err != nil {
		return err
	}

	quantity, err := asset.Parse(args.Quantity)
	if err != nil {
		return err
	}

	active, err := ac.store.Delegations.GetActive(ctx, args.From, args.To)
	if err != nil {
		return fmt.Errorf("failed to get delegation: %w", err)
	}
	if active == nil {
		s.logger.Warn("Undelegate without active delegation", append(ac.fields(),
			zap.String("from", args.From),
			zap.String("to", args.To),
		)...)
		return nil
	}

	current, err := asset.Parse(active.Quantity)
	if err != nil {
		return fmt.Errorf("invalid stored delegation %d: %w", active.ID, err)
	}
	left, err := current.Sub(quantity)
	if err != nil {
		return err
	}

	if left.Sign() < 0 {
		s.logger.Warn("Undelegate exceeds delegated amount, clamping to zero", append(ac.fields(),
			zap.String("delegated", current.String()),
			zap.String("undelegated", quantity.String()),
		)...)
		left = asset.Zero(current.Decimals, current.Symbol)
	}

	active.Quantity = left.String()
	active.IsActual = !left.IsZero()

	return s.updateDelegation(ctx, ac, active)
}

func (s *DispersalService) updateDelegation(ctx context.Context, ac *actionContext, d *entities.Delegation) error {
	if err := ac.store.Delegations.Update(ctx, d); err != nil {
		return fmt.Errorf("failed to update delegation: %w", err)
	}
	recordsWrittenTotal.WithLabelValues("delegation").Inc()

	if !d.IsActual {
		s.logger.Debug("Delegation closed", zap.String("from", d.From), zap.String("to", d.To))
	}
	return nil
}

func (s *DispersalService) handleWithdraw(ctx context.Context, ac *actionContext) error {
	op := ac.op("args")

	var args withdrawArgs
	if err := decodeArgs(op, ac.action.Args, &args); err != nil {
		return err
	}
	if err := requireFields(op, "from", args.From, "to", args.To, "quantity", args.Quantity); err != nil {
		return err
	}

	quantity, err := asset.Parse(args.Quantity)
	if err != nil {
		return err
	}

	params, err := s.withdrawParams(ctx, ac)
	if err != nil {
		return err
	}

	rate, err := quantity.DivFloor(int64(params.Intervals))
	if err != nil {
		return err
	}

	w := &entities.Withdrawal{
		Owner:             args.From,
		To:                args.To,
		Quantity:          quantity.String(),
		Rate:              rate.Amount(),
		RemainingPayments: params.Intervals,
		IntervalSeconds:   params.IntervalSeconds,
		NextPayout:        ac.blockTime.Add(params.Interval()),
		ToWithdraw:        quantity.Amount(),
	}
	if err := ac.store.Withdrawals.Upsert(ctx, w); err != nil {
		return fmt.Errorf("failed to upsert withdrawal: %w", err)
	}
	recordsWrittenTotal.WithLabelValues("withdrawal").Inc()
	return nil
}

// withdrawParams returns the stored params or the configured fallback
func (s *DispersalService) withdrawParams(ctx context.Context, ac *actionContext) (entities.VestingParams, error) {
	params, err := ac.store.Vesting.GetParams(ctx)
	if err != nil {
		return entities.VestingParams{}, fmt.Errorf("failed to get vesting params: %w", err)
	}
	if params != nil && params.Intervals > 0 {
		return *params, nil
	}

	return entities.VestingParams{
		Intervals:       s.pipeline.WithdrawIntervals,
		IntervalSeconds: s.pipeline.WithdrawIntervalSeconds,
	}, nil
}

func (s *DispersalService) handleStopWithdraw(ctx context.Context, ac *actionContext) error {
	op := ac.op("args")

	var args stopWithdrawArgs
	if err := decodeArgs(op, ac.action.Args, &args); err != nil {
		return err
	}
	if err := requireFields(op, "owner", args.Owner); err != nil {
		return err
	}

	if err := ac.store.Withdrawals.Delete(ctx, args.Owner); err != nil {
		return fmt.Errorf("failed to delete withdrawal: %w", err)
	}
	return nil
}

func (s *DispersalService) handleSetParams(ctx context.Context, ac *actionContext) error {
	op := ac.op("args")

	var args setParamsArgs
	if err := decodeArgs(op, ac.action.Args, &args); err != nil {
		return err
	}
	if args.Params == nil {
		return errs.Missing(op, "params")
	}

	for _, raw := range args.Params {
		var variant []json.RawMessage
		if err := json.Unmarshal(raw, &variant); err != nil || len(variant) != 2 {
			return errs.Newf(errs.KindMalformedAction, op, "param must be a [name, value] pair: %s", raw)
		}

		var name string
		if err := json.Unmarshal(variant[0], &name); err != nil {
			return errs.Wrap(errs.KindMalformedAction, op, err)
		}
		if name != vestingWithdrawParam {
			continue
		}

		var p withdrawParams
		if err := json.Unmarshal(variant[1], &p); err != nil {
			return errs.Wrap(errs.KindMalformedAction, op, err)
		}
		if p.Intervals <= 0 || p.IntervalSeconds <= 0 {
			return errs.Newf(errs.KindMalformedAction, op, "invalid %s: %s", vestingWithdrawParam, variant[1])
		}

		params := &entities.VestingParams{Intervals: p.Intervals, IntervalSeconds: p.IntervalSeconds}
		if err := ac.store.Vesting.UpsertParams(ctx, params); err != nil {
			return fmt.Errorf("failed to upsert vesting params: %w", err)
		}
		recordsWrittenTotal.WithLabelValues("vesting_params").Inc()

		s.logger.Info("Vesting withdraw params updated",
			zap.Int("intervals", p.Intervals),
			zap.Int64("interval_seconds", p.IntervalSeconds),
		)
	}

	return nil
}

func (s *DispersalService) handleChangeVest(ctx context.Context, ac *actionContext) error {
	op := ac.op("args")

	var args changeVestArgs
	if err := decodeArgs(op, ac.action.Args, &args); err != nil {
		return err
	}
	if err := requireFields(op, "owner", args.Owner, "diff", args.Diff); err != nil {
		return err
	}

	diff, err := asset.Parse(args.Diff)
	if err != nil {
		return err
	}

	change := &entities.VestingChange{
		Who:       args.Owner,
		Diff:      diff.String(),
		BlockNum:  ac.blockNum,
		TrxID:     ac.trxID,
		Timestamp: ac.blockTime,
	}
	if err := ac.store.Vesting.InsertChange(ctx, change); err != nil {
		return fmt.Errorf("failed to insert vesting change: %w", err)
	}
	recordsWrittenTotal.WithLabelValues("vesting_change").Inc()
	return nil
}
