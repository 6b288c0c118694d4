package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/bimakw/vesting-indexer/internal/domain/asset"
	"github.com/bimakw/vesting-indexer/internal/domain/entities"
	"github.com/bimakw/vesting-indexer/internal/domain/errs"
)

type tokenBalanceEvent struct {
	Account string `json:"account"`
	Balance string `json:"balance"`
}

type currencyEvent struct {
	Supply    string `json:"supply"`
	MaxSupply string `json:"max_supply"`
	Issuer    string `json:"issuer"`
}

type vestingStatEvent struct {
	Supply string `json:"supply"`
}

type vestingBalanceEvent struct {
	Account   string `json:"account"`
	Vesting   string `json:"vesting"`
	Delegated string `json:"delegated"`
	Received  string `json:"received"`
}

// processEvents applies the balance, currency and stat events attached to an action
func (s *DispersalService) processEvents(ctx context.Context, ac *actionContext) error {
	for i := range ac.action.Events {
		ev := &ac.action.Events[i]

		var err error
		switch {
		case ev.Code == s.chain.TokenContract && ev.Event == "balance":
			err = s.applyTokenBalance(ctx, ac, ev)
		case ev.Code == s.chain.TokenContract && ev.Event == "currency":
			err = s.applyCurrency(ctx, ac, ev)
		case ev.Code == s.chain.VestingContract && ev.Event == "stat":
			err = s.applyVestingStat(ctx, ac, ev)
		case ev.Code == s.chain.VestingContract && ev.Event == "balance":
			err = s.applyVestingBalance(ctx, ac, ev)
		default:
			continue
		}

		if err != nil {
			return fmt.Errorf("event %s/%s: %w", ev.Code, ev.Event, err)
		}
	}
	return nil
}

func (s *DispersalService) applyTokenBalance(ctx context.Context, ac *actionContext, ev *entities.Event) error {
	const op = "event.token_balance"

	var args tokenBalanceEvent
	if err := decodeArgs(op, ev.Args, &args); err != nil {
		return err
	}
	if err := requireFields(op, "account", args.Account, "balance", args.Balance); err != nil {
		return err
	}

	a, err := asset.Parse(args.Balance)
	if err != nil {
		return err
	}
	entry := entities.BalanceEntryFromAsset(a)

	balance, err := ac.store.Balances.Get(ctx, args.Account)
	if err != nil {
		return fmt.Errorf("failed to get balance: %w", err)
	}
	if balance == nil {
		balance = &entities.Balance{Name: args.Account}
	}
	balance.Set(entry)

	if err := ac.store.Balances.Upsert(ctx, balance); err != nil {
		return fmt.Errorf("failed to upsert balance: %w", err)
	}
	recordsWrittenTotal.WithLabelValues("balance").Inc()

	ac.converter.NoteBalance(ctx, args.Account, entry)
	return nil
}

func (s *DispersalService) applyCurrency(ctx context.Context, ac *actionContext, ev *entities.Event) error {
	const op = "event.currency"

	var args currencyEvent
	if err := decodeArgs(op, ev.Args, &args); err != nil {
		return err
	}
	if err := requireFields(op, "supply", args.Supply); err != nil {
		return err
	}

	supply, err := asset.Parse(args.Supply)
	if err != nil {
		return err
	}

	token := &entities.Token{
		Symbol:    supply.Symbol,
		Issuer:    args.Issuer,
		Supply:    args.Supply,
		MaxSupply: args.MaxSupply,
	}
	if err := ac.store.Tokens.Upsert(ctx, token); err != nil {
		return fmt.Errorf("failed to upsert token: %w", err)
	}
	recordsWrittenTotal.WithLabelValues("token").Inc()
	return nil
}

func (s *DispersalService) applyVestingStat(ctx context.Context, ac *actionContext, ev *entities.Event) error {
	const op = "event.vesting_stat"

	var args vestingStatEvent
	if err := decodeArgs(op, ev.Args, &args); err != nil {
		return err
	}
	if err := requireFields(op, "supply", args.Supply); err != nil {
		return err
	}

	supply, err := asset.Parse(args.Supply)
	if err != nil {
		return err
	}

	if err := ac.converter.StoreStat(ctx, &entities.VestingStat{Symbol: supply.Symbol, Stat: args.Supply}); err != nil {
		return err
	}
	recordsWrittenTotal.WithLabelValues("vesting_stat").Inc()
	return nil
}

func (s *DispersalService) applyVestingBalance(ctx context.Context, ac *actionContext, ev *entities.Event) error {
	const op = "event.vesting_balance"

	var args vestingBalanceEvent
	if err := decodeArgs(op, ev.Args, &args); err != nil {
		return err
	}
	if err := requireFields(op, "account", args.Account, "vesting", args.Vesting); err != nil {
		return err
	}

	vesting, err := asset.Parse(args.Vesting)
	if err != nil {
		return err
	}

	delegated, err := vestingPart(op, "delegated", args.Delegated, vesting)
	if err != nil {
		return err
	}
	received, err := vestingPart(op, "received", args.Received, vesting)
	if err != nil {
		return err
	}

	balance := &entities.VestingBalance{
		Account:   args.Account,
		Vesting:   vesting.String(),
		Delegated: delegated,
		Received:  received,
	}
	if err := ac.store.Vesting.UpsertBalance(ctx, balance); err != nil {
		return fmt.Errorf("failed to upsert vesting balance: %w", err)
	}
	recordsWrittenTotal.WithLabelValues("vesting_balance").Inc()

	s.logger.Debug("Vesting balance updated", zap.String("account", args.Account), zap.String("vesting", balance.Vesting))
	return nil
}

// vestingPart validates a sub-amount of a vesting position; empty means zero
func vestingPart(op, field, value string, vesting asset.Asset) (string, error) {
	if value == "" {
		return asset.Zero(vesting.Decimals, vesting.Symbol).String(), nil
	}
	a, err := asset.Parse(value)
	if err != nil {
		return "", err
	}
	if a.Symbol != vesting.Symbol {
		return "", errs.Newf(errs.KindFormat, op, "%s symbol %s differs from vesting symbol %s", field, a.Symbol, vesting.Symbol)
	}
	return a.String(), nil
}
