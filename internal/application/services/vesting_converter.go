package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/bimakw/vesting-indexer/internal/config"
	"github.com/bimakw/vesting-indexer/internal/domain/asset"
	"github.com/bimakw/vesting-indexer/internal/domain/entities"
	"github.com/bimakw/vesting-indexer/internal/domain/errs"
	"github.com/bimakw/vesting-indexer/internal/domain/repositories"
	"github.com/bimakw/vesting-indexer/internal/infrastructure/cache"
)

// VestingConverter converts between vesting shares and liquid tokens at the
// current ratio: the vesting account's liquid balance over the total vesting
// supply. Results are floored at the precision found in the data.
type VestingConverter struct {
	vestingRepo repositories.VestingRepository
	balanceRepo repositories.BalanceRepository
	cache       SnapshotCache
	chain       config.ChainConfig
	logger      *zap.Logger
}

// NewVestingConverter creates a converter. snapshots may be nil, in which case
// every conversion reads the store.
func NewVestingConverter(
	vestingRepo repositories.VestingRepository,
	balanceRepo repositories.BalanceRepository,
	snapshots SnapshotCache,
	chain config.ChainConfig,
	logger *zap.Logger,
) *VestingConverter {
	return &VestingConverter{
		vestingRepo: vestingRepo,
		balanceRepo: balanceRepo,
		cache:       snapshots,
		chain:       chain,
		logger:      logger,
	}
}

// forBlock returns a converter that reads and writes through store and
// holds its cache updates in the returned SnapshotWrites, which is nil
// when there is no cache.
func (c *VestingConverter) forBlock(store repositories.Store) (*VestingConverter, *SnapshotWrites) {
	scoped := &VestingConverter{
		vestingRepo: store.Vesting,
		balanceRepo: store.Balances,
		chain:       c.chain,
		logger:      c.logger,
	}
	if c.cache == nil {
		return scoped, nil
	}
	writes := newSnapshotWrites(c.cache, c.logger)
	scoped.cache = writes
	return scoped, writes
}

// VestingToToken converts a vesting amount to liquid tokens. Dispersal only
// converts the other way; this direction is for the read side, which shows
// vesting holdings in token terms.
func (c *VestingConverter) VestingToToken(ctx context.Context, vesting asset.Asset) (asset.Asset, error) {
	supply, liquid, err := c.snapshot(ctx)
	if err != nil {
		return asset.Asset{}, err
	}
	if vesting.Symbol != supply.Symbol {
		return asset.Asset{}, errs.Newf(errs.KindFormat, "convert.vesting_to_token",
			"expected %s, got %s", supply.Symbol, vesting.Symbol)
	}

	return asset.Rescale(vesting, liquid.Value, supply.Value, liquid.Decimals, liquid.Symbol)
}

// TokensToVesting converts a liquid token amount to vesting
func (c *VestingConverter) TokensToVesting(ctx context.Context, tokens asset.Asset) (asset.Asset, error) {
	supply, liquid, err := c.snapshot(ctx)
	if err != nil {
		return asset.Asset{}, err
	}
	if tokens.Symbol != liquid.Symbol {
		return asset.Asset{}, errs.Newf(errs.KindFormat, "convert.tokens_to_vesting",
			"expected %s, got %s", liquid.Symbol, tokens.Symbol)
	}
	if liquid.Sign() <= 0 {
		return asset.Asset{}, errs.Newf(errs.KindDataAbsent, "convert.tokens_to_vesting",
			"%s holds no %s", c.chain.VestingContract, liquid.Symbol)
	}

	return asset.Rescale(tokens, supply.Value, liquid.Value, supply.Decimals, supply.Symbol)
}

// StoreStat persists the vesting supply and refreshes the cached copy
func (c *VestingConverter) StoreStat(ctx context.Context, stat *entities.VestingStat) error {
	if err := c.vestingRepo.UpsertStat(ctx, stat); err != nil {
		return fmt.Errorf("failed to upsert vesting stat: %w", err)
	}
	if c.cache == nil {
		return nil
	}

	if err := c.cache.SetStat(ctx, stat); err != nil {
		c.logger.Warn("Failed to cache vesting stat", zap.String("symbol", stat.Symbol), zap.Error(err))
		c.invalidate(ctx, cache.StatKey(stat.Symbol))
	}
	return nil
}

// NoteBalance refreshes the cached liquid balance when account is the
// vesting account. The caller has already persisted the entry.
func (c *VestingConverter) NoteBalance(ctx context.Context, account string, entry entities.BalanceEntry) {
	if c.cache == nil || account != c.chain.VestingContract {
		return
	}

	if err := c.cache.SetLiquid(ctx, account, entry); err != nil {
		c.logger.Warn("Failed to cache vesting account balance", zap.String("symbol", entry.Symbol), zap.Error(err))
		c.invalidate(ctx, cache.LiquidKey(account, entry.Symbol))
	}
}

func (c *VestingConverter) invalidate(ctx context.Context, key string) {
	if err := c.cache.Invalidate(ctx, key); err != nil {
		c.logger.Error("Failed to invalidate cache key", zap.String("key", key), zap.Error(err))
	}
}

// snapshot returns the total vesting supply and the vesting account's liquid balance
func (c *VestingConverter) snapshot(ctx context.Context) (asset.Asset, asset.Asset, error) {
	stat, err := c.loadStat(ctx)
	if err != nil {
		return asset.Asset{}, asset.Asset{}, err
	}
	supply, err := asset.Parse(stat.Stat)
	if err != nil {
		return asset.Asset{}, asset.Asset{}, fmt.Errorf("invalid vesting stat: %w", err)
	}
	if supply.Sign() <= 0 {
		return asset.Asset{}, asset.Asset{}, errs.Newf(errs.KindDataAbsent, "convert.snapshot",
			"vesting supply of %s is zero", supply.Symbol)
	}

	entry, err := c.loadLiquid(ctx)
	if err != nil {
		return asset.Asset{}, asset.Asset{}, err
	}

	return supply, asset.New(entry.Amount, entry.Decimals, entry.Symbol), nil
}

func (c *VestingConverter) loadStat(ctx context.Context) (*entities.VestingStat, error) {
	symbol := c.chain.VestingSymbol

	if c.cache != nil {
		stat, err := c.cache.GetStat(ctx, symbol)
		if err != nil {
			c.logger.Warn("Vesting stat cache read failed", zap.Error(err))
		} else if stat != nil {
			return stat, nil
		}
	}

	stat, err := c.vestingRepo.GetStat(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to get vesting stat: %w", err)
	}
	if stat == nil {
		return nil, errs.Newf(errs.KindDataAbsent, "convert.snapshot", "no vesting stat for %s", symbol)
	}

	if c.cache != nil {
		if err := c.cache.SetStat(ctx, stat); err != nil {
			c.logger.Warn("Failed to cache vesting stat", zap.Error(err))
		}
	}
	return stat, nil
}

func (c *VestingConverter) loadLiquid(ctx context.Context) (*entities.BalanceEntry, error) {
	account, symbol := c.chain.VestingContract, c.chain.TokenSymbol

	if c.cache != nil {
		entry, err := c.cache.GetLiquid(ctx, account, symbol)
		if err != nil {
			c.logger.Warn("Vesting account balance cache read failed", zap.Error(err))
		} else if entry != nil {
			return entry, nil
		}
	}

	balance, err := c.balanceRepo.Get(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance of %s: %w", account, err)
	}
	if balance == nil {
		return nil, errs.Newf(errs.KindDataAbsent, "convert.snapshot", "no balance for %s", account)
	}
	entry, ok := balance.Entry(symbol)
	if !ok {
		return nil, errs.Newf(errs.KindDataAbsent, "convert.snapshot", "%s has no %s balance", account, symbol)
	}

	if c.cache != nil {
		if err := c.cache.SetLiquid(ctx, account, entry); err != nil {
			c.logger.Warn("Failed to cache vesting account balance", zap.Error(err))
		}
	}
	return &entry, nil
}
