package services

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/bimakw/vesting-indexer/internal/domain/entities"
	"github.com/bimakw/vesting-indexer/internal/infrastructure/cache"
)

var _ SnapshotCache = (*SnapshotWrites)(nil)

type liquidWrite struct {
	account string
	entry   entities.BalanceEntry
}

// SnapshotWrites holds the cache updates made while dispersing one block.
// Reads see the pending values first. Nothing reaches the shared cache
// until Publish, which runs after the block's transaction commits.
type SnapshotWrites struct {
	cache  SnapshotCache
	logger *zap.Logger
	stats  map[string]entities.VestingStat
	liquid map[string]liquidWrite
}

func newSnapshotWrites(shared SnapshotCache, logger *zap.Logger) *SnapshotWrites {
	return &SnapshotWrites{
		cache:  shared,
		logger: logger,
		stats:  make(map[string]entities.VestingStat),
		liquid: make(map[string]liquidWrite),
	}
}

func (w *SnapshotWrites) GetStat(ctx context.Context, symbol string) (*entities.VestingStat, error) {
	if stat, ok := w.stats[symbol]; ok {
		return &stat, nil
	}
	return w.cache.GetStat(ctx, symbol)
}

func (w *SnapshotWrites) SetStat(_ context.Context, stat *entities.VestingStat) error {
	w.stats[stat.Symbol] = *stat
	return nil
}

func (w *SnapshotWrites) GetLiquid(ctx context.Context, account, symbol string) (*entities.BalanceEntry, error) {
	if pending, ok := w.liquid[cache.LiquidKey(account, symbol)]; ok {
		entry := pending.entry
		return &entry, nil
	}
	return w.cache.GetLiquid(ctx, account, symbol)
}

func (w *SnapshotWrites) SetLiquid(_ context.Context, account string, entry entities.BalanceEntry) error {
	w.liquid[cache.LiquidKey(account, entry.Symbol)] = liquidWrite{account: account, entry: entry}
	return nil
}

// Invalidate forgets a pending value; the shared cache is untouched
func (w *SnapshotWrites) Invalidate(_ context.Context, key string) error {
	delete(w.liquid, key)
	for symbol := range w.stats {
		if cache.StatKey(symbol) == key {
			delete(w.stats, symbol)
		}
	}
	return nil
}

// Len returns the number of pending keys
func (w *SnapshotWrites) Len() int {
	if w == nil {
		return 0
	}
	return len(w.stats) + len(w.liquid)
}

func (w *SnapshotWrites) keys() []string {
	keys := make([]string, 0, w.Len())
	for symbol := range w.stats {
		keys = append(keys, cache.StatKey(symbol))
	}
	for key := range w.liquid {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// seal removes every pending key from the shared cache before commit.
// A crash between commit and Publish then leaves misses, never values
// older than the store.
func (w *SnapshotWrites) seal(ctx context.Context) error {
	if w == nil {
		return nil
	}
	for _, key := range w.keys() {
		if err := w.cache.Invalidate(ctx, key); err != nil {
			return fmt.Errorf("failed to invalidate cached snapshot %s: %w", key, err)
		}
	}
	return nil
}

// Publish copies the committed values into the shared cache. A failed
// write leaves the sealed key missing, so the next read goes to the store.
func (w *SnapshotWrites) Publish(ctx context.Context) {
	if w == nil {
		return
	}
	for _, stat := range w.stats {
		if err := w.cache.SetStat(ctx, &stat); err != nil {
			w.logger.Warn("Failed to cache vesting stat", zap.String("symbol", stat.Symbol), zap.Error(err))
		}
	}
	for _, pending := range w.liquid {
		if err := w.cache.SetLiquid(ctx, pending.account, pending.entry); err != nil {
			w.logger.Warn("Failed to cache vesting account balance",
				zap.String("symbol", pending.entry.Symbol), zap.Error(err))
		}
	}
}
