package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/bimakw/vesting-indexer/internal/domain/entities"
)

const (
	statKeyPrefix   = "vesting:stat:"
	liquidKeyPrefix = "vesting:liquid:"
)

// VestingSnapshotCache keeps the two globals behind the vesting/token ratio:
// the vesting stat and the vesting account's liquid balance entry.
// Lookups return nil on a miss.
type VestingSnapshotCache struct {
	cache *RedisCache
}

// NewVestingSnapshotCache creates a snapshot cache on top of c
func NewVestingSnapshotCache(c *RedisCache) *VestingSnapshotCache {
	return &VestingSnapshotCache{cache: c}
}

// GetStat returns the cached stat for symbol
func (s *VestingSnapshotCache) GetStat(ctx context.Context, symbol string) (*entities.VestingStat, error) {
	var stat entities.VestingStat
	if err := s.cache.Get(ctx, StatKey(symbol), &stat); err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, nil
		}
		return nil, err
	}
	return &stat, nil
}

// SetStat caches the stat
func (s *VestingSnapshotCache) SetStat(ctx context.Context, stat *entities.VestingStat) error {
	return s.cache.Set(ctx, StatKey(stat.Symbol), stat)
}

// GetLiquid returns the cached liquid entry of account for symbol
func (s *VestingSnapshotCache) GetLiquid(ctx context.Context, account, symbol string) (*entities.BalanceEntry, error) {
	var entry entities.BalanceEntry
	if err := s.cache.Get(ctx, LiquidKey(account, symbol), &entry); err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// SetLiquid caches a liquid entry
func (s *VestingSnapshotCache) SetLiquid(ctx context.Context, account string, entry entities.BalanceEntry) error {
	return s.cache.Set(ctx, LiquidKey(account, entry.Symbol), entry)
}

// Invalidate drops a key after a failed write-through
func (s *VestingSnapshotCache) Invalidate(ctx context.Context, key string) error {
	return s.cache.Delete(ctx, key)
}

// StatKey is the cache key of a vesting stat
func StatKey(symbol string) string {
	return statKeyPrefix + symbol
}

// LiquidKey is the cache key of an account's liquid entry
func LiquidKey(account, symbol string) string {
	return fmt.Sprintf("%s%s:%s", liquidKeyPrefix, account, symbol)
}
