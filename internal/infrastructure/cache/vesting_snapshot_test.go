package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/bimakw/vesting-indexer/internal/domain/entities"
)

func setupTestRedis(t *testing.T) (*RedisCache, *redis.Client, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping Redis integration test in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "failed to start redis container")

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	c := NewRedisCacheFromClient(client, time.Minute, "test:", zap.NewNop())
	require.NoError(t, c.HealthCheck(ctx))

	return c, client, func() {
		_ = c.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "vesting:stat:GOLOS", StatKey("GOLOS"))
	assert.Equal(t, "vesting:liquid:gls.vesting:GOLOS", LiquidKey("gls.vesting", "GOLOS"))
}

func TestVestingSnapshotCache(t *testing.T) {
	rc, client, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()
	snapshots := NewVestingSnapshotCache(rc)
	misses := testutil.ToFloat64(cacheLookupsTotal.WithLabelValues("miss"))

	stat, err := snapshots.GetStat(ctx, "GOLOS")
	require.NoError(t, err)
	assert.Nil(t, stat, "miss must be reported as nil")
	assert.Equal(t, misses+1, testutil.ToFloat64(cacheLookupsTotal.WithLabelValues("miss")))

	require.NoError(t, snapshots.SetStat(ctx, &entities.VestingStat{Symbol: "GOLOS", Stat: "3000.000000 GOLOS"}))
	stat, err = snapshots.GetStat(ctx, "GOLOS")
	require.NoError(t, err)
	require.NotNil(t, stat)
	assert.Equal(t, "3000.000000 GOLOS", stat.Stat)

	n, err := client.Exists(ctx, "test:"+StatKey("GOLOS")).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "keys must carry the prefix")

	entry := entities.BalanceEntry{Amount: 2500000, Decimals: 3, Symbol: "GOLOS"}
	require.NoError(t, snapshots.SetLiquid(ctx, "gls.vesting", entry))
	got, err := snapshots.GetLiquid(ctx, "gls.vesting", "GOLOS")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, entry, *got)

	require.NoError(t, snapshots.Invalidate(ctx, LiquidKey("gls.vesting", "GOLOS")))
	got, err = snapshots.GetLiquid(ctx, "gls.vesting", "GOLOS")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestVestingSnapshotCache_UndecodableEntry(t *testing.T) {
	rc, client, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, client.Set(ctx, "test:"+StatKey("GOLOS"), "not json", time.Minute).Err())

	stat, err := NewVestingSnapshotCache(rc).GetStat(ctx, "GOLOS")
	require.NoError(t, err)
	assert.Nil(t, stat)

	n, err := client.Exists(ctx, "test:"+StatKey("GOLOS")).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), n, "undecodable entry must be dropped")
}
