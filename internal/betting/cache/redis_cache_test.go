package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/radieske/badminton-bet-platform/internal/betting"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis integration test in short mode")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = rdb.Close() })
	require.NoError(t, rdb.Ping(ctx).Err())
	return rdb
}

func TestRedisCache_Leaderboard(t *testing.T) {
	rdb := setupRedis(t)
	c := NewRedisCache(rdb, time.Minute, time.Minute)
	ctx := context.Background()

	_, ok, err := c.GetLeaderboard(ctx, 10)
	require.NoError(t, err)
	assert.False(t, ok)

	users := []betting.User{{ID: "u1", Username: "alice", Balance: decimal.RequireFromString("120.50")}}
	require.NoError(t, c.SetLeaderboard(ctx, 10, users))

	got, ok, err := c.GetLeaderboard(ctx, 10)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.True(t, got[0].Balance.Equal(users[0].Balance))

	ttl, err := rdb.TTL(ctx, keyLeaderboard).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, c.InvalidateLeaderboard(ctx))
	_, ok, err = c.GetLeaderboard(ctx, 10)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCache_Settlement(t *testing.T) {
	rdb := setupRedis(t)
	c := NewRedisCache(rdb, time.Minute, time.Minute)
	ctx := context.Background()

	sum := betting.SettlementSummary{MatchID: "m1", Winner: "TeamX", BetsSettled: 3, BetsWon: 1, BetsLost: 2,
		TotalPayout: decimal.RequireFromString("40"), SettledAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	require.NoError(t, c.SetSettlement(ctx, sum))

	got, ok, err := c.GetSettlement(ctx, "m1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "TeamX", got.Winner)
	assert.Equal(t, 3, got.BetsSettled)
	assert.True(t, got.SettledAt.Equal(sum.SettledAt))

	require.NoError(t, c.InvalidateSettlement(ctx, "m1"))
	_, ok, err = c.GetSettlement(ctx, "m1")
	require.NoError(t, err)
	assert.False(t, ok)
}
