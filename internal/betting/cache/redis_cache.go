package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/badminton-bet-platform/internal/betting"
)

// RedisCache guarda leituras caras em JSON com TTL.
// leaderboard: hash "leaderboard" com um campo por limit; settlement: uma chave por partida.
type RedisCache struct {
	Client         *redis.Client
	LeaderboardTTL time.Duration
	SettlementTTL  time.Duration
}

func NewRedisCache(c *redis.Client, leaderboardTTL, settlementTTL time.Duration) *RedisCache {
	return &RedisCache{Client: c, LeaderboardTTL: leaderboardTTL, SettlementTTL: settlementTTL}
}

const keyLeaderboard = "leaderboard"

func keySettlement(matchID string) string { return "settlement:match:" + matchID }

func (c *RedisCache) GetLeaderboard(ctx context.Context, limit int) ([]betting.User, bool, error) {
	b, err := c.Client.HGet(ctx, keyLeaderboard, strconv.Itoa(limit)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var users []betting.User
	if err := json.Unmarshal(b, &users); err != nil {
		return nil, false, fmt.Errorf("decode leaderboard: %w", err)
	}
	return users, true, nil
}

// SetLeaderboard grava o campo e renova o TTL do hash inteiro;
// o primeiro limit gravado define a janela de validade
func (c *RedisCache) SetLeaderboard(ctx context.Context, limit int, users []betting.User) error {
	b, err := json.Marshal(users)
	if err != nil {
		return err
	}
	pipe := c.Client.TxPipeline()
	pipe.HSet(ctx, keyLeaderboard, strconv.Itoa(limit), b)
	pipe.ExpireNX(ctx, keyLeaderboard, c.LeaderboardTTL)
	_, err = pipe.Exec(ctx)
	return err
}

func (c *RedisCache) InvalidateLeaderboard(ctx context.Context) error {
	return c.Client.Del(ctx, keyLeaderboard).Err()
}

func (c *RedisCache) GetSettlement(ctx context.Context, matchID string) (*betting.SettlementSummary, bool, error) {
	b, err := c.Client.Get(ctx, keySettlement(matchID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var s betting.SettlementSummary
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, false, fmt.Errorf("decode settlement: %w", err)
	}
	return &s, true, nil
}

func (c *RedisCache) SetSettlement(ctx context.Context, s betting.SettlementSummary) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return c.Client.Set(ctx, keySettlement(s.MatchID), b, c.SettlementTTL).Err()
}

func (c *RedisCache) InvalidateSettlement(ctx context.Context, matchID string) error {
	return c.Client.Del(ctx, keySettlement(matchID)).Err()
}
