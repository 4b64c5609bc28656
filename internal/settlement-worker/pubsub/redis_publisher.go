package pubsub

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Tipos de update que o results-service repassa aos clientes
const (
	TypeMatchSettled = "match_settled"
	TypeBetPlaced    = "bet_placed"
)

type RedisBroadcaster struct {
	r *redis.Client
}

func NewRedisBroadcaster(r *redis.Client) *RedisBroadcaster {
	return &RedisBroadcaster{r: r}
}

func (b *RedisBroadcaster) Publish(ctx context.Context, channel string, payload []byte) error {
	return b.r.Publish(ctx, channel, payload).Err()
}

// Payload padrão para o WS do results-service
type ResultUpdate struct {
	Type    string      `json:"type"`
	MatchID string      `json:"matchId"`
	Payload interface{} `json:"payload"`
}
