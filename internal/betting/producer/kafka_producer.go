package producer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/radieske/badminton-bet-platform/internal/shared/kafka"
	"github.com/radieske/badminton-bet-platform/pkg/contracts/events"
)

// MessageWriter é satisfeito pelo writer de kafka.NewWriter e por fakes nos testes
type MessageWriter = kafka.MessageWriter

// KafkaPublisher publica os eventos do ledger; a chave é sempre o match_id,
// então eventos da mesma partida chegam em ordem na mesma partição
type KafkaPublisher struct {
	BetPlaced    MessageWriter
	MatchSettled MessageWriter
}

func NewKafkaPublisher(betPlaced, matchSettled MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{BetPlaced: betPlaced, MatchSettled: matchSettled}
}

func (p *KafkaPublisher) PublishBetPlaced(ctx context.Context, e events.BetPlaced) error {
	return publish(ctx, p.BetPlaced, e.MatchID, e)
}

func (p *KafkaPublisher) PublishMatchSettled(ctx context.Context, e events.MatchSettled) error {
	return publish(ctx, p.MatchSettled, e.MatchID, e)
}

func publish(ctx context.Context, w MessageWriter, key string, v any) error {
	if w == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return kafka.WriteJSON(ctx, w, key, b)
}
