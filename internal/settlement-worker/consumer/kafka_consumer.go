package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/badminton-bet-platform/internal/settlement-worker/pubsub"
	"github.com/radieske/badminton-bet-platform/pkg/contracts/events"
)

// MessageReader é o subconjunto de *kafka.Reader usado pelo worker
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Cache são as invalidações que o worker faz após cada evento
type Cache interface {
	InvalidateLeaderboard(ctx context.Context) error
	InvalidateSettlement(ctx context.Context, matchID string) error
}

type Broadcaster interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

var errUnknownTopic = errors.New("unknown topic")

// Processor consome bet_placed e match_settled, invalida os caches de leitura
// e repassa o resultado para o results-service via Redis Pub/Sub.
// Mensagens que não decodificam vão para a DLQ e são commitadas.
type Processor struct {
	Log         *zap.Logger
	Reader      MessageReader
	DLQ         MessageWriter
	Cache       Cache
	Broadcaster Broadcaster

	TopicBetPlaced    string
	TopicMatchSettled string
	Channel           string

	OnConsumed  func(topic string) // métricas
	OnBroadcast func()             // métricas
	OnDLQ       func()             // métricas
	OnError     func(string)       // métricas por fase
}

// Run inicia o loop principal; só retorna quando o contexto é cancelado
func (p *Processor) Run(ctx context.Context) error {
	for {
		m, err := p.Reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Log.Warn("kafka fetch failed", zap.Error(err))
			p.fail("read")
			if !sleep(ctx, 500*time.Millisecond) {
				return ctx.Err()
			}
			continue
		}

		if p.OnConsumed != nil {
			p.OnConsumed(m.Topic)
		}

		if err := p.Handle(ctx, m); err != nil {
			p.Log.Warn("message rejected, sending to dlq",
				zap.String("topic", m.Topic),
				zap.Int64("offset", m.Offset),
				zap.Error(err),
			)
			p.fail("decode")
			// commit de um offset posterior pularia esta mensagem, então insiste na DLQ
			for {
				dlqErr := p.deadLetter(ctx, m, err)
				if dlqErr == nil {
					break
				}
				p.Log.Error("dlq write failed", zap.Int64("offset", m.Offset), zap.Error(dlqErr))
				p.fail("dlq")
				if !sleep(ctx, time.Second) {
					return ctx.Err()
				}
			}
		}

		if err := p.Reader.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Log.Warn("kafka commit failed", zap.Int64("offset", m.Offset), zap.Error(err))
			p.fail("commit")
		}
	}
}

// Handle processa uma mensagem. Erro só para payload inválido;
// falhas de Redis são logadas e não bloqueiam o offset.
func (p *Processor) Handle(ctx context.Context, m kafka.Message) error {
	switch m.Topic {
	case p.TopicMatchSettled:
		var ev events.MatchSettled
		if err := json.Unmarshal(m.Value, &ev); err != nil {
			return fmt.Errorf("decode match_settled: %w", err)
		}
		if ev.MatchID == "" || ev.Winner == "" {
			return fmt.Errorf("decode match_settled: missing match_id or winner")
		}
		p.handleSettled(ctx, ev)
		return nil

	case p.TopicBetPlaced:
		var ev events.BetPlaced
		if err := json.Unmarshal(m.Value, &ev); err != nil {
			return fmt.Errorf("decode bet_placed: %w", err)
		}
		if ev.MatchID == "" || ev.BetID == "" {
			return fmt.Errorf("decode bet_placed: missing match_id or bet_id")
		}
		p.handleBetPlaced(ctx, ev)
		return nil

	default:
		return fmt.Errorf("%w: %q", errUnknownTopic, m.Topic)
	}
}

func (p *Processor) handleSettled(ctx context.Context, ev events.MatchSettled) {
	log := p.Log.With(zap.String("match_id", ev.MatchID))

	if p.Cache != nil {
		if err := p.Cache.InvalidateSettlement(ctx, ev.MatchID); err != nil {
			log.Warn("settlement cache invalidation failed", zap.Error(err))
			p.fail("cache")
		}
		if err := p.Cache.InvalidateLeaderboard(ctx); err != nil {
			log.Warn("leaderboard cache invalidation failed", zap.Error(err))
			p.fail("cache")
		}
	}

	p.broadcast(ctx, pubsub.ResultUpdate{Type: pubsub.TypeMatchSettled, MatchID: ev.MatchID, Payload: ev})
	log.Info("match settlement processed",
		zap.String("winner", ev.Winner),
		zap.Int("bets_settled", ev.BetsSettled),
		zap.String("total_payout", ev.TotalPayout),
	)
}

func (p *Processor) handleBetPlaced(ctx context.Context, ev events.BetPlaced) {
	// saldo do apostador mudou, ranking em cache ficou velho
	if p.Cache != nil {
		if err := p.Cache.InvalidateLeaderboard(ctx); err != nil {
			p.Log.Warn("leaderboard cache invalidation failed", zap.String("bet_id", ev.BetID), zap.Error(err))
			p.fail("cache")
		}
	}

	// clientes do WS não precisam saber quem apostou
	p.broadcast(ctx, pubsub.ResultUpdate{
		Type:    pubsub.TypeBetPlaced,
		MatchID: ev.MatchID,
		Payload: map[string]string{
			"selectedTeam": ev.SelectedTeam,
			"amount":       ev.Amount,
		},
	})
}

func (p *Processor) broadcast(ctx context.Context, upd pubsub.ResultUpdate) {
	if p.Broadcaster == nil {
		return
	}
	b, err := json.Marshal(upd)
	if err != nil {
		p.Log.Warn("broadcast marshal failed", zap.Error(err))
		p.fail("broadcast")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	if err := p.Broadcaster.Publish(ctx, p.Channel, b); err != nil {
		p.Log.Warn("results broadcast publish failed", zap.String("match_id", upd.MatchID), zap.Error(err))
		p.fail("broadcast")
		return
	}
	if p.OnBroadcast != nil {
		p.OnBroadcast()
	}
}

// deadLetter copia a mensagem original para a DLQ com a causa nos headers
func (p *Processor) deadLetter(ctx context.Context, m kafka.Message, cause error) error {
	if p.DLQ == nil {
		return nil
	}
	dl := kafka.Message{
		Key:   m.Key,
		Value: m.Value,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "source_topic", Value: []byte(m.Topic)},
			{Key: "source_offset", Value: []byte(fmt.Sprint(m.Offset))},
			{Key: "error", Value: []byte(cause.Error())},
		},
	}
	if err := p.DLQ.WriteMessages(ctx, dl); err != nil {
		return err
	}
	if p.OnDLQ != nil {
		p.OnDLQ()
	}
	return nil
}

func (p *Processor) fail(stage string) {
	if p.OnError != nil {
		p.OnError(stage)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
