package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	bcache "github.com/radieske/badminton-bet-platform/internal/betting/cache"
	"github.com/radieske/badminton-bet-platform/internal/settlement-worker/consumer"
	"github.com/radieske/badminton-bet-platform/internal/settlement-worker/pubsub"
	"github.com/radieske/badminton-bet-platform/internal/shared/cache"
	"github.com/radieske/badminton-bet-platform/internal/shared/config"
	"github.com/radieske/badminton-bet-platform/internal/shared/kafka"
	"github.com/radieske/badminton-bet-platform/internal/shared/logger"
	"github.com/radieske/badminton-bet-platform/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "settlement-worker"
	}
	log := logger.Must(cfg.ServiceName, cfg.Env)
	defer log.Sync()

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	bootCtx, cancelBoot := context.WithTimeout(ctx, 10*time.Second)
	defer cancelBoot()
	redisClient, err := cache.ConnectRedis(bootCtx, cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer redisClient.Close()

	// consumer group settlement-worker nos dois tópicos do ledger
	reader := kafka.NewGroupReader(cfg.KafkaBrokers, "settlement-worker", cfg.TopicMatchSettled, cfg.TopicBetPlaced)
	defer reader.Close()

	dlq := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicMatchSettledDLQ)
	defer dlq.Close()

	wm := metrics.NewWorkerCollectors(prometheus.DefaultRegisterer, cfg.ServiceName)

	proc := &consumer.Processor{
		Log:               log,
		Reader:            reader,
		DLQ:               dlq,
		Cache:             bcache.NewRedisCache(redisClient, cfg.LeaderboardCacheTTL, cfg.SettlementCacheTTL),
		Broadcaster:       pubsub.NewRedisBroadcaster(redisClient),
		TopicBetPlaced:    cfg.TopicBetPlaced,
		TopicMatchSettled: cfg.TopicMatchSettled,
		Channel:           cfg.ResultsPubSubChannel,

		OnConsumed:  func(topic string) { wm.Consumed.WithLabelValues(topic).Inc() },
		OnBroadcast: func() { wm.Broadcasts.Inc() },
		OnDLQ:       func() { wm.DeadLetter.Inc() },
		OnError:     func(stage string) { wm.Errors.WithLabelValues(stage).Inc() },
	}

	// Servidor HTTP para métricas e health check
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		return nil
	}, log)
	defer metricsSrv.Close()

	log.Info("settlement-worker started",
		zap.String("topic_settled", cfg.TopicMatchSettled),
		zap.String("topic_bets", cfg.TopicBetPlaced),
		zap.String("channel", cfg.ResultsPubSubChannel),
	)
	if err := proc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("processor stopped with error", zap.Error(err))
	}
	log.Info("settlement-worker stopped")
}
