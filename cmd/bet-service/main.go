package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	bhttp "github.com/radieske/badminton-bet-platform/internal/bet-service/http"
	"github.com/radieske/badminton-bet-platform/internal/betting"
	bcache "github.com/radieske/badminton-bet-platform/internal/betting/cache"
	"github.com/radieske/badminton-bet-platform/internal/betting/instrument"
	"github.com/radieske/badminton-bet-platform/internal/betting/producer"
	"github.com/radieske/badminton-bet-platform/internal/betting/repo"
	"github.com/radieske/badminton-bet-platform/internal/shared/cache"
	"github.com/radieske/badminton-bet-platform/internal/shared/config"
	"github.com/radieske/badminton-bet-platform/internal/shared/db"
	"github.com/radieske/badminton-bet-platform/internal/shared/kafka"
	"github.com/radieske/badminton-bet-platform/internal/shared/logger"
	"github.com/radieske/badminton-bet-platform/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "bet-service"
	}
	log := logger.Must(cfg.ServiceName, cfg.Env)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Postgres
	bootCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pg, err := db.ConnectPostgres(bootCtx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	// Redis
	rdb, err := cache.ConnectRedis(bootCtx, cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer rdb.Close()

	// Kafka writer (topic bet_placed); match_settled não sai daqui
	writer := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetPlaced)
	defer writer.Close()

	// deps
	collectors := metrics.NewBettingCollectors(prometheus.DefaultRegisterer, cfg.ServiceName)
	httpMetrics := metrics.NewHTTPCollectors(prometheus.DefaultRegisterer, cfg.ServiceName)

	svc := betting.NewService(
		repo.NewPostgres(pg),
		producer.NewKafkaPublisher(writer, nil),
		log,
		betting.Options{StartingBalance: cfg.StartingBalance, TxTimeout: cfg.TxTimeout},
		instrument.Hooks(collectors),
	)
	leaderboard := bcache.NewRedisCache(rdb, cfg.LeaderboardCacheTTL, cfg.SettlementCacheTTL)

	// HTTP público
	api := bhttp.NewServer(log, svc, leaderboard, httpMetrics.Middleware)
	apiSrv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// metrics/health
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		return nil
	}, log)

	go func() {
		log.Info("bet-service listening", zap.String("addr", apiSrv.Addr))
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("api", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	_ = apiSrv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
}
