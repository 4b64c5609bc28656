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

	ahttp "github.com/radieske/badminton-bet-platform/internal/admin-service/http"
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
		cfg.ServiceName = "admin-service"
	}
	log := logger.Must(cfg.ServiceName, cfg.Env)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bootCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pg, err := db.ConnectPostgres(bootCtx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	// admin-service é dono do schema: migra antes de aceitar tráfego
	version, err := db.Migrate(pg)
	if err != nil {
		log.Fatal("migrate", zap.Error(err))
	}
	log.Info("schema ready", zap.Uint("version", version))

	rdb, err := cache.ConnectRedis(bootCtx, cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer rdb.Close()

	// Kafka writer (topic match_settled)
	writer := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicMatchSettled)
	defer writer.Close()

	collectors := metrics.NewBettingCollectors(prometheus.DefaultRegisterer, cfg.ServiceName)
	httpMetrics := metrics.NewHTTPCollectors(prometheus.DefaultRegisterer, cfg.ServiceName)

	svc := betting.NewService(
		repo.NewPostgres(pg),
		producer.NewKafkaPublisher(nil, writer),
		log,
		betting.Options{StartingBalance: cfg.StartingBalance, TxTimeout: cfg.TxTimeout},
		instrument.Hooks(collectors),
	)

	admin, err := svc.EnsureAdmin(bootCtx, cfg.AdminUsername)
	if err != nil {
		log.Fatal("ensure admin", zap.Error(err))
	}
	log.Info("admin user available", zap.String("user_id", admin.ID), zap.String("username", admin.Username))

	readCache := bcache.NewRedisCache(rdb, cfg.LeaderboardCacheTTL, cfg.SettlementCacheTTL)

	api := ahttp.NewServer(log, svc, readCache, httpMetrics.Middleware)
	apiSrv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

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
		log.Info("admin-service listening", zap.String("addr", apiSrv.Addr))
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
