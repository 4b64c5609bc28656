package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/badminton-bet-platform/internal/results-service/ws"
	"github.com/radieske/badminton-bet-platform/internal/shared/cache"
	"github.com/radieske/badminton-bet-platform/internal/shared/config"
	"github.com/radieske/badminton-bet-platform/internal/shared/logger"
	"github.com/radieske/badminton-bet-platform/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "results-service"
	}
	log := logger.Must(cfg.ServiceName, cfg.Env)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bootCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	redisClient, err := cache.ConnectRedis(bootCtx, cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer redisClient.Close()

	wm := metrics.NewWorkerCollectors(prometheus.DefaultRegisterer, cfg.ServiceName)
	httpMetrics := metrics.NewHTTPCollectors(prometheus.DefaultRegisterer, cfg.ServiceName)

	// origem liberada: o gateway já aplica CORS
	hub := ws.NewHub(log, func(*http.Request) bool { return true })
	hub.OnDelivered = func() { wm.Broadcasts.Inc() }

	if err := ws.StartRedisSubscriber(ctx, redisClient, cfg.ResultsPubSubChannel, hub, log); err != nil {
		log.Fatal("redis subscribe", zap.String("channel", cfg.ResultsPubSubChannel), zap.Error(err))
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer, httpMetrics.Middleware)
	r.Get("/v1/results/ws", hub.HandleWS)

	apiSrv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		return nil
	}, log)

	go func() {
		log.Info("results-service listening", zap.String("addr", apiSrv.Addr), zap.String("channel", cfg.ResultsPubSubChannel))
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
