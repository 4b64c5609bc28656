package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/badminton-bet-platform/internal/shared/config"
	"github.com/radieske/badminton-bet-platform/internal/shared/logger"
	"github.com/radieske/badminton-bet-platform/internal/shared/metrics"
)

func rp(to string) (*httputil.ReverseProxy, error) {
	u, err := url.Parse(to)
	if err != nil {
		return nil, fmt.Errorf("parse upstream %q: %w", to, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("upstream %q must be an absolute URL", to)
	}
	return httputil.NewSingleHostReverseProxy(u), nil
}

// newRouter monta as rotas do gateway. /api é removido antes de repassar:
//
//	/api/v1/admin/*   -> admin-service
//	/api/v1/results/* -> results-service (WebSocket)
//	/api/*            -> bet-service
func newRouter(betURL, adminURL, resultsURL string) (http.Handler, error) {
	bet, err := rp(betURL)
	if err != nil {
		return nil, err
	}
	admin, err := rp(adminURL)
	if err != nil {
		return nil, err
	}
	results, err := rp(resultsURL)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/api/v1/admin/", http.StripPrefix("/api", admin))
	mux.Handle("/api/v1/results/", http.StripPrefix("/api", results))
	mux.Handle("/api/", http.StripPrefix("/api", bet))
	return withCORS(mux), nil
}

func main() {
	cfg := config.Load()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "api-gateway"
	}
	log := logger.Must(cfg.ServiceName, cfg.Env)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	router, err := newRouter(cfg.BetURL, cfg.AdminURL, cfg.ResultsURL)
	if err != nil {
		log.Fatal("gateway routes", zap.Error(err))
	}
	httpMetrics := metrics.NewHTTPCollectors(prometheus.DefaultRegisterer, cfg.ServiceName)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           httpMetrics.Middleware(router),
		ReadHeaderTimeout: 5 * time.Second,
	}
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, nil, log)

	go func() {
		log.Info("api-gateway listening",
			zap.String("addr", srv.Addr),
			zap.String("bet", cfg.BetURL),
			zap.String("admin", cfg.AdminURL),
			zap.String("results", cfg.ResultsURL),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("gateway failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-User-ID")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.ServeHTTP(w, r)
	})
}
