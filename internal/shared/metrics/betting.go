package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// BettingCollectors agrupa as métricas de negócio do ledger.
// Os serviços ligam esses collectors nos hooks do betting.Service.
type BettingCollectors struct {
	BetsPlaced         prometheus.Counter
	BetsRejected       *prometheus.CounterVec // label "reason"
	AmountWagered      prometheus.Counter
	MatchesSettled     prometheus.Counter
	BetsSettled        *prometheus.CounterVec // label "outcome" (won|lost)
	PayoutTotal        prometheus.Counter
	SettlementDuration prometheus.Histogram
}

func NewBettingCollectors(reg prometheus.Registerer, service string) *BettingCollectors {
	constLabels := prometheus.Labels{"service": service}

	c := &BettingCollectors{
		BetsPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bets_placed_total", Help: "apostas aceitas", ConstLabels: constLabels,
		}),
		BetsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bets_rejected_total", Help: "apostas recusadas por motivo", ConstLabels: constLabels,
		}, []string{"reason"}),
		AmountWagered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bets_amount_wagered_total", Help: "soma dos valores apostados", ConstLabels: constLabels,
		}),
		MatchesSettled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "matches_settled_total", Help: "partidas liquidadas", ConstLabels: constLabels,
		}),
		BetsSettled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bets_settled_total", Help: "apostas liquidadas por resultado", ConstLabels: constLabels,
		}, []string{"outcome"}),
		PayoutTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "settlement_payout_total", Help: "soma dos pagamentos creditados", ConstLabels: constLabels,
		}),
		SettlementDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "settlement_duration_seconds", Help: "duração da transação de liquidação",
			ConstLabels: constLabels, Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(c.BetsPlaced, c.BetsRejected, c.AmountWagered,
		c.MatchesSettled, c.BetsSettled, c.PayoutTotal, c.SettlementDuration)
	return c
}

// HTTPCollectors mede as requisições das APIs públicas
type HTTPCollectors struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

func NewHTTPCollectors(reg prometheus.Registerer, service string) *HTTPCollectors {
	c := &HTTPCollectors{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total", Help: "requisições HTTP",
			ConstLabels: prometheus.Labels{"service": service},
		}, []string{"method", "code"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "http_request_duration_seconds", Help: "latência HTTP",
			ConstLabels: prometheus.Labels{"service": service}, Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
	}
	reg.MustRegister(c.Requests, c.Duration)
	return c
}

// Middleware registra método, status e latência de cada requisição
func (c *HTTPCollectors) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		c.Requests.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
		c.Duration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Hijack mantém o upgrade de WebSocket funcionando atrás do middleware
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijack not supported")
	}
	return h.Hijack()
}
