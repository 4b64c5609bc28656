package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_Healthz(t *testing.T) {
	ok := httptest.NewRecorder()
	Handler(func(context.Context) error { return nil }).
		ServeHTTP(ok, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, ok.Code)
	assert.Equal(t, "ok", ok.Body.String())

	down := httptest.NewRecorder()
	Handler(func(context.Context) error { return errors.New("db down") }).
		ServeHTTP(down, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, down.Code)
	assert.Contains(t, down.Body.String(), "db down")
}

func TestBettingCollectors_Register(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewBettingCollectors(reg, "bet-service")

	c.BetsPlaced.Inc()
	c.BetsRejected.WithLabelValues("insufficient_funds").Inc()
	c.BetsSettled.WithLabelValues("won").Add(2)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.BetsPlaced))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.BetsRejected.WithLabelValues("insufficient_funds")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.BetsSettled.WithLabelValues("won")))

	// registrar duas vezes no mesmo registry deve falhar
	assert.Panics(t, func() { NewBettingCollectors(reg, "bet-service") })
}

func TestHTTPCollectors_Middleware(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewHTTPCollectors(reg, "admin-service")

	h := c.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/v1/admin/matches/x/result", nil))
	require.Equal(t, http.StatusConflict, rec.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.Requests.WithLabelValues(http.MethodPut, "409")))
}

func TestWorkerCollectors_Register(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewWorkerCollectors(reg, "settlement-worker")

	c.Consumed.WithLabelValues("match_settled").Inc()
	c.Errors.WithLabelValues("decode").Add(3)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.Consumed.WithLabelValues("match_settled")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.Errors.WithLabelValues("decode")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.DeadLetter))
}

func TestHTTPCollectors_MiddlewareKeepsHijacker(t *testing.T) {
	c := NewHTTPCollectors(prometheus.NewRegistry(), "results-service")

	var hijackable bool
	h := c.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hijackable = w.(http.Hijacker)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/results/ws", nil))
	assert.True(t, hijackable)
}
