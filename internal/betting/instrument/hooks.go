// Package instrument liga os hooks do betting.Service aos collectors Prometheus.
package instrument

import (
	"time"

	"github.com/radieske/badminton-bet-platform/internal/betting"
	"github.com/radieske/badminton-bet-platform/internal/shared/metrics"
)

func Hooks(c *metrics.BettingCollectors) betting.Hooks {
	return betting.Hooks{
		OnBetPlaced: func(b betting.Bet) {
			c.BetsPlaced.Inc()
			c.AmountWagered.Add(b.Amount.InexactFloat64())
		},
		OnBetRejected: func(reason string) {
			c.BetsRejected.WithLabelValues(reason).Inc()
		},
		OnMatchSettled: func(s betting.SettlementSummary, took time.Duration) {
			c.MatchesSettled.Inc()
			c.BetsSettled.WithLabelValues(string(betting.BetWon)).Add(float64(s.BetsWon))
			c.BetsSettled.WithLabelValues(string(betting.BetLost)).Add(float64(s.BetsLost))
			c.PayoutTotal.Add(s.TotalPayout.InexactFloat64())
			c.SettlementDuration.Observe(took.Seconds())
		},
	}
}
