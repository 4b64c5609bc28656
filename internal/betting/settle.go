package betting

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Settle aplica a regra de liquidação sem tocar em storage.
//
// Recebe a partida (ainda ongoing), o vencedor, as apostas pendentes da partida e
// os donos dessas apostas. Devolve a partida finalizada, as apostas resolvidas,
// os usuários atualizados (ordenados por ID), um lançamento de ledger por aposta
// vencedora (ID em branco, atribuído na persistência) e o resumo.
// Apostas que não estão pendentes são ignoradas.
func Settle(m Match, winner string, pending []Bet, users map[string]User, now time.Time) (Settlement, error) {
	if m.Status != MatchOngoing {
		return Settlement{}, fmt.Errorf("%w: match %s is %s, expected %s", ErrInvalidState, m.ID, m.Status, MatchOngoing)
	}
	if !m.HasTeam(winner) {
		return Settlement{}, fmt.Errorf("%w: %q is not a participant of match %s", ErrInvalidSelection, winner, m.ID)
	}

	// ordem determinística independente de como o storage devolveu as linhas
	bets := make([]Bet, 0, len(pending))
	for _, b := range pending {
		if b.Status != BetPending {
			continue
		}
		if b.MatchID != m.ID {
			return Settlement{}, fmt.Errorf("%w: bet %s belongs to match %s", ErrInvalidState, b.ID, b.MatchID)
		}
		bets = append(bets, b)
	}
	sort.SliceStable(bets, func(i, j int) bool {
		if !bets[i].CreatedAt.Equal(bets[j].CreatedAt) {
			return bets[i].CreatedAt.Before(bets[j].CreatedAt)
		}
		return bets[i].ID < bets[j].ID
	})

	touched := make(map[string]User, len(users))
	out := Settlement{
		Bets: make([]Bet, 0, len(bets)),
		Summary: SettlementSummary{
			MatchID:     m.ID,
			Winner:      winner,
			TotalPayout: decimal.Zero,
			SettledAt:   now,
		},
	}

	for _, b := range bets {
		u, ok := touched[b.UserID]
		if !ok {
			if u, ok = users[b.UserID]; !ok {
				return Settlement{}, fmt.Errorf("%w: owner %s of bet %s", ErrNotFound, b.UserID, b.ID)
			}
		}

		u.TotalBets++
		if b.SelectedTeam == winner {
			payout := b.Amount.Mul(PayoutMultiplier)
			u.Balance = u.Balance.Add(payout)
			u.Wins++
			b.Status = BetWon
			b.Payout = &payout

			matchID, betID := m.ID, b.ID
			out.Ledger = append(out.Ledger, LedgerEntry{
				UserID:       b.UserID,
				Kind:         LedgerBetPayout,
				Amount:       payout,
				BalanceAfter: u.Balance,
				BetID:        &betID,
				MatchID:      &matchID,
				CreatedAt:    now,
			})
			out.Summary.BetsWon++
			out.Summary.TotalPayout = out.Summary.TotalPayout.Add(payout)
		} else {
			u.Losses++
			b.Status = BetLost
			b.Payout = nil
			out.Summary.BetsLost++
		}
		u.UpdatedAt = now
		b.UpdatedAt = now

		touched[b.UserID] = u
		out.Bets = append(out.Bets, b)
		out.Summary.BetsSettled++
	}

	out.Users = make([]User, 0, len(touched))
	for _, u := range touched {
		out.Users = append(out.Users, u)
	}
	sort.Slice(out.Users, func(i, j int) bool { return out.Users[i].ID < out.Users[j].ID })

	w := winner
	m.Status = MatchCompleted
	m.Winner = &w
	m.IsBettingOpen = false
	m.UpdatedAt = now
	out.Match = m

	return out, nil
}
