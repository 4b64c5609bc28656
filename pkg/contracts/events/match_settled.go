package events

import "time"

// Evento publicado no tópico "match_settled" quando o admin declara o vencedor
type MatchSettled struct {
	MatchID     string       `json:"match_id"`
	Team1Name   string       `json:"team1_name"`
	Team2Name   string       `json:"team2_name"`
	Winner      string       `json:"winner"`
	BetsSettled int          `json:"bets_settled"`
	BetsWon     int          `json:"bets_won"`
	BetsLost    int          `json:"bets_lost"`
	TotalPayout string       `json:"total_payout"`
	Outcomes    []BetOutcome `json:"outcomes"`
	SettledAt   time.Time    `json:"settled_at"`
}

// BetOutcome é o resultado individual de cada aposta liquidada
type BetOutcome struct {
	BetID  string `json:"bet_id"`
	UserID string `json:"user_id"`
	Status string `json:"status"`           // "won" | "lost"
	Payout string `json:"payout,omitempty"` // vazio quando perdeu
}
