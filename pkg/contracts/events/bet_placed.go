package events

import "time"

// Evento publicado no tópico "bet_placed" após o commit da aposta.
// Valores monetários trafegam como string decimal com 2 casas ("20.00").
type BetPlaced struct {
	BetID             string    `json:"bet_id"`
	UserID            string    `json:"user_id"`
	MatchID           string    `json:"match_id"`
	SelectedTeam      string    `json:"selected_team"`
	Amount            string    `json:"amount"`
	PotentialWinnings string    `json:"potential_winnings"`
	BalanceAfter      string    `json:"balance_after"`
	PlacedAt          time.Time `json:"placed_at"`
}
