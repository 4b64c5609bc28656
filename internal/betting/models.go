package betting

import (
	"time"

	"github.com/shopspring/decimal"
)

type MatchStatus string

const (
	MatchUpcoming  MatchStatus = "upcoming"
	MatchOngoing   MatchStatus = "ongoing"
	MatchCompleted MatchStatus = "completed"
)

func (s MatchStatus) Valid() bool {
	switch s {
	case MatchUpcoming, MatchOngoing, MatchCompleted:
		return true
	}
	return false
}

type BetStatus string

const (
	BetPending BetStatus = "pending"
	BetWon     BetStatus = "won"
	BetLost    BetStatus = "lost"
)

type LedgerKind string

const (
	LedgerInitial         LedgerKind = "initial"
	LedgerBetDebit        LedgerKind = "bet_debit"
	LedgerBetPayout       LedgerKind = "bet_payout"
	LedgerAdminAdjustment LedgerKind = "admin_adjustment"
)

// Pagamento fixo "even money": quem acerta recebe 2x o valor apostado
var PayoutMultiplier = decimal.NewFromInt(2)

type User struct {
	ID        string          `json:"id"`
	Username  string          `json:"username"`
	Balance   decimal.Decimal `json:"balance"`
	TotalBets int             `json:"totalBets"`
	Wins      int             `json:"wins"`
	Losses    int             `json:"losses"`
	IsAdmin   bool            `json:"isAdmin"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

type Match struct {
	ID            string      `json:"id"`
	Team1Name     string      `json:"team1Name"`
	Team2Name     string      `json:"team2Name"`
	Tournament    string      `json:"tournament,omitempty"`
	Status        MatchStatus `json:"status"`
	Winner        *string     `json:"winner"`
	IsBettingOpen bool        `json:"isBettingOpen"`
	StartsAt      time.Time   `json:"startsAt"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

// HasTeam diz se o nome é um dos dois participantes (comparação exata)
func (m Match) HasTeam(name string) bool {
	return name != "" && (name == m.Team1Name || name == m.Team2Name)
}

// AcceptsBets: partida não finalizada e com apostas abertas
func (m Match) AcceptsBets() bool {
	return m.Status != MatchCompleted && m.IsBettingOpen
}

type Bet struct {
	ID                string           `json:"id"`
	UserID            string           `json:"userId"`
	MatchID           string           `json:"matchId"`
	SelectedTeam      string           `json:"selectedTeam"`
	Amount            decimal.Decimal  `json:"amount"`
	PotentialWinnings decimal.Decimal  `json:"potentialWinnings"`
	Status            BetStatus        `json:"status"`
	Payout            *decimal.Decimal `json:"payout"`
	CreatedAt         time.Time        `json:"createdAt"`
	UpdatedAt         time.Time        `json:"updatedAt"`
}

// BetWithMatch é a visão de leitura usada pelas listagens do apostador
type BetWithMatch struct {
	Bet
	Match Match `json:"match"`
}

type LedgerEntry struct {
	ID           string          `json:"id"`
	UserID       string          `json:"userId"`
	Kind         LedgerKind      `json:"kind"`
	Amount       decimal.Decimal `json:"amount"` // com sinal: débito negativo
	BalanceAfter decimal.Decimal `json:"balanceAfter"`
	BetID        *string         `json:"betId,omitempty"`
	MatchID      *string         `json:"matchId,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
}

type SettlementSummary struct {
	MatchID     string          `json:"matchId"`
	Winner      string          `json:"winner"`
	BetsSettled int             `json:"betsSettled"`
	BetsWon     int             `json:"betsWon"`
	BetsLost    int             `json:"betsLost"`
	TotalPayout decimal.Decimal `json:"totalPayout"`
	SettledAt   time.Time       `json:"settledAt"`
}

// Settlement é o resultado puro de Settle, pronto para ser persistido
type Settlement struct {
	Match   Match
	Bets    []Bet
	Users   []User // ordenados por ID
	Ledger  []LedgerEntry
	Summary SettlementSummary
}

// NewMatch é a entrada de CreateMatch. Status vazio vira upcoming; IsBettingOpen nil vira true.
type NewMatch struct {
	Team1Name     string
	Team2Name     string
	Tournament    string
	StartsAt      time.Time
	Status        MatchStatus
	IsBettingOpen *bool
}

// Principal é quem está chamando, já autenticado pela borda HTTP
type Principal struct {
	UserID  string
	IsAdmin bool
}

type HistoryStats struct {
	Total         int             `json:"total"`
	Won           int             `json:"won"`
	Lost          int             `json:"lost"`
	Pending       int             `json:"pending"`
	TotalWinnings decimal.Decimal `json:"totalWinnings"`
	TotalLosses   decimal.Decimal `json:"totalLosses"`
}

type History struct {
	Bets  []BetWithMatch `json:"bets"`
	Stats HistoryStats   `json:"stats"`
}

type Reconciliation struct {
	UserID      string          `json:"userId"`
	Balance     decimal.Decimal `json:"balance"`
	LedgerTotal decimal.Decimal `json:"ledgerTotal"`
	Balanced    bool            `json:"balanced"`
}
