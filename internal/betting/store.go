package betting

import (
	"context"

	"github.com/shopspring/decimal"
)

// Store abre unidades de trabalho transacionais.
// fn roda dentro de uma transação; erro em fn faz rollback de tudo.
type Store interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx expõe os repositórios ligados à transação corrente
type Tx interface {
	Users() UserRepository
	Matches() MatchRepository
	Bets() BetRepository
	Ledger() LedgerRepository
	Settlements() SettlementRepository
}

// Getters retornam ErrNotFound quando a linha não existe.
// Variantes ForUpdate/ForShare travam a linha até o fim da transação.
type UserRepository interface {
	Get(ctx context.Context, id string) (*User, error)
	GetForUpdate(ctx context.Context, id string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	// LockMany trava os usuários em ordem crescente de ID
	LockMany(ctx context.Context, ids []string) (map[string]User, error)
	Insert(ctx context.Context, u User) error
	Update(ctx context.Context, u User) error
	List(ctx context.Context) ([]User, error)
	// Leaderboard lista não-admins por saldo decrescente
	Leaderboard(ctx context.Context, limit int) ([]User, error)
}

type MatchRepository interface {
	Get(ctx context.Context, id string) (*Match, error)
	GetForShare(ctx context.Context, id string) (*Match, error)
	GetForUpdate(ctx context.Context, id string) (*Match, error)
	Insert(ctx context.Context, m Match) error
	Update(ctx context.Context, m Match) error
	Delete(ctx context.Context, id string) error
	// List filtra por status (vazio = todos), mais recentes primeiro
	List(ctx context.Context, statuses []MatchStatus) ([]Match, error)
}

type BetRepository interface {
	Get(ctx context.Context, id string) (*Bet, error)
	Insert(ctx context.Context, b Bet) error
	Update(ctx context.Context, b Bet) error
	// ListByUser devolve as apostas do usuário, mais recentes primeiro
	ListByUser(ctx context.Context, userID string) ([]Bet, error)
	// PendingForMatch trava e devolve as apostas pendentes da partida
	PendingForMatch(ctx context.Context, matchID string) ([]Bet, error)
	CountByMatch(ctx context.Context, matchID string) (int, error)
}

type LedgerRepository interface {
	Append(ctx context.Context, e LedgerEntry) error
	Sum(ctx context.Context, userID string) (decimal.Decimal, error)
	// ListByUser devolve o extrato do usuário, mais recente primeiro
	ListByUser(ctx context.Context, userID string) ([]LedgerEntry, error)
}

type SettlementRepository interface {
	Insert(ctx context.Context, s SettlementSummary) error
	Get(ctx context.Context, matchID string) (*SettlementSummary, error)
}
