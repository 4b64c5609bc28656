// Package memstore é um betting.Store em memória, serializável, usado em testes
// e em execução local sem Postgres.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/radieske/badminton-bet-platform/internal/betting"
)

// Operações que aceitam injeção de falha
const (
	OpUserUpdate       = "users.update"
	OpUserInsert       = "users.insert"
	OpMatchUpdate      = "matches.update"
	OpBetInsert        = "bets.insert"
	OpBetUpdate        = "bets.update"
	OpLedgerAppend     = "ledger.append"
	OpSettlementInsert = "settlements.insert"
)

type state struct {
	users       map[string]betting.User
	matches     map[string]betting.Match
	bets        map[string]betting.Bet
	ledger      []betting.LedgerEntry
	settlements map[string]betting.SettlementSummary
}

func newState() *state {
	return &state{
		users:       map[string]betting.User{},
		matches:     map[string]betting.Match{},
		bets:        map[string]betting.Bet{},
		settlements: map[string]betting.SettlementSummary{},
	}
}

func (s *state) clone() *state {
	c := &state{
		users:       make(map[string]betting.User, len(s.users)),
		matches:     make(map[string]betting.Match, len(s.matches)),
		bets:        make(map[string]betting.Bet, len(s.bets)),
		ledger:      append([]betting.LedgerEntry(nil), s.ledger...),
		settlements: make(map[string]betting.SettlementSummary, len(s.settlements)),
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.matches {
		c.matches[k] = v
	}
	for k, v := range s.bets {
		c.bets[k] = v
	}
	for k, v := range s.settlements {
		c.settlements[k] = v
	}
	return c
}

// Store segura um único mutex durante toda a transação; as escritas vão para
// uma cópia do estado que só substitui o original no commit.
type Store struct {
	mu     sync.Mutex
	st     *state
	faults map[string]error
}

func New() *Store {
	return &Store{st: newState(), faults: map[string]error{}}
}

// FailOn faz toda chamada a op falhar com err até ClearFaults
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = err
}

func (s *Store) ClearFaults() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = map[string]error{}
}

func (s *Store) WithinTx(ctx context.Context, fn func(tx betting.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	t := &tx{st: s.st.clone(), faults: s.faults}
	if err := fn(t); err != nil {
		return err
	}
	// timeout durante a transação também descarta as escritas
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	s.st = t.st
	return nil
}

// Snapshot copia o estado comitado, para asserções em teste
func (s *Store) Snapshot() (users []betting.User, bets []betting.Bet, ledger []betting.LedgerEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.st.users {
		users = append(users, u)
	}
	for _, b := range s.st.bets {
		bets = append(bets, b)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	sort.Slice(bets, func(i, j int) bool { return bets[i].ID < bets[j].ID })
	return users, bets, append([]betting.LedgerEntry(nil), s.st.ledger...)
}

type tx struct {
	st     *state
	faults map[string]error
}

func (t *tx) fault(op string) error {
	if err, ok := t.faults[op]; ok {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (t *tx) Users() betting.UserRepository             { return users{t} }
func (t *tx) Matches() betting.MatchRepository          { return matches{t} }
func (t *tx) Bets() betting.BetRepository               { return bets{t} }
func (t *tx) Ledger() betting.LedgerRepository          { return ledger{t} }
func (t *tx) Settlements() betting.SettlementRepository { return settlements{t} }

// ---------------------------------------------------------------------------

type users struct{ *tx }

func (r users) Get(_ context.Context, id string) (*betting.User, error) {
	u, ok := r.st.users[id]
	if !ok {
		return nil, betting.ErrNotFound
	}
	return &u, nil
}

func (r users) GetForUpdate(ctx context.Context, id string) (*betting.User, error) {
	return r.Get(ctx, id)
}

func (r users) GetByUsername(_ context.Context, username string) (*betting.User, error) {
	for _, u := range r.st.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, betting.ErrNotFound
}

func (r users) LockMany(_ context.Context, ids []string) (map[string]betting.User, error) {
	out := make(map[string]betting.User, len(ids))
	for _, id := range ids {
		if u, ok := r.st.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func (r users) Insert(_ context.Context, u betting.User) error {
	if err := r.fault(OpUserInsert); err != nil {
		return err
	}
	if _, ok := r.st.users[u.ID]; ok {
		return fmt.Errorf("%w: user %s", betting.ErrAlreadyExists, u.ID)
	}
	for _, other := range r.st.users {
		if other.Username == u.Username {
			return fmt.Errorf("%w: username %q", betting.ErrAlreadyExists, u.Username)
		}
	}
	r.st.users[u.ID] = u
	return nil
}

func (r users) Update(_ context.Context, u betting.User) error {
	if err := r.fault(OpUserUpdate); err != nil {
		return err
	}
	if _, ok := r.st.users[u.ID]; !ok {
		return betting.ErrNotFound
	}
	// mesmas restrições do schema Postgres
	if u.Balance.IsNegative() || u.TotalBets < 0 || u.Wins < 0 || u.Losses < 0 {
		return fmt.Errorf("user %s: check constraint violated", u.ID)
	}
	r.st.users[u.ID] = u
	return nil
}

func (r users) List(_ context.Context) ([]betting.User, error) {
	out := make([]betting.User, 0, len(r.st.users))
	for _, u := range r.st.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) || (out[i].CreatedAt.Equal(out[j].CreatedAt) && out[i].ID < out[j].ID) })
	return out, nil
}

func (r users) Leaderboard(_ context.Context, limit int) ([]betting.User, error) {
	out := make([]betting.User, 0, len(r.st.users))
	for _, u := range r.st.users {
		if !u.IsAdmin {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Balance.Cmp(out[j].Balance); c != 0 {
			return c > 0
		}
		return out[i].Username < out[j].Username
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ---------------------------------------------------------------------------

type matches struct{ *tx }

func (r matches) Get(_ context.Context, id string) (*betting.Match, error) {
	m, ok := r.st.matches[id]
	if !ok {
		return nil, betting.ErrNotFound
	}
	return &m, nil
}

func (r matches) GetForShare(ctx context.Context, id string) (*betting.Match, error) {
	return r.Get(ctx, id)
}

func (r matches) GetForUpdate(ctx context.Context, id string) (*betting.Match, error) {
	return r.Get(ctx, id)
}

func (r matches) Insert(_ context.Context, m betting.Match) error {
	if _, ok := r.st.matches[m.ID]; ok {
		return fmt.Errorf("%w: match %s", betting.ErrAlreadyExists, m.ID)
	}
	r.st.matches[m.ID] = m
	return nil
}

func (r matches) Update(_ context.Context, m betting.Match) error {
	if err := r.fault(OpMatchUpdate); err != nil {
		return err
	}
	if _, ok := r.st.matches[m.ID]; !ok {
		return betting.ErrNotFound
	}
	r.st.matches[m.ID] = m
	return nil
}

func (r matches) Delete(_ context.Context, id string) error {
	if _, ok := r.st.matches[id]; !ok {
		return betting.ErrNotFound
	}
	delete(r.st.matches, id)
	return nil
}

func (r matches) List(_ context.Context, statuses []betting.MatchStatus) ([]betting.Match, error) {
	want := make(map[betting.MatchStatus]bool, len(statuses))
	for _, s := range statuses {
		want[s] = true
	}
	out := make([]betting.Match, 0, len(r.st.matches))
	for _, m := range r.st.matches {
		if len(want) == 0 || want[m.Status] {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// ---------------------------------------------------------------------------

type bets struct{ *tx }

func (r bets) Get(_ context.Context, id string) (*betting.Bet, error) {
	b, ok := r.st.bets[id]
	if !ok {
		return nil, betting.ErrNotFound
	}
	return &b, nil
}

func (r bets) Insert(_ context.Context, b betting.Bet) error {
	if err := r.fault(OpBetInsert); err != nil {
		return err
	}
	if _, ok := r.st.users[b.UserID]; !ok {
		return fmt.Errorf("bet %s: unknown user %s", b.ID, b.UserID)
	}
	if _, ok := r.st.matches[b.MatchID]; !ok {
		return fmt.Errorf("bet %s: unknown match %s", b.ID, b.MatchID)
	}
	r.st.bets[b.ID] = b
	return nil
}

func (r bets) Update(_ context.Context, b betting.Bet) error {
	if err := r.fault(OpBetUpdate); err != nil {
		return err
	}
	if _, ok := r.st.bets[b.ID]; !ok {
		return betting.ErrNotFound
	}
	r.st.bets[b.ID] = b
	return nil
}

func (r bets) ListByUser(_ context.Context, userID string) ([]betting.Bet, error) {
	var out []betting.Bet
	for _, b := range r.st.bets {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r bets) PendingForMatch(_ context.Context, matchID string) ([]betting.Bet, error) {
	var out []betting.Bet
	for _, b := range r.st.bets {
		if b.MatchID == matchID && b.Status == betting.BetPending {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r bets) CountByMatch(_ context.Context, matchID string) (int, error) {
	n := 0
	for _, b := range r.st.bets {
		if b.MatchID == matchID {
			n++
		}
	}
	return n, nil
}

// ---------------------------------------------------------------------------

type ledger struct{ *tx }

func (r ledger) Append(_ context.Context, e betting.LedgerEntry) error {
	if err := r.fault(OpLedgerAppend); err != nil {
		return err
	}
	r.st.ledger = append(r.st.ledger, e)
	return nil
}

func (r ledger) Sum(_ context.Context, userID string) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, e := range r.st.ledger {
		if e.UserID == userID {
			total = total.Add(e.Amount)
		}
	}
	return total, nil
}

func (r ledger) ListByUser(_ context.Context, userID string) ([]betting.LedgerEntry, error) {
	out := []betting.LedgerEntry{}
	for i := len(r.st.ledger) - 1; i >= 0; i-- {
		if e := r.st.ledger[i]; e.UserID == userID {
			out = append(out, e)
		}
	}
	// empate de created_at mantém a ordem inversa de inserção
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// ---------------------------------------------------------------------------

type settlements struct{ *tx }

func (r settlements) Insert(_ context.Context, s betting.SettlementSummary) error {
	if err := r.fault(OpSettlementInsert); err != nil {
		return err
	}
	if _, ok := r.st.settlements[s.MatchID]; ok {
		return fmt.Errorf("%w: settlement of match %s", betting.ErrAlreadyExists, s.MatchID)
	}
	r.st.settlements[s.MatchID] = s
	return nil
}

func (r settlements) Get(_ context.Context, matchID string) (*betting.SettlementSummary, error) {
	s, ok := r.st.settlements[matchID]
	if !ok {
		return nil, betting.ErrNotFound
	}
	return &s, nil
}
