package betting

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/badminton-bet-platform/pkg/contracts/events"
)

// Publisher recebe os eventos de domínio depois do commit
type Publisher interface {
	PublishBetPlaced(ctx context.Context, ev events.BetPlaced) error
	PublishMatchSettled(ctx context.Context, ev events.MatchSettled) error
}

// Hooks são callbacks de métrica; qualquer um pode ser nil
type Hooks struct {
	OnBetPlaced    func(b Bet)
	OnBetRejected  func(reason string)
	OnMatchSettled func(s SettlementSummary, took time.Duration)
}

type Options struct {
	StartingBalance decimal.Decimal
	TxTimeout       time.Duration
	Now             func() time.Time
	NewID           func() string
}

type Service struct {
	store Store
	pub   Publisher
	log   *zap.Logger
	hooks Hooks
	opts  Options
}

func NewService(store Store, pub Publisher, log *zap.Logger, opts Options, hooks Hooks) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Service{store: store, pub: pub, log: log, hooks: hooks, opts: opts}
}

// withTx aplica o timeout de transação configurado; timeout = rollback
func (s *Service) withTx(ctx context.Context, fn func(tx Tx) error) error {
	if s.opts.TxTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.TxTimeout)
		defer cancel()
	}
	return s.store.WithinTx(ctx, fn)
}

func validAmount(a decimal.Decimal) bool {
	return a.IsPositive() && a.Equal(a.Round(2))
}

// ---------------------------------------------------------------------------
// Bet Intake

// PlaceBet valida e registra uma aposta, debitando o saldo na mesma transação.
func (s *Service) PlaceBet(ctx context.Context, userID, matchID, selectedTeam string, amount decimal.Decimal) (*Bet, error) {
	var (
		bet     Bet
		balance decimal.Decimal
	)

	err := s.withTx(ctx, func(tx Tx) error {
		if _, err := tx.Users().Get(ctx, userID); err != nil {
			return fmt.Errorf("user %s: %w", userID, err)
		}

		// lock compartilhado: bloqueia a liquidação enquanto a aposta não comita
		m, err := tx.Matches().GetForShare(ctx, matchID)
		if err != nil {
			return fmt.Errorf("match %s: %w", matchID, err)
		}
		if !m.HasTeam(selectedTeam) {
			return fmt.Errorf("%w: %q is not a participant of match %s", ErrInvalidSelection, selectedTeam, m.ID)
		}
		if !m.AcceptsBets() {
			return fmt.Errorf("%w: match %s (status=%s, betting_open=%t)", ErrBettingClosed, m.ID, m.Status, m.IsBettingOpen)
		}
		if !validAmount(amount) {
			return fmt.Errorf("%w: %s must be positive with at most 2 decimals", ErrInvalidAmount, amount)
		}

		u, err := tx.Users().GetForUpdate(ctx, userID)
		if err != nil {
			return fmt.Errorf("user %s: %w", userID, err)
		}
		if u.Balance.LessThan(amount) {
			return fmt.Errorf("%w: balance %s, amount %s", ErrInsufficientFunds, u.Balance.StringFixed(2), amount.StringFixed(2))
		}

		now := s.opts.Now()
		u.Balance = u.Balance.Sub(amount)
		u.UpdatedAt = now
		if err := tx.Users().Update(ctx, *u); err != nil {
			return fmt.Errorf("debit user %s: %w", u.ID, err)
		}

		bet = Bet{
			ID:                s.opts.NewID(),
			UserID:            u.ID,
			MatchID:           m.ID,
			SelectedTeam:      selectedTeam,
			Amount:            amount,
			PotentialWinnings: amount.Mul(PayoutMultiplier),
			Status:            BetPending,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if err := tx.Bets().Insert(ctx, bet); err != nil {
			return fmt.Errorf("insert bet: %w", err)
		}

		betRef, matchRef := bet.ID, m.ID
		if err := tx.Ledger().Append(ctx, LedgerEntry{
			ID:           s.opts.NewID(),
			UserID:       u.ID,
			Kind:         LedgerBetDebit,
			Amount:       amount.Neg(),
			BalanceAfter: u.Balance,
			BetID:        &betRef,
			MatchID:      &matchRef,
			CreatedAt:    now,
		}); err != nil {
			return fmt.Errorf("append ledger: %w", err)
		}
		balance = u.Balance
		return nil
	})
	if err != nil {
		if s.hooks.OnBetRejected != nil {
			s.hooks.OnBetRejected(Reason(err))
		}
		return nil, err
	}

	s.log.Info("bet placed",
		zap.String("bet_id", bet.ID),
		zap.String("user_id", bet.UserID),
		zap.String("match_id", bet.MatchID),
		zap.String("selected_team", bet.SelectedTeam),
		zap.String("amount", bet.Amount.StringFixed(2)),
	)
	if s.hooks.OnBetPlaced != nil {
		s.hooks.OnBetPlaced(bet)
	}

	if s.pub != nil {
		ev := events.BetPlaced{
			BetID:             bet.ID,
			UserID:            bet.UserID,
			MatchID:           bet.MatchID,
			SelectedTeam:      bet.SelectedTeam,
			Amount:            bet.Amount.StringFixed(2),
			PotentialWinnings: bet.PotentialWinnings.StringFixed(2),
			BalanceAfter:      balance.StringFixed(2),
			PlacedAt:          bet.CreatedAt,
		}
		if err := s.pub.PublishBetPlaced(ctx, ev); err != nil {
			// aposta já está comitada; evento é best-effort
			s.log.Warn("publish bet_placed failed", zap.String("bet_id", bet.ID), zap.Error(err))
		}
	}

	return &bet, nil
}

// ---------------------------------------------------------------------------
// Settlement Engine

// DeclareWinner finaliza a partida e liquida todas as apostas pendentes
// numa única transação. Segunda chamada para a mesma partida falha com ErrInvalidState.
func (s *Service) DeclareWinner(ctx context.Context, matchID, winner string) (*SettlementSummary, error) {
	start := time.Now()
	var st Settlement

	err := s.withTx(ctx, func(tx Tx) error {
		m, err := tx.Matches().GetForUpdate(ctx, matchID)
		if err != nil {
			return fmt.Errorf("match %s: %w", matchID, err)
		}
		if m.Status != MatchOngoing {
			return fmt.Errorf("%w: match %s is %s, expected %s", ErrInvalidState, m.ID, m.Status, MatchOngoing)
		}
		if !m.HasTeam(winner) {
			return fmt.Errorf("%w: %q is not a participant of match %s", ErrInvalidSelection, winner, m.ID)
		}

		pending, err := tx.Bets().PendingForMatch(ctx, m.ID)
		if err != nil {
			return fmt.Errorf("load pending bets of match %s: %w", m.ID, err)
		}

		ids := make([]string, 0, len(pending))
		seen := make(map[string]struct{}, len(pending))
		for _, b := range pending {
			if _, ok := seen[b.UserID]; !ok {
				seen[b.UserID] = struct{}{}
				ids = append(ids, b.UserID)
			}
		}
		sort.Strings(ids)

		users, err := tx.Users().LockMany(ctx, ids)
		if err != nil {
			return fmt.Errorf("lock bettors of match %s: %w", m.ID, err)
		}

		st, err = Settle(*m, winner, pending, users, s.opts.Now())
		if err != nil {
			return err
		}

		if err := tx.Matches().Update(ctx, st.Match); err != nil {
			return fmt.Errorf("settle match %s: update match: %w", m.ID, err)
		}
		for _, b := range st.Bets {
			if err := tx.Bets().Update(ctx, b); err != nil {
				return fmt.Errorf("settle match %s: update bet %s: %w", m.ID, b.ID, err)
			}
		}
		for _, u := range st.Users {
			if err := tx.Users().Update(ctx, u); err != nil {
				return fmt.Errorf("settle match %s: update user %s: %w", m.ID, u.ID, err)
			}
		}
		for i := range st.Ledger {
			st.Ledger[i].ID = s.opts.NewID()
			if err := tx.Ledger().Append(ctx, st.Ledger[i]); err != nil {
				return fmt.Errorf("settle match %s: append ledger: %w", m.ID, err)
			}
		}
		if err := tx.Settlements().Insert(ctx, st.Summary); err != nil {
			return fmt.Errorf("settle match %s: insert summary: %w", m.ID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	took := time.Since(start)
	sum := st.Summary
	s.log.Info("match settled",
		zap.String("match_id", sum.MatchID),
		zap.String("winner", sum.Winner),
		zap.Int("bets_settled", sum.BetsSettled),
		zap.Int("bets_won", sum.BetsWon),
		zap.Int("bets_lost", sum.BetsLost),
		zap.String("total_payout", sum.TotalPayout.StringFixed(2)),
		zap.Duration("took", took),
	)
	if s.hooks.OnMatchSettled != nil {
		s.hooks.OnMatchSettled(sum, took)
	}

	if s.pub != nil {
		if err := s.pub.PublishMatchSettled(ctx, settledEvent(st)); err != nil {
			s.log.Warn("publish match_settled failed", zap.String("match_id", sum.MatchID), zap.Error(err))
		}
	}

	return &sum, nil
}

func settledEvent(st Settlement) events.MatchSettled {
	ev := events.MatchSettled{
		MatchID:     st.Match.ID,
		Team1Name:   st.Match.Team1Name,
		Team2Name:   st.Match.Team2Name,
		Winner:      st.Summary.Winner,
		BetsSettled: st.Summary.BetsSettled,
		BetsWon:     st.Summary.BetsWon,
		BetsLost:    st.Summary.BetsLost,
		TotalPayout: st.Summary.TotalPayout.StringFixed(2),
		Outcomes:    make([]events.BetOutcome, 0, len(st.Bets)),
		SettledAt:   st.Summary.SettledAt,
	}
	for _, b := range st.Bets {
		o := events.BetOutcome{BetID: b.ID, UserID: b.UserID, Status: string(b.Status)}
		if b.Payout != nil {
			o.Payout = b.Payout.StringFixed(2)
		}
		ev.Outcomes = append(ev.Outcomes, o)
	}
	return ev
}

// ---------------------------------------------------------------------------
// Leituras de apostas

func (s *Service) ListUserBets(ctx context.Context, userID string) ([]BetWithMatch, error) {
	var out []BetWithMatch
	err := s.withTx(ctx, func(tx Tx) error {
		if _, err := tx.Users().Get(ctx, userID); err != nil {
			return fmt.Errorf("user %s: %w", userID, err)
		}
		var err error
		out, err = betsWithMatch(ctx, tx, userID)
		return err
	})
	return out, err
}

func betsWithMatch(ctx context.Context, tx Tx, userID string) ([]BetWithMatch, error) {
	bets, err := tx.Bets().ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list bets of user %s: %w", userID, err)
	}

	matches := make(map[string]Match)
	out := make([]BetWithMatch, 0, len(bets))
	for _, b := range bets {
		m, ok := matches[b.MatchID]
		if !ok {
			mp, err := tx.Matches().Get(ctx, b.MatchID)
			if err != nil {
				return nil, fmt.Errorf("match %s of bet %s: %w", b.MatchID, b.ID, err)
			}
			m = *mp
			matches[m.ID] = m
		}
		out = append(out, BetWithMatch{Bet: b, Match: m})
	}
	return out, nil
}

// GetBet devolve a aposta para o dono ou para um admin
func (s *Service) GetBet(ctx context.Context, p Principal, betID string) (*BetWithMatch, error) {
	var out BetWithMatch
	err := s.withTx(ctx, func(tx Tx) error {
		b, err := tx.Bets().Get(ctx, betID)
		if err != nil {
			return fmt.Errorf("bet %s: %w", betID, err)
		}
		if b.UserID != p.UserID && !p.IsAdmin {
			return fmt.Errorf("%w: bet %s belongs to another user", ErrAccessDenied, betID)
		}
		m, err := tx.Matches().Get(ctx, b.MatchID)
		if err != nil {
			return fmt.Errorf("match %s: %w", b.MatchID, err)
		}
		out = BetWithMatch{Bet: *b, Match: *m}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetSettlement devolve o resumo gravado junto com a liquidação
func (s *Service) GetSettlement(ctx context.Context, matchID string) (*SettlementSummary, error) {
	var out *SettlementSummary
	err := s.withTx(ctx, func(tx Tx) error {
		m, err := tx.Matches().Get(ctx, matchID)
		if err != nil {
			return fmt.Errorf("match %s: %w", matchID, err)
		}
		if m.Status != MatchCompleted {
			return fmt.Errorf("%w: match %s is %s, not settled yet", ErrInvalidState, m.ID, m.Status)
		}
		out, err = tx.Settlements().Get(ctx, matchID)
		if err != nil {
			return fmt.Errorf("settlement of match %s: %w", matchID, err)
		}
		return nil
	})
	return out, err
}

// ---------------------------------------------------------------------------
// Match Registry

func (s *Service) CreateMatch(ctx context.Context, in NewMatch) (*Match, error) {
	t1, t2 := strings.TrimSpace(in.Team1Name), strings.TrimSpace(in.Team2Name)
	if t1 == "" || t2 == "" {
		return nil, fmt.Errorf("%w: both team names are required", ErrInvalidSelection)
	}
	if t1 == t2 {
		return nil, fmt.Errorf("%w: teams must be different (%q)", ErrInvalidSelection, t1)
	}

	status := in.Status
	if status == "" {
		status = MatchUpcoming
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidState, status)
	}
	if status == MatchCompleted {
		return nil, fmt.Errorf("%w: a match can only be completed by declaring its winner", ErrInvalidState)
	}

	open := true
	if in.IsBettingOpen != nil {
		open = *in.IsBettingOpen
	}

	now := s.opts.Now()
	startsAt := in.StartsAt
	if startsAt.IsZero() {
		startsAt = now
	}

	m := Match{
		ID:            s.opts.NewID(),
		Team1Name:     t1,
		Team2Name:     t2,
		Tournament:    strings.TrimSpace(in.Tournament),
		Status:        status,
		IsBettingOpen: open,
		StartsAt:      startsAt.UTC(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err := s.withTx(ctx, func(tx Tx) error {
		return tx.Matches().Insert(ctx, m)
	})
	if err != nil {
		return nil, fmt.Errorf("create match: %w", err)
	}

	s.log.Info("match created", zap.String("match_id", m.ID), zap.String("team1", t1), zap.String("team2", t2))
	return &m, nil
}

func (s *Service) ListMatches(ctx context.Context, statuses ...MatchStatus) ([]Match, error) {
	for _, st := range statuses {
		if !st.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, st)
		}
	}
	var out []Match
	err := s.withTx(ctx, func(tx Tx) error {
		var err error
		out, err = tx.Matches().List(ctx, statuses)
		return err
	})
	return out, err
}

// ListActiveMatches = upcoming + ongoing
func (s *Service) ListActiveMatches(ctx context.Context) ([]Match, error) {
	return s.ListMatches(ctx, MatchUpcoming, MatchOngoing)
}

func (s *Service) GetMatch(ctx context.Context, id string) (*Match, error) {
	var out *Match
	err := s.withTx(ctx, func(tx Tx) error {
		var err error
		out, err = tx.Matches().Get(ctx, id)
		if err != nil {
			return fmt.Errorf("match %s: %w", id, err)
		}
		return nil
	})
	return out, err
}

// UpdateMatchStatus só permite upcoming -> ongoing (reabrindo as apostas).
// ongoing -> completed acontece exclusivamente via DeclareWinner.
func (s *Service) UpdateMatchStatus(ctx context.Context, id string, status MatchStatus) (*Match, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidState, status)
	}
	if status == MatchCompleted {
		return nil, fmt.Errorf("%w: declare the winner to complete match %s", ErrInvalidState, id)
	}

	var out Match
	err := s.withTx(ctx, func(tx Tx) error {
		m, err := tx.Matches().GetForUpdate(ctx, id)
		if err != nil {
			return fmt.Errorf("match %s: %w", id, err)
		}
		if !(m.Status == MatchUpcoming && status == MatchOngoing) {
			return fmt.Errorf("%w: transition %s -> %s not allowed", ErrInvalidState, m.Status, status)
		}
		m.Status = status
		m.IsBettingOpen = true
		m.UpdatedAt = s.opts.Now()
		if err := tx.Matches().Update(ctx, *m); err != nil {
			return fmt.Errorf("update match %s: %w", id, err)
		}
		out = *m
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("match status updated", zap.String("match_id", id), zap.String("status", string(status)))
	return &out, nil
}

func (s *Service) SetBettingOpen(ctx context.Context, id string, open bool) (*Match, error) {
	var out Match
	err := s.withTx(ctx, func(tx Tx) error {
		m, err := tx.Matches().GetForUpdate(ctx, id)
		if err != nil {
			return fmt.Errorf("match %s: %w", id, err)
		}
		if m.Status == MatchCompleted {
			return fmt.Errorf("%w: match %s is completed", ErrInvalidState, id)
		}
		m.IsBettingOpen = open
		m.UpdatedAt = s.opts.Now()
		if err := tx.Matches().Update(ctx, *m); err != nil {
			return fmt.Errorf("update match %s: %w", id, err)
		}
		out = *m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteMatch só remove partidas upcoming que ainda não receberam apostas
func (s *Service) DeleteMatch(ctx context.Context, id string) error {
	err := s.withTx(ctx, func(tx Tx) error {
		m, err := tx.Matches().GetForUpdate(ctx, id)
		if err != nil {
			return fmt.Errorf("match %s: %w", id, err)
		}
		if m.Status != MatchUpcoming {
			return fmt.Errorf("%w: only upcoming matches can be deleted (match %s is %s)", ErrInvalidState, id, m.Status)
		}
		n, err := tx.Bets().CountByMatch(ctx, id)
		if err != nil {
			return fmt.Errorf("count bets of match %s: %w", id, err)
		}
		if n > 0 {
			return fmt.Errorf("%w: match %s already has %d bets", ErrInvalidState, id, n)
		}
		return tx.Matches().Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.log.Info("match deleted", zap.String("match_id", id))
	return nil
}

// ---------------------------------------------------------------------------
// Usuários e ledger

// RegisterUser cria o usuário com o saldo inicial e o lançamento "initial" no ledger
func (s *Service) RegisterUser(ctx context.Context, username string, isAdmin bool) (*User, error) {
	var out User
	err := s.withTx(ctx, func(tx Tx) error {
		u, err := s.registerUser(ctx, tx, username, isAdmin)
		if err != nil {
			return err
		}
		out = *u
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("user registered", zap.String("user_id", out.ID), zap.String("username", out.Username), zap.Bool("is_admin", out.IsAdmin))
	return &out, nil
}

func (s *Service) registerUser(ctx context.Context, tx Tx, username string, isAdmin bool) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	if _, err := tx.Users().GetByUsername(ctx, username); err == nil {
		return nil, fmt.Errorf("%w: username %q", ErrAlreadyExists, username)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("lookup username %q: %w", username, err)
	}

	now := s.opts.Now()
	u := User{
		ID:        s.opts.NewID(),
		Username:  username,
		Balance:   s.opts.StartingBalance,
		IsAdmin:   isAdmin,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.Users().Insert(ctx, u); err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	if err := tx.Ledger().Append(ctx, LedgerEntry{
		ID:           s.opts.NewID(),
		UserID:       u.ID,
		Kind:         LedgerInitial,
		Amount:       u.Balance,
		BalanceAfter: u.Balance,
		CreatedAt:    now,
	}); err != nil {
		return nil, fmt.Errorf("append ledger: %w", err)
	}
	return &u, nil
}

// EnsureAdmin garante que o admin de bootstrap existe; idempotente
func (s *Service) EnsureAdmin(ctx context.Context, username string) (*User, error) {
	var (
		out     User
		created bool
	)
	err := s.withTx(ctx, func(tx Tx) error {
		u, err := tx.Users().GetByUsername(ctx, strings.TrimSpace(username))
		switch {
		case err == nil:
			if !u.IsAdmin {
				u.IsAdmin = true
				u.UpdatedAt = s.opts.Now()
				if err := tx.Users().Update(ctx, *u); err != nil {
					return fmt.Errorf("promote %q: %w", username, err)
				}
			}
			out = *u
			return nil
		case errors.Is(err, ErrNotFound):
			u, err = s.registerUser(ctx, tx, username, true)
			if err != nil {
				return err
			}
			out, created = *u, true
			return nil
		default:
			return fmt.Errorf("lookup admin %q: %w", username, err)
		}
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("admin ensured", zap.String("user_id", out.ID), zap.String("username", out.Username), zap.Bool("created", created))
	return &out, nil
}

func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	var out *User
	err := s.withTx(ctx, func(tx Tx) error {
		var err error
		out, err = tx.Users().Get(ctx, id)
		if err != nil {
			return fmt.Errorf("user %s: %w", id, err)
		}
		return nil
	})
	return out, err
}

func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	var out []User
	err := s.withTx(ctx, func(tx Tx) error {
		var err error
		out, err = tx.Users().List(ctx)
		return err
	})
	return out, err
}

// PredictionHistory devolve as apostas do usuário e as estatísticas agregadas
func (s *Service) PredictionHistory(ctx context.Context, userID string) (*History, error) {
	bets, err := s.ListUserBets(ctx, userID)
	if err != nil {
		return nil, err
	}

	h := History{
		Bets: bets,
		Stats: HistoryStats{
			Total:         len(bets),
			TotalWinnings: decimal.Zero,
			TotalLosses:   decimal.Zero,
		},
	}
	for _, b := range bets {
		switch b.Status {
		case BetWon:
			h.Stats.Won++
			if b.Payout != nil {
				h.Stats.TotalWinnings = h.Stats.TotalWinnings.Add(*b.Payout)
			}
		case BetLost:
			h.Stats.Lost++
			h.Stats.TotalLosses = h.Stats.TotalLosses.Add(b.Amount)
		default:
			h.Stats.Pending++
		}
	}
	return &h, nil
}

// UserLedger devolve o extrato de movimentações do saldo do usuário
func (s *Service) UserLedger(ctx context.Context, userID string) ([]LedgerEntry, error) {
	var out []LedgerEntry
	err := s.withTx(ctx, func(tx Tx) error {
		if _, err := tx.Users().Get(ctx, userID); err != nil {
			return fmt.Errorf("user %s: %w", userID, err)
		}
		var err error
		out, err = tx.Ledger().ListByUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("list ledger of user %s: %w", userID, err)
		}
		return nil
	})
	return out, err
}

const (
	DefaultLeaderboardLimit = 10
	MaxLeaderboardLimit     = 100
)

func (s *Service) Leaderboard(ctx context.Context, limit int) ([]User, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}
	if limit > MaxLeaderboardLimit {
		limit = MaxLeaderboardLimit
	}
	var out []User
	err := s.withTx(ctx, func(tx Tx) error {
		var err error
		out, err = tx.Users().Leaderboard(ctx, limit)
		return err
	})
	return out, err
}

// AdjustBalance credita (delta > 0) ou debita (delta < 0) o saldo pelo admin
func (s *Service) AdjustBalance(ctx context.Context, userID string, delta decimal.Decimal) (*User, error) {
	if delta.IsZero() || !delta.Equal(delta.Round(2)) {
		return nil, fmt.Errorf("%w: delta %s must be non-zero with at most 2 decimals", ErrInvalidAmount, delta)
	}

	var out User
	err := s.withTx(ctx, func(tx Tx) error {
		u, err := tx.Users().GetForUpdate(ctx, userID)
		if err != nil {
			return fmt.Errorf("user %s: %w", userID, err)
		}
		next := u.Balance.Add(delta)
		if next.IsNegative() {
			return fmt.Errorf("%w: balance %s, delta %s", ErrInsufficientFunds, u.Balance.StringFixed(2), delta.StringFixed(2))
		}

		now := s.opts.Now()
		u.Balance = next
		u.UpdatedAt = now
		if err := tx.Users().Update(ctx, *u); err != nil {
			return fmt.Errorf("update user %s: %w", u.ID, err)
		}
		if err := tx.Ledger().Append(ctx, LedgerEntry{
			ID:           s.opts.NewID(),
			UserID:       u.ID,
			Kind:         LedgerAdminAdjustment,
			Amount:       delta,
			BalanceAfter: next,
			CreatedAt:    now,
		}); err != nil {
			return fmt.Errorf("append ledger: %w", err)
		}
		out = *u
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("balance adjusted", zap.String("user_id", userID), zap.String("delta", delta.StringFixed(2)), zap.String("balance", out.Balance.StringFixed(2)))
	return &out, nil
}

// Reconcile confere saldo contra a soma do ledger
func (s *Service) Reconcile(ctx context.Context, userID string) (*Reconciliation, error) {
	var out Reconciliation
	err := s.withTx(ctx, func(tx Tx) error {
		u, err := tx.Users().Get(ctx, userID)
		if err != nil {
			return fmt.Errorf("user %s: %w", userID, err)
		}
		total, err := tx.Ledger().Sum(ctx, userID)
		if err != nil {
			return fmt.Errorf("sum ledger of user %s: %w", userID, err)
		}
		out = Reconciliation{
			UserID:      u.ID,
			Balance:     u.Balance,
			LedgerTotal: total,
			Balanced:    u.Balance.Equal(total),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !out.Balanced {
		s.log.Warn("ledger mismatch",
			zap.String("user_id", userID),
			zap.String("balance", out.Balance.StringFixed(2)),
			zap.String("ledger_total", out.LedgerTotal.StringFixed(2)),
		)
	}
	return &out, nil
}
