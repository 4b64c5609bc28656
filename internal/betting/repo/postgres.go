package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/radieske/badminton-bet-platform/internal/betting"
)

// Postgres implementa betting.Store sobre database/sql + lib/pq.
// Cada unidade de trabalho é uma transação READ COMMITTED com locks explícitos de linha.
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

func (p *Postgres) WithinTx(ctx context.Context, fn func(tx betting.Tx) error) error {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// códigos SQLSTATE usados no mapeamento de erros
const (
	pqUniqueViolation = "23505"
	pqInvalidText     = "22P02" // ex.: id que não é UUID
)

// mapErr traduz erros do driver para os sentinelas do domínio
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return betting.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqInvalidText:
			return betting.ErrNotFound
		case pqUniqueViolation:
			return fmt.Errorf("%w: %s", betting.ErrAlreadyExists, pqErr.Constraint)
		}
	}
	return err
}

type pgTx struct{ tx *sql.Tx }

func (t *pgTx) Users() betting.UserRepository             { return userRepo{t.tx} }
func (t *pgTx) Matches() betting.MatchRepository          { return matchRepo{t.tx} }
func (t *pgTx) Bets() betting.BetRepository               { return betRepo{t.tx} }
func (t *pgTx) Ledger() betting.LedgerRepository          { return ledgerRepo{t.tx} }
func (t *pgTx) Settlements() betting.SettlementRepository { return settlementRepo{t.tx} }

type scanner interface {
	Scan(dest ...any) error
}

// ---------------------------------------------------------------------------
// users

const userCols = `id, username, balance, total_bets, wins, losses, is_admin, created_at, updated_at`

type userRepo struct{ tx *sql.Tx }

func scanUser(s scanner) (*betting.User, error) {
	var u betting.User
	if err := s.Scan(&u.ID, &u.Username, &u.Balance, &u.TotalBets, &u.Wins, &u.Losses, &u.IsAdmin, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func (r userRepo) queryUsers(ctx context.Context, query string, args ...any) ([]betting.User, error) {
	rows, err := r.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	out := []betting.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func (r userRepo) Get(ctx context.Context, id string) (*betting.User, error) {
	return scanUser(r.tx.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id=$1`, id))
}

func (r userRepo) GetForUpdate(ctx context.Context, id string) (*betting.User, error) {
	return scanUser(r.tx.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id=$1 FOR UPDATE`, id))
}

func (r userRepo) GetByUsername(ctx context.Context, username string) (*betting.User, error) {
	return scanUser(r.tx.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE username=$1`, username))
}

// LockMany usa ORDER BY id para que duas liquidações nunca travem usuários em ordem cruzada
func (r userRepo) LockMany(ctx context.Context, ids []string) (map[string]betting.User, error) {
	out := make(map[string]betting.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	users, err := r.queryUsers(ctx,
		`SELECT `+userCols+` FROM users WHERE id = ANY($1::uuid[]) ORDER BY id FOR UPDATE`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

func (r userRepo) Insert(ctx context.Context, u betting.User) error {
	_, err := r.tx.ExecContext(ctx, `
		INSERT INTO users (id, username, balance, total_bets, wins, losses, is_admin, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		u.ID, u.Username, u.Balance, u.TotalBets, u.Wins, u.Losses, u.IsAdmin, u.CreatedAt, u.UpdatedAt,
	)
	return mapErr(err)
}

func (r userRepo) Update(ctx context.Context, u betting.User) error {
	res, err := r.tx.ExecContext(ctx, `
		UPDATE users SET balance=$2, total_bets=$3, wins=$4, losses=$5, is_admin=$6, updated_at=$7
		WHERE id=$1`,
		u.ID, u.Balance, u.TotalBets, u.Wins, u.Losses, u.IsAdmin, u.UpdatedAt,
	)
	return affectedOne(res, err)
}

func (r userRepo) List(ctx context.Context) ([]betting.User, error) {
	return r.queryUsers(ctx, `SELECT `+userCols+` FROM users ORDER BY created_at, id`)
}

func (r userRepo) Leaderboard(ctx context.Context, limit int) ([]betting.User, error) {
	return r.queryUsers(ctx,
		`SELECT `+userCols+` FROM users WHERE NOT is_admin ORDER BY balance DESC, username LIMIT $1`, limit)
}

// ---------------------------------------------------------------------------
// matches

const matchCols = `id, team1_name, team2_name, tournament, status, winner, is_betting_open, starts_at, created_at, updated_at`

type matchRepo struct{ tx *sql.Tx }

func scanMatch(s scanner) (*betting.Match, error) {
	var (
		m      betting.Match
		winner sql.NullString
	)
	if err := s.Scan(&m.ID, &m.Team1Name, &m.Team2Name, &m.Tournament, &m.Status, &winner,
		&m.IsBettingOpen, &m.StartsAt, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	if winner.Valid {
		w := winner.String
		m.Winner = &w
	}
	return &m, nil
}

func (r matchRepo) Get(ctx context.Context, id string) (*betting.Match, error) {
	return scanMatch(r.tx.QueryRowContext(ctx, `SELECT `+matchCols+` FROM matches WHERE id=$1`, id))
}

func (r matchRepo) GetForShare(ctx context.Context, id string) (*betting.Match, error) {
	return scanMatch(r.tx.QueryRowContext(ctx, `SELECT `+matchCols+` FROM matches WHERE id=$1 FOR SHARE`, id))
}

func (r matchRepo) GetForUpdate(ctx context.Context, id string) (*betting.Match, error) {
	return scanMatch(r.tx.QueryRowContext(ctx, `SELECT `+matchCols+` FROM matches WHERE id=$1 FOR UPDATE`, id))
}

func (r matchRepo) Insert(ctx context.Context, m betting.Match) error {
	_, err := r.tx.ExecContext(ctx, `
		INSERT INTO matches (id, team1_name, team2_name, tournament, status, winner, is_betting_open, starts_at, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		m.ID, m.Team1Name, m.Team2Name, m.Tournament, m.Status, nullString(m.Winner),
		m.IsBettingOpen, m.StartsAt, m.CreatedAt, m.UpdatedAt,
	)
	return mapErr(err)
}

func (r matchRepo) Update(ctx context.Context, m betting.Match) error {
	res, err := r.tx.ExecContext(ctx, `
		UPDATE matches SET status=$2, winner=$3, is_betting_open=$4, updated_at=$5
		WHERE id=$1`,
		m.ID, m.Status, nullString(m.Winner), m.IsBettingOpen, m.UpdatedAt,
	)
	return affectedOne(res, err)
}

func (r matchRepo) Delete(ctx context.Context, id string) error {
	res, err := r.tx.ExecContext(ctx, `DELETE FROM matches WHERE id=$1`, id)
	return affectedOne(res, err)
}

func (r matchRepo) List(ctx context.Context, statuses []betting.MatchStatus) ([]betting.Match, error) {
	query := `SELECT ` + matchCols + ` FROM matches`
	var args []any
	if len(statuses) > 0 {
		ss := make([]string, len(statuses))
		for i, s := range statuses {
			ss[i] = string(s)
		}
		query += ` WHERE status = ANY($1)`
		args = append(args, pq.Array(ss))
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	out := []betting.Match{}
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// bets

const betCols = `id, user_id, match_id, selected_team, amount, potential_winnings, status, payout, created_at, updated_at`

type betRepo struct{ tx *sql.Tx }

func scanBet(s scanner) (*betting.Bet, error) {
	var (
		b      betting.Bet
		payout decimal.NullDecimal
	)
	if err := s.Scan(&b.ID, &b.UserID, &b.MatchID, &b.SelectedTeam, &b.Amount, &b.PotentialWinnings,
		&b.Status, &payout, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	if payout.Valid {
		p := payout.Decimal
		b.Payout = &p
	}
	return &b, nil
}

func (r betRepo) queryBets(ctx context.Context, query string, args ...any) ([]betting.Bet, error) {
	rows, err := r.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	out := []betting.Bet{}
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func (r betRepo) Get(ctx context.Context, id string) (*betting.Bet, error) {
	return scanBet(r.tx.QueryRowContext(ctx, `SELECT `+betCols+` FROM bets WHERE id=$1`, id))
}

func (r betRepo) Insert(ctx context.Context, b betting.Bet) error {
	_, err := r.tx.ExecContext(ctx, `
		INSERT INTO bets (id, user_id, match_id, selected_team, amount, potential_winnings, status, payout, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		b.ID, b.UserID, b.MatchID, b.SelectedTeam, b.Amount, b.PotentialWinnings, b.Status,
		nullDecimal(b.Payout), b.CreatedAt, b.UpdatedAt,
	)
	return mapErr(err)
}

func (r betRepo) Update(ctx context.Context, b betting.Bet) error {
	res, err := r.tx.ExecContext(ctx, `UPDATE bets SET status=$2, payout=$3, updated_at=$4 WHERE id=$1`,
		b.ID, b.Status, nullDecimal(b.Payout), b.UpdatedAt)
	return affectedOne(res, err)
}

func (r betRepo) ListByUser(ctx context.Context, userID string) ([]betting.Bet, error) {
	return r.queryBets(ctx, `SELECT `+betCols+` FROM bets WHERE user_id=$1 ORDER BY created_at DESC, id DESC`, userID)
}

func (r betRepo) PendingForMatch(ctx context.Context, matchID string) ([]betting.Bet, error) {
	return r.queryBets(ctx,
		`SELECT `+betCols+` FROM bets WHERE match_id=$1 AND status='pending' ORDER BY id FOR UPDATE`, matchID)
}

func (r betRepo) CountByMatch(ctx context.Context, matchID string) (int, error) {
	var n int
	err := r.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM bets WHERE match_id=$1`, matchID).Scan(&n)
	return n, mapErr(err)
}

// ---------------------------------------------------------------------------
// ledger

type ledgerRepo struct{ tx *sql.Tx }

func (r ledgerRepo) Append(ctx context.Context, e betting.LedgerEntry) error {
	_, err := r.tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (id, user_id, kind, amount, balance_after, bet_id, match_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		e.ID, e.UserID, e.Kind, e.Amount, e.BalanceAfter, nullString(e.BetID), nullString(e.MatchID), e.CreatedAt,
	)
	return mapErr(err)
}

func (r ledgerRepo) Sum(ctx context.Context, userID string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.tx.QueryRowContext(ctx, `SELECT COALESCE(SUM(amount), 0) FROM ledger_entries WHERE user_id=$1`, userID).Scan(&total)
	return total, mapErr(err)
}

func (r ledgerRepo) ListByUser(ctx context.Context, userID string) ([]betting.LedgerEntry, error) {
	rows, err := r.tx.QueryContext(ctx, `
		SELECT id, user_id, kind, amount, balance_after, bet_id, match_id, created_at
		FROM ledger_entries WHERE user_id=$1 ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	out := []betting.LedgerEntry{}
	for rows.Next() {
		var (
			e              betting.LedgerEntry
			betID, matchID sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Kind, &e.Amount, &e.BalanceAfter, &betID, &matchID, &e.CreatedAt); err != nil {
			return nil, mapErr(err)
		}
		if betID.Valid {
			e.BetID = &betID.String
		}
		if matchID.Valid {
			e.MatchID = &matchID.String
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// settlements

type settlementRepo struct{ tx *sql.Tx }

func (r settlementRepo) Insert(ctx context.Context, s betting.SettlementSummary) error {
	_, err := r.tx.ExecContext(ctx, `
		INSERT INTO match_settlements (match_id, winner, bets_settled, bets_won, bets_lost, total_payout, settled_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		s.MatchID, s.Winner, s.BetsSettled, s.BetsWon, s.BetsLost, s.TotalPayout, s.SettledAt,
	)
	return mapErr(err)
}

func (r settlementRepo) Get(ctx context.Context, matchID string) (*betting.SettlementSummary, error) {
	var s betting.SettlementSummary
	err := r.tx.QueryRowContext(ctx, `
		SELECT match_id, winner, bets_settled, bets_won, bets_lost, total_payout, settled_at
		FROM match_settlements WHERE match_id=$1`, matchID,
	).Scan(&s.MatchID, &s.Winner, &s.BetsSettled, &s.BetsWon, &s.BetsLost, &s.TotalPayout, &s.SettledAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &s, nil
}

// ---------------------------------------------------------------------------

func affectedOne(res sql.Result, err error) error {
	if err != nil {
		return mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return betting.ErrNotFound
	}
	return nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}
