package repo_test

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/radieske/badminton-bet-platform/internal/betting"
	"github.com/radieske/badminton-bet-platform/internal/betting/repo"
	"github.com/radieske/badminton-bet-platform/internal/shared/db"
)

// setupDatabase sobe um Postgres descartável e aplica as migrations
func setupDatabase(t *testing.T) *sql.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("badminton_test"),
		postgres.WithUsername("test_user"),
		postgres.WithPassword("test_password"),
		postgres.BasicWaitStrategies(),
		testcontainers.WithLabels(map[string]string{"test": "betting-repo", "cleanup": "auto"}),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	conn, err := db.ConnectPostgres(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	version, err := db.Migrate(conn)
	require.NoError(t, err)
	require.EqualValues(t, 1, version)

	// segunda execução não aplica nada
	_, err = db.Migrate(conn)
	require.NoError(t, err)

	return conn
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newService(conn *sql.DB) *betting.Service {
	return betting.NewService(repo.NewPostgres(conn), nil, nil, betting.Options{
		StartingBalance: dec("100.00"),
		TxTimeout:       5 * time.Second,
	}, betting.Hooks{})
}

func TestPostgres_BetAndSettlementLifecycle(t *testing.T) {
	conn := setupDatabase(t)
	svc := newService(conn)
	ctx := context.Background()

	alice, err := svc.RegisterUser(ctx, "alice", false)
	require.NoError(t, err)
	bob, err := svc.RegisterUser(ctx, "bob", false)
	require.NoError(t, err)
	_, err = svc.RegisterUser(ctx, "alice", false)
	assert.ErrorIs(t, err, betting.ErrAlreadyExists)

	m, err := svc.CreateMatch(ctx, betting.NewMatch{Team1Name: "TeamX", Team2Name: "TeamY", Tournament: "All England"})
	require.NoError(t, err)
	_, err = svc.UpdateMatchStatus(ctx, m.ID, betting.MatchOngoing)
	require.NoError(t, err)

	aliceBet, err := svc.PlaceBet(ctx, alice.ID, m.ID, "TeamX", dec("20.00"))
	require.NoError(t, err)
	_, err = svc.PlaceBet(ctx, bob.ID, m.ID, "TeamY", dec("35.50"))
	require.NoError(t, err)
	_, err = svc.PlaceBet(ctx, bob.ID, m.ID, "TeamY", dec("100"))
	assert.ErrorIs(t, err, betting.ErrInsufficientFunds)

	sum, err := svc.DeclareWinner(ctx, m.ID, "TeamX")
	require.NoError(t, err)
	assert.Equal(t, 2, sum.BetsSettled)
	assert.Equal(t, 1, sum.BetsWon)
	assert.Equal(t, 1, sum.BetsLost)
	assert.True(t, sum.TotalPayout.Equal(dec("40")))

	_, err = svc.DeclareWinner(ctx, m.ID, "TeamX")
	assert.ErrorIs(t, err, betting.ErrInvalidState)

	stored, err := svc.GetSettlement(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "TeamX", stored.Winner)
	assert.True(t, stored.TotalPayout.Equal(dec("40")))

	got, err := svc.GetBet(ctx, betting.Principal{UserID: alice.ID}, aliceBet.ID)
	require.NoError(t, err)
	assert.Equal(t, betting.BetWon, got.Status)
	require.NotNil(t, got.Payout)
	assert.True(t, got.Payout.Equal(dec("40")))
	require.NotNil(t, got.Match.Winner)
	assert.Equal(t, "TeamX", *got.Match.Winner)

	a, err := svc.GetUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "120.00", a.Balance.StringFixed(2))
	assert.Equal(t, 1, a.Wins)
	b, err := svc.GetUser(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, "64.50", b.Balance.StringFixed(2))
	assert.Equal(t, 1, b.Losses)

	for _, id := range []string{alice.ID, bob.ID} {
		rec, err := svc.Reconcile(ctx, id)
		require.NoError(t, err)
		assert.True(t, rec.Balanced, "user %s", id)
	}

	board, err := svc.Leaderboard(ctx, 10)
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, alice.ID, board[0].ID)
}

func TestPostgres_NotFoundForMalformedIDs(t *testing.T) {
	conn := setupDatabase(t)
	svc := newService(conn)
	ctx := context.Background()

	_, err := svc.GetMatch(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, betting.ErrNotFound)
	_, err = svc.GetUser(ctx, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, betting.ErrNotFound)
}

func TestPostgres_MatchRegistry(t *testing.T) {
	conn := setupDatabase(t)
	svc := newService(conn)
	ctx := context.Background()

	up, err := svc.CreateMatch(ctx, betting.NewMatch{Team1Name: "A", Team2Name: "B"})
	require.NoError(t, err)
	on, err := svc.CreateMatch(ctx, betting.NewMatch{Team1Name: "C", Team2Name: "D", Status: betting.MatchOngoing})
	require.NoError(t, err)

	active, err := svc.ListActiveMatches(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	ongoing, err := svc.ListMatches(ctx, betting.MatchOngoing)
	require.NoError(t, err)
	require.Len(t, ongoing, 1)
	assert.Equal(t, on.ID, ongoing[0].ID)

	closed, err := svc.SetBettingOpen(ctx, on.ID, false)
	require.NoError(t, err)
	assert.False(t, closed.IsBettingOpen)

	assert.ErrorIs(t, svc.DeleteMatch(ctx, on.ID), betting.ErrInvalidState)
	require.NoError(t, svc.DeleteMatch(ctx, up.ID))
	_, err = svc.GetMatch(ctx, up.ID)
	assert.ErrorIs(t, err, betting.ErrNotFound)
}

func TestPostgres_ConcurrentBetsNeverOverdraw(t *testing.T) {
	conn := setupDatabase(t)
	svc := newService(conn)
	ctx := context.Background()

	u, err := svc.RegisterUser(ctx, "racer", false)
	require.NoError(t, err)
	m, err := svc.CreateMatch(ctx, betting.NewMatch{Team1Name: "A", Team2Name: "B", Status: betting.MatchOngoing})
	require.NoError(t, err)

	const n = 10
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		ok    int
		funds int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.PlaceBet(ctx, u.ID, m.ID, "A", dec("60"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, betting.ErrInsufficientFunds):
				funds++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, funds)

	got, err := svc.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "40.00", got.Balance.StringFixed(2))
}

func TestPostgres_BetBlocksUntilSettlementCommits(t *testing.T) {
	conn := setupDatabase(t)
	svc := newService(conn)
	ctx := context.Background()

	u, err := svc.RegisterUser(ctx, "late", false)
	require.NoError(t, err)
	m, err := svc.CreateMatch(ctx, betting.NewMatch{Team1Name: "A", Team2Name: "B", Status: betting.MatchOngoing})
	require.NoError(t, err)

	// segura o lock exclusivo da partida como a liquidação faria
	tx, err := conn.BeginTx(ctx, nil)
	require.NoError(t, err)
	_, err = tx.ExecContext(ctx, `SELECT id FROM matches WHERE id=$1 FOR UPDATE`, m.ID)
	require.NoError(t, err)
	_, err = tx.ExecContext(ctx, `UPDATE matches SET status='completed', winner='A', is_betting_open=false WHERE id=$1`, m.ID)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := svc.PlaceBet(ctx, u.ID, m.ID, "A", dec("1"))
		done <- err
	}()

	select {
	case err := <-done:
		t.Fatalf("bet finished while match was locked: %v", err)
	case <-time.After(300 * time.Millisecond):
	}

	require.NoError(t, tx.Commit())
	assert.ErrorIs(t, <-done, betting.ErrBettingClosed)
}

func TestPostgres_ConcurrentDeclareWinnerSettlesOnce(t *testing.T) {
	conn := setupDatabase(t)
	svc := newService(conn)
	ctx := context.Background()

	u, err := svc.RegisterUser(ctx, "backer", false)
	require.NoError(t, err)
	m, err := svc.CreateMatch(ctx, betting.NewMatch{Team1Name: "A", Team2Name: "B", Status: betting.MatchOngoing})
	require.NoError(t, err)
	_, err = svc.PlaceBet(ctx, u.ID, m.ID, "A", dec("20.00"))
	require.NoError(t, err)

	const n = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ok      int
		invalid int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.DeclareWinner(ctx, m.ID, "A")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, betting.ErrInvalidState):
				invalid++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, invalid)

	got, err := svc.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "120.00", got.Balance.StringFixed(2))
	assert.Equal(t, 1, got.Wins)

	var payouts int
	require.NoError(t, conn.QueryRowContext(ctx,
		`SELECT count(*) FROM ledger_entries WHERE user_id=$1 AND kind='bet_payout'`, u.ID).Scan(&payouts))
	assert.Equal(t, 1, payouts)

	entries, err := svc.UserLedger(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, betting.LedgerBetPayout, entries[0].Kind)
	assert.Equal(t, "120.00", entries[0].BalanceAfter.StringFixed(2))
	require.NotNil(t, entries[0].MatchID)
	assert.Equal(t, m.ID, *entries[0].MatchID)
	assert.Equal(t, betting.LedgerInitial, entries[2].Kind)
	assert.Nil(t, entries[2].BetID)

	rec, err := svc.Reconcile(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, rec.Balanced)
}
