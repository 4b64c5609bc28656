package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/badminton-bet-platform/internal/betting"
	"github.com/radieske/badminton-bet-platform/internal/betting/memstore"
	"github.com/radieske/badminton-bet-platform/internal/shared/auth"
)

type mockCache struct{ mock.Mock }

func (m *mockCache) GetLeaderboard(ctx context.Context, limit int) ([]betting.User, bool, error) {
	args := m.Called(ctx, limit)
	users, _ := args.Get(0).([]betting.User)
	return users, args.Bool(1), args.Error(2)
}

func (m *mockCache) SetLeaderboard(ctx context.Context, limit int, users []betting.User) error {
	return m.Called(ctx, limit, users).Error(0)
}

type env struct {
	svc    *betting.Service
	router http.Handler
	alice  *betting.User
	bob    *betting.User
	match  *betting.Match
}

func newEnv(t *testing.T, cache LeaderboardCache) *env {
	t.Helper()
	svc := betting.NewService(memstore.New(), nil, zap.NewNop(), betting.Options{
		StartingBalance: decimal.NewFromInt(100),
	}, betting.Hooks{})
	ctx := context.Background()

	alice, err := svc.RegisterUser(ctx, "alice", false)
	require.NoError(t, err)
	bob, err := svc.RegisterUser(ctx, "bob", false)
	require.NoError(t, err)
	m, err := svc.CreateMatch(ctx, betting.NewMatch{Team1Name: "TeamX", Team2Name: "TeamY", Status: betting.MatchOngoing})
	require.NoError(t, err)

	return &env{
		svc:    svc,
		router: NewServer(zap.NewNop(), svc, cache).Router(),
		alice:  alice,
		bob:    bob,
		match:  m,
	}
}

func (e *env) do(t *testing.T, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if userID != "" {
		req.Header.Set(auth.HeaderUserID, userID)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestPlaceBet(t *testing.T) {
	e := newEnv(t, nil)

	rec := e.do(t, http.MethodPost, "/v1/bets", e.alice.ID,
		map[string]any{"matchId": e.match.ID, "selectedTeam": "TeamX", "amount": "20.00"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Bet betting.Bet `json:"bet"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, e.alice.ID, resp.Bet.UserID)
	assert.Equal(t, betting.BetPending, resp.Bet.Status)
	assert.True(t, resp.Bet.PotentialWinnings.Equal(decimal.NewFromInt(40)))

	me := e.do(t, http.MethodGet, "/v1/users/me", e.alice.ID, nil)
	require.Equal(t, http.StatusOK, me.Code)
	var u betting.User
	require.NoError(t, json.Unmarshal(me.Body.Bytes(), &u))
	assert.True(t, u.Balance.Equal(decimal.NewFromInt(80)))
}

func TestPlaceBet_ErrorMapping(t *testing.T) {
	e := newEnv(t, nil)

	cases := []struct {
		name   string
		userID string
		body   any
		want   int
	}{
		{"no auth", "", map[string]any{"matchId": e.match.ID, "selectedTeam": "TeamX", "amount": 1}, http.StatusUnauthorized},
		{"unknown user", "ghost", map[string]any{"matchId": e.match.ID, "selectedTeam": "TeamX", "amount": 1}, http.StatusUnauthorized},
		{"validation", e.alice.ID, map[string]any{"selectedTeam": "TeamX", "amount": 1}, http.StatusBadRequest},
		{"unknown match", e.alice.ID, map[string]any{"matchId": "nope", "selectedTeam": "TeamX", "amount": 1}, http.StatusNotFound},
		{"invalid selection", e.alice.ID, map[string]any{"matchId": e.match.ID, "selectedTeam": "TeamZ", "amount": 1}, http.StatusBadRequest},
		{"invalid amount", e.alice.ID, map[string]any{"matchId": e.match.ID, "selectedTeam": "TeamX", "amount": "-3"}, http.StatusBadRequest},
		{"insufficient funds", e.alice.ID, map[string]any{"matchId": e.match.ID, "selectedTeam": "TeamX", "amount": 500}, http.StatusUnprocessableEntity},
		{"bad json", e.alice.ID, "not-an-object", http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := e.do(t, http.MethodPost, "/v1/bets", tc.userID, tc.body)
			assert.Equal(t, tc.want, rec.Code, rec.Body.String())
		})
	}

	// partida finalizada: 409
	_, err := e.svc.DeclareWinner(context.Background(), e.match.ID, "TeamX")
	require.NoError(t, err)
	rec := e.do(t, http.MethodPost, "/v1/bets", e.alice.ID,
		map[string]any{"matchId": e.match.ID, "selectedTeam": "TeamX", "amount": 1})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetBet_OwnerOnly(t *testing.T) {
	e := newEnv(t, nil)
	bet, err := e.svc.PlaceBet(context.Background(), e.alice.ID, e.match.ID, "TeamY", decimal.NewFromInt(5))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/v1/bets/"+bet.ID, e.alice.ID, nil).Code)
	assert.Equal(t, http.StatusForbidden, e.do(t, http.MethodGet, "/v1/bets/"+bet.ID, e.bob.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/v1/bets/missing", e.alice.ID, nil).Code)

	mine := e.do(t, http.MethodGet, "/v1/bets/mine", e.alice.ID, nil)
	require.Equal(t, http.StatusOK, mine.Code)
	var bets []betting.BetWithMatch
	require.NoError(t, json.Unmarshal(mine.Body.Bytes(), &bets))
	require.Len(t, bets, 1)
	assert.Equal(t, "TeamX", bets[0].Match.Team1Name)
}

func TestHistory(t *testing.T) {
	e := newEnv(t, nil)
	_, err := e.svc.PlaceBet(context.Background(), e.alice.ID, e.match.ID, "TeamY", decimal.NewFromInt(5))
	require.NoError(t, err)
	_, err = e.svc.DeclareWinner(context.Background(), e.match.ID, "TeamY")
	require.NoError(t, err)

	rec := e.do(t, http.MethodGet, "/v1/users/me/history", e.alice.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var h betting.History
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &h))
	assert.Equal(t, 1, h.Stats.Won)
	assert.True(t, h.Stats.TotalWinnings.Equal(decimal.NewFromInt(10)))
}

func TestMyLedger(t *testing.T) {
	e := newEnv(t, nil)
	_, err := e.svc.PlaceBet(context.Background(), e.alice.ID, e.match.ID, "TeamX", decimal.NewFromInt(20))
	require.NoError(t, err)
	_, err = e.svc.DeclareWinner(context.Background(), e.match.ID, "TeamX")
	require.NoError(t, err)

	rec := e.do(t, http.MethodGet, "/v1/users/me/ledger", e.alice.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var entries []betting.LedgerEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))

	require.Len(t, entries, 3)
	assert.Equal(t, betting.LedgerBetPayout, entries[0].Kind)
	assert.Equal(t, "120.00", entries[0].BalanceAfter.StringFixed(2))
	assert.Equal(t, betting.LedgerBetDebit, entries[1].Kind)
	assert.Equal(t, "-20.00", entries[1].Amount.StringFixed(2))
	assert.Equal(t, betting.LedgerInitial, entries[2].Kind)
	for _, en := range entries {
		assert.Equal(t, e.alice.ID, en.UserID)
	}

	// bob não vê o extrato de alice
	rec = e.do(t, http.MethodGet, "/v1/users/me/ledger", e.bob.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, betting.LedgerInitial, entries[0].Kind)

	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodGet, "/v1/users/me/ledger", "", nil).Code)
}

func TestLeaderboard_CacheAside(t *testing.T) {
	cache := &mockCache{}
	cache.On("GetLeaderboard", mock.Anything, 10).Return(nil, false, nil).Once()
	cache.On("SetLeaderboard", mock.Anything, 10, mock.MatchedBy(func(us []betting.User) bool { return len(us) == 2 })).Return(nil).Once()
	cache.On("GetLeaderboard", mock.Anything, 5).Return([]betting.User{{ID: "cached"}}, true, nil).Once()
	cache.On("GetLeaderboard", mock.Anything, 3).Return(nil, false, errors.New("redis down")).Once()
	cache.On("SetLeaderboard", mock.Anything, 3, mock.Anything).Return(errors.New("redis down")).Once()

	e := newEnv(t, cache)

	miss := e.do(t, http.MethodGet, "/v1/leaderboard", e.alice.ID, nil)
	require.Equal(t, http.StatusOK, miss.Code)

	hit := e.do(t, http.MethodGet, "/v1/leaderboard?limit=5", e.alice.ID, nil)
	require.Equal(t, http.StatusOK, hit.Code)
	assert.Contains(t, hit.Body.String(), `"cached"`)

	// Redis fora do ar não derruba o endpoint
	degraded := e.do(t, http.MethodGet, "/v1/leaderboard?limit=3", e.alice.ID, nil)
	require.Equal(t, http.StatusOK, degraded.Code)

	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodGet, "/v1/leaderboard?limit=0", e.alice.ID, nil).Code)
	cache.AssertExpectations(t)
}

func TestMatches_Public(t *testing.T) {
	e := newEnv(t, nil)

	rec := e.do(t, http.MethodGet, "/v1/matches/active", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var ms []betting.Match
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ms))
	require.Len(t, ms, 1)

	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/v1/matches?status=ongoing", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodGet, "/v1/matches?status=paused", "", nil).Code)
	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/v1/matches/"+e.match.ID, "", nil).Code)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/v1/matches/missing", "", nil).Code)
}
