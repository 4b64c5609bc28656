package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/badminton-bet-platform/internal/bet-service/dto"
	"github.com/radieske/badminton-bet-platform/internal/betting"
	"github.com/radieske/badminton-bet-platform/internal/betting/apierr"
	"github.com/radieske/badminton-bet-platform/internal/shared/auth"
)

// BettorService é o que a API do apostador consome do betting.Service
type BettorService interface {
	PlaceBet(ctx context.Context, userID, matchID, selectedTeam string, amount decimal.Decimal) (*betting.Bet, error)
	ListUserBets(ctx context.Context, userID string) ([]betting.BetWithMatch, error)
	GetBet(ctx context.Context, p betting.Principal, betID string) (*betting.BetWithMatch, error)
	GetUser(ctx context.Context, id string) (*betting.User, error)
	PredictionHistory(ctx context.Context, userID string) (*betting.History, error)
	UserLedger(ctx context.Context, userID string) ([]betting.LedgerEntry, error)
	Leaderboard(ctx context.Context, limit int) ([]betting.User, error)
	ListMatches(ctx context.Context, statuses ...betting.MatchStatus) ([]betting.Match, error)
	ListActiveMatches(ctx context.Context) ([]betting.Match, error)
	GetMatch(ctx context.Context, id string) (*betting.Match, error)
}

// LeaderboardCache é opcional; sem cache o ranking vem sempre do banco
type LeaderboardCache interface {
	GetLeaderboard(ctx context.Context, limit int) ([]betting.User, bool, error)
	SetLeaderboard(ctx context.Context, limit int, users []betting.User) error
}

type Server struct {
	log   *zap.Logger
	svc   BettorService
	cache LeaderboardCache
	mw    []func(http.Handler) http.Handler
}

func NewServer(log *zap.Logger, svc BettorService, cache LeaderboardCache, mw ...func(http.Handler) http.Handler) *Server {
	return &Server{log: log, svc: svc, cache: cache, mw: mw}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer)
	r.Use(s.mw...)

	r.Route("/v1", func(r chi.Router) {
		// catálogo de partidas é público
		r.Get("/matches", s.listMatches)
		r.Get("/matches/active", s.listActiveMatches)
		r.Get("/matches/{id}", s.getMatch)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(apierr.PrincipalLookup(s.svc.GetUser), s.log))

			r.Post("/bets", s.placeBet)
			r.Get("/bets/mine", s.myBets)
			r.Get("/bets/{id}", s.getBet)
			r.Get("/users/me", s.me)
			r.Get("/users/me/history", s.history)
			r.Get("/users/me/ledger", s.ledger)
			r.Get("/leaderboard", s.leaderboard)
		})
	})
	return r
}

func (s *Server) placeBet(w http.ResponseWriter, r *http.Request) {
	var req dto.PlaceBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.BadRequest(w, "bad json")
		return
	}
	if err := req.Validate(); err != nil {
		apierr.Write(w, s.log, err)
		return
	}

	caller := apierr.Caller(r)
	bet, err := s.svc.PlaceBet(r.Context(), caller.UserID, req.MatchID, req.SelectedTeam, req.Amount)
	if err != nil {
		apierr.Write(w, s.log, err)
		return
	}
	apierr.WriteJSON(w, http.StatusCreated, dto.PlaceBetResponse{Bet: *bet, Message: "bet placed"})
}

func (s *Server) myBets(w http.ResponseWriter, r *http.Request) {
	bets, err := s.svc.ListUserBets(r.Context(), apierr.Caller(r).UserID)
	if err != nil {
		apierr.Write(w, s.log, err)
		return
	}
	apierr.WriteJSON(w, http.StatusOK, bets)
}

func (s *Server) getBet(w http.ResponseWriter, r *http.Request) {
	bet, err := s.svc.GetBet(r.Context(), apierr.Caller(r), chi.URLParam(r, "id"))
	if err != nil {
		apierr.Write(w, s.log, err)
		return
	}
	apierr.WriteJSON(w, http.StatusOK, bet)
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	u, err := s.svc.GetUser(r.Context(), apierr.Caller(r).UserID)
	if err != nil {
		apierr.Write(w, s.log, err)
		return
	}
	apierr.WriteJSON(w, http.StatusOK, u)
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	h, err := s.svc.PredictionHistory(r.Context(), apierr.Caller(r).UserID)
	if err != nil {
		apierr.Write(w, s.log, err)
		return
	}
	apierr.WriteJSON(w, http.StatusOK, h)
}

func (s *Server) ledger(w http.ResponseWriter, r *http.Request) {
	entries, err := s.svc.UserLedger(r.Context(), apierr.Caller(r).UserID)
	if err != nil {
		apierr.Write(w, s.log, err)
		return
	}
	apierr.WriteJSON(w, http.StatusOK, entries)
}

// leaderboard lê do cache primeiro; falha no Redis só degrada para o banco
func (s *Server) leaderboard(w http.ResponseWriter, r *http.Request) {
	limit := betting.DefaultLeaderboardLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > betting.MaxLeaderboardLimit {
			apierr.BadRequest(w, "limit must be between 1 and "+strconv.Itoa(betting.MaxLeaderboardLimit))
			return
		}
		limit = n
	}

	if s.cache != nil {
		users, ok, err := s.cache.GetLeaderboard(r.Context(), limit)
		if err != nil {
			s.log.Warn("leaderboard cache read failed", zap.Error(err))
		} else if ok {
			apierr.WriteJSON(w, http.StatusOK, users)
			return
		}
	}

	users, err := s.svc.Leaderboard(r.Context(), limit)
	if err != nil {
		apierr.Write(w, s.log, err)
		return
	}
	if s.cache != nil {
		if err := s.cache.SetLeaderboard(r.Context(), limit, users); err != nil {
			s.log.Warn("leaderboard cache write failed", zap.Error(err))
		}
	}
	apierr.WriteJSON(w, http.StatusOK, users)
}

// listMatches aceita ?status=upcoming,ongoing
func (s *Server) listMatches(w http.ResponseWriter, r *http.Request) {
	var statuses []betting.MatchStatus
	if v := r.URL.Query().Get("status"); v != "" {
		for _, st := range strings.Split(v, ",") {
			statuses = append(statuses, betting.MatchStatus(strings.TrimSpace(st)))
		}
	}
	ms, err := s.svc.ListMatches(r.Context(), statuses...)
	if err != nil {
		apierr.Write(w, s.log, err)
		return
	}
	apierr.WriteJSON(w, http.StatusOK, ms)
}

func (s *Server) listActiveMatches(w http.ResponseWriter, r *http.Request) {
	ms, err := s.svc.ListActiveMatches(r.Context())
	if err != nil {
		apierr.Write(w, s.log, err)
		return
	}
	apierr.WriteJSON(w, http.StatusOK, ms)
}

func (s *Server) getMatch(w http.ResponseWriter, r *http.Request) {
	m, err := s.svc.GetMatch(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		apierr.Write(w, s.log, err)
		return
	}
	apierr.WriteJSON(w, http.StatusOK, m)
}
