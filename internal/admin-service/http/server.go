package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/badminton-bet-platform/internal/admin-service/dto"
	"github.com/radieske/badminton-bet-platform/internal/betting"
	"github.com/radieske/badminton-bet-platform/internal/betting/apierr"
	"github.com/radieske/badminton-bet-platform/internal/shared/auth"
)

// AdminService é o que a API administrativa consome do betting.Service
type AdminService interface {
	GetUser(ctx context.Context, id string) (*betting.User, error)
	ListUsers(ctx context.Context) ([]betting.User, error)
	RegisterUser(ctx context.Context, username string, isAdmin bool) (*betting.User, error)
	AdjustBalance(ctx context.Context, userID string, delta decimal.Decimal) (*betting.User, error)
	Reconcile(ctx context.Context, userID string) (*betting.Reconciliation, error)

	CreateMatch(ctx context.Context, in betting.NewMatch) (*betting.Match, error)
	ListMatches(ctx context.Context, statuses ...betting.MatchStatus) ([]betting.Match, error)
	UpdateMatchStatus(ctx context.Context, id string, status betting.MatchStatus) (*betting.Match, error)
	SetBettingOpen(ctx context.Context, id string, open bool) (*betting.Match, error)
	DeleteMatch(ctx context.Context, id string) error
	DeclareWinner(ctx context.Context, matchID, winner string) (*betting.SettlementSummary, error)
	GetSettlement(ctx context.Context, matchID string) (*betting.SettlementSummary, error)
}

// Cache de leitura; opcional
type Cache interface {
	GetSettlement(ctx context.Context, matchID string) (*betting.SettlementSummary, bool, error)
	SetSettlement(ctx context.Context, s betting.SettlementSummary) error
	InvalidateLeaderboard(ctx context.Context) error
}

type Server struct {
	log   *zap.Logger
	svc   AdminService
	cache Cache
	mw    []func(http.Handler) http.Handler
}

func NewServer(log *zap.Logger, svc AdminService, cache Cache, mw ...func(http.Handler) http.Handler) *Server {
	return &Server{log: log, svc: svc, cache: cache, mw: mw}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer)
	r.Use(s.mw...)

	r.Route("/v1/admin", func(r chi.Router) {
		r.Use(auth.Middleware(apierr.PrincipalLookup(s.svc.GetUser), s.log))
		r.Use(auth.RequireAdmin)

		r.Post("/matches", s.createMatch)
		r.Get("/matches", s.listMatches)
		r.Put("/matches/{id}/status", s.updateStatus)
		r.Put("/matches/{id}/betting", s.setBetting)
		r.Put("/matches/{id}/result", s.declareWinner)
		r.Get("/matches/{id}/settlement", s.getSettlement)
		r.Delete("/matches/{id}", s.deleteMatch)

		r.Get("/users", s.listUsers)
		r.Post("/users", s.createUser)
		r.Post("/users/{id}/balance", s.adjustBalance)
		r.Get("/users/{id}/reconcile", s.reconcile)
	})
	return r
}

// decode lê o corpo e roda a validação do DTO; false = resposta já escrita
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst interface{ Validate() error }) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		apierr.BadRequest(w, "bad json")
		return false
	}
	if err := dst.Validate(); err != nil {
		apierr.Write(w, s.log, err)
		return false
	}
	return true
}

// ---------------------------------------------------------------------------
// partidas

func (s *Server) createMatch(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateMatchRequest
	if !s.decode(w, r, &req) {
		return
	}
	in := betting.NewMatch{
		Team1Name:     req.Team1Name,
		Team2Name:     req.Team2Name,
		Tournament:    req.Tournament,
		Status:        betting.MatchStatus(req.Status),
		IsBettingOpen: req.IsBettingOpen,
	}
	if req.StartsAt != nil {
		in.StartsAt = *req.StartsAt
	}

	m, err := s.svc.CreateMatch(r.Context(), in)
	if err != nil {
		apierr.Write(w, s.log, err)
		return
	}
	apierr.WriteJSON(w, http.StatusCreated, m)
}

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

func (s *Server) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateStatusRequest
	if !s.decode(w, r, &req) {
		return
	}
	m, err := s.svc.UpdateMatchStatus(r.Context(), chi.URLParam(r, "id"), betting.MatchStatus(req.Status))
	if err != nil {
		apierr.Write(w, s.log, err)
		return
	}
	apierr.WriteJSON(w, http.StatusOK, m)
}

func (s *Server) setBetting(w http.ResponseWriter, r *http.Request) {
	var req dto.SetBettingRequest
	if !s.decode(w, r, &req) {
		return
	}
	m, err := s.svc.SetBettingOpen(r.Context(), chi.URLParam(r, "id"), *req.IsBettingOpen)
	if err != nil {
		apierr.Write(w, s.log, err)
		return
	}
	apierr.WriteJSON(w, http.StatusOK, m)
}

func (s *Server) declareWinner(w http.ResponseWriter, r *http.Request) {
	var req dto.DeclareWinnerRequest
	if !s.decode(w, r, &req) {
		return
	}
	matchID := chi.URLParam(r, "id")

	sum, err := s.svc.DeclareWinner(r.Context(), matchID, req.Winner)
	if err != nil {
		apierr.Write(w, s.log, err)
		return
	}

	if s.cache != nil {
		if err := s.cache.SetSettlement(r.Context(), *sum); err != nil {
			s.log.Warn("settlement cache write failed", zap.String("match_id", matchID), zap.Error(err))
		}
		if err := s.cache.InvalidateLeaderboard(r.Context()); err != nil {
			s.log.Warn("leaderboard invalidation failed", zap.Error(err))
		}
	}
	apierr.WriteJSON(w, http.StatusOK, sum)
}

func (s *Server) getSettlement(w http.ResponseWriter, r *http.Request) {
	matchID := chi.URLParam(r, "id")

	if s.cache != nil {
		sum, ok, err := s.cache.GetSettlement(r.Context(), matchID)
		if err != nil {
			s.log.Warn("settlement cache read failed", zap.String("match_id", matchID), zap.Error(err))
		} else if ok {
			apierr.WriteJSON(w, http.StatusOK, sum)
			return
		}
	}

	sum, err := s.svc.GetSettlement(r.Context(), matchID)
	if err != nil {
		apierr.Write(w, s.log, err)
		return
	}
	if s.cache != nil {
		if err := s.cache.SetSettlement(r.Context(), *sum); err != nil {
			s.log.Warn("settlement cache write failed", zap.String("match_id", matchID), zap.Error(err))
		}
	}
	apierr.WriteJSON(w, http.StatusOK, sum)
}

func (s *Server) deleteMatch(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteMatch(r.Context(), chi.URLParam(r, "id")); err != nil {
		apierr.Write(w, s.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---------------------------------------------------------------------------
// usuários

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	us, err := s.svc.ListUsers(r.Context())
	if err != nil {
		apierr.Write(w, s.log, err)
		return
	}
	apierr.WriteJSON(w, http.StatusOK, us)
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateUserRequest
	if !s.decode(w, r, &req) {
		return
	}
	u, err := s.svc.RegisterUser(r.Context(), req.Username, req.IsAdmin)
	if err != nil {
		apierr.Write(w, s.log, err)
		return
	}
	s.invalidateLeaderboard(r.Context())
	apierr.WriteJSON(w, http.StatusCreated, u)
}

func (s *Server) adjustBalance(w http.ResponseWriter, r *http.Request) {
	var req dto.AdjustBalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.BadRequest(w, "bad json")
		return
	}
	u, err := s.svc.AdjustBalance(r.Context(), chi.URLParam(r, "id"), req.Delta)
	if err != nil {
		apierr.Write(w, s.log, err)
		return
	}
	s.invalidateLeaderboard(r.Context())
	apierr.WriteJSON(w, http.StatusOK, u)
}

func (s *Server) reconcile(w http.ResponseWriter, r *http.Request) {
	rec, err := s.svc.Reconcile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		apierr.Write(w, s.log, err)
		return
	}
	apierr.WriteJSON(w, http.StatusOK, rec)
}

func (s *Server) invalidateLeaderboard(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateLeaderboard(ctx); err != nil {
		s.log.Warn("leaderboard invalidation failed", zap.Error(err))
	}
}
