// Package auth resolve quem está chamando a API a partir do header X-User-ID.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/radieske/badminton-bet-platform/internal/betting"
)

const HeaderUserID = "X-User-ID"

// ErrUnknownUser deve ser devolvido pelo LookupFunc quando o id não existe
var ErrUnknownUser = errors.New("unknown user")

// Principal é o mesmo tipo que o domínio recebe, sem conversão na borda
type Principal = betting.Principal

// LookupFunc carrega o papel do usuário no storage
type LookupFunc func(ctx context.Context, userID string) (Principal, error)

type ctxKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok
}

// Middleware exige um X-User-ID conhecido: 401 sem header ou id desconhecido
func Middleware(lookup LookupFunc, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(HeaderUserID))
			if id == "" {
				writeError(w, http.StatusUnauthorized, "missing "+HeaderUserID+" header")
				return
			}

			p, err := lookup(r.Context(), id)
			if err != nil {
				if errors.Is(err, ErrUnknownUser) {
					writeError(w, http.StatusUnauthorized, "unknown user")
					return
				}
				log.Error("auth lookup failed", zap.String("user_id", id), zap.Error(err))
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// RequireAdmin deve vir depois de Middleware
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := FromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthenticated")
			return
		}
		if !p.IsAdmin {
			writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: msg})
}
