// Package apierr traduz erros do domínio de apostas para respostas HTTP.
package apierr

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/radieske/badminton-bet-platform/internal/betting"
	"github.com/radieske/badminton-bet-platform/internal/shared/auth"
)

type Response struct {
	Error   string            `json:"error"`
	Code    string            `json:"code"`
	Details map[string]string `json:"details,omitempty"`
}

// Status mapeia o erro para o status HTTP
func Status(err error) int {
	var verr validator.ValidationErrors
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, betting.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, betting.ErrInvalidState),
		errors.Is(err, betting.ErrBettingClosed),
		errors.Is(err, betting.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, betting.ErrInvalidSelection),
		errors.Is(err, betting.ErrInvalidAmount),
		errors.Is(err, betting.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, betting.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity
	case errors.Is(err, betting.ErrAccessDenied):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Write responde o erro; 5xx vira mensagem genérica e o detalhe vai pro log
func Write(w http.ResponseWriter, log *zap.Logger, err error) {
	status := Status(err)
	resp := Response{Error: err.Error(), Code: betting.Reason(err)}

	var verr validator.ValidationErrors
	if errors.As(err, &verr) {
		resp = Response{Error: "validation failed", Code: "validation", Details: map[string]string{}}
		for _, fe := range verr {
			resp.Details[fe.Field()] = fe.Tag()
		}
	}

	if status >= http.StatusInternalServerError {
		log.Error("request failed", zap.Error(err))
		resp = Response{Error: "internal error", Code: "internal"}
	}

	WriteJSON(w, status, resp)
}

// WriteJSON serializa a resposta em JSON e define o status HTTP
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// BadRequest para corpo malformado (json inválido)
func BadRequest(w http.ResponseWriter, msg string) {
	WriteJSON(w, http.StatusBadRequest, Response{Error: msg, Code: "bad_request"})
}

// PrincipalLookup adapta a leitura de usuário do serviço para o auth.Middleware
func PrincipalLookup(get func(ctx context.Context, id string) (*betting.User, error)) auth.LookupFunc {
	return func(ctx context.Context, id string) (betting.Principal, error) {
		u, err := get(ctx, id)
		if errors.Is(err, betting.ErrNotFound) {
			return betting.Principal{}, auth.ErrUnknownUser
		}
		if err != nil {
			return betting.Principal{}, err
		}
		return betting.Principal{UserID: u.ID, IsAdmin: u.IsAdmin}, nil
	}
}

// Caller devolve o principal autenticado; zero value se a rota não passou pelo auth
func Caller(r *http.Request) betting.Principal {
	p, _ := auth.FromContext(r.Context())
	return p
}
