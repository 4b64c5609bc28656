package dto

import (
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type CreateMatchRequest struct {
	Team1Name     string     `json:"team1Name" validate:"required,max=100"`
	Team2Name     string     `json:"team2Name" validate:"required,max=100"`
	Tournament    string     `json:"tournament" validate:"max=200"`
	StartsAt      *time.Time `json:"startsAt"`
	Status        string     `json:"status" validate:"omitempty,oneof=upcoming ongoing completed"`
	IsBettingOpen *bool      `json:"isBettingOpen"`
}

func (r *CreateMatchRequest) Validate() error { return validate.Struct(r) }

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=upcoming ongoing completed"`
}

func (r *UpdateStatusRequest) Validate() error { return validate.Struct(r) }

// ponteiro para distinguir "false" de campo ausente
type SetBettingRequest struct {
	IsBettingOpen *bool `json:"isBettingOpen" validate:"required"`
}

func (r *SetBettingRequest) Validate() error { return validate.Struct(r) }

type DeclareWinnerRequest struct {
	Winner string `json:"winner" validate:"required,max=100"`
}

func (r *DeclareWinnerRequest) Validate() error { return validate.Struct(r) }

type CreateUserRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	IsAdmin  bool   `json:"isAdmin"`
}

func (r *CreateUserRequest) Validate() error { return validate.Struct(r) }

// Delta com sinal: positivo credita, negativo debita
type AdjustBalanceRequest struct {
	Delta decimal.Decimal `json:"delta"`
}
