package dto

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = newValidator()

// newValidator reporta os campos pelo nome do json
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

// PlaceBetRequest: o usuário vem do header X-User-ID, não do corpo.
// Amount é validado pelo serviço (positivo, até 2 casas).
type PlaceBetRequest struct {
	MatchID      string          `json:"matchId" validate:"required,max=64"`
	SelectedTeam string          `json:"selectedTeam" validate:"required,max=100"`
	Amount       decimal.Decimal `json:"amount"`
}

func (r *PlaceBetRequest) Validate() error {
	return validate.Struct(r)
}
