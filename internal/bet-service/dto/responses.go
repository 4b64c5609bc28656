package dto

import "github.com/radieske/badminton-bet-platform/internal/betting"

type PlaceBetResponse struct {
	Bet     betting.Bet `json:"bet"`
	Message string      `json:"message"`
}
