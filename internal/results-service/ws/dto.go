package ws

import "encoding/json"

// ClientMsg representa uma mensagem recebida do cliente WebSocket
// Type: subscribe | unsubscribe | ping
// MatchID: obrigatório para subscribe/unsubscribe; "*" assina todas as partidas
type ClientMsg struct {
	Type    string `json:"type"`
	MatchID string `json:"matchId"`
}

// AllMatches é a assinatura curinga
const AllMatches = "*"

// ResultUpdate é o envelope publicado pelo settlement-worker no Redis.
// Payload segue cru para o cliente, sem re-serializar.
type ResultUpdate struct {
	Type    string          `json:"type"`
	MatchID string          `json:"matchId"`
	Payload json.RawMessage `json:"payload"`
}

// ServerMsg são as respostas de controle do hub (pong, ack, erro)
type ServerMsg struct {
	Type    string `json:"type"`
	MatchID string `json:"matchId,omitempty"`
	Error   string `json:"error,omitempty"`
}
