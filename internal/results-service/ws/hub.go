package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeTimeout = 5 * time.Second

// client serializa as escritas: gorilla/websocket aceita um único writer por conexão
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(v []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, v)
}

func (c *client) writeJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.write(b)
}

// Hub gerencia conexões WebSocket e assinaturas de resultados por partida
// subs: mapeia matchID para o conjunto de clientes inscritos
type Hub struct {
	log      *zap.Logger
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	subs     map[string]map[*client]struct{}

	OnDelivered func() // métricas
}

// NewHub cria uma instância de Hub com política customizada de origem (CORS)
func NewHub(log *zap.Logger, allowOrigin func(r *http.Request) bool) *Hub {
	return &Hub{
		log:      log,
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		subs:     make(map[string]map[*client]struct{}),
	}
}

// HandleWS gerencia o ciclo de vida de uma conexão WebSocket
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("ws upgrade failed", zap.Error(err))
		return
	}
	c := &client{conn: conn}
	defer func() {
		h.drop(c)
		_ = conn.Close()
	}()

	for {
		var msg ClientMsg
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("ws read failed", zap.Error(err))
			}
			return
		}
		switch msg.Type {
		case "subscribe":
			if msg.MatchID == "" {
				_ = c.writeJSON(ServerMsg{Type: "error", Error: "matchId is required"})
				continue
			}
			h.subscribe(c, msg.MatchID)
			_ = c.writeJSON(ServerMsg{Type: "subscribed", MatchID: msg.MatchID})
		case "unsubscribe":
			h.unsubscribe(c, msg.MatchID)
			_ = c.writeJSON(ServerMsg{Type: "unsubscribed", MatchID: msg.MatchID})
		case "ping":
			_ = c.writeJSON(ServerMsg{Type: "pong"})
		default:
			_ = c.writeJSON(ServerMsg{Type: "error", Error: "unknown message type"})
		}
	}
}

func (h *Hub) subscribe(c *client, matchID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[matchID]; !ok {
		h.subs[matchID] = make(map[*client]struct{})
	}
	h.subs[matchID][c] = struct{}{}
}

func (h *Hub) unsubscribe(c *client, matchID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[matchID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, matchID)
		}
	}
}

// drop remove a conexão de todas as assinaturas ao desconectar
func (h *Hub) drop(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, set := range h.subs {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, id)
		}
	}
}

// Subscribers conta clientes distintos inscritos na partida (inclui curinga)
func (h *Hub) Subscribers(matchID string) int {
	return len(h.targets(matchID))
}

func (h *Hub) targets(matchID string) []*client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[*client]struct{})
	var out []*client
	for _, key := range []string{matchID, AllMatches} {
		for c := range h.subs[key] {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}

// Broadcast envia o update para os inscritos na partida e no curinga
func (h *Hub) Broadcast(update ResultUpdate) {
	conns := h.targets(update.MatchID)
	if len(conns) == 0 {
		return
	}

	b, err := json.Marshal(update)
	if err != nil {
		h.log.Warn("ws broadcast marshal failed", zap.Error(err))
		return
	}
	for _, c := range conns {
		if err := c.write(b); err != nil {
			h.log.Debug("ws write failed", zap.String("match_id", update.MatchID), zap.Error(err))
			continue
		}
		if h.OnDelivered != nil {
			h.OnDelivered()
		}
	}
}
