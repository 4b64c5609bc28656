package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

func newTestHub(t *testing.T) (*Hub, string) {
	t.Helper()
	hub := NewHub(zap.NewNop(), func(*http.Request) bool { return true })
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(srv.Close)
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg ClientMsg) ServerMsg {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
	var resp ServerMsg
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&resp))
	return resp
}

func readUpdate(t *testing.T, conn *websocket.Conn) ResultUpdate {
	t.Helper()
	var upd ResultUpdate
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&upd))
	return upd
}

func TestHub_ControlMessages(t *testing.T) {
	_, url := newTestHub(t)
	conn := dial(t, url)

	assert.Equal(t, ServerMsg{Type: "pong"}, send(t, conn, ClientMsg{Type: "ping"}))
	assert.Equal(t, "error", send(t, conn, ClientMsg{Type: "subscribe"}).Type)
	assert.Equal(t, "error", send(t, conn, ClientMsg{Type: "shout"}).Type)
	assert.Equal(t, ServerMsg{Type: "subscribed", MatchID: "m1"}, send(t, conn, ClientMsg{Type: "subscribe", MatchID: "m1"}))
	assert.Equal(t, ServerMsg{Type: "unsubscribed", MatchID: "m1"}, send(t, conn, ClientMsg{Type: "unsubscribe", MatchID: "m1"}))
}

func TestHub_BroadcastByMatch(t *testing.T) {
	hub, url := newTestHub(t)
	delivered := 0
	hub.OnDelivered = func() { delivered++ }

	a := dial(t, url)
	b := dial(t, url)
	all := dial(t, url)
	send(t, a, ClientMsg{Type: "subscribe", MatchID: "m1"})
	send(t, b, ClientMsg{Type: "subscribe", MatchID: "m2"})
	send(t, all, ClientMsg{Type: "subscribe", MatchID: AllMatches})
	// assinatura dupla não duplica entrega
	send(t, all, ClientMsg{Type: "subscribe", MatchID: "m1"})

	assert.Equal(t, 2, hub.Subscribers("m1"))
	assert.Equal(t, 2, hub.Subscribers("m2"))

	hub.Broadcast(ResultUpdate{Type: "match_settled", MatchID: "m1", Payload: json.RawMessage(`{"winner":"TeamX"}`)})

	got := readUpdate(t, a)
	assert.Equal(t, "m1", got.MatchID)
	assert.JSONEq(t, `{"winner":"TeamX"}`, string(got.Payload))
	assert.Equal(t, "m1", readUpdate(t, all).MatchID)

	// b não recebe m1; a próxima mensagem dele é a de m2
	hub.Broadcast(ResultUpdate{Type: "bet_placed", MatchID: "m2", Payload: json.RawMessage(`{}`)})
	assert.Equal(t, "m2", readUpdate(t, b).MatchID)
	assert.Equal(t, "m2", readUpdate(t, all).MatchID)

	assert.Equal(t, 4, delivered)
}

func TestHub_DropOnDisconnect(t *testing.T) {
	hub, url := newTestHub(t)
	conn := dial(t, url)
	send(t, conn, ClientMsg{Type: "subscribe", MatchID: "m1"})
	require.Equal(t, 1, hub.Subscribers("m1"))

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.Subscribers("m1") == 0 }, 2*time.Second, 20*time.Millisecond)
}

func TestRedisSubscriber_ForwardsToHub(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping redis integration test in short mode")
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = rdb.Close() })

	hub, url := newTestHub(t)
	conn := dial(t, url)
	send(t, conn, ClientMsg{Type: "subscribe", MatchID: "m1"})

	require.NoError(t, StartRedisSubscriber(ctx, rdb, "results_test", hub, zap.NewNop()))

	require.NoError(t, rdb.Publish(ctx, "results_test", `not json`).Err())
	require.NoError(t, rdb.Publish(ctx, "results_test", `{"type":"match_settled","payload":{}}`).Err())
	require.NoError(t, rdb.Publish(ctx, "results_test",
		`{"type":"match_settled","matchId":"m1","payload":{"winner":"TeamY"}}`).Err())

	got := readUpdate(t, conn)
	assert.Equal(t, "match_settled", got.Type)
	assert.JSONEq(t, `{"winner":"TeamY"}`, string(got.Payload))
}
