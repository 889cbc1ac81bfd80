package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boingbox-backend/internal/presence"
	"boingbox-backend/internal/relay"
)

func newTestServer(t *testing.T, maxConns int) (*httptest.Server, *RelayHub, *presence.Registry) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry := presence.NewRegistry()
	hub := NewRelayHub(registry, maxConns)
	router := gin.New()
	router.GET("/v1/ws", hub.ServeWS)

	server := httptest.NewServer(router)
	t.Cleanup(func() {
		server.Close()
		hub.Shutdown()
	})
	return server, hub, registry
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event string, data interface{}) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(relay.Frame{Event: event, Data: raw}))
}

func addUser(t *testing.T, conn *websocket.Conn, registry *presence.Registry, userID uuid.UUID) {
	t.Helper()
	send(t, conn, relay.EventAddUser, userID.String())
	require.Eventually(t, func() bool {
		_, ok := registry.Lookup(userID)
		return ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRelayHub_DeliversMessageBetweenUsers(t *testing.T) {
	server, _, registry := newTestServer(t, 10)
	alice, bob := uuid.New(), uuid.New()

	connA := dial(t, server)
	connB := dial(t, server)
	addUser(t, connA, registry, alice)
	addUser(t, connB, registry, bob)

	send(t, connA, relay.EventSendMessage, map[string]string{"to": bob.String(), "msg": "hello bob"})

	connB.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame relay.Frame
	require.NoError(t, connB.ReadJSON(&frame))

	assert.Equal(t, relay.EventMessageReceive, frame.Event)
	assert.JSONEq(t, `"hello bob"`, string(frame.Data))
}

func TestRelayHub_IncomingCallCarriesIdentifiedSender(t *testing.T) {
	server, _, registry := newTestServer(t, 10)
	alice, bob := uuid.New(), uuid.New()

	connA := dial(t, server)
	connB := dial(t, server)
	addUser(t, connA, registry, alice)
	addUser(t, connB, registry, bob)

	send(t, connA, relay.EventCallRequest, map[string]interface{}{
		"to":   bob.String(),
		"from": uuid.New().String(),
		"type": "video",
	})

	connB.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame relay.Frame
	require.NoError(t, connB.ReadJSON(&frame))

	assert.Equal(t, relay.EventIncomingCall, frame.Event)
	var data map[string]interface{}
	require.NoError(t, json.Unmarshal(frame.Data, &data))
	assert.Equal(t, alice.String(), data["from"].(map[string]interface{})["_id"])
}

func TestRelayHub_CloseUnregistersPresence(t *testing.T) {
	server, hub, registry := newTestServer(t, 10)
	alice := uuid.New()

	conn := dial(t, server)
	addUser(t, conn, registry, alice)
	require.Equal(t, 1, hub.Connections())

	conn.Close()

	assert.Eventually(t, func() bool {
		_, ok := registry.Lookup(alice)
		return !ok && hub.Connections() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRelayHub_NewerConnectionSurvivesOldClose(t *testing.T) {
	server, _, registry := newTestServer(t, 10)
	alice := uuid.New()

	first := dial(t, server)
	addUser(t, first, registry, alice)
	firstConn, _ := registry.Lookup(alice)

	second := dial(t, server)
	send(t, second, relay.EventAddUser, map[string]string{"userId": alice.String()})
	require.Eventually(t, func() bool {
		connID, ok := registry.Lookup(alice)
		return ok && connID != firstConn
	}, 2*time.Second, 10*time.Millisecond)
	secondConn, _ := registry.Lookup(alice)

	first.Close()
	time.Sleep(100 * time.Millisecond)

	connID, ok := registry.Lookup(alice)
	assert.True(t, ok)
	assert.Equal(t, secondConn, connID)
}

func TestRelayHub_RejectsOverCapacity(t *testing.T) {
	server, hub, _ := newTestServer(t, 1)

	dial(t, server)
	require.Eventually(t, func() bool { return hub.Connections() == 1 }, 2*time.Second, 10*time.Millisecond)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/v1/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)

	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestRelayHub_RejectsUnknownOrigin(t *testing.T) {
	server, _, _ := newTestServer(t, 10)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/v1/ws"
	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)

	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestDeliver_UnknownConnection(t *testing.T) {
	hub := NewRelayHub(presence.NewRegistry(), 1)
	defer hub.Shutdown()

	assert.False(t, hub.Deliver("missing", []byte(`{}`)))
}
