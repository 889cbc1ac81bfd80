package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"boingbox-backend/internal/middleware"
	"boingbox-backend/internal/presence"
	"boingbox-backend/internal/relay"
	"boingbox-backend/pkg/constants"
	"boingbox-backend/pkg/logger"
	"boingbox-backend/pkg/metrics"
	"boingbox-backend/pkg/response"
)

const sendBufferSize = 256

// RelayHub owns every live websocket connection of the chat service. It
// registers identified users in the presence registry and is the Sender the
// relay writes frames through.
type RelayHub struct {
	registry *presence.Registry
	relay    *relay.Relay

	// Connections by id
	clients map[string]*RelayClient
	mu      sync.RWMutex

	register   chan *RelayClient
	unregister chan *RelayClient
	done       chan struct{}

	maxConnections int
	semaphore      chan struct{}
	allowedOrigins map[string]bool
	upgrader       websocket.Upgrader
}

// RelayClient is one websocket connection. userID stays Nil until the
// client sends add-user.
type RelayClient struct {
	hub    *RelayHub
	conn   *websocket.Conn
	send   chan []byte
	connID string
	userID uuid.UUID
}

// NewRelayHub creates the hub and starts its loop
func NewRelayHub(registry *presence.Registry, maxConns int) *RelayHub {
	if maxConns <= 0 {
		maxConns = 1000
	}

	h := &RelayHub{
		registry:       registry,
		clients:        make(map[string]*RelayClient),
		register:       make(chan *RelayClient),
		unregister:     make(chan *RelayClient),
		done:           make(chan struct{}),
		maxConnections: maxConns,
		semaphore:      make(chan struct{}, maxConns),
		allowedOrigins: middleware.AllowedOrigins(),
	}
	h.relay = relay.New(registry, h)
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}

	go h.run()

	return h
}

// Relay returns the relay bound to this hub
func (h *RelayHub) Relay() *relay.Relay {
	return h.relay
}

func (h *RelayHub) run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.connID] = client
			h.mu.Unlock()
			metrics.WebSocketConnections.Inc()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.connID]; ok {
				delete(h.clients, client.connID)
				close(client.send)
				metrics.WebSocketConnections.Dec()
			}
			h.mu.Unlock()

			if userID, ok := h.registry.Unregister(client.connID); ok {
				logger.Debug("User went offline",
					zap.String("user_id", userID.String()),
					zap.String("conn_id", client.connID))
			}

		case <-h.done:
			h.mu.Lock()
			for id, client := range h.clients {
				delete(h.clients, id)
				close(client.send)
				h.registry.Unregister(id)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Shutdown closes every connection and stops the hub loop
func (h *RelayHub) Shutdown() {
	select {
	case <-h.done:
	default:
		close(h.done)
	}
}

// Deliver queues frame on connID without blocking. A full buffer or an
// unknown connection drops the frame.
func (h *RelayHub) Deliver(connID string, frame []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	client, ok := h.clients[connID]
	if !ok {
		return false
	}
	select {
	case client.send <- frame:
		return true
	default:
		logger.Warn("Websocket send buffer full, frame dropped",
			zap.String("conn_id", connID))
		return false
	}
}

// Connections returns the number of open connections
func (h *RelayHub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *RelayHub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		// Native clients send no Origin
		return true
	}
	if h.allowedOrigins[origin] {
		return true
	}
	metrics.WebSocketRejectedTotal.WithLabelValues("origin").Inc()
	return false
}

// ServeWS upgrades GET /v1/ws
func (h *RelayHub) ServeWS(c *gin.Context) {
	select {
	case h.semaphore <- struct{}{}:
	default:
		metrics.WebSocketRejectedTotal.WithLabelValues("capacity").Inc()
		logger.Warn("WebSocket connection rejected: max connections reached",
			zap.Int("max_connections", h.maxConnections))
		response.Error(c, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Server at capacity, please try again later")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		<-h.semaphore
		logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	client := &RelayClient{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		connID: uuid.NewString(),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		<-h.semaphore
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump decodes frames until the connection fails or goes silent
func (c *RelayClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
		<-c.hub.semaphore
	}()

	c.conn.SetReadDeadline(time.Now().Add(constants.WebSocketPongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(constants.WebSocketPongWait))
		return nil
	})

	ctx := context.Background()
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("WebSocket connection closed",
					zap.String("conn_id", c.connID),
					zap.Error(err))
			}
			return
		}

		var frame relay.Frame
		if err := json.Unmarshal(message, &frame); err != nil || frame.Event == "" {
			logger.Warn("Invalid frame from websocket",
				zap.String("conn_id", c.connID),
				zap.Error(err))
			continue
		}

		c.handle(ctx, frame)
	}
}

func (c *RelayClient) handle(ctx context.Context, frame relay.Frame) {
	if frame.Event == relay.EventAddUser {
		c.identify(frame.Data)
		return
	}

	if c.userID == uuid.Nil {
		logger.Debug("Event before add-user ignored",
			zap.String("conn_id", c.connID),
			zap.String("event", frame.Event))
		return
	}

	if err := c.hub.relay.Dispatch(ctx, c.userID, frame.Event, frame.Data); err != nil {
		logger.Debug("Event not relayed",
			zap.String("conn_id", c.connID),
			zap.String("user_id", c.userID.String()),
			zap.String("event", frame.Event),
			zap.Error(err))
	}
}

// identify accepts add-user data either as a bare id string or as {"userId": id}
func (c *RelayClient) identify(data json.RawMessage) {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		var obj struct {
			UserID string `json:"userId"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			logger.Warn("Malformed add-user payload", zap.String("conn_id", c.connID))
			return
		}
		raw = obj.UserID
	}

	userID, err := uuid.Parse(raw)
	if err != nil {
		logger.Warn("Invalid user id in add-user",
			zap.String("conn_id", c.connID),
			zap.String("user_id", raw))
		return
	}

	if c.userID != uuid.Nil && c.userID != userID {
		c.hub.registry.Unregister(c.connID)
	}
	c.userID = userID
	c.hub.registry.Register(userID, c.connID)

	logger.Debug("User online",
		zap.String("user_id", userID.String()),
		zap.String("conn_id", c.connID))
}

func (c *RelayClient) writePump() {
	ticker := time.NewTicker(constants.WebSocketPingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(constants.WebSocketWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(constants.WebSocketWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
