package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"llmperf/internal/logger"
)

const writeWait = 10 * time.Second

// Hub fans run events out to connected WebSocket clients. A client may
// subscribe to a single run with ?runId=, otherwise it receives every run.
type Hub struct {
	upgrader websocket.Upgrader
	log      *logger.Logger

	clients    map[*websocket.Conn]string
	clientsMux sync.Mutex
}

// NewHub creates an empty hub.
func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Discard()
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// CORS is enforced by middleware for the HTTP API
				return true
			},
		},
		log:     log,
		clients: make(map[*websocket.Conn]string),
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()
	return len(h.clients)
}

// Broadcast sends data to every client subscribed to runID or to all runs.
// Clients that fail a write are dropped.
func (h *Hub) Broadcast(runID string, data []byte) {
	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()

	for conn, filter := range h.clients {
		if filter != "" && filter != runID {
			continue
		}
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.log.Debug("Dropping WebSocket client %s: %v", conn.RemoteAddr(), err)
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

// Publish encodes msg and broadcasts it.
func (h *Hub) Publish(msg *WebSocketMessage) {
	if h == nil {
		return
	}
	data, err := msg.ToJSON()
	if err != nil {
		h.log.Error("Failed to encode %s message: %v", msg.Type, err)
		return
	}
	h.Broadcast(msg.RunID, data)
}

// ServeWS upgrades the request and keeps the connection registered until the
// client goes away. Incoming ping messages are answered.
func (h *Hub) ServeWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("WebSocket upgrade failed: %v", err)
		return
	}
	filter := c.Query("runId")

	h.clientsMux.Lock()
	h.clients[conn] = filter
	h.clientsMux.Unlock()
	h.log.Debug("WebSocket client connected: %s", conn.RemoteAddr())

	defer func() {
		h.clientsMux.Lock()
		delete(h.clients, conn)
		h.clientsMux.Unlock()
		conn.Close()
		h.log.Debug("WebSocket client disconnected: %s", conn.RemoteAddr())
	}()

	for {
		var msg WebSocketMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Warn("WebSocket error: %v", err)
			}
			return
		}
		if msg.Type != MessageTypePing {
			continue
		}
		pong, _ := newMessage(MessageTypePing, filter, nil).ToJSON()
		h.clientsMux.Lock()
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		err := conn.WriteMessage(websocket.TextMessage, pong)
		h.clientsMux.Unlock()
		if err != nil {
			return
		}
	}
}
