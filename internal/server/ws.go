package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ayusman/lizard/internal/app"
)

const (
	// sendBuffer is the number of pending status messages per client.
	// Further messages are dropped until the client catches up.
	sendBuffer   = 16
	writeTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// StatusSource provides live session status. *app.App implements it.
type StatusSource interface {
	Status() app.Status
	Subscribe(fn func(app.Status)) (unsubscribe func())
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// StatusHandler pushes every status change to connected websocket clients.
type StatusHandler struct {
	source      StatusSource
	log         *zap.Logger
	clients     map[*wsClient]struct{}
	mu          sync.Mutex
	closed      bool
	unsubscribe func()
}

// NewStatusHandler creates a StatusHandler subscribed to source.
func NewStatusHandler(source StatusSource, log *zap.Logger) *StatusHandler {
	h := &StatusHandler{
		source:  source,
		log:     log,
		clients: make(map[*wsClient]struct{}),
	}
	h.unsubscribe = source.Subscribe(h.broadcast)
	return h
}

// ServeHTTP upgrades the request and streams status messages until the
// client disconnects. The current status is sent first.
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade error", zap.Error(err))
		return
	}
	defer conn.Close()

	c := &wsClient{conn: conn, send: make(chan []byte, sendBuffer)}
	if msg, err := json.Marshal(h.source.Status()); err == nil {
		c.send <- msg
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writeLoop(c)
	}()

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.remove(c)
	<-done
}

func (h *StatusHandler) writeLoop(c *wsClient) {
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.log.Debug("websocket write failed", zap.Error(err))
			// Unblock the read loop.
			c.conn.Close()
			for range c.send {
			}
			return
		}
	}
}

func (h *StatusHandler) remove(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// broadcast queues status for every client, dropping it for clients whose
// buffer is full.
func (h *StatusHandler) broadcast(status app.Status) {
	msg, err := json.Marshal(status)
	if err != nil {
		h.log.Error("failed to encode status", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
		}
	}
}

// Clients returns the number of connected clients.
func (h *StatusHandler) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close unsubscribes from the source and disconnects every client.
func (h *StatusHandler) Close() {
	h.unsubscribe()

	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
		c.conn.Close()
	}
}
