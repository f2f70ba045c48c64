// Package wshub fans execution lifecycle events out to WebSocket
// subscribers. It subscribes directly to internal/eventbus.Bus.SubscribeAll
// instead of Redis PubSub, since the engine publishes events in-process
// rather than across service boundaries; the hub keys connections by
// execution_id
// instead of username, since a client watches one blueprint run at a
// time, not one account's whole event stream.
package wshub

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/orbitalflow/engine/internal/eventbus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 30 * time.Second
	pingPeriod     = 25 * time.Second
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub maintains active WebSocket connections grouped by execution ID and
// broadcasts bus events to the connections watching each one.
type Hub struct {
	log         *slog.Logger
	mu          sync.RWMutex
	connections map[string][]*client
	register    chan *client
	unregister  chan *client
}

func New(log *slog.Logger) *Hub {
	return &Hub{
		log:         log,
		connections: make(map[string][]*client),
		register:    make(chan *client),
		unregister:  make(chan *client),
	}
}

// Attach subscribes the hub to every topic on bus so each event reaches
// clients watching that event's execution ID.
func (h *Hub) Attach(bus *eventbus.Bus) {
	bus.SubscribeAll(func(e eventbus.Event) {
		payload, err := json.Marshal(e)
		if err != nil {
			h.log.Warn("wshub: failed to marshal event", "error", err)
			return
		}
		h.broadcast(e.ExecutionID, payload)
	})
}

// Run processes register/unregister in an endless loop with no shutdown
// path; callers run it in its own goroutine for the lifetime of the process.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.connections[c.executionID] = append(h.connections[c.executionID], c)
			h.mu.Unlock()
		case c := <-h.unregister:
			h.mu.Lock()
			conns := h.connections[c.executionID]
			for i, existing := range conns {
				if existing == c {
					h.connections[c.executionID] = append(conns[:i], conns[i+1:]...)
					break
				}
			}
			if len(h.connections[c.executionID]) == 0 {
				delete(h.connections, c.executionID)
			}
			h.mu.Unlock()
			close(c.send)
		}
	}
}

func (h *Hub) broadcast(executionID string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.connections[executionID] {
		select {
		case c.send <- payload:
		default:
			h.log.Warn("wshub: dropping event, client send buffer full", "execution_id", executionID)
		}
	}
}

// ServeHTTP upgrades the request to a WebSocket and streams events for
// the execution ID given by the "execution_id" query parameter.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	executionID := r.URL.Query().Get("execution_id")
	if executionID == "" {
		http.Error(w, "execution_id query parameter required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("wshub: upgrade failed", "error", err)
		return
	}

	c := &client{hub: h, conn: conn, executionID: executionID, send: make(chan []byte, 256)}
	h.register <- c

	go c.writePump()
	go c.readPump()
}

// client represents a single WebSocket subscriber to one execution's events.
type client struct {
	hub         *Hub
	conn        *websocket.Conn
	executionID string
	send        chan []byte
}

func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
