// Package progress implements the optional live-progress broadcaster used
// by the -live CLI flag: as the simulator ticks through days, connected
// websocket clients receive a JSON message per completed day. Adapted from
// the teacher's internal/ws Hub (register/unregister/broadcast over a
// client set guarded by a mutex), repointed at simulation day-progress
// events instead of live meter readings.
package progress

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// DayProgress is broadcast to every connected client once a simulated day
// finishes.
type DayProgress struct {
	RunID string `json:"runId"`
	Day   int    `json:"day"`
	Total int    `json:"total"`
}

// Hub tracks connected websocket clients and broadcasts progress events to
// all of them.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub returns an empty Hub ready to accept connections.
func NewHub() *Hub {
	return &Hub{clients: make(map[*client]struct{})}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeHTTP upgrades the request to a websocket connection and registers it
// for broadcasts until the client disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("progress: upgrade failed: %v", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, 16)}
	h.register(c)
	defer h.unregister(c)

	go c.writePump()

	// The client never sends us anything meaningful; read only to detect
	// disconnects and keep the connection's read deadline machinery alive.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// ClientCount reports how many clients are currently connected.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast sends progress to every connected client, dropping it for any
// client whose outbound buffer is full rather than blocking the simulation.
func (h *Hub) Broadcast(progress DayProgress) {
	data, err := json.Marshal(progress)
	if err != nil {
		log.Printf("progress: marshal failed: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
		}
	}
}

func (c *client) writePump() {
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	c.conn.Close()
}
