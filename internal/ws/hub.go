package ws

import (
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Client represents a connected WebSocket client.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu        sync.RWMutex
	buildings map[string]struct{} // empty means every building
}

func (c *Client) wants(buildingID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.buildings) == 0 {
		return true
	}
	_, ok := c.buildings[buildingID]
	return ok
}

func (c *Client) subscribe(ids []string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.buildings == nil {
		c.buildings = make(map[string]struct{})
	}
	for _, id := range ids {
		c.buildings[id] = struct{}{}
	}
	return c.subscriptionsLocked()
}

func (c *Client) unsubscribe(ids []string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		delete(c.buildings, id)
	}
	return c.subscriptionsLocked()
}

func (c *Client) subscriptionsLocked() []string {
	out := make([]string, 0, len(c.buildings))
	for id := range c.buildings {
		out = append(out, id)
	}
	return out
}

// Hub manages WebSocket clients and broadcasts messages.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	log     *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		clients: make(map[*Client]bool),
		log:     log,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = true
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Broadcast sends a message about buildingID to every client subscribed to
// it, and to clients without a subscription filter.
func (h *Hub) Broadcast(buildingID string, msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.wants(buildingID) {
			continue
		}
		select {
		case c.send <- msg:
		default:
			h.log.Warn("client buffer full, dropping message", zap.String("building_id", buildingID))
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}
