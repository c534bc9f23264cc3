package ws

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StatusFunc reports what a newly connected dashboard should show first.
type StatusFunc func() StatusPayload

// Handler upgrades dashboard connections and manages their subscriptions.
type Handler struct {
	hub    *Hub
	status StatusFunc
	log    *zap.Logger
}

func NewHandler(hub *Hub, status StatusFunc, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{hub: hub, status: status, log: log}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		hub:  h.hub,
		conn: conn,
		send: make(chan []byte, 256),
	}
	for _, id := range r.URL.Query()["building_id"] {
		client.subscribe([]string{id})
	}

	h.hub.Register(client)
	go client.writePump()

	h.sendStatus(client)
	h.readPump(client)
}

func (h *Handler) readPump(c *Client) {
	defer func() {
		h.hub.Unregister(c)
		c.conn.Close()
	}()

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn("websocket read error", zap.Error(err))
			}
			return
		}

		h.handleMessage(c, msg)
	}
}

func (h *Handler) handleMessage(c *Client, msg []byte) {
	var env Envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		h.reply(c, TypeError, ErrorPayload{Message: "invalid message"})
		return
	}

	switch env.Type {
	case TypeSubscribe, TypeUnsubscribe:
		var p SubscribePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			h.reply(c, TypeError, ErrorPayload{Message: "invalid " + env.Type + " payload"})
			return
		}
		var ids []string
		if env.Type == TypeSubscribe {
			ids = c.subscribe(p.BuildingIDs)
		} else {
			ids = c.unsubscribe(p.BuildingIDs)
		}
		h.reply(c, TypeSubscriptions, subscriptions(ids))

	default:
		h.log.Debug("unknown message type", zap.String("type", env.Type))
		h.reply(c, TypeError, ErrorPayload{Message: "unknown message type " + env.Type})
	}
}

func (h *Handler) sendStatus(c *Client) {
	if h.status == nil {
		return
	}
	h.reply(c, TypeStatus, h.status())
}

func (h *Handler) reply(c *Client, msgType string, payload any) {
	msg, err := NewEnvelope(msgType, payload)
	if err != nil {
		h.log.Error("marshal websocket reply", zap.String("type", msgType), zap.Error(err))
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}
