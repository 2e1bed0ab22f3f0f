// Package hub is the broadcast fan-out for the realtime surface: clients
// attach over WebSocket, subscribe to named channels and exchange
// fire-and-forget events. The hub echoes a send to every subscriber of
// the channel, the sender's connection included; the origin tag lets
// clients drop echoes of their own channel instances.
package hub

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// frame is the wire format exchanged with clients.
type frame struct {
	Op      string          `json:"op"` // subscribe | unsubscribe | send | event
	Channel string          `json:"channel"`
	Event   string          `json:"event,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Origin  string          `json:"origin,omitempty"`
}

const sendBuffer = 64

// Hub tracks connections and their channel subscriptions.
type Hub struct {
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*conn]map[string]struct{} // conn -> subscribed channel names
}

// New creates an empty hub.
func New(logger *zap.Logger) *Hub {
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		conns: make(map[*conn]map[string]struct{}),
	}
}

// ServeHTTP upgrades the request and runs the connection until it drops.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	c := &conn{ws: ws, out: make(chan frame, sendBuffer)}

	h.mu.Lock()
	h.conns[c] = make(map[string]struct{})
	h.mu.Unlock()

	go c.writeLoop()
	h.readLoop(c)
}

// Broadcast sends a server-originated event to every subscriber of the
// channel. Used for row-change streams; there is no origin to exclude.
func (h *Hub) Broadcast(channel, event string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("encode broadcast payload", zap.String("event", event), zap.Error(err))
		return
	}
	h.fanout(frame{Op: "event", Channel: channel, Event: event, Payload: raw})
}

func (h *Hub) fanout(f frame) {
	h.mu.Lock()
	var targets []*conn
	for c, channels := range h.conns {
		if _, ok := channels[f.Channel]; ok {
			targets = append(targets, c)
		}
	}
	h.mu.Unlock()

	for _, c := range targets {
		if !c.trySend(f) {
			// Slow consumer: drop the connection rather than block the hub.
			h.logger.Warn("dropping slow connection", zap.String("channel", f.Channel))
			h.drop(c)
		}
	}
}

func (h *Hub) readLoop(c *conn) {
	defer h.drop(c)
	for {
		var f frame
		if err := c.ws.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("connection read failed", zap.Error(err))
			}
			return
		}
		switch f.Op {
		case "subscribe":
			h.mu.Lock()
			if channels, ok := h.conns[c]; ok {
				channels[f.Channel] = struct{}{}
			}
			h.mu.Unlock()
		case "unsubscribe":
			h.mu.Lock()
			if channels, ok := h.conns[c]; ok {
				delete(channels, f.Channel)
			}
			h.mu.Unlock()
		case "send":
			h.fanout(frame{
				Op:      "event",
				Channel: f.Channel,
				Event:   f.Event,
				Payload: f.Payload,
				Origin:  f.Origin,
			})
		}
	}
}

func (h *Hub) drop(c *conn) {
	h.mu.Lock()
	_, present := h.conns[c]
	delete(h.conns, c)
	h.mu.Unlock()
	if present {
		c.shut()
	}
}

type conn struct {
	ws  *websocket.Conn
	out chan frame

	mu     sync.Mutex
	closed bool
}

// trySend queues a frame unless the connection is closed or its buffer
// is full.
func (c *conn) trySend(f frame) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.out <- f:
		return true
	default:
		return false
	}
}

func (c *conn) shut() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.out)
}

func (c *conn) writeLoop() {
	for f := range c.out {
		if err := c.ws.WriteJSON(f); err != nil {
			break
		}
	}
	_ = c.ws.Close()
}
