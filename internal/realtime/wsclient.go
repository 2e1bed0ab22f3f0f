package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// envelope is the wire frame exchanged with the courier-server hub. The
// hub echoes send frames to every subscriber of the channel, including
// the sender's own connection; Origin lets the client drop the echo of
// its own channel instance so the self-exclusion semantics match the
// in-memory transport.
type envelope struct {
	Op      string          `json:"op"` // subscribe | unsubscribe | send | event
	Channel string          `json:"channel"`
	Event   string          `json:"event,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Origin  string          `json:"origin,omitempty"`
}

// WS is a Transport backed by a single WebSocket connection to the
// courier-server hub. All channel instances multiplex over it.
type WS struct {
	conn   *websocket.Conn
	logger *zap.Logger

	writeMu sync.Mutex

	mu       sync.Mutex
	channels map[string][]*wsChannel
	closed   bool
}

// DialWS connects to the hub at wsURL, identifying as userID, and starts
// the read loop. The returned transport owns the connection.
func DialWS(ctx context.Context, wsURL, userID string, logger *zap.Logger) (*WS, error) {
	header := http.Header{}
	header.Set("X-User-ID", userID)
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return nil, fmt.Errorf("dial realtime hub: %w", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	ws := &WS{
		conn:     conn,
		logger:   logger,
		channels: make(map[string][]*wsChannel),
	}
	go ws.readLoop()
	return ws, nil
}

// Channel returns a new channel instance for the given name, with its
// own origin id.
func (w *WS) Channel(name string) Channel {
	return &wsChannel{
		transport: w,
		name:      name,
		id:        uuid.NewString(),
		handlers:  make(map[string][]Handler),
	}
}

// RemoveChannel detaches the instance. When it was the last subscribed
// instance of its name an unsubscribe frame is sent so the hub stops
// forwarding the channel.
func (w *WS) RemoveChannel(ch Channel) {
	wc, ok := ch.(*wsChannel)
	if !ok {
		return
	}
	wc.mu.Lock()
	wc.subscribed = false
	wc.mu.Unlock()

	w.mu.Lock()
	subs := w.channels[wc.name]
	for i, s := range subs {
		if s == wc {
			w.channels[wc.name] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	last := len(w.channels[wc.name]) == 0
	if last {
		delete(w.channels, wc.name)
	}
	closed := w.closed
	w.mu.Unlock()

	if last && !closed {
		if err := w.write(envelope{Op: "unsubscribe", Channel: wc.name}); err != nil {
			w.logger.Warn("unsubscribe failed", zap.String("channel", wc.name), zap.Error(err))
		}
	}
}

// Close tears down the connection and drops all instances.
func (w *WS) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.channels = make(map[string][]*wsChannel)
	w.mu.Unlock()

	w.writeMu.Lock()
	_ = w.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	w.writeMu.Unlock()
	return w.conn.Close()
}

func (w *WS) write(env envelope) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	return w.conn.WriteJSON(env)
}

func (w *WS) readLoop() {
	for {
		var env envelope
		if err := w.conn.ReadJSON(&env); err != nil {
			w.mu.Lock()
			closed := w.closed
			w.mu.Unlock()
			if !closed {
				w.logger.Warn("realtime connection lost", zap.Error(err))
			}
			return
		}
		if env.Op != "event" {
			continue
		}
		w.dispatch(env)
	}
}

func (w *WS) dispatch(env envelope) {
	w.mu.Lock()
	targets := append([]*wsChannel(nil), w.channels[env.Channel]...)
	w.mu.Unlock()

	for _, t := range targets {
		if t.id == env.Origin {
			continue
		}
		t.deliver(env.Event, env.Payload)
	}
}

type wsChannel struct {
	transport *WS
	name      string
	id        string

	mu         sync.Mutex
	handlers   map[string][]Handler
	subscribed bool
}

func (c *wsChannel) Name() string { return c.name }

func (c *wsChannel) On(event string, h Handler) Channel {
	c.mu.Lock()
	c.handlers[event] = append(c.handlers[event], h)
	c.mu.Unlock()
	return c
}

func (c *wsChannel) Subscribe(context.Context) error {
	t := c.transport
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return fmt.Errorf("subscribe %s: transport closed", c.name)
	}
	first := len(t.channels[c.name]) == 0
	t.channels[c.name] = append(t.channels[c.name], c)
	t.mu.Unlock()

	c.mu.Lock()
	c.subscribed = true
	c.mu.Unlock()

	if first {
		if err := t.write(envelope{Op: "subscribe", Channel: c.name}); err != nil {
			t.RemoveChannel(c)
			return fmt.Errorf("subscribe %s: %w", c.name, err)
		}
	}
	return nil
}

func (c *wsChannel) Send(_ context.Context, event string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", event, err)
	}
	return c.transport.write(envelope{
		Op:      "send",
		Channel: c.name,
		Event:   event,
		Payload: raw,
		Origin:  c.id,
	})
}

func (c *wsChannel) deliver(event string, payload json.RawMessage) {
	c.mu.Lock()
	if !c.subscribed {
		c.mu.Unlock()
		return
	}
	hs := append([]Handler(nil), c.handlers[event]...)
	c.mu.Unlock()

	for _, h := range hs {
		h(payload)
	}
}
