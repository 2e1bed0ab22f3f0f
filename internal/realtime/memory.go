package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Memory is an in-process Transport. Events are delivered synchronously
// to every subscribed channel instance with the same name, which makes
// tests deterministic: by the time Send returns, every handler has run.
type Memory struct {
	mu   sync.Mutex
	subs map[string][]*memChannel
}

// NewMemory creates an in-memory transport.
func NewMemory() *Memory {
	return &Memory{subs: make(map[string][]*memChannel)}
}

// Channel returns a new channel instance for the given name. Instances
// are independent: subscribing one does not subscribe another.
func (m *Memory) Channel(name string) Channel {
	return &memChannel{transport: m, name: name, handlers: make(map[string][]Handler)}
}

// RemoveChannel unsubscribes the channel and drops its handlers.
func (m *Memory) RemoveChannel(ch Channel) {
	mc, ok := ch.(*memChannel)
	if !ok {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	mc.mu.Lock()
	mc.subscribed = false
	mc.mu.Unlock()
	subs := m.subs[mc.name]
	for i, s := range subs {
		if s == mc {
			m.subs[mc.name] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(m.subs[mc.name]) == 0 {
		delete(m.subs, mc.name)
	}
}

// Close drops all subscriptions.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = make(map[string][]*memChannel)
	return nil
}

// dispatch fans an event out to subscribed instances of the channel
// name, skipping the instance that sent it: a channel never hears its
// own broadcasts.
func (m *Memory) dispatch(origin *memChannel, name, event string, payload json.RawMessage) {
	m.mu.Lock()
	targets := append([]*memChannel(nil), m.subs[name]...)
	m.mu.Unlock()

	for _, t := range targets {
		if t == origin {
			continue
		}
		t.deliver(event, payload)
	}
}

type memChannel struct {
	transport *Memory
	name      string

	mu         sync.Mutex
	handlers   map[string][]Handler
	subscribed bool
}

func (c *memChannel) Name() string { return c.name }

func (c *memChannel) On(event string, h Handler) Channel {
	c.mu.Lock()
	c.handlers[event] = append(c.handlers[event], h)
	c.mu.Unlock()
	return c
}

func (c *memChannel) Subscribe(context.Context) error {
	c.mu.Lock()
	c.subscribed = true
	c.mu.Unlock()

	t := c.transport
	t.mu.Lock()
	t.subs[c.name] = append(t.subs[c.name], c)
	t.mu.Unlock()
	return nil
}

// Send marshals the payload and fans it out to the other subscribers of
// the channel name. By the time Send returns every handler has run.
func (c *memChannel) Send(_ context.Context, event string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", event, err)
	}
	c.transport.dispatch(c, c.name, event, raw)
	return nil
}

func (c *memChannel) deliver(event string, payload json.RawMessage) {
	c.mu.Lock()
	if !c.subscribed {
		c.mu.Unlock()
		return
	}
	hs := append([]Handler(nil), c.handlers[event]...)
	c.mu.Unlock()

	// Handlers run outside the lock: a handler may legally Send on the
	// same transport (the receipt protocol does exactly that).
	for _, h := range hs {
		h(payload)
	}
}
