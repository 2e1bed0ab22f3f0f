// Package chatlist maintains the ordered, deduplicated conversation list
// for one user: one batched load at startup, then surgical per-chat
// updates driven by row-change and broadcast events. The full list is
// never re-fetched after the initial load.
package chatlist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tcosta/courier/internal/bus"
	"github.com/tcosta/courier/internal/model"
	"github.com/tcosta/courier/internal/realtime"
	"github.com/tcosta/courier/internal/store"
	"go.uber.org/zap"
)

// DefaultDebounce is the coalescing window for message-insert bursts.
const DefaultDebounce = 500 * time.Millisecond

// Engine is the chat list sync engine.
type Engine struct {
	userID   string
	store    store.Remote
	rt       realtime.Transport
	bus      *bus.Bus
	logger   *zap.Logger
	debounce time.Duration

	mu        sync.Mutex
	chats     []model.ChatWithDetails
	channels  []realtime.Channel
	debouncer *Debouncer
	closed    bool

	ctx    context.Context
	cancel context.CancelFunc
}

// Option configures the engine.
type Option func(*Engine)

// WithDebounce overrides the coalescing window.
func WithDebounce(d time.Duration) Option {
	return func(e *Engine) { e.debounce = d }
}

// NewEngine creates a chat list engine for the given user.
func NewEngine(userID string, st store.Remote, rt realtime.Transport, b *bus.Bus, logger *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		userID:   userID,
		store:    st,
		rt:       rt,
		bus:      b,
		logger:   logger,
		debounce: DefaultDebounce,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Start performs the initial batched load and attaches the row-change and
// chat_read subscriptions. This is the only point that pays full-list
// cost.
func (e *Engine) Start(ctx context.Context) error {
	chats, err := e.store.GetAllChatProjections(ctx, e.userID)
	if err != nil {
		return err
	}
	sortByRecency(chats)

	e.ctx, e.cancel = context.WithCancel(context.WithoutCancel(ctx))

	e.mu.Lock()
	e.chats = chats
	e.debouncer = NewDebouncer(e.debounce, e.refreshChat)
	e.mu.Unlock()
	e.notify()

	messages := e.rt.Channel(realtime.MessagesTable())
	messages.On(realtime.EventInsert, e.handleMessageInsert)
	if err := messages.Subscribe(ctx); err != nil {
		return fmt.Errorf("%w: messages stream: %v", model.ErrSubscription, err)
	}

	members := e.rt.Channel(realtime.MembersTable(e.userID))
	members.On(realtime.EventInsert, e.handleMembershipInsert)
	members.On(realtime.EventDelete, e.handleMembershipDelete)
	if err := members.Subscribe(ctx); err != nil {
		e.rt.RemoveChannel(messages)
		return fmt.Errorf("%w: membership stream: %v", model.ErrSubscription, err)
	}

	personal := e.rt.Channel(realtime.ReadStatusChannel(e.userID))
	personal.On(realtime.EventChatRead, e.handleChatRead)
	if err := personal.Subscribe(ctx); err != nil {
		e.rt.RemoveChannel(messages)
		e.rt.RemoveChannel(members)
		return fmt.Errorf("%w: read-status channel: %v", model.ErrSubscription, err)
	}

	e.mu.Lock()
	e.channels = []realtime.Channel{messages, members, personal}
	e.mu.Unlock()
	return nil
}

// Stop tears down subscriptions and pending refreshes.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.closed = true
	chs := e.channels
	e.channels = nil
	deb := e.debouncer
	e.mu.Unlock()

	if e.cancel != nil {
		e.cancel()
	}
	if deb != nil {
		deb.Stop()
	}
	for _, ch := range chs {
		e.rt.RemoveChannel(ch)
	}
}

// Chats returns a snapshot of the list in display order.
func (e *Engine) Chats() []model.ChatWithDetails {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]model.ChatWithDetails, len(e.chats))
	copy(out, e.chats)
	return out
}

// handleMessageInsert schedules a surgical refresh for the affected chat.
// Bursts within the window collapse into one projection fetch per chat.
func (e *Engine) handleMessageInsert(raw json.RawMessage) {
	var ins realtime.MessageInserted
	if err := json.Unmarshal(raw, &ins); err != nil || ins.ChatID == "" {
		return
	}
	e.mu.Lock()
	deb := e.debouncer
	closed := e.closed
	e.mu.Unlock()
	if closed || deb == nil {
		return
	}
	deb.Trigger(ins.ChatID)
}

// refreshChat re-derives one chat's projection and splices it into the
// list: stale entry out, fresh entry in, whole list re-sorted by recency.
func (e *Engine) refreshChat(chatID string) {
	chat, err := e.store.GetChatProjection(e.ctx, chatID, e.userID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			// Message for a chat this user cannot see. Drop, and evict a
			// stale entry if one lingers.
			e.remove(chatID)
			return
		}
		e.logger.Warn("chat refresh failed", zap.String("chat_id", chatID), zap.Error(err))
		return
	}
	e.splice(*chat)
}

func (e *Engine) handleMembershipInsert(raw json.RawMessage) {
	var m model.Membership
	if err := json.Unmarshal(raw, &m); err != nil || m.ChatID == "" {
		return
	}
	if m.ProfileID != e.userID {
		return
	}
	chat, err := e.store.GetChatProjection(e.ctx, m.ChatID, e.userID)
	if err != nil {
		e.logger.Warn("membership chat fetch failed", zap.String("chat_id", m.ChatID), zap.Error(err))
		return
	}
	e.splice(*chat)
}

func (e *Engine) handleMembershipDelete(raw json.RawMessage) {
	var m model.Membership
	if err := json.Unmarshal(raw, &m); err != nil || m.ChatID == "" {
		return
	}
	if m.ProfileID != e.userID {
		return
	}
	// No fetch: the membership row is gone, so is the chat entry.
	e.remove(m.ChatID)
}

// handleChatRead zeroes the chat's unread counter in place. No fetch.
func (e *Engine) handleChatRead(raw json.RawMessage) {
	var cr realtime.ChatRead
	if err := json.Unmarshal(raw, &cr); err != nil || cr.ChatID == "" {
		return
	}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	changed := false
	for i := range e.chats {
		if e.chats[i].ID == cr.ChatID && e.chats[i].UnreadCount != 0 {
			e.chats[i].UnreadCount = 0
			changed = true
		}
	}
	e.mu.Unlock()
	if changed {
		e.notify()
	}
}

func (e *Engine) splice(chat model.ChatWithDetails) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	next := make([]model.ChatWithDetails, 0, len(e.chats)+1)
	for _, c := range e.chats {
		if c.ID != chat.ID {
			next = append(next, c)
		}
	}
	next = append(next, chat)
	sortByRecency(next)
	e.chats = next
	e.mu.Unlock()
	e.notify()
}

func (e *Engine) remove(chatID string) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	next := e.chats[:0]
	removed := false
	for _, c := range e.chats {
		if c.ID == chatID {
			removed = true
			continue
		}
		next = append(next, c)
	}
	e.chats = next
	e.mu.Unlock()
	if removed {
		e.notify()
	}
}

func (e *Engine) notify() {
	e.bus.Publish(bus.Event{Kind: "chatlist.updated", Timestamp: time.Now()})
}

// sortByRecency orders chats newest-first by
// max(last_message.created_at, updated_at); equal keys keep their
// insertion order, so the entry spliced in last wins the display slot.
func sortByRecency(chats []model.ChatWithDetails) {
	sort.SliceStable(chats, func(i, j int) bool {
		return chats[i].Recency() > chats[j].Recency()
	})
}
