// Package thread holds the open-conversation view: the in-memory message
// list for one chat, the optimistic send pipeline that feeds it, and the
// delivery/read receipt protocol that keeps per-message status current.
package thread

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tcosta/courier/internal/bus"
	"github.com/tcosta/courier/internal/model"
	"github.com/tcosta/courier/internal/realtime"
	"github.com/tcosta/courier/internal/status"
	"github.com/tcosta/courier/internal/store"
	"go.uber.org/zap"
)

// Thread is one open conversation. All mutations of the message list go
// through the event-handling path under mu; readers get snapshots.
type Thread struct {
	chatID string
	self   model.Profile
	store  store.Remote
	rt     realtime.Transport
	bus    *bus.Bus
	logger *zap.Logger

	mu       sync.Mutex
	messages []model.MessageWithSender
	channel  realtime.Channel
	closed   bool
}

// New creates a thread for the given chat. Call Open to load history and
// attach to the realtime channel.
func New(chatID string, self model.Profile, st store.Remote, rt realtime.Transport, b *bus.Bus, logger *zap.Logger) *Thread {
	return &Thread{
		chatID: chatID,
		self:   self,
		store:  st,
		rt:     rt,
		bus:    b,
		logger: logger,
	}
}

// Open loads the chat history, marks the chat read (store position plus
// the chat_read broadcast the sidebar listens for) and subscribes to the
// chat channel. History failures are fatal; a subscription failure
// degrades the view to request/response only and is returned wrapped so
// the caller can resubscribe on next mount.
func (t *Thread) Open(ctx context.Context) error {
	history, err := t.store.ListMessages(ctx, t.chatID)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	// Everything loaded from the store has already been seen.
	for i := range history {
		history[i].Status = status.Read
	}

	t.mu.Lock()
	t.messages = history
	t.mu.Unlock()
	t.notify()

	if err := t.store.MarkChatRead(ctx, t.chatID, t.self.ID); err != nil {
		t.logger.Warn("mark chat read failed", zap.String("chat_id", t.chatID), zap.Error(err))
	}
	// Personal channel: tell this user's own sidebar the unread counter
	// for this chat is now zero. Fire-and-forget.
	personal := t.rt.Channel(realtime.ReadStatusChannel(t.self.ID))
	if err := personal.Send(ctx, realtime.EventChatRead, realtime.ChatRead{ChatID: t.chatID}); err != nil {
		t.logger.Warn("chat_read broadcast failed", zap.String("chat_id", t.chatID), zap.Error(err))
	}

	ch := t.rt.Channel(realtime.ChatChannel(t.chatID))
	ch.On(realtime.EventNewMessage, t.handleNewMessage)
	ch.On(realtime.EventMessageRead, t.handleMessageRead)

	// The channel must be visible to the handlers before Subscribe: an
	// event delivered while Subscribe is still returning needs it to ack.
	t.mu.Lock()
	t.channel = ch
	t.mu.Unlock()
	if err := ch.Subscribe(ctx); err != nil {
		t.mu.Lock()
		t.channel = nil
		t.mu.Unlock()
		return fmt.Errorf("%w: chat channel: %v", model.ErrSubscription, err)
	}
	return nil
}

// Close tears down the realtime subscription. Events arriving afterwards
// are discarded.
func (t *Thread) Close() {
	t.mu.Lock()
	t.closed = true
	ch := t.channel
	t.channel = nil
	t.mu.Unlock()
	if ch != nil {
		t.rt.RemoveChannel(ch)
	}
}

// Messages returns a snapshot of the message list, ordered by created_at.
func (t *Thread) Messages() []model.MessageWithSender {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]model.MessageWithSender, len(t.messages))
	copy(out, t.messages)
	return out
}

// ChatID returns the chat this thread displays.
func (t *Thread) ChatID() string { return t.chatID }

// Send runs the optimistic pipeline: a provisional message with a
// temporary identity becomes visible synchronously, then the store insert
// runs, then the provisional entry is replaced by the authoritative
// record (the sender's own copy keeps status "sent") and finally the
// new_message broadcast goes out. On failure the provisional entry is
// removed whole; nothing partial survives.
func (t *Thread) Send(ctx context.Context, content, attachmentURL string, attachmentType model.AttachmentType) error {
	if content == "" && attachmentURL == "" {
		return fmt.Errorf("%w: empty message", model.ErrInvalidInput)
	}
	if attachmentURL != "" && !model.ValidAttachmentType(attachmentType) {
		return fmt.Errorf("%w: unknown attachment type %q", model.ErrInvalidInput, attachmentType)
	}

	tempID := "temp_" + uuid.NewString()
	provisional := model.MessageWithSender{
		Message: model.Message{
			ID:             tempID,
			ChatID:         t.chatID,
			SenderID:       t.self.ID,
			Content:        content,
			AttachmentURL:  attachmentURL,
			AttachmentType: attachmentType,
			CreatedAt:      time.Now().UnixMilli(),
			Status:         status.Sent,
		},
		Sender: t.self,
	}

	t.mu.Lock()
	t.messages = append(t.messages, provisional)
	t.mu.Unlock()
	t.notify()

	authoritative, err := t.store.InsertMessage(ctx, store.InsertMessageParams{
		ChatID:         t.chatID,
		SenderID:       t.self.ID,
		Content:        content,
		AttachmentURL:  attachmentURL,
		AttachmentType: attachmentType,
	})
	if err != nil {
		t.discard(tempID)
		t.bus.Publish(bus.Event{
			Kind:      "thread.send_failed",
			Timestamp: time.Now(),
			Payload:   map[string]string{"chat_id": t.chatID, "error": err.Error()},
		})
		return fmt.Errorf("send message: %w", err)
	}

	// Reconcile before announcing: a receiver may ack the broadcast
	// immediately, and the receipt carries the authoritative id, so that
	// id must already be in the list when the receipt arrives.
	t.reconcile(tempID, authoritative)

	// Announce to the chat channel. The delivered status is a hint for
	// receivers, never persisted. Losing the broadcast degrades receipts
	// only, so a failure here does not fail the send.
	announced := *authoritative
	announced.Status = status.Delivered
	ch := t.rt.Channel(realtime.ChatChannel(t.chatID))
	if err := ch.Send(ctx, realtime.EventNewMessage, announced); err != nil {
		t.logger.Warn("new_message broadcast failed", zap.String("msg_id", authoritative.ID), zap.Error(err))
	}
	return nil
}

// reconcile replaces the provisional entry with the authoritative record,
// keeping the sender's own view at "sent": a message is never delivered
// to its own author. Re-sorts so authoritative timestamps settle the
// order of concurrent sends.
func (t *Thread) reconcile(tempID string, authoritative *model.MessageWithSender) {
	final := *authoritative
	final.Status = status.Sent

	t.mu.Lock()
	for i := range t.messages {
		if t.messages[i].ID == tempID {
			t.messages[i] = final
			break
		}
	}
	sort.SliceStable(t.messages, func(i, j int) bool {
		return t.messages[i].CreatedAt < t.messages[j].CreatedAt
	})
	t.mu.Unlock()
	t.notify()
}

func (t *Thread) discard(tempID string) {
	t.mu.Lock()
	kept := t.messages[:0]
	for _, m := range t.messages {
		if m.ID != tempID {
			kept = append(kept, m)
		}
	}
	t.messages = kept
	t.mu.Unlock()
	t.notify()
}

// handleNewMessage appends a message observed on the chat channel with
// status "delivered" and immediately acks it with a message_read receipt
// carrying this reader's identity.
func (t *Thread) handleNewMessage(raw json.RawMessage) {
	msg, ok := realtime.DecodeMessage(raw)
	if !ok {
		return
	}
	if msg.SenderID == t.self.ID || msg.ChatID != t.chatID {
		return
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	for _, m := range t.messages {
		if m.ID == msg.ID {
			// At-least-once transport: already observed.
			t.mu.Unlock()
			return
		}
	}
	observed := *msg
	observed.Status = status.Delivered
	t.messages = append(t.messages, observed)
	ch := t.channel
	t.mu.Unlock()
	t.notify()

	if ch != nil {
		receipt := realtime.ReadReceipt{MessageID: msg.ID, ReaderID: t.self.ID}
		if err := ch.Send(context.Background(), realtime.EventMessageRead, receipt); err != nil {
			t.logger.Warn("read receipt failed", zap.String("msg_id", msg.ID), zap.Error(err))
		}
	}
}

// handleMessageRead advances the referenced message's status to "read".
// Receipts for unknown message ids or already-read messages are dropped
// without effect.
func (t *Thread) handleMessageRead(raw json.RawMessage) {
	var receipt realtime.ReadReceipt
	if err := json.Unmarshal(raw, &receipt); err != nil || receipt.MessageID == "" {
		return
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	changed := false
	for i := range t.messages {
		if t.messages[i].ID == receipt.MessageID {
			t.messages[i].Status, changed = status.Apply(t.messages[i].Status, status.Read)
			break
		}
	}
	t.mu.Unlock()
	if changed {
		t.notify()
	}
}

func (t *Thread) notify() {
	t.bus.Publish(bus.Event{
		Kind:      "thread.updated",
		Timestamp: time.Now(),
		Payload:   t.chatID,
	})
}
