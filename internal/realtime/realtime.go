// Package realtime defines the broadcast transport the client core speaks
// to: named channels carrying typed fire-and-forget events, plus
// row-change streams from the remote store. Delivery is best-effort while
// both ends are connected; consumers must treat every event as
// at-least-once and apply it idempotently.
package realtime

import (
	"context"
	"encoding/json"

	"github.com/tcosta/courier/internal/model"
)

// Broadcast event kinds.
const (
	// EventNewMessage announces a freshly persisted message on its chat
	// channel. The payload is a MessageWithSender whose status field is a
	// transport annotation ("delivered"), not persisted state.
	EventNewMessage = "new_message"
	// EventMessageRead is the read receipt a receiving client fires back
	// on the chat channel as soon as it renders the message.
	EventMessageRead = "message_read"
	// EventChatRead is the "this chat is now read" signal a client sends
	// on its own personal channel when it opens a conversation. Only the
	// chat list engine consumes it.
	EventChatRead = "chat_read"
)

// Row-change event kinds, emitted on table channels by the store.
const (
	EventInsert = "insert"
	EventUpdate = "update"
	EventDelete = "delete"
)

// ChatChannel names the per-conversation channel for message and receipt
// events.
func ChatChannel(chatID string) string {
	return "chat:" + chatID
}

// ReadStatusChannel names a user's personal channel for chat_read signals.
func ReadStatusChannel(userID string) string {
	return "read-status-listener-" + userID
}

// MessagesTable names the row-change channel for message inserts across
// all chats.
func MessagesTable() string {
	return "table:messages"
}

// MembersTable names the row-change channel for membership rows scoped to
// one profile.
func MembersTable(userID string) string {
	return "table:chat_members:" + userID
}

// ReadReceipt is the message_read payload.
type ReadReceipt struct {
	MessageID string `json:"message_id"`
	ReaderID  string `json:"reader_id"`
}

// ChatRead is the chat_read payload.
type ChatRead struct {
	ChatID string `json:"chat_id"`
}

// MessageInserted is the row-change payload for a message insert.
type MessageInserted struct {
	ChatID    string `json:"chat_id"`
	MessageID string `json:"message_id"`
	SenderID  string `json:"sender_id"`
}

// Handler consumes one event instance. The payload is decoded exactly
// once at the boundary by the handler; malformed payloads are dropped,
// not errors.
type Handler func(payload json.RawMessage)

// Channel is a named broadcast channel. Handlers are registered with On
// before Subscribe; Send works without subscribing.
type Channel interface {
	On(event string, h Handler) Channel
	Subscribe(ctx context.Context) error
	Send(ctx context.Context, event string, payload any) error
	Name() string
}

// Transport hands out channels by name and tears them down.
type Transport interface {
	Channel(name string) Channel
	RemoveChannel(ch Channel)
	Close() error
}

// DecodeMessage decodes a new_message payload. The returned message is
// validated once here so downstream code never sees a half-formed row.
func DecodeMessage(raw json.RawMessage) (*model.MessageWithSender, bool) {
	var m model.MessageWithSender
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, false
	}
	if m.ID == "" || m.ChatID == "" || m.SenderID == "" {
		return nil, false
	}
	return &m, true
}
