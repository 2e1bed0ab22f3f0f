package model

import "github.com/tcosta/courier/internal/status"

// AttachmentType classifies an uploaded attachment.
type AttachmentType string

const (
	AttachmentImage    AttachmentType = "image"
	AttachmentVideo    AttachmentType = "video"
	AttachmentDocument AttachmentType = "document"
	AttachmentAudio    AttachmentType = "audio"
)

// ValidAttachmentType reports whether t is one of the known attachment kinds.
func ValidAttachmentType(t AttachmentType) bool {
	switch t {
	case AttachmentImage, AttachmentVideo, AttachmentDocument, AttachmentAudio:
		return true
	}
	return false
}

// Profile is a chat participant as stored remotely.
type Profile struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// Message is a single chat message. Status is client-side only and never
// crosses the store boundary; the store ignores it on insert and omits it
// on read.
type Message struct {
	ID             string         `json:"id"`
	ChatID         string         `json:"chat_id"`
	SenderID       string         `json:"sender_id"`
	Content        string         `json:"content,omitempty"`
	AttachmentURL  string         `json:"attachment_url,omitempty"`
	AttachmentType AttachmentType `json:"attachment_type,omitempty"`
	CreatedAt      int64          `json:"created_at"` // unix ms
	Status         status.Status  `json:"status,omitempty"`
}

// HasAttachment reports whether the message carries an attachment.
func (m *Message) HasAttachment() bool {
	return m.AttachmentURL != ""
}

// MessageWithSender is the message projection returned by the store,
// with the sender profile joined in.
type MessageWithSender struct {
	Message
	Sender Profile `json:"sender"`
}

// LastMessage is the preview projection embedded in a chat entry.
type LastMessage struct {
	ID            string `json:"id"`
	SenderID      string `json:"sender_id"`
	SenderName    string `json:"sender_name"`
	Content       string `json:"content,omitempty"`
	HasAttachment bool   `json:"has_attachment"`
	CreatedAt     int64  `json:"created_at"`
}

// Label is a user-owned chat label.
type Label struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// ChatWithDetails is the denormalized chat projection the store computes
// for one viewer: display name resolved for 1:1 chats, last message
// preview, unread count and the viewer's labels.
type ChatWithDetails struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	IsGroup       bool         `json:"is_group"`
	OtherMemberID string       `json:"other_member_id,omitempty"`
	CreatedAt     int64        `json:"created_at"`
	UpdatedAt     int64        `json:"updated_at"`
	LastMessage   *LastMessage `json:"last_message,omitempty"`
	UnreadCount   int          `json:"unread_count"`
	Labels        []Label      `json:"labels,omitempty"`
}

// Recency is the sort key for the chat list: the later of the last
// message timestamp and the chat's own updated_at.
func (c *ChatWithDetails) Recency() int64 {
	if c.LastMessage != nil && c.LastMessage.CreatedAt > c.UpdatedAt {
		return c.LastMessage.CreatedAt
	}
	return c.UpdatedAt
}

// Membership links a profile to a chat. Creation and deletion of a
// membership row is what adds or removes the chat from that user's list.
type Membership struct {
	ChatID    string `json:"chat_id"`
	ProfileID string `json:"profile_id"`
	IsAdmin   bool   `json:"is_admin"`
}
