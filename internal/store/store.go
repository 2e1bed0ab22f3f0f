// Package store defines the remote data store the client core talks to.
// The store is an external collaborator: the core only depends on the
// Remote interface and the typed projections it returns.
package store

import (
	"context"

	"github.com/tcosta/courier/internal/model"
)

// InsertMessageParams is the persistence request for one message. Client
// temp identities and status never cross this boundary.
type InsertMessageParams struct {
	ChatID         string               `json:"chat_id"`
	SenderID       string               `json:"sender_id"`
	Content        string               `json:"content,omitempty"`
	AttachmentURL  string               `json:"attachment_url,omitempty"`
	AttachmentType model.AttachmentType `json:"attachment_type,omitempty"`
}

// Remote is the request/response surface of the remote store.
type Remote interface {
	// InsertMessage persists a message and returns the authoritative
	// record with store-assigned id and timestamp, sender joined in.
	InsertMessage(ctx context.Context, p InsertMessageParams) (*model.MessageWithSender, error)

	// ListMessages returns a chat's messages ordered by created_at
	// ascending, senders joined in.
	ListMessages(ctx context.Context, chatID string) ([]model.MessageWithSender, error)

	// GetChatProjection computes one chat's projection for a viewer.
	// Returns model.ErrNotFound if the chat does not exist or the viewer
	// is not a member.
	GetChatProjection(ctx context.Context, chatID, userID string) (*model.ChatWithDetails, error)

	// GetAllChatProjections resolves every conversation the user belongs
	// to, with derived fields, in one batched call.
	GetAllChatProjections(ctx context.Context, userID string) ([]model.ChatWithDetails, error)

	// InsertMembership adds a profile to a chat.
	InsertMembership(ctx context.Context, m model.Membership) error

	// DeleteMembership removes a profile from a chat.
	DeleteMembership(ctx context.Context, chatID, profileID string) error

	// MarkChatRead records the viewer's read position for a chat so
	// unread counts survive reloads.
	MarkChatRead(ctx context.Context, chatID, userID string) error

	// CreateLabel creates a label owned by the user.
	CreateLabel(ctx context.Context, userID, name, color string) (*model.Label, error)

	// AssignLabel attaches one of the user's labels to a chat.
	AssignLabel(ctx context.Context, chatID, labelID, userID string) error
}
