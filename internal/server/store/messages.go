package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tcosta/courier/internal/model"
	clientstore "github.com/tcosta/courier/internal/store"
)

// InsertMessage persists a message with a store-assigned id and
// timestamp, bumps the chat's updated_at and returns the authoritative
// record with the sender profile joined in.
func (db *DB) InsertMessage(p clientstore.InsertMessageParams) (*model.MessageWithSender, error) {
	if p.ChatID == "" || p.SenderID == "" {
		return nil, fmt.Errorf("%w: chat and sender are required", model.ErrInvalidInput)
	}
	if p.Content == "" && p.AttachmentURL == "" {
		return nil, fmt.Errorf("%w: message needs content or an attachment", model.ErrInvalidInput)
	}
	if p.AttachmentURL != "" && !model.ValidAttachmentType(p.AttachmentType) {
		return nil, fmt.Errorf("%w: bad attachment type %q", model.ErrInvalidInput, p.AttachmentType)
	}

	var isMember bool
	err := db.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM chat_members WHERE chat_id = ? AND profile_id = ?)`,
		p.ChatID, p.SenderID).Scan(&isMember)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, fmt.Errorf("%w: chat %s", model.ErrNotFound, p.ChatID)
	}

	id := uuid.NewString()
	now := time.Now().UnixMilli()
	tx, err := db.Begin()
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`
		INSERT INTO messages (id, chat_id, sender_id, content, attachment_url, attachment_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, p.ChatID, p.SenderID, p.Content, p.AttachmentURL, string(p.AttachmentType), now)
	if err != nil {
		return nil, err
	}
	// The sender has read their own message.
	_, err = tx.Exec(`
		UPDATE chat_members SET last_read_at = ? WHERE chat_id = ? AND profile_id = ?`,
		now, p.ChatID, p.SenderID)
	if err != nil {
		return nil, err
	}
	_, err = tx.Exec(`UPDATE chats SET updated_at = ? WHERE id = ?`, now, p.ChatID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return db.GetMessage(id)
}

// GetMessage returns one message with its sender joined in.
func (db *DB) GetMessage(id string) (*model.MessageWithSender, error) {
	var m model.MessageWithSender
	var attachmentType string
	err := db.QueryRow(`
		SELECT m.id, m.chat_id, m.sender_id, m.content, m.attachment_url, m.attachment_type, m.created_at,
		       p.id, p.username, p.display_name, p.avatar_url
		FROM messages m
		JOIN profiles p ON p.id = m.sender_id
		WHERE m.id = ?`, id).
		Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Content, &m.AttachmentURL, &attachmentType, &m.CreatedAt,
			&m.Sender.ID, &m.Sender.Username, &m.Sender.DisplayName, &m.Sender.AvatarURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: message %s", model.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	m.AttachmentType = model.AttachmentType(attachmentType)
	return &m, nil
}

// ListMessages returns a chat's messages ordered by created_at
// ascending, senders joined in.
func (db *DB) ListMessages(chatID string) ([]model.MessageWithSender, error) {
	rows, err := db.Query(`
		SELECT m.id, m.chat_id, m.sender_id, m.content, m.attachment_url, m.attachment_type, m.created_at,
		       p.id, p.username, p.display_name, p.avatar_url
		FROM messages m
		JOIN profiles p ON p.id = m.sender_id
		WHERE m.chat_id = ?
		ORDER BY m.created_at ASC, m.id ASC`, chatID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []model.MessageWithSender
	for rows.Next() {
		var m model.MessageWithSender
		var attachmentType string
		if err := rows.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Content, &m.AttachmentURL, &attachmentType, &m.CreatedAt,
			&m.Sender.ID, &m.Sender.Username, &m.Sender.DisplayName, &m.Sender.AvatarURL); err != nil {
			return nil, err
		}
		m.AttachmentType = model.AttachmentType(attachmentType)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
