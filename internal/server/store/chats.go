package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tcosta/courier/internal/model"
)

// CreateChat creates a chat and returns its id. Group chats keep the
// given name; 1:1 chats leave it empty and derive the display name from
// the other member at projection time.
func (db *DB) CreateChat(name string, isGroup bool) (string, error) {
	id := uuid.NewString()
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO chats (id, name, is_group, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		id, name, isGroup, now, now)
	if err != nil {
		return "", err
	}
	return id, nil
}

// GetChatProjection computes one chat's denormalized projection for a
// viewer. Returns model.ErrNotFound when the chat does not exist or the
// viewer is not a member.
func (db *DB) GetChatProjection(chatID, userID string) (*model.ChatWithDetails, error) {
	var (
		c          model.ChatWithDetails
		rawName    string
		lastReadAt int64
	)
	// Display name falls back from the chat's own name to the other
	// member's display name, then username.
	err := db.QueryRow(`
		SELECT c.id, c.is_group, c.created_at, c.updated_at, cm.last_read_at,
		       COALESCE(NULLIF(c.name, ''),
		                (SELECT COALESCE(NULLIF(p.display_name, ''), p.username)
		                 FROM chat_members om
		                 JOIN profiles p ON p.id = om.profile_id
		                 WHERE om.chat_id = c.id AND om.profile_id != ?
		                 LIMIT 1),
		                ''),
		       COALESCE((SELECT om.profile_id
		                 FROM chat_members om
		                 WHERE om.chat_id = c.id AND om.profile_id != ? AND c.is_group = 0
		                 LIMIT 1), '')
		FROM chats c
		JOIN chat_members cm ON cm.chat_id = c.id AND cm.profile_id = ?
		WHERE c.id = ?`,
		userID, userID, userID, chatID).
		Scan(&c.ID, &c.IsGroup, &c.CreatedAt, &c.UpdatedAt, &lastReadAt, &rawName, &c.OtherMemberID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: chat %s for %s", model.ErrNotFound, chatID, userID)
	}
	if err != nil {
		return nil, err
	}
	c.Name = rawName

	last, err := db.lastMessage(chatID)
	if err != nil {
		return nil, err
	}
	c.LastMessage = last

	err = db.QueryRow(`
		SELECT COUNT(*) FROM messages
		WHERE chat_id = ? AND sender_id != ? AND created_at > ?`,
		chatID, userID, lastReadAt).Scan(&c.UnreadCount)
	if err != nil {
		return nil, err
	}

	labels, err := db.chatLabels(chatID, userID)
	if err != nil {
		return nil, err
	}
	c.Labels = labels
	return &c, nil
}

// GetAllChatProjections resolves every chat the user is a member of.
func (db *DB) GetAllChatProjections(userID string) ([]model.ChatWithDetails, error) {
	rows, err := db.Query(`
		SELECT chat_id FROM chat_members WHERE profile_id = ?`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	chats := make([]model.ChatWithDetails, 0, len(ids))
	for _, id := range ids {
		c, err := db.GetChatProjection(id, userID)
		if err != nil {
			return nil, err
		}
		chats = append(chats, *c)
	}
	return chats, nil
}

func (db *DB) lastMessage(chatID string) (*model.LastMessage, error) {
	var (
		lm            model.LastMessage
		attachmentURL string
	)
	err := db.QueryRow(`
		SELECT m.id, m.sender_id, m.content, m.attachment_url, m.created_at,
		       COALESCE(NULLIF(p.display_name, ''), p.username)
		FROM messages m
		JOIN profiles p ON p.id = m.sender_id
		WHERE m.chat_id = ?
		ORDER BY m.created_at DESC, m.id DESC
		LIMIT 1`, chatID).
		Scan(&lm.ID, &lm.SenderID, &lm.Content, &attachmentURL, &lm.CreatedAt, &lm.SenderName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	lm.HasAttachment = attachmentURL != ""
	return &lm, nil
}
