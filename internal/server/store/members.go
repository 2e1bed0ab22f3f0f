package store

import (
	"fmt"
	"time"

	"github.com/tcosta/courier/internal/model"
)

// InsertMembership adds a profile to a chat (idempotent).
func (db *DB) InsertMembership(m model.Membership) error {
	if m.ChatID == "" || m.ProfileID == "" {
		return fmt.Errorf("%w: chat and profile are required", model.ErrInvalidInput)
	}
	_, err := db.Exec(`
		INSERT INTO chat_members (chat_id, profile_id, is_admin, last_read_at)
		VALUES (?, ?, ?, 0)
		ON CONFLICT(chat_id, profile_id) DO UPDATE SET is_admin = excluded.is_admin`,
		m.ChatID, m.ProfileID, m.IsAdmin)
	return err
}

// DeleteMembership removes a profile from a chat.
func (db *DB) DeleteMembership(chatID, profileID string) error {
	res, err := db.Exec(`
		DELETE FROM chat_members WHERE chat_id = ? AND profile_id = ?`,
		chatID, profileID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: membership %s/%s", model.ErrNotFound, chatID, profileID)
	}
	return nil
}

// MarkChatRead moves the member's read position to now so the unread
// count survives reloads.
func (db *DB) MarkChatRead(chatID, profileID string) error {
	res, err := db.Exec(`
		UPDATE chat_members SET last_read_at = ? WHERE chat_id = ? AND profile_id = ?`,
		time.Now().UnixMilli(), chatID, profileID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: membership %s/%s", model.ErrNotFound, chatID, profileID)
	}
	return nil
}
