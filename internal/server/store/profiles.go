package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tcosta/courier/internal/model"
)

// UpsertProfile inserts or updates a profile (idempotent on id).
func (db *DB) UpsertProfile(p *model.Profile) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO profiles (id, username, display_name, avatar_url, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			display_name = excluded.display_name,
			avatar_url = excluded.avatar_url`,
		p.ID, p.Username, p.DisplayName, p.AvatarURL, now)
	return err
}

// EnsureProfile creates a minimal profile row if none exists for the id.
// The username defaults to the id itself.
func (db *DB) EnsureProfile(id string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO profiles (id, username, display_name, avatar_url, created_at)
		VALUES (?, ?, '', '', ?)
		ON CONFLICT(id) DO NOTHING`,
		id, id, now)
	return err
}

// GetProfile returns one profile by id.
func (db *DB) GetProfile(id string) (*model.Profile, error) {
	var p model.Profile
	err := db.QueryRow(`
		SELECT id, username, display_name, avatar_url
		FROM profiles WHERE id = ?`, id).
		Scan(&p.ID, &p.Username, &p.DisplayName, &p.AvatarURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: profile %s", model.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
