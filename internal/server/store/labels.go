package store

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/tcosta/courier/internal/model"
)

// CreateLabel creates a label owned by the user. Label names are unique
// per owner.
func (db *DB) CreateLabel(ownerID, name, color string) (*model.Label, error) {
	if ownerID == "" || name == "" {
		return nil, fmt.Errorf("%w: owner and name are required", model.ErrInvalidInput)
	}
	id := uuid.NewString()
	_, err := db.Exec(`
		INSERT INTO chat_labels (id, owner_id, name, color)
		VALUES (?, ?, ?, ?)`,
		id, ownerID, name, color)
	if err != nil {
		return nil, err
	}
	return &model.Label{ID: id, Name: name, Color: color}, nil
}

// AssignLabel attaches one of the owner's labels to a chat (idempotent).
func (db *DB) AssignLabel(chatID, labelID, ownerID string) error {
	var owned bool
	err := db.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM chat_labels WHERE id = ? AND owner_id = ?)`,
		labelID, ownerID).Scan(&owned)
	if err != nil {
		return err
	}
	if !owned {
		return fmt.Errorf("%w: label %s", model.ErrNotFound, labelID)
	}
	_, err = db.Exec(`
		INSERT INTO chat_label_assignments (chat_id, label_id)
		VALUES (?, ?)
		ON CONFLICT(chat_id, label_id) DO NOTHING`,
		chatID, labelID)
	return err
}

// chatLabels returns the viewer-owned labels attached to a chat.
func (db *DB) chatLabels(chatID, ownerID string) ([]model.Label, error) {
	rows, err := db.Query(`
		SELECT l.id, l.name, l.color
		FROM chat_label_assignments a
		JOIN chat_labels l ON l.id = a.label_id
		WHERE a.chat_id = ? AND l.owner_id = ?
		ORDER BY l.name ASC`, chatID, ownerID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var labels []model.Label
	for rows.Next() {
		var l model.Label
		if err := rows.Scan(&l.ID, &l.Name, &l.Color); err != nil {
			return nil, err
		}
		labels = append(labels, l)
	}
	return labels, rows.Err()
}
