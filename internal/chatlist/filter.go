package chatlist

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tcosta/courier/internal/model"
)

// Criteria describes what a saved filter keeps. Zero-value criteria keep
// everything.
type Criteria struct {
	Unread       bool     `json:"unread,omitempty"`
	IsGroup      *bool    `json:"is_group,omitempty"`
	NameContains string   `json:"chat_name_contains,omitempty"`
	Labels       []string `json:"labels,omitempty"`
	// LabelMatch is "any" (default) or "all".
	LabelMatch string `json:"label_match_type,omitempty"`
}

// Empty reports whether the criteria filter nothing.
func (c Criteria) Empty() bool {
	return !c.Unread && c.IsGroup == nil && c.NameContains == "" && len(c.Labels) == 0
}

// Filter is a saved, named filter.
type Filter struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Criteria Criteria `json:"criteria"`
}

// Apply filters the synchronized list. It is a pure, order-preserving
// projection: ordering and counts always come from the engine, never
// from here.
func Apply(chats []model.ChatWithDetails, f *Filter) []model.ChatWithDetails {
	if f == nil || f.Criteria.Empty() {
		return chats
	}
	c := f.Criteria
	out := make([]model.ChatWithDetails, 0, len(chats))
	for _, chat := range chats {
		if c.Unread && chat.UnreadCount == 0 {
			continue
		}
		if c.IsGroup != nil && chat.IsGroup != *c.IsGroup {
			continue
		}
		if c.NameContains != "" && !containsFold(chat.Name, c.NameContains) {
			continue
		}
		if len(c.Labels) > 0 && !matchLabels(chat.Labels, c.Labels, c.LabelMatch) {
			continue
		}
		out = append(out, chat)
	}
	return out
}

// Search keeps chats whose display name contains the term,
// case-insensitively. An empty term keeps everything.
func Search(chats []model.ChatWithDetails, term string) []model.ChatWithDetails {
	term = strings.TrimSpace(term)
	if term == "" {
		return chats
	}
	out := make([]model.ChatWithDetails, 0, len(chats))
	for _, chat := range chats {
		if containsFold(chat.Name, term) {
			out = append(out, chat)
		}
	}
	return out
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func matchLabels(have []model.Label, want []string, match string) bool {
	ids := make(map[string]bool, len(have))
	for _, l := range have {
		ids[l.ID] = true
	}
	if match == "all" {
		for _, id := range want {
			if !ids[id] {
				return false
			}
		}
		return true
	}
	for _, id := range want {
		if ids[id] {
			return true
		}
	}
	return false
}

// LoadFilters reads saved filters from disk. A missing file is an empty
// set, not an error.
func LoadFilters(path string) ([]Filter, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read filters: %w", err)
	}
	var filters []Filter
	if err := json.Unmarshal(data, &filters); err != nil {
		return nil, fmt.Errorf("parse filters: %w", err)
	}
	return filters, nil
}

// SaveFilters writes saved filters to disk, creating parent dirs.
func SaveFilters(path string, filters []Filter) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(filters, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
