// Package session carries the signed-in user's identity through the
// client as an explicit value instead of ambient global state. It is
// created once at startup and handed to every component that needs to
// know who "self" is.
package session

import (
	"fmt"

	"github.com/tcosta/courier/internal/model"
)

// Session is the current user's identity for this process lifetime.
type Session struct {
	Profile model.Profile
}

// New validates the identity fields and builds a session.
func New(userID, username, displayName string) (*Session, error) {
	if userID == "" {
		return nil, fmt.Errorf("session: user id is required")
	}
	if displayName == "" {
		displayName = username
	}
	if displayName == "" {
		displayName = userID
	}
	return &Session{Profile: model.Profile{
		ID:          userID,
		Username:    username,
		DisplayName: displayName,
	}}, nil
}

// UserID returns the signed-in profile id.
func (s *Session) UserID() string { return s.Profile.ID }
