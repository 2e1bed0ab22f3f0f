package store

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/tcosta/courier/internal/model"
	clientstore "github.com/tcosta/courier/internal/store"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seedPair(t *testing.T, db *DB) (chatID string) {
	t.Helper()
	for _, p := range []model.Profile{
		{ID: "u1", Username: "alice", DisplayName: "Alice"},
		{ID: "u2", Username: "bob"},
	} {
		if err := db.UpsertProfile(&p); err != nil {
			t.Fatal(err)
		}
	}
	chatID, err := db.CreateChat("", false)
	if err != nil {
		t.Fatal(err)
	}
	for _, uid := range []string{"u1", "u2"} {
		if err := db.InsertMembership(model.Membership{ChatID: chatID, ProfileID: uid}); err != nil {
			t.Fatal(err)
		}
	}
	return chatID
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := testDB(t)

	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != 1 {
		t.Errorf("version = %d, want 1", result.Version)
	}
}

func TestInsertMessageReturnsAuthoritativeRecord(t *testing.T) {
	db := testDB(t)
	chatID := seedPair(t, db)

	msg, err := db.InsertMessage(clientstore.InsertMessageParams{
		ChatID: chatID, SenderID: "u1", Content: "hello",
	})
	if err != nil {
		t.Fatal(err)
	}
	if msg.ID == "" {
		t.Error("message id not assigned")
	}
	if msg.CreatedAt == 0 {
		t.Error("created_at not assigned")
	}
	if msg.Sender.Username != "alice" {
		t.Errorf("sender = %q, want alice", msg.Sender.Username)
	}

	listed, err := db.ListMessages(chatID)
	if err != nil {
		t.Fatal(err)
	}
	if len(listed) != 1 || listed[0].ID != msg.ID {
		t.Fatalf("ListMessages = %+v, want the inserted message", listed)
	}
}

func TestInsertMessageRejectsNonMember(t *testing.T) {
	db := testDB(t)
	chatID := seedPair(t, db)
	if err := db.UpsertProfile(&model.Profile{ID: "u3", Username: "carol"}); err != nil {
		t.Fatal(err)
	}

	_, err := db.InsertMessage(clientstore.InsertMessageParams{
		ChatID: chatID, SenderID: "u3", Content: "hi",
	})
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestInsertMessageRejectsEmpty(t *testing.T) {
	db := testDB(t)
	chatID := seedPair(t, db)

	_, err := db.InsertMessage(clientstore.InsertMessageParams{ChatID: chatID, SenderID: "u1"})
	if !errors.Is(err, model.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestProjectionDerivesNameFromOtherMember(t *testing.T) {
	db := testDB(t)
	chatID := seedPair(t, db)

	// u1 sees the other member's display name; u2 falls back to u1's
	// username-less display name chain.
	c, err := db.GetChatProjection(chatID, "u2")
	if err != nil {
		t.Fatal(err)
	}
	if c.Name != "Alice" {
		t.Errorf("name for u2 = %q, want Alice", c.Name)
	}
	if c.OtherMemberID != "u1" {
		t.Errorf("other member = %q, want u1", c.OtherMemberID)
	}

	c, err = db.GetChatProjection(chatID, "u1")
	if err != nil {
		t.Fatal(err)
	}
	// u2 has no display name, so the username shows.
	if c.Name != "bob" {
		t.Errorf("name for u1 = %q, want bob", c.Name)
	}
}

func TestProjectionGroupKeepsOwnName(t *testing.T) {
	db := testDB(t)
	seedPair(t, db)
	groupID, err := db.CreateChat("Team", true)
	if err != nil {
		t.Fatal(err)
	}
	if err := db.InsertMembership(model.Membership{ChatID: groupID, ProfileID: "u1", IsAdmin: true}); err != nil {
		t.Fatal(err)
	}

	c, err := db.GetChatProjection(groupID, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if c.Name != "Team" || !c.IsGroup {
		t.Errorf("projection = %+v, want group named Team", c)
	}
	if c.OtherMemberID != "" {
		t.Errorf("group chat should have no other member, got %q", c.OtherMemberID)
	}
}

func TestUnreadCountTracksReadPosition(t *testing.T) {
	db := testDB(t)
	chatID := seedPair(t, db)

	for i := 0; i < 3; i++ {
		if _, err := db.InsertMessage(clientstore.InsertMessageParams{
			ChatID: chatID, SenderID: "u1", Content: "hi",
		}); err != nil {
			t.Fatal(err)
		}
	}

	c, err := db.GetChatProjection(chatID, "u2")
	if err != nil {
		t.Fatal(err)
	}
	if c.UnreadCount != 3 {
		t.Errorf("unread for u2 = %d, want 3", c.UnreadCount)
	}

	// The sender's own messages never count against them.
	c, err = db.GetChatProjection(chatID, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if c.UnreadCount != 0 {
		t.Errorf("unread for u1 = %d, want 0", c.UnreadCount)
	}

	if err := db.MarkChatRead(chatID, "u2"); err != nil {
		t.Fatal(err)
	}
	c, err = db.GetChatProjection(chatID, "u2")
	if err != nil {
		t.Fatal(err)
	}
	if c.UnreadCount != 0 {
		t.Errorf("unread after MarkChatRead = %d, want 0", c.UnreadCount)
	}
}

func TestProjectionNotFoundForNonMember(t *testing.T) {
	db := testDB(t)
	chatID := seedPair(t, db)
	if err := db.UpsertProfile(&model.Profile{ID: "u3", Username: "carol"}); err != nil {
		t.Fatal(err)
	}

	_, err := db.GetChatProjection(chatID, "u3")
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteMembershipRemovesChatFromList(t *testing.T) {
	db := testDB(t)
	chatID := seedPair(t, db)

	if err := db.DeleteMembership(chatID, "u2"); err != nil {
		t.Fatal(err)
	}
	chats, err := db.GetAllChatProjections("u2")
	if err != nil {
		t.Fatal(err)
	}
	if len(chats) != 0 {
		t.Errorf("u2 still sees %d chats after leaving", len(chats))
	}

	if err := db.DeleteMembership(chatID, "u2"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("second delete = %v, want ErrNotFound", err)
	}
}

func TestLabelsScopedToOwner(t *testing.T) {
	db := testDB(t)
	chatID := seedPair(t, db)

	l, err := db.CreateLabel("u1", "work", "#ff0000")
	if err != nil {
		t.Fatal(err)
	}
	if err := db.AssignLabel(chatID, l.ID, "u1"); err != nil {
		t.Fatal(err)
	}
	// Idempotent.
	if err := db.AssignLabel(chatID, l.ID, "u1"); err != nil {
		t.Fatal(err)
	}

	c, err := db.GetChatProjection(chatID, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Labels) != 1 || c.Labels[0].Name != "work" {
		t.Errorf("labels for u1 = %+v, want [work]", c.Labels)
	}

	// u2 never sees u1's labels.
	c, err = db.GetChatProjection(chatID, "u2")
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Labels) != 0 {
		t.Errorf("labels for u2 = %+v, want none", c.Labels)
	}

	// Assigning someone else's label fails.
	if err := db.AssignLabel(chatID, l.ID, "u2"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("cross-owner assign = %v, want ErrNotFound", err)
	}
}

func TestLastMessagePreview(t *testing.T) {
	db := testDB(t)
	chatID := seedPair(t, db)

	if _, err := db.InsertMessage(clientstore.InsertMessageParams{
		ChatID: chatID, SenderID: "u1", Content: "first",
	}); err != nil {
		t.Fatal(err)
	}
	last, err := db.InsertMessage(clientstore.InsertMessageParams{
		ChatID: chatID, SenderID: "u2",
		AttachmentURL: "http://files/pic.png", AttachmentType: model.AttachmentImage,
	})
	if err != nil {
		t.Fatal(err)
	}

	c, err := db.GetChatProjection(chatID, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if c.LastMessage == nil {
		t.Fatal("no last message in projection")
	}
	if c.LastMessage.ID != last.ID {
		t.Errorf("last message id = %q, want %q", c.LastMessage.ID, last.ID)
	}
	if !c.LastMessage.HasAttachment {
		t.Error("last message should report an attachment")
	}
	if c.LastMessage.SenderName != "bob" {
		t.Errorf("sender name = %q, want bob", c.LastMessage.SenderName)
	}
}
