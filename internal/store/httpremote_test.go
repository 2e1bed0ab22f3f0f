package store

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tcosta/courier/internal/model"
)

func TestInsertMessageSendsIdentityHeader(t *testing.T) {
	var gotUser, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = r.Header.Get("X-User-ID")
		gotPath = r.URL.Path
		var p InsertMessageParams
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			t.Fatal(err)
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(model.MessageWithSender{
			Message: model.Message{ID: "m1", ChatID: p.ChatID, SenderID: "u1", Content: p.Content, CreatedAt: 1000},
			Sender:  model.Profile{ID: "u1", Username: "alice"},
		})
	}))
	defer srv.Close()

	r := NewHTTPRemote(srv.URL, "u1")
	msg, err := r.InsertMessage(context.Background(), InsertMessageParams{ChatID: "c1", SenderID: "u1", Content: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	if gotUser != "u1" {
		t.Errorf("X-User-ID = %q, want u1", gotUser)
	}
	if gotPath != "/api/messages" {
		t.Errorf("path = %q", gotPath)
	}
	if msg.ID != "m1" || msg.Sender.Username != "alice" {
		t.Errorf("message = %+v", msg)
	}
}

func TestInsertMessageRejectsIncompleteResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(model.MessageWithSender{})
	}))
	defer srv.Close()

	r := NewHTTPRemote(srv.URL, "u1")
	_, err := r.InsertMessage(context.Background(), InsertMessageParams{ChatID: "c1", Content: "hi"})
	if !errors.Is(err, model.ErrPersistence) {
		t.Fatalf("err = %v, want ErrPersistence", err)
	}
}

func TestNotFoundMapsToSentinel(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	r := NewHTTPRemote(srv.URL, "u1")
	_, err := r.GetChatProjection(context.Background(), "c-gone", "u1")
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestServerErrorCarriesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "disk full"})
	}))
	defer srv.Close()

	r := NewHTTPRemote(srv.URL, "u1")
	err := r.MarkChatRead(context.Background(), "c1", "u1")
	if !errors.Is(err, model.ErrPersistence) {
		t.Fatalf("err = %v, want ErrPersistence", err)
	}
	if !strings.Contains(err.Error(), "disk full") {
		t.Errorf("error %q should carry the server message", err)
	}
}

func TestPathsAreEscaped(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	r := NewHTTPRemote(srv.URL, "u1")
	if err := r.DeleteMembership(context.Background(), "c/1", "p 2"); err != nil {
		t.Fatal(err)
	}
	if gotPath != "/api/chats/c%2F1/members/p%202" {
		t.Errorf("path = %q", gotPath)
	}
}
