// Package httpapi exposes the courier-server surface: the JSON store
// API the clients' HTTPRemote talks to, the attachment upload endpoint
// and the WebSocket entry point of the realtime hub. Identity is taken
// from the X-User-ID header; authentication is out of scope and handled
// by whatever sits in front of the server.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tcosta/courier/internal/model"
	"github.com/tcosta/courier/internal/realtime"
	"github.com/tcosta/courier/internal/server/hub"
	serverstore "github.com/tcosta/courier/internal/server/store"
	"github.com/tcosta/courier/internal/store"
	"github.com/tcosta/courier/internal/upload"
)

// Server bundles the store, the hub and the upload directory behind one
// chi router.
type Server struct {
	db      *serverstore.DB
	hub     *hub.Hub
	logger  *zap.Logger
	baseURL string
	fileDir string
}

// New creates the API server. baseURL is the externally visible address
// used to build attachment URLs; fileDir is where uploads land.
func New(db *serverstore.DB, h *hub.Hub, logger *zap.Logger, baseURL, fileDir string) *Server {
	return &Server{db: db, hub: h, logger: logger, baseURL: baseURL, fileDir: fileDir}
}

// Router builds the HTTP routing table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/ws", s.hub.ServeHTTP)
	r.Get("/attachments/{name}", s.serveAttachment)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.requireUser)
		r.Post("/messages", s.insertMessage)
		r.Post("/attachments", s.uploadAttachment)
		r.Post("/labels", s.createLabel)
		r.Get("/chats", s.listChats)
		r.Post("/chats", s.createChat)
		r.Route("/chats/{chatID}", func(r chi.Router) {
			r.Get("/", s.getChat)
			r.Get("/messages", s.listMessages)
			r.Post("/read", s.markChatRead)
			r.Post("/members", s.insertMember)
			r.Delete("/members/{profileID}", s.deleteMember)
			r.Post("/labels", s.assignLabel)
		})
	})
	return r
}

type ctxKey int

const userKey ctxKey = 0

// requireUser extracts the caller identity and lazily creates a profile
// row for it.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("X-User-ID")
		if userID == "" {
			s.writeError(w, http.StatusUnauthorized, errors.New("missing X-User-ID header"))
			return
		}
		if err := s.db.EnsureProfile(userID); err != nil {
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}
		ctx := context.WithValue(r.Context(), userKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestUser(r *http.Request) string {
	u, _ := r.Context().Value(userKey).(string)
	return u
}

func (s *Server) insertMessage(w http.ResponseWriter, r *http.Request) {
	var p store.InsertMessageParams
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	p.SenderID = requestUser(r)

	msg, err := s.db.InsertMessage(p)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.hub.Broadcast(realtime.MessagesTable(), realtime.EventInsert, realtime.MessageInserted{
		ChatID:    msg.ChatID,
		MessageID: msg.ID,
		SenderID:  msg.SenderID,
	})
	s.writeJSON(w, http.StatusCreated, msg)
}

func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.db.ListMessages(chi.URLParam(r, "chatID"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if msgs == nil {
		msgs = []model.MessageWithSender{}
	}
	s.writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) getChat(w http.ResponseWriter, r *http.Request) {
	c, err := s.db.GetChatProjection(chi.URLParam(r, "chatID"), requestUser(r))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, c)
}

func (s *Server) listChats(w http.ResponseWriter, r *http.Request) {
	chats, err := s.db.GetAllChatProjections(requestUser(r))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if chats == nil {
		chats = []model.ChatWithDetails{}
	}
	s.writeJSON(w, http.StatusOK, chats)
}

type createChatRequest struct {
	Name      string   `json:"name"`
	IsGroup   bool     `json:"is_group"`
	MemberIDs []string `json:"member_ids"`
}

func (s *Server) createChat(w http.ResponseWriter, r *http.Request) {
	var req createChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	creator := requestUser(r)

	chatID, err := s.db.CreateChat(req.Name, req.IsGroup)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	members := append([]string{creator}, req.MemberIDs...)
	for i, uid := range members {
		if err := s.db.EnsureProfile(uid); err != nil {
			s.writeStoreError(w, err)
			return
		}
		m := model.Membership{ChatID: chatID, ProfileID: uid, IsAdmin: i == 0}
		if err := s.db.InsertMembership(m); err != nil {
			s.writeStoreError(w, err)
			return
		}
		s.hub.Broadcast(realtime.MembersTable(uid), realtime.EventInsert, m)
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"id": chatID})
}

func (s *Server) markChatRead(w http.ResponseWriter, r *http.Request) {
	if err := s.db.MarkChatRead(chi.URLParam(r, "chatID"), requestUser(r)); err != nil {
		s.writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) insertMember(w http.ResponseWriter, r *http.Request) {
	var m model.Membership
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	m.ChatID = chi.URLParam(r, "chatID")
	if err := s.db.EnsureProfile(m.ProfileID); err != nil {
		s.writeStoreError(w, err)
		return
	}
	if err := s.db.InsertMembership(m); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.hub.Broadcast(realtime.MembersTable(m.ProfileID), realtime.EventInsert, m)
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) deleteMember(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")
	profileID := chi.URLParam(r, "profileID")
	if err := s.db.DeleteMembership(chatID, profileID); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.hub.Broadcast(realtime.MembersTable(profileID), realtime.EventDelete, model.Membership{
		ChatID:    chatID,
		ProfileID: profileID,
	})
	w.WriteHeader(http.StatusNoContent)
}

type createLabelRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

func (s *Server) createLabel(w http.ResponseWriter, r *http.Request) {
	var req createLabelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	l, err := s.db.CreateLabel(requestUser(r), req.Name, req.Color)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, l)
}

type assignLabelRequest struct {
	LabelID string `json:"label_id"`
}

func (s *Server) assignLabel(w http.ResponseWriter, r *http.Request) {
	var req assignLabelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.db.AssignLabel(chi.URLParam(r, "chatID"), req.LabelID, requestUser(r)); err != nil {
		s.writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

const maxUploadBytes = 32 << 20

func (s *Server) uploadAttachment(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	f, hdr, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	defer func() { _ = f.Close() }()

	// Stored under a fresh name; the original extension survives so the
	// type stays derivable from the URL.
	name := uuid.NewString() + filepath.Ext(hdr.Filename)
	dst, err := os.Create(filepath.Join(s.fileDir, name))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if _, err := io.Copy(dst, f); err != nil {
		_ = dst.Close()
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if err := dst.Close(); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, upload.Result{
		URL:  fmt.Sprintf("%s/attachments/%s", s.baseURL, name),
		Type: upload.Classify(hdr.Filename),
	})
}

func (s *Server) serveAttachment(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name != filepath.Base(name) {
		s.writeError(w, http.StatusBadRequest, errors.New("bad attachment name"))
		return
	}
	http.ServeFile(w, r, filepath.Join(s.fileDir, name))
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", zap.Error(err))
	}
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err)
	case errors.Is(err, model.ErrInvalidInput):
		s.writeError(w, http.StatusBadRequest, err)
	default:
		s.writeError(w, http.StatusInternalServerError, err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, err error) {
	if code >= 500 {
		s.logger.Error("request failed", zap.Int("status", code), zap.Error(err))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
