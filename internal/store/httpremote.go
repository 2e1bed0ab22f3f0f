package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tcosta/courier/internal/model"
)

// HTTPRemote implements Remote against the courier-server JSON API. The
// viewer's identity travels in the X-User-ID header on every request.
type HTTPRemote struct {
	baseURL string
	userID  string
	client  *http.Client
}

// NewHTTPRemote creates a store client for the given server base URL.
func NewHTTPRemote(baseURL, userID string) *HTTPRemote {
	return &HTTPRemote{
		baseURL: baseURL,
		userID:  userID,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (r *HTTPRemote) InsertMessage(ctx context.Context, p InsertMessageParams) (*model.MessageWithSender, error) {
	var out model.MessageWithSender
	if err := r.do(ctx, http.MethodPost, "/api/messages", p, &out); err != nil {
		return nil, err
	}
	if out.ID == "" || out.ChatID == "" {
		return nil, fmt.Errorf("%w: insert returned incomplete message", model.ErrPersistence)
	}
	return &out, nil
}

func (r *HTTPRemote) ListMessages(ctx context.Context, chatID string) ([]model.MessageWithSender, error) {
	var out []model.MessageWithSender
	path := fmt.Sprintf("/api/chats/%s/messages", url.PathEscape(chatID))
	if err := r.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *HTTPRemote) GetChatProjection(ctx context.Context, chatID, userID string) (*model.ChatWithDetails, error) {
	var out model.ChatWithDetails
	path := fmt.Sprintf("/api/chats/%s", url.PathEscape(chatID))
	if err := r.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, fmt.Errorf("%w: projection missing chat id", model.ErrPersistence)
	}
	return &out, nil
}

func (r *HTTPRemote) GetAllChatProjections(ctx context.Context, userID string) ([]model.ChatWithDetails, error) {
	var out []model.ChatWithDetails
	if err := r.do(ctx, http.MethodGet, "/api/chats", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *HTTPRemote) InsertMembership(ctx context.Context, m model.Membership) error {
	path := fmt.Sprintf("/api/chats/%s/members", url.PathEscape(m.ChatID))
	return r.do(ctx, http.MethodPost, path, m, nil)
}

func (r *HTTPRemote) DeleteMembership(ctx context.Context, chatID, profileID string) error {
	path := fmt.Sprintf("/api/chats/%s/members/%s", url.PathEscape(chatID), url.PathEscape(profileID))
	return r.do(ctx, http.MethodDelete, path, nil, nil)
}

func (r *HTTPRemote) MarkChatRead(ctx context.Context, chatID, userID string) error {
	path := fmt.Sprintf("/api/chats/%s/read", url.PathEscape(chatID))
	return r.do(ctx, http.MethodPost, path, nil, nil)
}

func (r *HTTPRemote) CreateLabel(ctx context.Context, userID, name, color string) (*model.Label, error) {
	var out model.Label
	body := map[string]string{"name": name, "color": color}
	if err := r.do(ctx, http.MethodPost, "/api/labels", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *HTTPRemote) AssignLabel(ctx context.Context, chatID, labelID, userID string) error {
	path := fmt.Sprintf("/api/chats/%s/labels", url.PathEscape(chatID))
	return r.do(ctx, http.MethodPost, path, map[string]string{"label_id": labelID}, nil)
}

func (r *HTTPRemote) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-User-ID", r.userID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", model.ErrPersistence, method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s %s", model.ErrNotFound, method, path)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return fmt.Errorf("%w: %s %s: status %d: %s", model.ErrPersistence, method, path, resp.StatusCode, apiErr.Error)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: decode %s %s response: %v", model.ErrPersistence, method, path, err)
		}
	}
	return nil
}
