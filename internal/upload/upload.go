// Package upload is the attachment boundary: hand in a blob, get back a
// public URL and a coarse type. The core only consumes the URL/type pair.
package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/tcosta/courier/internal/model"
)

// Result is what an upload yields.
type Result struct {
	URL  string               `json:"url"`
	Type model.AttachmentType `json:"type"`
}

// Uploader stores a blob and returns its public URL and classification.
type Uploader interface {
	Upload(ctx context.Context, filename string, r io.Reader) (*Result, error)
}

var typeByExt = map[string]model.AttachmentType{
	".jpg":  model.AttachmentImage,
	".jpeg": model.AttachmentImage,
	".png":  model.AttachmentImage,
	".gif":  model.AttachmentImage,
	".webp": model.AttachmentImage,
	".mp4":  model.AttachmentVideo,
	".mov":  model.AttachmentVideo,
	".webm": model.AttachmentVideo,
	".mkv":  model.AttachmentVideo,
	".mp3":  model.AttachmentAudio,
	".ogg":  model.AttachmentAudio,
	".wav":  model.AttachmentAudio,
	".m4a":  model.AttachmentAudio,
}

// Classify maps a filename to a coarse attachment type. Anything not
// recognized as image, video or audio is a document.
func Classify(filename string) model.AttachmentType {
	ext := strings.ToLower(path.Ext(filename))
	if t, ok := typeByExt[ext]; ok {
		return t
	}
	return model.AttachmentDocument
}

// HTTPUploader uploads blobs to the courier-server attachments endpoint.
type HTTPUploader struct {
	baseURL string
	userID  string
	client  *http.Client
}

// NewHTTPUploader creates an uploader against the given server base URL.
func NewHTTPUploader(baseURL, userID string) *HTTPUploader {
	return &HTTPUploader{
		baseURL: baseURL,
		userID:  userID,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

// Upload sends the blob as multipart form data and returns the stored
// URL and type.
func (u *HTTPUploader) Upload(ctx context.Context, filename string, r io.Reader) (*Result, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("build upload form: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("read blob: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("finish upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.baseURL+"/api/attachments", &body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-User-ID", u.userID)

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("upload: status %d", resp.StatusCode)
	}

	var res Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("decode upload response: %w", err)
	}
	if res.URL == "" || !model.ValidAttachmentType(res.Type) {
		return nil, fmt.Errorf("upload: incomplete response %+v", res)
	}
	return &res, nil
}
