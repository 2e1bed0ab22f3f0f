package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents ~/.courier/config.toml.
type Config struct {
	// ServerURL is the base URL of the remote store API.
	ServerURL string `toml:"server_url"`
	// WebSocketURL is the broadcast transport endpoint. Derived from
	// ServerURL when empty.
	WebSocketURL string `toml:"websocket_url"`
	// UserID identifies this client's profile at the store.
	UserID string `toml:"user_id"`
	// DisplayName is shown next to this user's messages.
	DisplayName string `toml:"display_name"`
	// DebounceMillis overrides the chat list coalescing window.
	DebounceMillis int `toml:"debounce_millis"`
}

// Load reads config from the given path. Returns zero config and error if file missing.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
