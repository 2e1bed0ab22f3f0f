package session

import (
	"os"
	"path/filepath"
)

// BaseDir returns ~/.courier.
func BaseDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".courier")
}

// ConfigPath returns the client config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// FiltersPath returns the saved chat filters file path.
func FiltersPath() string {
	return filepath.Join(BaseDir(), "filters.json")
}

// LogDir returns the log directory.
func LogDir() string {
	return filepath.Join(BaseDir(), "logs")
}

// LogPath returns the client log file path.
func LogPath() string {
	return filepath.Join(LogDir(), "courier.log")
}

// EnsureDirs creates the config directory tree with proper permissions.
func EnsureDirs() error {
	for _, d := range []string{BaseDir(), LogDir()} {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
