package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/tcosta/courier/internal/bus"
	"github.com/tcosta/courier/internal/chatlist"
	"github.com/tcosta/courier/internal/config"
	"github.com/tcosta/courier/internal/logging"
	"github.com/tcosta/courier/internal/realtime"
	"github.com/tcosta/courier/internal/session"
	"github.com/tcosta/courier/internal/store"
	"github.com/tcosta/courier/internal/tui"
	"github.com/tcosta/courier/internal/upload"
)

func main() {
	configPath := flag.String("config", session.ConfigPath(), "config file path")
	serverFlag := flag.String("server", "", "server base URL (overrides config)")
	userFlag := flag.String("user", "", "user id (overrides config)")
	flag.Parse()

	cfg, err := loadConfig(*configPath, *serverFlag, *userFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if err := session.EnsureDirs(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	sess, err := session.New(cfg.UserID, cfg.UserID, cfg.DisplayName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(session.LogPath(), "courier")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	wsURL := cfg.WebSocketURL
	if wsURL == "" {
		wsURL = deriveWSURL(cfg.ServerURL)
	}

	dialCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	transport, err := realtime.DialWS(dialCtx, wsURL, sess.UserID(), logger)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to %s: %v\n", wsURL, err)
		os.Exit(1)
	}
	defer func() { _ = transport.Close() }()

	remote := store.NewHTTPRemote(cfg.ServerURL, sess.UserID())
	uploader := upload.NewHTTPUploader(cfg.ServerURL, sess.UserID())
	b := bus.New()

	var opts []chatlist.Option
	if cfg.DebounceMillis > 0 {
		opts = append(opts, chatlist.WithDebounce(time.Duration(cfg.DebounceMillis)*time.Millisecond))
	}
	engine := chatlist.NewEngine(sess.UserID(), remote, transport, b, logger, opts...)

	app := tui.NewApp(sess, remote, transport, b, engine, uploader, logger)
	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file, applying flag overrides. On first
// run, flags alone are enough and the resulting config is saved.
func loadConfig(path, serverURL, userID string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		cfg = &config.Config{}
	}
	if serverURL != "" {
		cfg.ServerURL = serverURL
	}
	if userID != "" {
		cfg.UserID = userID
	}
	if cfg.ServerURL == "" || cfg.UserID == "" {
		return nil, fmt.Errorf("server url and user id are required; set them in %s or pass --server and --user", path)
	}
	if err := config.Save(path, cfg); err != nil {
		return nil, fmt.Errorf("save config: %w", err)
	}
	return cfg, nil
}

func deriveWSURL(serverURL string) string {
	ws := serverURL
	if after, ok := strings.CutPrefix(ws, "https"); ok {
		ws = "wss" + after
	} else if after, ok := strings.CutPrefix(ws, "http"); ok {
		ws = "ws" + after
	}
	return strings.TrimSuffix(ws, "/") + "/ws"
}
