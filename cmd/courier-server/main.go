package main

import (
	"flag"
	"os"
	"path/filepath"

	"go.uber.org/fx"

	"github.com/tcosta/courier/internal/server"
)

func main() {
	dataDir := flag.String("data-dir", defaultDataDir(), "directory for database, attachments and logs")
	addr := flag.String("addr", ":8480", "listen address")
	baseURL := flag.String("base-url", "", "externally visible base URL for attachment links (default derived from addr)")
	flag.Parse()

	base := *baseURL
	if base == "" {
		base = "http://localhost" + *addr
	}

	app := fx.New(
		server.Module(server.Params{
			DataDir: *dataDir,
			Addr:    *addr,
			BaseURL: base,
		}),
	)

	app.Run()
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".courier-server"
	}
	return filepath.Join(home, ".courier-server")
}
