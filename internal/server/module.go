// Package server composes the courier-server process: SQLite store,
// broadcast hub and HTTP surface, wired together with fx.
package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/tcosta/courier/internal/lock"
	"github.com/tcosta/courier/internal/logging"
	"github.com/tcosta/courier/internal/server/httpapi"
	"github.com/tcosta/courier/internal/server/hub"
	"github.com/tcosta/courier/internal/server/store"
)

// Params holds the resolved server configuration passed to the fx module.
type Params struct {
	// DataDir holds the database, uploaded attachments, logs and the
	// instance lock.
	DataDir string
	// Addr is the listen address.
	Addr string
	// BaseURL is the externally visible address used in attachment URLs.
	BaseURL string
}

// Module returns the fx module for the server, composing all providers
// and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("server",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideLock,
			provideStore,
			provideHub,
			provideAPI,
			provideHTTPServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	if err := os.MkdirAll(p.DataDir, 0700); err != nil {
		return nil, err
	}
	return logging.New(filepath.Join(p.DataDir, "server.log"), "courier-server")
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	logger.Info("acquiring instance lock", zap.String("dir", p.DataDir))
	l, err := lock.Acquire(p.DataDir)
	if err != nil {
		return nil, err
	}
	logger.Info("instance lock acquired")
	return l, nil
}

func provideStore(p Params, logger *zap.Logger) (*store.DB, error) {
	dbPath := filepath.Join(p.DataDir, "courier.db")
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideHub(logger *zap.Logger) *hub.Hub {
	return hub.New(logger)
}

func provideAPI(p Params, db *store.DB, h *hub.Hub, logger *zap.Logger) (*httpapi.Server, error) {
	fileDir := filepath.Join(p.DataDir, "attachments")
	if err := os.MkdirAll(fileDir, 0700); err != nil {
		return nil, err
	}
	return httpapi.New(db, h, logger, p.BaseURL, fileDir), nil
}

func provideHTTPServer(p Params, api *httpapi.Server) *http.Server {
	return &http.Server{
		Addr:              p.Addr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func registerLifecycle(lc fx.Lifecycle, srv *http.Server, db *store.DB, lk *lock.Lock, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				logger.Info("listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("http server error", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Shutdown(ctx); err != nil {
				logger.Warn("shutdown error", zap.Error(err))
			}
			if err := db.Close(); err != nil {
				logger.Warn("closing store failed", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("server stopped")
			return nil
		},
	})
}
