package store

import (
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/tcosta/courier/internal/server/store/migrations"
)

// MigrateResult reports the chat schema state after Migrate.
type MigrateResult struct {
	Version uint
	Changed bool
}

// Migrate brings the chat schema up to date from the embedded migration
// files. A dirty schema, left by a run that died mid-migration, is
// refused rather than served.
func (db *DB) Migrate() (*MigrateResult, error) {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}

	drv, err := sqlite3.WithInstance(db.DB, &sqlite3.Config{})
	if err != nil {
		return nil, fmt.Errorf("migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", drv)
	if err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	changed := true
	switch err := m.Up(); err {
	case nil:
	case migrate.ErrNoChange:
		changed = false
	default:
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return nil, fmt.Errorf("schema version: %w", err)
	}
	if dirty {
		return nil, fmt.Errorf("schema version %d is dirty, refusing to serve it", version)
	}
	return &MigrateResult{Version: version, Changed: changed}, nil
}
