// Package database provides the sqlite profile store: setup, migrations,
// models, seeding and the data access layer (Store).
package database

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	"github.com/careconnector/gateway/migrations"

	_ "modernc.org/sqlite" //revive:disable:blank-imports
)

// connPragmas are applied by the driver to every new connection.
// safety_flags rows rely on foreign_keys for ON DELETE CASCADE.
var connPragmas = []string{
	"foreign_keys(1)",
	"busy_timeout(5000)",
}

// DSN appends the connection pragmas to path, keeping any query the caller
// already set. A pragma the caller names explicitly wins.
func DSN(path string) string {
	var b strings.Builder
	b.WriteString(path)
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	for _, p := range connPragmas {
		name := p[:strings.IndexByte(p, '(')]
		if strings.Contains(path, "_pragma="+name+"(") {
			continue
		}
		b.WriteString(sep)
		b.WriteString("_pragma=")
		b.WriteString(p)
		sep = "&"
	}
	return b.String()
}

// Open connects to the profile database at path and brings its schema up to date.
func Open(path string, log *slog.Logger) (*sqlx.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("database path is empty")
	}
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "database", "path", path)

	db, err := sqlx.Connect("sqlite", DSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open profile database: %w", err)
	}

	// One writer at a time; readers share the same connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := migrateUp(db, log); err != nil {
		Close(db, log)
		return nil, err
	}

	log.Info("Profile database ready")
	return db, nil
}

// Close closes db, logging any failure.
func Close(db *sqlx.DB, log *slog.Logger) {
	if db == nil {
		return
	}
	if log == nil {
		log = slog.Default()
	}
	if err := db.Close(); err != nil {
		log.Error("Failed to close profile database", "error", err)
	}
}

func migrateUp(db *sqlx.DB, log *slog.Logger) error {
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("failed to read embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(db.DB, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	switch err := m.Up(); {
	case errors.Is(err, migrate.ErrNoChange):
		log.Debug("Profile schema already current")
	case err != nil:
		return fmt.Errorf("failed to migrate profile schema: %w", err)
	default:
		version, _, _ := m.Version()
		log.Info("Profile schema migrated", "version", version)
	}
	return nil
}
