package database

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// Each dialect keeps its own numbered up/down files under migrations/<driver>.
//
//go:embed migrations
var migrationsFS embed.FS

// applyMigrations runs every pending embedded migration for the dialect.
// It is safe to call on every startup; applied versions are skipped.
// The migrate instance is intentionally not closed: its database driver
// owns the *sql.DB passed to WithInstance and would close the pool.
func applyMigrations(dialect string, dbDriver migratedb.Driver) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations/"+dialect)
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, dialect, dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}

	version, dirty, _ := m.Version()
	slog.Debug("Migrations applied", "driver", dialect, "version", version, "dirty", dirty)
	return nil
}
