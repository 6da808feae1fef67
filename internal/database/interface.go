package database

import (
	"context"
	"fmt"

	"github.com/CosmoTheDev/anonscan/internal/config"
)

// DB is the generic storage interface used throughout anonscan.
// Implementations exist for SQLite (default), MySQL and PostgreSQL.
// Queries are written with `?` placeholders; backends that need another
// style rebind them.
type DB interface {
	// Get executes a query expected to return a single row and scans into dest.
	// Returns sql.ErrNoRows when nothing matched.
	Get(ctx context.Context, dest interface{}, query string, args ...interface{}) error

	// Exec executes a statement and returns the number of affected rows.
	Exec(ctx context.Context, query string, args ...interface{}) (int64, error)

	// Insert inserts a struct-tagged record into table.
	Insert(ctx context.Context, table string, record interface{}) error

	// Update updates rows matching the where clause with values from record
	// and returns the number of affected rows.
	Update(ctx context.Context, table string, record interface{}, where string, args ...interface{}) (int64, error)

	// Migrate applies pending schema migrations in order.
	Migrate(ctx context.Context) error

	// Ping verifies the database connection is alive.
	Ping(ctx context.Context) error

	// Close releases the database connection.
	Close() error

	// Driver returns the backend name: "sqlite", "mysql" or "postgres".
	Driver() string
}

// New returns a DB implementation matching cfg.Driver.
// SQLite is the default when driver is empty.
func New(cfg config.DatabaseConfig) (DB, error) {
	switch cfg.Driver {
	case "mysql":
		return NewMySQL(cfg)
	case "postgres", "postgresql", "pgx":
		return NewPostgres(cfg)
	case "sqlite", "sqlite3", "":
		return NewSQLite(cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q (supported: sqlite, mysql, postgres)", cfg.Driver)
	}
}
