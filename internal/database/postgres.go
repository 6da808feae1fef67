package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/CosmoTheDev/anonscan/internal/config"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresDB implements DB using PostgreSQL via the pgx stdlib adapter.
type PostgresDB struct {
	sqlDB
}

// NewPostgres opens a PostgreSQL pool using cfg.DSN.
func NewPostgres(cfg config.DatabaseConfig) (*PostgresDB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres DSN is required when driver is postgres")
	}

	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 25
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(5)

	p := &PostgresDB{sqlDB: sqlDB{db: db, driver: "postgres", rebind: rebindDollar}}
	if err := p.Ping(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return p, nil
}

// Migrate applies the embedded postgres migrations.
func (p *PostgresDB) Migrate(_ context.Context) error {
	driver, err := migratepgx.WithInstance(p.db, &migratepgx.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}
	return applyMigrations("postgres", driver)
}

// rebindDollar rewrites `?` placeholders as $1, $2, ... Queries in this
// module never contain a literal question mark.
func rebindDollar(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
