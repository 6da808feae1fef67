package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/CosmoTheDev/anonscan/internal/config"
)

// Lazy defers opening the connection pool until the first query and runs
// the schema bootstrap once per process. A failed open or migration is
// retried on the next call rather than cached.
type Lazy struct {
	cfg  config.DatabaseConfig
	open func(config.DatabaseConfig) (DB, error)

	mu       sync.Mutex
	db       DB
	migrated atomic.Bool
}

// NewLazy returns a DB that connects on first use.
func NewLazy(cfg config.DatabaseConfig) *Lazy {
	return &Lazy{cfg: cfg, open: New}
}

// Wrap returns a Lazy around an already-open DB; only the schema bootstrap is deferred.
func Wrap(db DB) *Lazy {
	return &Lazy{
		cfg: config.DatabaseConfig{Driver: db.Driver()},
		db:  db,
		open: func(config.DatabaseConfig) (DB, error) {
			return nil, errors.New("database closed")
		},
	}
}

func (l *Lazy) get(ctx context.Context) (DB, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.db == nil {
		db, err := l.open(l.cfg)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		l.db = db
		slog.Debug("Database pool opened", "driver", db.Driver())
	}
	if !l.migrated.Load() {
		if err := l.db.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("bootstrapping schema: %w", err)
		}
		l.migrated.Store(true)
	}
	return l.db, nil
}

func (l *Lazy) Get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	db, err := l.get(ctx)
	if err != nil {
		return err
	}
	return db.Get(ctx, dest, query, args...)
}

func (l *Lazy) Exec(ctx context.Context, query string, args ...interface{}) (int64, error) {
	db, err := l.get(ctx)
	if err != nil {
		return 0, err
	}
	return db.Exec(ctx, query, args...)
}

func (l *Lazy) Insert(ctx context.Context, table string, record interface{}) error {
	db, err := l.get(ctx)
	if err != nil {
		return err
	}
	return db.Insert(ctx, table, record)
}

func (l *Lazy) Update(ctx context.Context, table string, record interface{}, where string, args ...interface{}) (int64, error) {
	db, err := l.get(ctx)
	if err != nil {
		return 0, err
	}
	return db.Update(ctx, table, record, where, args...)
}

// Migrate forces the schema bootstrap now.
func (l *Lazy) Migrate(ctx context.Context) error {
	_, err := l.get(ctx)
	return err
}

func (l *Lazy) Ping(ctx context.Context) error {
	db, err := l.get(ctx)
	if err != nil {
		return err
	}
	return db.Ping(ctx)
}

// Close closes the pool if it was ever opened.
func (l *Lazy) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.db == nil {
		return nil
	}
	err := l.db.Close()
	l.db = nil
	l.migrated.Store(false)
	return err
}

func (l *Lazy) Driver() string {
	if l.cfg.Driver == "" {
		return "sqlite"
	}
	return l.cfg.Driver
}
