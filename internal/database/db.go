package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// sqlDB carries the database/sql plumbing shared by every backend.
// Dialect differences are limited to the placeholder rebind and migrations.
type sqlDB struct {
	db     *sql.DB
	driver string
	rebind func(string) string
}

func (s *sqlDB) Driver() string { return s.driver }

func (s *sqlDB) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlDB) Close() error {
	return s.db.Close()
}

func (s *sqlDB) q(query string) string {
	if s.rebind == nil {
		return query
	}
	return s.rebind(query)
}

// Get executes query and scans a single row into dest. Columns are matched
// by name, so the SELECT list order does not matter.
func (s *sqlDB) Get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	defer rows.Close()
	return scanOne(rows, dest)
}

// Exec executes a statement and reports affected rows.
func (s *sqlDB) Exec(ctx context.Context, query string, args ...interface{}) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.q(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Insert inserts a struct into table using its `db:` tags.
func (s *sqlDB) Insert(ctx context.Context, table string, record interface{}) error {
	cols, placeholders, vals := structToInsert(record)
	// Internal DB helper: table/column names come from trusted application code, values remain parameterized.
	// nosemgrep: go.lang.security.audit.database.string-formatted-query.string-formatted-query
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	if _, err := s.db.ExecContext(ctx, s.q(query), vals...); err != nil {
		return fmt.Errorf("insert into %s: %w", table, err)
	}
	return nil
}

// Update updates rows in table matching where clause.
func (s *sqlDB) Update(ctx context.Context, table string, record interface{}, where string, args ...interface{}) (int64, error) {
	cols, vals := structToUpdate(record)
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = c + " = ?"
	}
	// Internal DB helper: callers provide trusted SQL fragments for table/where; data values are bound separately.
	// nosemgrep: go.lang.security.audit.database.string-formatted-query.string-formatted-query
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s", table, strings.Join(sets, ", "), where)
	allArgs := append(vals, args...)
	res, err := s.db.ExecContext(ctx, s.q(query), allArgs...)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", table, err)
	}
	return res.RowsAffected()
}
