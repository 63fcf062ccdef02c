package prefs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS preferences (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// SQL is a Store backed by a SQLite database.
type SQL struct {
	conn *sql.DB
}

var _ Store = (*SQL)(nil)

// OpenSQL opens (or creates) the SQLite database and applies the schema.
func OpenSQL(driver, path string) (*SQL, error) {
	conn, err := sql.Open(driver, path+dsnParams(driver))
	if err != nil {
		return nil, fmt.Errorf("prefs: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("prefs: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("prefs: apply schema: %w", err)
	}
	return &SQL{conn: conn}, nil
}

// dsnParams returns WAL and busy-timeout settings in each driver's syntax.
func dsnParams(driver string) string {
	if driver == DriverSQLite {
		return "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	return "?_journal_mode=WAL&_busy_timeout=5000"
}

// Get returns the stored value for key.
func (s *SQL) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.conn.QueryRowContext(ctx, `SELECT value FROM preferences WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("prefs: get %s: %w", key, err)
	}
	return v, true, nil
}

// Set upserts value under key.
func (s *SQL) Set(ctx context.Context, key, value string) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO preferences (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value      = excluded.value,
			updated_at = excluded.updated_at
	`, key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("prefs: set %s: %w", key, err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQL) Close() error {
	return s.conn.Close()
}
