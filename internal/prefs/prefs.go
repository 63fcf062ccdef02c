// Package prefs provides the key-value store the photo index is persisted in.
package prefs

import (
	"context"
	"fmt"
)

// Supported drivers.
const (
	DriverSQLite3 = "sqlite3" // github.com/mattn/go-sqlite3 (cgo)
	DriverSQLite  = "sqlite"  // modernc.org/sqlite (pure Go)
	DriverRedis   = "redis"
	DriverMemory  = "memory"
)

// Store is a string key-value store.
// Consumers should depend on this interface rather than a concrete driver.
type Store interface {
	// Get returns the value stored under key; ok is false when absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
	Close() error
}

// Open returns a Store for the given driver.
// dsn is a file path for the SQLite drivers and a redis:// URL for redis.
func Open(driver, dsn string) (Store, error) {
	switch driver {
	case DriverSQLite3, DriverSQLite:
		return OpenSQL(driver, dsn)
	case DriverRedis:
		return OpenRedis(dsn)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("prefs: unsupported driver: %s", driver)
	}
}
