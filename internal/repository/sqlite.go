package repository

import (
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// NewSQLiteStore stores each series as a table in the SQLite file at path.
func NewSQLiteStore(path string) *SQLStore {
	return newSQLStore("SQLite", sqliteDSN(path), sqliteDialect{})
}

// sqliteDSN adds a busy timeout so the API can read while an ingestion
// cycle holds the write lock.
func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_busy_timeout=5000&_foreign_keys=on"
}
