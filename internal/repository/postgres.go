package repository

import (
	_ "github.com/jackc/pgx/v5/stdlib"
)

// NewPostgresStore takes a libpq style DSN or a postgres:// URL.
func NewPostgresStore(dsn string) *SQLStore {
	return newSQLStore("Postgres", dsn, postgresDialect{})
}
