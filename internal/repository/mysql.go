package repository

import (
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
)

// NewMySQLStore works for MySQL and MariaDB. The DSN is rewritten so that
// DATETIME columns scan as UTC time.Time values.
func NewMySQLStore(dsn string) (*SQLStore, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC

	return newSQLStore("MySQL", cfg.FormatDSN(), mysqlDialect{}), nil
}
