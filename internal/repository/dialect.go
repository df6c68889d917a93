package repository

import (
	"fmt"
	"strings"
	"time"
)

// dialect holds the engine-specific SQL for the shared sqlStore. Every method
// that takes a table expects an already validated series name.
type dialect interface {
	driverName() string
	createSeries(table string) []string
	upsert(table string) string
	listSeries() string
	seriesExists() string
	placeholder(n int) string
	// capturedAtExpr is the select expression for the timestamp column.
	capturedAtExpr() string
	// ddlOutsideTx is set for engines whose DDL implicitly commits the
	// surrounding transaction.
	ddlOutsideTx() bool
}

func rangeQuery(d dialect, table string, from, to *time.Time) (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)
	if from != nil {
		args = append(args, from.UTC())
		conds = append(conds, "captured_at >= "+d.placeholder(len(args)))
	}
	if to != nil {
		args = append(args, to.UTC())
		conds = append(conds, "captured_at <= "+d.placeholder(len(args)))
	}

	query := fmt.Sprintf("SELECT %s, value FROM %s", d.capturedAtExpr(), table)
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY captured_at ASC LIMIT " + d.placeholder(len(args)+1)
	return query, args
}

func latestQuery(d dialect, table string) string {
	return fmt.Sprintf("SELECT %s, value FROM %s ORDER BY captured_at DESC LIMIT 1", d.capturedAtExpr(), table)
}

type sqliteDialect struct{}

func (sqliteDialect) driverName() string { return "sqlite3" }

func (sqliteDialect) createSeries(table string) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			captured_at DATETIME NOT NULL,
			value NUMERIC NULL
		)`, table),
		fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS %s_ts_unique ON %s (captured_at)", table, table),
	}
}

func (sqliteDialect) upsert(table string) string {
	return fmt.Sprintf(`INSERT INTO %s (captured_at, value) VALUES (?, ?)
		ON CONFLICT (captured_at) DO UPDATE SET value = excluded.value`, table)
}

func (sqliteDialect) listSeries() string {
	return `SELECT name FROM sqlite_master WHERE type = 'table' AND name LIKE 'cs\_%' ESCAPE '\' ORDER BY name`
}

func (sqliteDialect) seriesExists() string {
	return "SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = ? LIMIT 1"
}

func (sqliteDialect) placeholder(int) string { return "?" }

// The driver turns unparseable DATETIME text into a zero time, so read it raw.
func (sqliteDialect) capturedAtExpr() string { return "CAST(captured_at AS TEXT)" }

func (sqliteDialect) ddlOutsideTx() bool { return false }

type postgresDialect struct{}

func (postgresDialect) driverName() string { return "pgx" }

func (postgresDialect) createSeries(table string) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			captured_at TIMESTAMPTZ NOT NULL,
			value NUMERIC NULL
		)`, table),
		fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS %s_ts_unique ON %s (captured_at)", table, table),
	}
}

func (postgresDialect) upsert(table string) string {
	return fmt.Sprintf(`INSERT INTO %s (captured_at, value) VALUES ($1, $2)
		ON CONFLICT (captured_at) DO UPDATE SET value = EXCLUDED.value`, table)
}

func (postgresDialect) listSeries() string {
	return `SELECT tablename FROM pg_tables
		WHERE schemaname = current_schema() AND tablename LIKE 'cs\_%'
		ORDER BY tablename`
}

func (postgresDialect) seriesExists() string {
	return "SELECT 1 FROM pg_tables WHERE schemaname = current_schema() AND tablename = $1 LIMIT 1"
}

func (postgresDialect) placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (postgresDialect) capturedAtExpr() string { return "captured_at" }

func (postgresDialect) ddlOutsideTx() bool { return false }

type mysqlDialect struct{}

func (mysqlDialect) driverName() string { return "mysql" }

func (mysqlDialect) createSeries(table string) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
			captured_at DATETIME(6) NOT NULL,
			value DECIMAL(36,18) NULL,
			PRIMARY KEY (id),
			UNIQUE KEY %s_ts_unique (captured_at)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`, table, table),
	}
}

func (mysqlDialect) upsert(table string) string {
	return fmt.Sprintf(`INSERT INTO %s (captured_at, value) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE value = VALUES(value)`, table)
}

func (mysqlDialect) listSeries() string {
	return `SELECT table_name FROM information_schema.tables
		WHERE table_schema = DATABASE() AND table_name LIKE 'cs\\_%'
		ORDER BY table_name`
}

func (mysqlDialect) seriesExists() string {
	return "SELECT 1 FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ? LIMIT 1"
}

func (mysqlDialect) placeholder(int) string { return "?" }

func (mysqlDialect) capturedAtExpr() string { return "captured_at" }

func (mysqlDialect) ddlOutsideTx() bool { return true }
