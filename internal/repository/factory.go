package repository

import (
	"errors"
	"fmt"

	"cantontrack/internal/domain"
)

var ErrUnsupportedDriver = errors.New("unsupported storage driver")

// Drivers lists the accepted values for the storage driver setting.
var Drivers = []string{"sqlite", "postgres", "mysql", "badger"}

// New builds the configured backend. The store still has to be Init'ed.
func New(driver, dsn string) (domain.MetricStore, error) {
	switch driver {
	case "sqlite", "sqlite3":
		return NewSQLiteStore(dsn), nil
	case "postgres", "postgresql":
		return NewPostgresStore(dsn), nil
	case "mysql", "mariadb":
		return NewMySQLStore(dsn)
	case "badger":
		return NewBadgerStore(BadgerConfig{Path: dsn, InMemory: dsn == ":memory:"}), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDriver, driver)
	}
}
