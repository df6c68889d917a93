package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"cantontrack/internal/domain"
	"cantontrack/internal/series"
)

// SQLStore implements domain.MetricStore over database/sql. The engine
// specifics live in its dialect.
type SQLStore struct {
	db      *sql.DB
	dsn     string
	dialect dialect
	name    string
}

func newSQLStore(name, dsn string, d dialect) *SQLStore {
	return &SQLStore{dsn: dsn, dialect: d, name: name}
}

func (s *SQLStore) Init(ctx context.Context) error {
	var err error

	s.db, err = sql.Open(s.dialect.driverName(), s.dsn)
	if err != nil {
		return fmt.Errorf("error opening database: %w", err)
	}

	if err = s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("error connecting to database: %w", err)
	}

	log.Printf("%s store initialized.", s.name)
	return nil
}

func (s *SQLStore) Begin(ctx context.Context) (domain.SeriesTx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("error starting transaction: %w", err)
	}
	return &sqlTx{tx: tx, db: s.db, dialect: s.dialect}, nil
}

func (s *SQLStore) ListSeries(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.listSeries())
	if err != nil {
		return nil, fmt.Errorf("error listing series: %w", err)
	}
	defer rows.Close()

	tables := []string{}
	for rows.Next() {
		var table string
		if err := rows.Scan(&table); err != nil {
			return nil, fmt.Errorf("error scanning series name: %w", err)
		}
		if series.IsValid(table) {
			tables = append(tables, table)
		}
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return tables, nil
}

func (s *SQLStore) SeriesExists(ctx context.Context, table string) (bool, error) {
	if !series.IsValid(table) {
		return false, nil
	}

	var one int
	err := s.db.QueryRowContext(ctx, s.dialect.seriesExists(), table).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("error checking series %s: %w", table, err)
	}
	return true, nil
}

func (s *SQLStore) QueryRange(ctx context.Context, table string, q domain.SeriesQuery) ([]domain.Point, error) {
	if !series.IsValid(table) {
		return nil, domain.ErrMetricNotFound
	}

	query, args := rangeQuery(s.dialect, table, q.From, q.To)
	args = append(args, domain.ClampLimit(q.Limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying database: %w", err)
	}
	defer rows.Close()

	points := []domain.Point{}
	for rows.Next() {
		var (
			ts    capturedAt
			value sql.NullString
		)
		if err := rows.Scan(&ts, &value); err != nil {
			return nil, fmt.Errorf("error scanning row of %s: %w", table, err)
		}
		points = append(points, newPoint(ts, value))
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return points, nil
}

func (s *SQLStore) QueryLatest(ctx context.Context, table string) (*domain.Point, error) {
	if !series.IsValid(table) {
		return nil, domain.ErrMetricNotFound
	}

	var (
		ts    capturedAt
		value sql.NullString
	)
	err := s.db.QueryRowContext(ctx, latestQuery(s.dialect, table)).Scan(&ts, &value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error querying latest sample: %w", err)
	}

	p := newPoint(ts, value)
	return &p, nil
}

func (s *SQLStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

type sqlTx struct {
	tx      *sql.Tx
	db      *sql.DB
	dialect dialect
}

func (t *sqlTx) EnsureSeries(ctx context.Context, table string) error {
	if !series.IsValid(table) {
		return fmt.Errorf("invalid series name %q", table)
	}

	for _, stmt := range t.dialect.createSeries(table) {
		var err error
		if t.dialect.ddlOutsideTx() {
			_, err = t.db.ExecContext(ctx, stmt)
		} else {
			_, err = t.tx.ExecContext(ctx, stmt)
		}
		if err != nil {
			return fmt.Errorf("error creating series %s: %w", table, err)
		}
	}
	return nil
}

func (t *sqlTx) UpsertSample(ctx context.Context, table string, sample domain.Sample) error {
	if !series.IsValid(table) {
		return fmt.Errorf("invalid series name %q", table)
	}

	var value interface{}
	if sample.Value != nil {
		value = *sample.Value
	}

	_, err := t.tx.ExecContext(ctx, t.dialect.upsert(table), sample.CapturedAt.UTC(), value)
	if err != nil {
		return fmt.Errorf("error upserting into %s: %w", table, err)
	}
	return nil
}

func (t *sqlTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqlTx) Rollback() error {
	return t.tx.Rollback()
}
