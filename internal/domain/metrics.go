package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrFetch          = errors.New("fetch failed")
	ErrStorage        = errors.New("storage failure")
	ErrTransaction    = errors.New("transaction failed")
	ErrMetricNotFound = errors.New("metric not found")
)

const (
	DefaultSeriesLimit = 1000
	MaxSeriesLimit     = 50000
)

// Sample is one observation written by the ingestion job. A nil Value is
// stored as NULL.
type Sample struct {
	CapturedAt time.Time
	Value      *string
}

// Point is a sample as presented by the query API.
type Point struct {
	CapturedAt string   `json:"captured_at"`
	Value      *float64 `json:"value"`
}

// SeriesQuery bounds a history read. Nil bounds are open.
type SeriesQuery struct {
	From  *time.Time
	To    *time.Time
	Limit int
}

// ClampLimit forces limit into [1, MaxSeriesLimit].
func ClampLimit(limit int) int {
	if limit < 1 {
		return 1
	}
	if limit > MaxSeriesLimit {
		return MaxSeriesLimit
	}
	return limit
}

// SeriesTx groups the writes of one ingestion cycle.
type SeriesTx interface {
	EnsureSeries(ctx context.Context, table string) error
	UpsertSample(ctx context.Context, table string, sample Sample) error
	Commit() error
	Rollback() error
}

type MetricStore interface {
	Init(ctx context.Context) error
	Begin(ctx context.Context) (SeriesTx, error)
	ListSeries(ctx context.Context) ([]string, error)
	SeriesExists(ctx context.Context, table string) (bool, error)
	QueryRange(ctx context.Context, table string, q SeriesQuery) ([]Point, error)
	QueryLatest(ctx context.Context, table string) (*Point, error)
	Close() error
}
