package ingest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"cantontrack/internal/domain"
	"cantontrack/internal/series"
	"cantontrack/internal/util"
)

// Result summarises one committed ingestion cycle.
type Result struct {
	RunID      string
	CapturedAt time.Time
	Upserted   int
	Skipped    int
}

// SetupResult summarises a schema-only pass.
type SetupResult struct {
	Ensured int
	Failed  int
	Skipped int
}

// Job fetches the stats document and writes one sample per key. It is meant
// to be started by an external scheduler; it never loops or retries.
type Job struct {
	source     Source
	store      domain.MetricStore
	normalizer series.Normalizer
	logger     *util.MetricsLogger
	now        func() time.Time
}

type Option func(*Job)

// WithClock replaces time.Now as the capture instant source.
func WithClock(now func() time.Time) Option {
	return func(j *Job) { j.now = now }
}

// WithPrecision sets the fractional digits kept for stored values.
func WithPrecision(precision int) Option {
	return func(j *Job) { j.normalizer = series.Normalizer{Precision: precision} }
}

func NewJob(source Source, store domain.MetricStore, logger *util.MetricsLogger, opts ...Option) *Job {
	j := &Job{
		source:     source,
		store:      store,
		normalizer: series.Normalizer{Precision: series.DefaultPrecision},
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Run performs one all-or-nothing ingestion cycle. Errors wrap
// domain.ErrFetch, domain.ErrStorage or domain.ErrTransaction.
func (j *Job) Run(ctx context.Context) (Result, error) {
	res := Result{RunID: uuid.NewString()}

	doc, err := j.source.Fetch(ctx)
	if err != nil {
		j.logger.LogFields(util.LOG_LEVEL_ERROR, "fetch failed", zap.String("run_id", res.RunID), zap.Error(err))
		return res, err
	}

	// every sample of the cycle shares this instant
	res.CapturedAt = j.now().UTC().Truncate(time.Microsecond)

	tx, err := j.store.Begin(ctx)
	if err != nil {
		return res, fmt.Errorf("%w: %w", domain.ErrTransaction, err)
	}

	for _, key := range sortedKeys(doc) {
		table := series.TableName(key)
		if !series.IsValid(table) {
			res.Skipped++
			j.logger.LogFields(util.LOG_LEVEL_WARN, "skipping key without a usable name",
				zap.String("run_id", res.RunID), zap.String("key", key))
			continue
		}

		if err := tx.EnsureSeries(ctx, table); err != nil {
			j.rollback(tx, res.RunID)
			return Result{RunID: res.RunID, CapturedAt: res.CapturedAt}, fmt.Errorf("%w: %w", domain.ErrStorage, err)
		}

		value := j.normalizer.Normalize(doc[key])
		if err := tx.UpsertSample(ctx, table, domain.Sample{CapturedAt: res.CapturedAt, Value: value}); err != nil {
			j.rollback(tx, res.RunID)
			return Result{RunID: res.RunID, CapturedAt: res.CapturedAt}, fmt.Errorf("%w: %w", domain.ErrTransaction, err)
		}

		res.Upserted++
		j.logger.LogEvent(util.LOG_LEVEL_INFO, key, "->", displayValue(value))
	}

	if err := tx.Commit(); err != nil {
		return Result{RunID: res.RunID, CapturedAt: res.CapturedAt}, fmt.Errorf("%w: commit: %w", domain.ErrTransaction, err)
	}

	j.logger.LogFields(util.LOG_LEVEL_INFO, fmt.Sprintf("Upserted rows: %d", res.Upserted),
		zap.String("run_id", res.RunID),
		zap.Time("captured_at", res.CapturedAt),
		zap.Int("upserted", res.Upserted),
		zap.Int("skipped", res.Skipped))
	return res, nil
}

// Setup creates the series for every key of the current document without
// writing samples. A failing key is logged and counted; the rest still run.
func (j *Job) Setup(ctx context.Context) (SetupResult, error) {
	var res SetupResult

	doc, err := j.source.Fetch(ctx)
	if err != nil {
		return res, err
	}

	for _, key := range sortedKeys(doc) {
		table := series.TableName(key)
		if !series.IsValid(table) {
			res.Skipped++
			continue
		}

		if err := j.ensureOne(ctx, table); err != nil {
			res.Failed++
			j.logger.LogFields(util.LOG_LEVEL_ERROR, "failed creating series", zap.String("table", table), zap.Error(err))
			continue
		}
		res.Ensured++
		j.logger.LogFields(util.LOG_LEVEL_INFO, "series ensured", zap.String("table", table))
	}
	return res, nil
}

func (j *Job) ensureOne(ctx context.Context, table string) error {
	tx, err := j.store.Begin(ctx)
	if err != nil {
		return err
	}
	if err := tx.EnsureSeries(ctx, table); err != nil {
		tx.Rollback()
		return fmt.Errorf("%w: %w", domain.ErrStorage, err)
	}
	return tx.Commit()
}

func (j *Job) rollback(tx domain.SeriesTx, runID string) {
	if err := tx.Rollback(); err != nil {
		j.logger.LogFields(util.LOG_LEVEL_ERROR, "rollback failed", zap.String("run_id", runID), zap.Error(err))
	}
}

func sortedKeys(doc Document) []string {
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func displayValue(v *string) string {
	if v == nil {
		return "NULL"
	}
	return *v
}
