package repository

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"cantontrack/internal/domain"
	"cantontrack/internal/series"
)

// Key layout:
//
//	m/<table>                       series marker, empty value
//	d/<table>/<8 byte sortable ts>  sample, value is the decimal text (empty = NULL)
const (
	markerPrefix = "m/"
	samplePrefix = "d/"
)

// Sample keys hold UnixNano, so only this window is addressable.
var (
	minSampleTime = time.Unix(0, math.MinInt64).UTC()
	maxSampleTime = time.Unix(0, math.MaxInt64).UTC()
)

// BadgerConfig mirrors the knobs the SQL backends get through their DSN.
type BadgerConfig struct {
	Path     string
	InMemory bool
}

// BadgerStore keeps every series in one embedded BadgerDB instance.
type BadgerStore struct {
	db  *badger.DB
	cfg BadgerConfig
}

func NewBadgerStore(cfg BadgerConfig) *BadgerStore {
	return &BadgerStore{cfg: cfg}
}

func (s *BadgerStore) Init(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	opts := badger.DefaultOptions(s.cfg.Path)
	if s.cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}

	// one sample per metric per cycle; small tables are plenty
	opts = opts.
		WithCompression(options.Snappy).
		WithNumVersionsToKeep(1).
		WithMemTableSize(16 << 20).
		WithBlockCacheSize(8 << 20).
		WithIndexCacheSize(4 << 20).
		WithNumCompactors(2).
		WithValueLogFileSize(64 << 20).
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		return fmt.Errorf("error opening badger: %w", err)
	}
	s.db = db

	log.Println("Badger store initialized.")
	return nil
}

func (s *BadgerStore) Begin(ctx context.Context) (domain.SeriesTx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &badgerTx{txn: s.db.NewTransaction(true)}, nil
}

func (s *BadgerStore) ListSeries(ctx context.Context) ([]string, error) {
	tables := []string{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(markerPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			table := string(it.Item().Key()[len(markerPrefix):])
			if series.IsValid(table) {
				tables = append(tables, table)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error listing series: %w", err)
	}
	return tables, nil
}

func (s *BadgerStore) SeriesExists(ctx context.Context, table string) (bool, error) {
	if !series.IsValid(table) {
		return false, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(markerKey(table))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("error checking series %s: %w", table, err)
	}
	return true, nil
}

func (s *BadgerStore) QueryRange(ctx context.Context, table string, q domain.SeriesQuery) ([]domain.Point, error) {
	if !series.IsValid(table) {
		return nil, domain.ErrMetricNotFound
	}

	limit := domain.ClampLimit(q.Limit)
	prefix := seriesPrefix(table)
	points := []domain.Point{}

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		start := prefix
		if q.From != nil {
			switch {
			case q.From.After(maxSampleTime):
				return nil
			case q.From.After(minSampleTime):
				start = sampleKey(table, *q.From)
			}
		}

		for it.Seek(start); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			item := it.Item()
			ts := decodeSampleTime(item.Key()[len(prefix):])
			if q.From != nil && ts.Before(*q.From) {
				continue
			}
			if q.To != nil && ts.After(*q.To) {
				break
			}

			raw, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			points = append(points, badgerPoint(ts, raw))
			if len(points) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error querying series %s: %w", table, err)
	}
	return points, nil
}

func (s *BadgerStore) QueryLatest(ctx context.Context, table string) (*domain.Point, error) {
	if !series.IsValid(table) {
		return nil, domain.ErrMetricNotFound
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var latest *domain.Point
	prefix := seriesPrefix(table)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		// reverse seek lands on the last key <= prefix+0xff..., the newest sample
		it.Seek(append(append([]byte{}, prefix...), bytes.Repeat([]byte{0xff}, 9)...))
		if !it.Valid() {
			return nil
		}

		item := it.Item()
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		p := badgerPoint(decodeSampleTime(item.Key()[len(prefix):]), raw)
		latest = &p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error querying latest sample: %w", err)
	}
	return latest, nil
}

func (s *BadgerStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

type badgerTx struct {
	txn *badger.Txn
}

func (t *badgerTx) EnsureSeries(ctx context.Context, table string) error {
	if !series.IsValid(table) {
		return fmt.Errorf("invalid series name %q", table)
	}
	if err := t.txn.Set(markerKey(table), []byte{}); err != nil {
		return fmt.Errorf("error creating series %s: %w", table, err)
	}
	return nil
}

func (t *badgerTx) UpsertSample(ctx context.Context, table string, sample domain.Sample) error {
	if !series.IsValid(table) {
		return fmt.Errorf("invalid series name %q", table)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var value []byte
	if sample.Value != nil {
		value = []byte(*sample.Value)
	}
	if err := t.txn.Set(sampleKey(table, sample.CapturedAt), value); err != nil {
		return fmt.Errorf("error upserting into %s: %w", table, err)
	}
	return nil
}

func (t *badgerTx) Commit() error {
	return t.txn.Commit()
}

func (t *badgerTx) Rollback() error {
	t.txn.Discard()
	return nil
}

func markerKey(table string) []byte {
	return []byte(markerPrefix + table)
}

func seriesPrefix(table string) []byte {
	return []byte(samplePrefix + table + "/")
}

// sampleKey appends the timestamp with the sign bit flipped so that byte
// order matches time order, pre-1970 included.
func sampleKey(table string, ts time.Time) []byte {
	prefix := seriesPrefix(table)
	key := make([]byte, len(prefix)+8)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], uint64(ts.UnixNano())^(1<<63))
	return key
}

func decodeSampleTime(b []byte) time.Time {
	if len(b) != 8 {
		return time.Time{}
	}
	return time.Unix(0, int64(binary.BigEndian.Uint64(b)^(1<<63))).UTC()
}

func badgerPoint(ts time.Time, raw []byte) domain.Point {
	p := domain.Point{CapturedAt: formatTimestamp(ts)}
	if len(raw) > 0 {
		p.Value = parseValue(sql.NullString{String: string(raw), Valid: true})
	}
	return p
}
