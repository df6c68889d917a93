package endpoints

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"cantontrack/internal/domain"
	"cantontrack/internal/series"
	"cantontrack/internal/util"
)

type MetricList struct {
	Count   int      `json:"count"`
	Metrics []string `json:"metrics"`
}

type SeriesResponse struct {
	Metric string         `json:"metric"`
	Count  int            `json:"count"`
	Data   []domain.Point `json:"data"`
}

type LatestResponse struct {
	Metric string        `json:"metric"`
	Data   *domain.Point `json:"data"`
}

// Stats serves the read-only stats API.
type Stats struct {
	Response APIResponse
	logger   *util.MetricsLogger
	store    domain.MetricStore
}

func (s *Stats) Init(store domain.MetricStore, webSlogger *util.MetricsLogger) {
	s.store = store
	s.logger = webSlogger
}

func (s *Stats) ListMetricsHandler(w http.ResponseWriter, r *http.Request) {
	if !s.allowGet(w, r) {
		return
	}

	tables, err := s.store.ListSeries(r.Context())
	if err != nil {
		s.fail(w, "ListSeries()", err)
		return
	}

	metrics := make([]string, 0, len(tables))
	for _, table := range tables {
		metrics = append(metrics, series.MetricName(table))
	}

	s.Response.WriteResultResponse(w, r, MetricList{Count: len(metrics), Metrics: metrics})
}

func (s *Stats) GetSeriesHandler(w http.ResponseWriter, r *http.Request) {
	if !s.allowGet(w, r) {
		return
	}

	metric := mux.Vars(r)["metric"]
	table, ok := s.lookup(w, r, metric)
	if !ok {
		return
	}

	query := r.URL.Query()
	q := domain.SeriesQuery{
		From:  parseBound(query.Get("from")),
		To:    parseBound(query.Get("to")),
		Limit: parseLimit(query.Get("limit")),
	}

	points, err := s.store.QueryRange(r.Context(), table, q)
	if err != nil {
		s.fail(w, "QueryRange()", err)
		return
	}
	if points == nil {
		points = []domain.Point{}
	}

	s.Response.WriteResultResponse(w, r, SeriesResponse{Metric: metric, Count: len(points), Data: points})
}

func (s *Stats) GetLatestHandler(w http.ResponseWriter, r *http.Request) {
	if !s.allowGet(w, r) {
		return
	}

	metric := mux.Vars(r)["metric"]
	table, ok := s.lookup(w, r, metric)
	if !ok {
		return
	}

	point, err := s.store.QueryLatest(r.Context(), table)
	if err != nil {
		s.fail(w, "QueryLatest()", err)
		return
	}

	s.Response.WriteResultResponse(w, r, LatestResponse{Metric: metric, Data: point})
}

// lookup resolves metric to its table and writes a 404 when no such series
// exists.
func (s *Stats) lookup(w http.ResponseWriter, r *http.Request, metric string) (string, bool) {
	notFound := fmt.Errorf("%w: %s", domain.ErrMetricNotFound, metric)

	table := series.TableName(metric)
	if !series.IsValid(table) {
		s.logger.LogEvent(util.LOG_LEVEL_WARN, "Unknown metric requested -", metric)
		s.Response.WriteErrorResponseWithStatusCode(w, notFound, http.StatusNotFound)
		return "", false
	}

	exists, err := s.store.SeriesExists(r.Context(), table)
	if err != nil {
		s.fail(w, "SeriesExists()", err)
		return "", false
	}
	if !exists {
		s.logger.LogEvent(util.LOG_LEVEL_WARN, "Unknown metric requested -", metric)
		s.Response.WriteErrorResponseWithStatusCode(w, notFound, http.StatusNotFound)
		return "", false
	}
	return table, true
}

func (s *Stats) allowGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return true
	}
	s.logger.LogEvent(util.LOG_LEVEL_ERROR, "Method Not Allowed. Only GET requests are supported", http.StatusMethodNotAllowed)
	s.Response.WriteErrorResponseWithStatusCode(w, ErrMethodNotAllowed, http.StatusMethodNotAllowed)
	return false
}

func (s *Stats) fail(w http.ResponseWriter, op string, err error) {
	if isCancellation(err) {
		s.logger.LogEvent(util.LOG_LEVEL_WARN, "Context cancelled during", op)
		s.Response.WriteErrorResponseWithStatusCode(w, fmt.Errorf("%w: %w", ErrRequestCancelled, err), http.StatusRequestTimeout)
		return
	}
	s.logger.LogEvent(util.LOG_LEVEL_ERROR, "Occured while", op, "Err -", err)
	s.Response.WriteErrorResponse(w, err)
}
