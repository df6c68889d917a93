package router

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cantontrack/internal/domain"
	"cantontrack/internal/endpoints"
	"cantontrack/internal/repository"
	"cantontrack/internal/util"
	"cantontrack/web"
)

func seededStore(t *testing.T) domain.MetricStore {
	t.Helper()
	ctx := context.Background()

	store := repository.NewSQLiteStore(filepath.Join(t.TempDir(), "metrics.db"))
	require.NoError(t, store.Init(ctx))
	t.Cleanup(func() { store.Close() })

	v := "42.5"
	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.EnsureSeries(ctx, "cs_total_cc"))
	require.NoError(t, tx.UpsertSample(ctx, "cs_total_cc", domain.Sample{
		CapturedAt: time.Date(2025, 11, 4, 12, 0, 0, 0, time.UTC),
		Value:      &v,
	}))
	require.NoError(t, tx.Commit())
	return store
}

func newTestRouter(t *testing.T) http.Handler {
	return NewRouter(seededStore(t), &util.MetricsLogger{}, web.Settings{PollInterval: 30 * time.Second, HistoryLimit: 120})
}

func TestRouter_Routes(t *testing.T) {
	r := newTestRouter(t)

	tests := []struct {
		path   string
		status int
		body   string
	}{
		{"/api/stats", http.StatusOK, `{"count": 1, "metrics": ["total_cc"]}`},
		{"/api/stats/total_cc", http.StatusOK, `{"metric": "total_cc", "count": 1, "data": [{"captured_at": "2025-11-04T12:00:00Z", "value": 42.5}]}`},
		{"/api/stats/total_cc/latest", http.StatusOK, `{"metric": "total_cc", "data": {"captured_at": "2025-11-04T12:00:00Z", "value": 42.5}}`},
		{"/api/stats/unknown", http.StatusNotFound, ""},
		{"/api/stats/unknown/latest", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, httptest.NewRequest("GET", tt.path, nil))

			assert.Equal(t, tt.status, rr.Code)
			assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
			if tt.body != "" {
				assert.JSONEq(t, tt.body, rr.Body.String())
			} else {
				var apiResponse endpoints.APIResponse
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &apiResponse))
				assert.Equal(t, endpoints.METRIC_NOT_FOUND, apiResponse.ErrorCode)
			}
		})
	}
}

func TestRouter_Dashboard(t *testing.T) {
	r := newTestRouter(t)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "pollMs:30000")
}

func TestRouter_Preflight(t *testing.T) {
	r := newTestRouter(t)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("OPTIONS", "/api/stats", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "GET, HEAD, OPTIONS", rr.Header().Get("Access-Control-Allow-Methods"))
}

func TestRouter_RejectsWrites(t *testing.T) {
	r := newTestRouter(t)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("POST", "/api/stats", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := recoveryMiddleware(&util.MetricsLogger{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	assert.NotPanics(t, func() { handler.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil)) })
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestServe_StopsOnContextCancel(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	listener.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, NewServer(addr, http.NotFoundHandler())) }()

	require.Eventually(t, func() bool {
		conn, err := net.Dial("tcp", addr)
		if err == nil {
			conn.Close()
		}
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
