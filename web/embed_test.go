package web

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStaticHandler_InjectsSettings(t *testing.T) {
	handler := StaticHandler(Settings{PollInterval: 15 * time.Second, HistoryLimit: 60})

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/html; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Body.String(), "<head>\n<script>window.__DASHBOARD={pollMs:15000,historyLimit:60};</script>")
}

func TestStaticHandler_ServesAssets(t *testing.T) {
	handler := StaticHandler(Settings{PollInterval: time.Second, HistoryLimit: 1})

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/js/app.js", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "/api/stats")
	assert.Contains(t, rr.Body.String(), "'&from=' + encodeURIComponent(historyFrom())", "sparkline history is bounded to the recent window")

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/missing.txt", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
