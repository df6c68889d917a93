package web

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"strings"
	"time"
)

//go:embed static/*
var staticFS embed.FS

// Settings are handed to the dashboard script through index.html.
type Settings struct {
	PollInterval time.Duration
	HistoryLimit int
}

// StaticHandler serves the embedded dashboard. index.html gets the polling
// settings injected right after <head>.
func StaticHandler(settings Settings) http.Handler {
	sub, _ := fs.Sub(staticFS, "static")
	fileServer := http.FileServer(http.FS(sub))

	indexBytes, _ := fs.ReadFile(sub, "index.html")
	injected := strings.Replace(string(indexBytes),
		"<head>",
		"<head>\n"+settingsScript(settings),
		1,
	)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" || r.URL.Path == "/index.html" {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Header().Set("Cache-Control", "no-cache")
			w.Write([]byte(injected))
			return
		}
		fileServer.ServeHTTP(w, r)
	})
}

func settingsScript(s Settings) string {
	return fmt.Sprintf("<script>window.__DASHBOARD={pollMs:%d,historyLimit:%d};</script>",
		s.PollInterval.Milliseconds(), s.HistoryLimit)
}
