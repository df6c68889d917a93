package router

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"cantontrack/internal/domain"
	"cantontrack/internal/endpoints"
	"cantontrack/internal/util"
	"cantontrack/web"
)

const shutdownTimeout = 25 * time.Second

func NewRouter(metricStore domain.MetricStore, webSlogger *util.MetricsLogger, dashboard web.Settings) *mux.Router {
	r := mux.NewRouter()

	addRoutes(r, metricStore, webSlogger, dashboard)

	r.Use(recoveryMiddleware(webSlogger))
	r.Use(corsMiddleware)
	r.Use(loggingMiddleware(webSlogger))

	return r
}

func addRoutes(r *mux.Router, metricStore domain.MetricStore, webSlogger *util.MetricsLogger, dashboard web.Settings) {

	statsHandler := &endpoints.Stats{}
	statsHandler.Init(metricStore, webSlogger)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/stats", statsHandler.ListMetricsHandler).Methods("GET", "HEAD", "OPTIONS")
	api.HandleFunc("/stats/{metric}", statsHandler.GetSeriesHandler).Methods("GET", "HEAD", "OPTIONS")
	api.HandleFunc("/stats/{metric}/latest", statsHandler.GetLatestHandler).Methods("GET", "HEAD", "OPTIONS")

	r.PathPrefix("/").Handler(web.StaticHandler(dashboard)).Methods("GET", "HEAD")
}

func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

// Run serves until SIGINT/SIGTERM and then drains in-flight requests.
func Run(addr string, metricStore domain.MetricStore, webSlogger *util.MetricsLogger, dashboard web.Settings) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return Serve(ctx, NewServer(addr, NewRouter(metricStore, webSlogger, dashboard)))
}

// Serve runs server until ctx is done.
func Serve(ctx context.Context, server *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		log.Printf("Listening on %s", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Println("Shutting down server...")
	if err := gracefulShutdown(server, shutdownTimeout); err != nil {
		log.Printf("Server stopped with error: %s", err.Error())
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Println("Server stopped gracefully.")
	return nil
}

func gracefulShutdown(server *http.Server, maximumTime time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), maximumTime)
	defer cancel()

	return server.Shutdown(ctx)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(logger *util.MetricsLogger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.LogFields(util.LOG_LEVEL_INFO, fmt.Sprintf("Request: %s %s", r.Method, r.RequestURI),
				zap.Int("status", rec.status),
				zap.Duration("elapsed", time.Since(start)))
		})
	}
}

func recoveryMiddleware(logger *util.MetricsLogger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.LogEvent(util.LOG_LEVEL_ERROR, "panic while serving", r.URL.Path, "-", err)
					endpoints.APIResponse{}.WriteErrorResponseWithStatusCode(w,
						errors.New("internal server error"), http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// corsMiddleware lets a dashboard hosted elsewhere read the API.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, If-None-Match")
		w.Header().Set("Access-Control-Expose-Headers", "ETag")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
