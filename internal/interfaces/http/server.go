package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// ServerConfig holds the HTTP listener configuration.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Server is the read-only HTTP surface for dashboard consumers: the latest
// score for the gauge view, the full series for charts, and the backtest
// panel. It never mutates anything; every request is a pure recompute (or
// memo hit) over the flat-file datasets.
type Server struct {
	router   *mux.Router
	server   *http.Server
	handlers *Handlers
}

// NewServer wires the router and handler set.
func NewServer(cfg ServerConfig, handlers *Handlers) *Server {
	router := mux.NewRouter()

	s := &Server{
		router:   router,
		handlers: handlers,
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:      router,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
	}

	router.Use(requestIDMiddleware)
	router.Use(metricsMiddleware)

	router.HandleFunc("/health", handlers.Health).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/score", handlers.ScoreSeries).Methods(http.MethodGet)
	api.HandleFunc("/score/latest", handlers.ScoreLatest).Methods(http.MethodGet)
	api.HandleFunc("/score.csv", handlers.ScoreCSV).Methods(http.MethodGet)
	api.HandleFunc("/regime", handlers.Regime).Methods(http.MethodGet)
	api.HandleFunc("/backtest", handlers.Backtest).Methods(http.MethodGet)

	return s
}

// Start runs the listener until the context is canceled, then drains with a
// short shutdown grace period.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.server.Addr).Msg("http server listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		return nil
	}
}

// Router exposes the router for tests.
func (s *Server) Router() *mux.Router {
	return s.router
}

// requestIDMiddleware tags each request with a UUID for log correlation.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

// metricsMiddleware records request counts and latency per route.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tmpl, err := current.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}

		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())

		log.Debug().Str("route", route).Int("status", recorder.status).
			Dur("elapsed", time.Since(start)).Msg("request served")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
