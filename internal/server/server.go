// Package server is the daemon's HTTP boundary: heartbeat ingestion, the
// dashboard and alert queries, and the admin endpoints.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"storewatch/internal/alert"
	"storewatch/internal/check"
	"storewatch/internal/monitor"
	"storewatch/internal/registry"
	"storewatch/internal/sweeper"
)

const shutdownGrace = 10 * time.Second

type Server struct {
	registry   *registry.Registry
	store      Store
	dispatcher *alert.Dispatcher
	sweeper    *sweeper.Sweeper
	recipients RecipientConfig
	clock      monitor.Clock
	corsOrigin string

	startedAt time.Time
	accepted  atomic.Int64
	rejected  atomic.Int64
}

// Config carries the server's collaborators. Store may be nil for a
// memory-only registry (degraded mode); Recipients and Sweeper may be nil in
// tests.
type Config struct {
	Registry   *registry.Registry
	Store      Store
	Dispatcher *alert.Dispatcher
	Sweeper    *sweeper.Sweeper
	Recipients RecipientConfig
	Clock      monitor.Clock
	CORSOrigin string
}

func New(cfg Config) *Server {
	check.Assert(cfg.Registry != nil, "server.New: Registry must not be nil")
	check.Assert(cfg.Dispatcher != nil, "server.New: Dispatcher must not be nil")
	clock := cfg.Clock
	if clock == nil {
		clock = monitor.RealClock{}
	}
	return &Server{
		registry:   cfg.Registry,
		store:      cfg.Store,
		dispatcher: cfg.Dispatcher,
		sweeper:    cfg.Sweeper,
		recipients: cfg.Recipients,
		clock:      clock,
		corsOrigin: cfg.CORSOrigin,
		startedAt:  clock.Now(),
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	r := httprouter.New()

	r.POST("/heartbeat", s.handleHeartbeat(false))
	r.POST("/heartbeat/buffered", s.handleHeartbeat(true))

	r.GET("/dashboard", s.handleDashboard)
	r.GET("/store/:id", s.handleStore)
	r.GET("/alerts", s.handleAlerts)
	r.GET("/alerts/:id", s.handleStoreAlerts)

	r.GET("/trigger-health-check", s.handleTriggerSweep)
	r.GET("/test-email/:id", s.handleTestEmail)
	r.GET("/config/email", s.handleRecipientSnapshot)
	r.POST("/config/reload", s.handleRecipientReload)

	r.GET("/health", s.handleHealth)
	r.Handler(http.MethodGet, "/metrics", promhttp.Handler())

	return s.cors(r)
}

// ListenAndServe runs the HTTP server until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", addr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.corsOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", s.corsOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("encode response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
