// Package dashboard serves the read-only observability page and its
// JSON APIs, plus the Prometheus scrape endpoint.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/sirupsen/logrus"

	"github.com/rashomon-gh/proton-drive-sync/internal/config"
	"github.com/rashomon-gh/proton-drive-sync/internal/metrics"
	"github.com/rashomon-gh/proton-drive-sync/internal/store"
)

// Server is the read-only dashboard HTTP server.
type Server struct {
	cfg      *config.Manager
	st       *store.Store
	registry *prometheus.Registry
	srv      *http.Server
}

// NewServer assembles the dashboard over the shared store and config.
// The returned server owns a fresh Prometheus registry wired with the
// queue collector; pass it to metrics.New for the daemon counters.
func NewServer(cfg *config.Manager, st *store.Store) *Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		metrics.NewQueueCollector(st),
	)

	return &Server{cfg: cfg, st: st, registry: registry}
}

// Registry exposes the dashboard's Prometheus registry.
func (s *Server) Registry() *prometheus.Registry {
	return s.registry
}

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.cfg.Get()
	addr := net.JoinHostPort(cfg.DashboardHost, fmt.Sprintf("%d", cfg.DashboardPort))

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           handlers.RecoveryHandler()(s.Handler()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logrus.WithField("addr", addr).Info("Dashboard listening")
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// Handler returns the router without starting a listener, for tests.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/api/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/config", s.handleConfig).Methods(http.MethodGet)
	r.HandleFunc("/api/system", s.handleSystem).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return r
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(indexHTML))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	running, err := s.st.HasFlag(ctx, store.FlagRunning)
	if err != nil {
		httpError(w, err)
		return
	}
	paused, err := s.st.HasFlag(ctx, store.FlagPaused)
	if err != nil {
		httpError(w, err)
		return
	}
	counts, err := s.st.StatusCounts(ctx)
	if err != nil {
		httpError(w, err)
		return
	}

	cfg := s.cfg.Get()
	writeJSON(w, map[string]any{
		"running":                running,
		"paused":                 paused,
		"sync_dirs":              len(cfg.SyncDirs),
		"concurrency":            cfg.SyncConcurrency,
		"remote_delete_behavior": cfg.RemoteDeleteBehavior,
		"jobs": map[string]int{
			"pending":    counts.Pending,
			"processing": counts.Processing,
			"synced":     counts.Synced,
			"blocked":    counts.Blocked,
		},
	})
}

func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.cfg.Get())
}

func (s *Server) handleSystem(w http.ResponseWriter, _ *http.Request) {
	out := map[string]any{}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		out["cpu_percent"] = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		out["memory_total"] = vm.Total
		out["memory_used"] = vm.Used
		out["memory_percent"] = vm.UsedPercent
	}

	writeJSON(w, out)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Error("Failed to encode dashboard response")
	}
}

func httpError(w http.ResponseWriter, err error) {
	logrus.WithError(err).Error("Dashboard request failed")
	http.Error(w, "internal error", http.StatusInternalServerError)
}
