// Package metrics exposes Prometheus collectors for backtest runs and the
// HTTP server that serves them alongside a health probe.
package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Run outcome labels for RunsTotal.
const (
	StatusOK       = "ok"
	StatusFailed   = "failed"
	StatusCanceled = "canceled"
)

// Metrics holds all Prometheus metrics for the backtest runner.
type Metrics struct {
	RunsTotal     *prometheus.CounterVec // labels: status
	BarsProcessed prometheus.Counter
	TradesTotal   prometheus.Counter
	RunDuration   prometheus.Histogram
	RunsInFlight  prometheus.Gauge

	// Progress ring overflow
	RingOverflow prometheus.Counter
}

// New creates the collectors and registers them with reg. A nil reg uses the
// default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradesim_runs_total",
			Help: "Finished (asset, period) runs by outcome",
		}, []string{"status"}),
		BarsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradesim_bars_processed_total",
			Help: "Bars stepped through strategy targets",
		}),
		TradesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradesim_trades_total",
			Help: "Trades closed across all runs",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tradesim_run_duration_seconds",
			Help:    "Wall time of one (asset, period) run",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}),
		RunsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tradesim_runs_in_flight",
			Help: "Runs currently executing",
		}),
		RingOverflow: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradesim_progress_ring_overflow_total",
			Help: "Progress events dropped because the broadcast ring was full",
		}),
	}

	reg.MustRegister(
		m.RunsTotal,
		m.BarsProcessed,
		m.TradesTotal,
		m.RunDuration,
		m.RunsInFlight,
		m.RingOverflow,
	)
	return m
}

// Backend names reported by /healthz.
const (
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// Probe is the last observation of one backend.
type Probe struct {
	Up        bool      `json:"up"`
	LatencyMs float64   `json:"latency_ms"`
	CheckedAt time.Time `json:"checked_at"`
}

// HealthStatus tracks the backends a batch touched. Only backends that have
// been observed at least once count toward the overall status.
type HealthStatus struct {
	mu        sync.RWMutex
	probes    map[string]Probe
	lastRunAt time.Time
	startedAt time.Time
}

func NewHealthStatus() *HealthStatus {
	return &HealthStatus{probes: make(map[string]Probe), startedAt: time.Now()}
}

func (h *HealthStatus) observe(name string, err error, took time.Duration) {
	h.mu.Lock()
	h.probes[name] = Probe{
		Up:        err == nil,
		LatencyMs: float64(took.Microseconds()) / 1000,
		CheckedAt: time.Now(),
	}
	h.mu.Unlock()
	if err != nil {
		slog.Warn("health probe failed", "backend", name, "err", err)
	}
}

func (h *HealthStatus) set(name string, up bool) {
	var err error
	if !up {
		err = errBackendDown
	}
	h.observe(name, err, 0)
}

var errBackendDown = errors.New("backend down")

func (h *HealthStatus) SetRedisConnected(v bool) { h.set(BackendRedis, v) }
func (h *HealthStatus) SetSQLiteOK(v bool)       { h.set(BackendSQLite, v) }

func (h *HealthStatus) SetLastRunAt(t time.Time) {
	h.mu.Lock()
	h.lastRunAt = t
	h.mu.Unlock()
}

// Probe returns the last observation of a backend.
func (h *HealthStatus) Probe(name string) (Probe, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	p, ok := h.probes[name]
	return p, ok
}

// CheckRedis pings Redis and records the result.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	t0 := time.Now()
	err := rdb.Ping(ctx).Err()
	h.observe(BackendRedis, err, time.Since(t0))
}

// CheckSQLite pings the database and records the result.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	t0 := time.Now()
	err := db.PingContext(ctx)
	h.observe(BackendSQLite, err, time.Since(t0))
}

// StartLivenessChecker re-probes the given backends every interval until ctx
// is done. Either client may be nil.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, db *sql.DB, interval time.Duration) {
	tick := time.NewTicker(interval)
	go func() {
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tick.C:
			}
			pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			if rdb != nil {
				h.CheckRedis(pctx, rdb)
			}
			if db != nil {
				h.CheckSQLite(pctx, db)
			}
			cancel()
		}
	}()
}

type healthBody struct {
	Status    string           `json:"status"`
	Uptime    string           `json:"uptime"`
	Backends  map[string]Probe `json:"backends"`
	LastRunAt string           `json:"last_run_at,omitempty"`
}

// ServeHTTP answers /healthz: healthy when every observed backend is up,
// unhealthy when none is, degraded otherwise.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	h.mu.RLock()
	body := healthBody{
		Status:   "healthy",
		Uptime:   time.Since(h.startedAt).Round(time.Second).String(),
		Backends: make(map[string]Probe, len(h.probes)),
	}
	down := 0
	for name, p := range h.probes {
		body.Backends[name] = p
		if !p.Up {
			down++
		}
	}
	if !h.lastRunAt.IsZero() {
		body.LastRunAt = h.lastRunAt.Format(time.RFC3339)
	}
	h.mu.RUnlock()

	code := http.StatusOK
	switch {
	case down == 0:
	case down == len(body.Backends):
		body.Status, code = "unhealthy", http.StatusServiceUnavailable
	default:
		body.Status, code = "degraded", http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	mux    *http.ServeMux
	srv    *http.Server
}

// NewServer creates a metrics and health server. A nil gatherer serves the
// default registry.
func NewServer(addr string, health *HealthStatus, gatherer prometheus.Gatherer) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.Handle("/healthz", health)

	return &Server{
		health: health,
		addr:   addr,
		mux:    mux,
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Handle mounts an extra handler (the progress feed, for example). Call
// before Start.
func (s *Server) Handle(pattern string, h http.Handler) {
	s.mux.Handle(pattern, h)
}

// Handler returns the server's mux, for tests.
func (s *Server) Handler() http.Handler { return s.mux }

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		slog.Info("metrics server listening", "addr", s.addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server error", "err", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
