package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the signal engine.
type Metrics struct {
	SessionsActive prometheus.Gauge
	SessionsTotal  *prometheus.CounterVec // labels: outcome=closed|failed

	// Fetch path
	FetchAttempts prometheus.Counter
	FetchRetries  prometheus.Counter
	FetchFailures *prometheus.CounterVec // labels: kind=transient|permanent|exhausted

	// Compute path
	BarsProcessed prometheus.Counter
	BarsDropped   prometheus.Counter     // stale or duplicate timestamps
	SignalsTotal  *prometheus.CounterVec // labels: action=BUY|SELL|HOLD

	// Emission path
	EmitLatency prometheus.Histogram // bar timestamp to WS emit
	WSClients   prometheus.Gauge

	// Redis publisher circuit breaker
	BreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	BreakerTrips prometheus.Counter
	CacheDrops   prometheus.Counter // signals not cached while breaker open
}

// New registers and returns all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sigengine_sessions_active",
			Help: "Streaming sessions currently running",
		}),
		SessionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sigengine_sessions_total",
			Help: "Completed streaming sessions by outcome",
		}, []string{"outcome"}),

		FetchAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sigengine_fetch_attempts_total",
			Help: "Bar fetch attempts including retries",
		}),
		FetchRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sigengine_fetch_retries_total",
			Help: "Bar fetch retry attempts after transient failures",
		}),
		FetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sigengine_fetch_failures_total",
			Help: "Terminal bar fetch failures by kind",
		}, []string{"kind"}),

		BarsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sigengine_bars_processed_total",
			Help: "Bars applied to indicator state",
		}),
		BarsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sigengine_bars_dropped_total",
			Help: "Bars rejected for stale or duplicate timestamps",
		}),
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sigengine_signals_total",
			Help: "Combined signals produced by final action",
		}, []string{"action"}),
		EmitLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sigengine_emit_latency_seconds",
			Help:    "Latency from bar timestamp to WebSocket emit",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sigengine_ws_clients",
			Help: "Connected WebSocket clients",
		}),

		BreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sigengine_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		BreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sigengine_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),
		CacheDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sigengine_cache_drops_total",
			Help: "Signals not written to the latest cache while the breaker was open",
		}),
	}

	prometheus.MustRegister(
		m.SessionsActive,
		m.SessionsTotal,
		m.FetchAttempts,
		m.FetchRetries,
		m.FetchFailures,
		m.BarsProcessed,
		m.BarsDropped,
		m.SignalsTotal,
		m.EmitLatency,
		m.WSClients,
		m.BreakerState,
		m.BreakerTrips,
		m.CacheDrops,
	)

	return m
}

// HealthStatus represents the engine's dependency health.
type HealthStatus struct {
	mu sync.RWMutex

	SourceOK       bool      `json:"source_ok"`
	RedisConnected bool      `json:"redis_connected"`
	LastEmitTime   time.Time `json:"last_emit_time"`

	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SourceLatencyMs float64   `json:"source_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		SourceOK:  true,
		StartedAt: time.Now(),
	}
}

func (h *HealthStatus) SetSourceOK(v bool) {
	h.mu.Lock()
	h.SourceOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastEmitTime(t time.Time) {
	h.mu.Lock()
	h.LastEmitTime = t
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSource pings the bar database and records latency + health.
func (h *HealthStatus) CheckSource(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SourceOK = err == nil
	h.SourceLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks. rdb and db may be
// nil when the corresponding backend is not configured.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, db *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if db != nil {
					h.CheckSource(probeCtx, db)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK
	if !h.SourceOK {
		overallStatus = "unhealthy"
		httpCode = http.StatusServiceUnavailable
	}

	emitAge := ""
	if !h.LastEmitTime.IsZero() {
		emitAge = time.Since(h.LastEmitTime).Round(time.Millisecond).String()
	}

	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		SourceOK        bool    `json:"source_ok"`
		SourceLatencyMs float64 `json:"source_latency_ms"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		LastEmitTime    string  `json:"last_emit_time"`
		EmitAge         string  `json:"emit_age"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		SourceOK:        h.SourceOK,
		SourceLatencyMs: h.SourceLatencyMs,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		LastEmitTime:    h.LastEmitTime.Format(time.RFC3339),
		EmitAge:         emitAge,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
