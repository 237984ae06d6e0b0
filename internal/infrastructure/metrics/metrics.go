package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Coordination engine metrics
var (
	// Provider attempt outcomes, as seen by the fallback executor.
	AttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fieldops",
			Subsystem: "coordination_api",
			Name:      "provider_attempts_total",
			Help:      "Provider attempts by outcome (success, failure, skip_circuit, skip_ratelimit)",
		},
		[]string{"provider", "outcome"},
	)

	// End-to-end fallback execution duration.
	ExecuteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fieldops",
			Subsystem: "coordination_api",
			Name:      "execute_duration_seconds",
			Help:      "Duration of executeWithFallback calls",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"capability", "result"},
	)

	// Circuit breaker transitions.
	CircuitTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fieldops",
			Subsystem: "coordination_api",
			Name:      "circuit_transitions_total",
			Help:      "Circuit breaker state transitions",
		},
		[]string{"provider", "from", "to"},
	)

	// Health classification per provider (0 healthy, 1 degraded, 2 unhealthy, 3 disabled).
	HealthStatusGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "fieldops",
			Subsystem: "coordination_api",
			Name:      "provider_health_status",
			Help:      "Current health classification per provider",
		},
		[]string{"provider"},
	)

	// Rate limiter rejections.
	RateLimitRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fieldops",
			Subsystem: "coordination_api",
			Name:      "ratelimit_rejections_total",
			Help:      "Requests rejected by the per-provider rate limiter",
		},
		[]string{"provider"},
	)

	// Coordination events dropped for slow subscribers.
	EventsDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fieldops",
			Subsystem: "coordination_api",
			Name:      "events_dropped_total",
			Help:      "Coordination events dropped due to full subscriber buffers",
		},
	)

	// Monthly spend per provider, exported for cost dashboards.
	ProviderMonthlySpend = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "fieldops",
			Subsystem: "coordination_api",
			Name:      "provider_monthly_spend",
			Help:      "Recorded spend for the current month per provider",
		},
		[]string{"provider"},
	)

	// HTTP server metrics.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fieldops",
			Subsystem: "coordination_api",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, endpoint and status",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fieldops",
			Subsystem: "coordination_api",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)
)

// RecordRequest records a completed HTTP request.
func RecordRequest(method, endpoint, status string, duration float64) {
	httpRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// Serve exposes /metrics on its own port until ctx is done.
func Serve(ctx context.Context, port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
