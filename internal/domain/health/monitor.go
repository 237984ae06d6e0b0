// Package health tracks rolling error-rate and latency statistics per
// provider and classifies each as healthy, degraded or unhealthy. An
// unhealthy classification feeds the circuit breaker even when no direct
// call failure was observed.
package health

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"fieldops/services/coordination-api/internal/config"
	"fieldops/services/coordination-api/internal/domain/breaker"
	"fieldops/services/coordination-api/internal/domain/events"
	"fieldops/services/coordination-api/internal/domain/provider"
	"fieldops/services/coordination-api/internal/infrastructure/metrics"
	"fieldops/services/coordination-api/internal/infrastructure/scheduler"
)

// ErrUnhealthyClassification marks breaker failures forced by health
// classification rather than a direct call failure.
var ErrUnhealthyClassification = errors.New("provider classified unhealthy")

// Prober performs an active health check against a provider endpoint.
type Prober interface {
	Probe(ctx context.Context, p provider.Provider) (time.Duration, error)
}

// Snapshot is the status API view of one provider's health.
type Snapshot struct {
	ProviderID  string                `json:"providerId"`
	Status      provider.HealthStatus `json:"healthStatus"`
	LatencyP95  time.Duration         `json:"latencyP95"`
	ErrorRate   float64               `json:"errorRate"`
	LastChecked time.Time             `json:"lastChecked,omitempty"`
}

// Monitor maintains per-provider statistics fed by the executor and by its
// own periodic probe sweep.
type Monitor struct {
	cfg      config.HealthConfig
	registry *provider.Registry
	breakers *breaker.Manager
	prober   Prober
	bus      *events.Bus
	clock    scheduler.Clock
	log      zerolog.Logger
	runner   *scheduler.Runner

	mu     sync.RWMutex
	stats  map[string]*providerStats
	status map[string]provider.HealthStatus
}

func NewMonitor(
	cfg config.HealthConfig,
	registry *provider.Registry,
	breakers *breaker.Manager,
	prober Prober,
	bus *events.Bus,
	clock scheduler.Clock,
	runner *scheduler.Runner,
	log zerolog.Logger,
) *Monitor {
	return &Monitor{
		cfg:      cfg,
		registry: registry,
		breakers: breakers,
		prober:   prober,
		bus:      bus,
		clock:    clock,
		runner:   runner,
		log:      log.With().Str("component", "health").Logger(),
		stats:    make(map[string]*providerStats),
		status:   make(map[string]provider.HealthStatus),
	}
}

func (m *Monitor) statsFor(providerID string) *providerStats {
	m.mu.RLock()
	s, ok := m.stats[providerID]
	m.mu.RUnlock()
	if ok {
		return s
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok = m.stats[providerID]; ok {
		return s
	}
	s = newProviderStats(m.cfg.ErrorWindow, m.cfg.LatencySamples)
	m.stats[providerID] = s
	return s
}

// Observe records the outcome of one provider call and reclassifies the
// provider immediately, so detection accelerates after failures.
func (m *Monitor) Observe(providerID string, latency time.Duration, err error) {
	s := m.statsFor(providerID)
	s.observe(m.clock.Now(), latency, err != nil)
	m.classify(providerID)
}

// classify recomputes the provider's status and reacts to transitions.
func (m *Monitor) classify(providerID string) {
	s := m.statsFor(providerID)
	now := m.clock.Now()
	errorRate := s.errorRate(now)
	p95 := s.p95()
	consecutive := s.consecutiveFailures()

	next := provider.StatusHealthy
	switch {
	case errorRate > m.cfg.ErrorRateCeiling, consecutive > m.cfg.ConsecutiveFailureLimit:
		next = provider.StatusUnhealthy
	case m.exceedsLatencyTarget(providerID, p95):
		next = provider.StatusDegraded
	}

	m.mu.Lock()
	prev, known := m.status[providerID]
	m.status[providerID] = next
	m.mu.Unlock()

	metrics.HealthStatusGauge.WithLabelValues(providerID).Set(statusGaugeValue(next))

	if known && prev == next {
		return
	}
	if !known && next == provider.StatusHealthy {
		return
	}

	severity := events.SeverityInfo
	switch next {
	case provider.StatusUnhealthy:
		severity = events.SeverityCritical
	case provider.StatusDegraded:
		severity = events.SeverityWarning
	}
	m.log.Info().
		Str("provider_id", providerID).
		Str("from", string(prev)).
		Str("to", string(next)).
		Float64("error_rate", errorRate).
		Dur("latency_p95", p95).
		Msg("provider health changed")
	m.bus.Publish(events.New(events.TypeHealthChanged, providerID, severity, now, events.HealthChanged{
		From:       string(prev),
		To:         string(next),
		ErrorRate:  errorRate,
		LatencyP95: p95,
	}))

	if next == provider.StatusUnhealthy {
		m.breakers.RecordFailure(providerID, ErrUnhealthyClassification)
	}
}

func (m *Monitor) exceedsLatencyTarget(providerID string, p95 time.Duration) bool {
	p, ok := m.registry.Get(providerID)
	if !ok || p.LatencyTarget <= 0 || p95 <= 0 {
		return false
	}
	return float64(p95) > float64(p.LatencyTarget)*m.cfg.DegradedLatencyMultiple
}

// CheckNow actively probes one provider and records the result.
func (m *Monitor) CheckNow(ctx context.Context, p provider.Provider) {
	latency, err := m.prober.Probe(ctx, p)
	if err != nil {
		m.log.Debug().Str("provider_id", p.ID).Err(err).Msg("health probe failed")
	}
	m.Observe(p.ID, latency, err)
}

// CheckAll probes every configured provider once.
func (m *Monitor) CheckAll(ctx context.Context) {
	for _, p := range m.registry.All() {
		if ctx.Err() != nil {
			return
		}
		m.CheckNow(ctx, p)
	}
}

// Run executes the periodic probe sweep until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	m.runner.Periodic(ctx, "health-sweep", m.cfg.CheckInterval, m.CheckAll)
	return nil
}

// SnapshotFor returns the health view of one provider. Disabled providers
// (budget exhausted) report disabled regardless of measured health.
func (m *Monitor) SnapshotFor(providerID string) Snapshot {
	s := m.statsFor(providerID)
	now := m.clock.Now()

	m.mu.RLock()
	status, known := m.status[providerID]
	m.mu.RUnlock()
	if !known {
		status = provider.StatusHealthy
	}
	if m.registry.IsDisabled(providerID) {
		status = provider.StatusDisabled
	}

	return Snapshot{
		ProviderID:  providerID,
		Status:      status,
		LatencyP95:  s.p95(),
		ErrorRate:   s.errorRate(now),
		LastChecked: s.lastCheckedAt(),
	}
}

// Snapshots returns the health view of every configured provider.
func (m *Monitor) Snapshots() []Snapshot {
	providers := m.registry.All()
	out := make([]Snapshot, 0, len(providers))
	for _, p := range providers {
		out = append(out, m.SnapshotFor(p.ID))
	}
	return out
}

func statusGaugeValue(s provider.HealthStatus) float64 {
	switch s {
	case provider.StatusHealthy:
		return 0
	case provider.StatusDegraded:
		return 1
	case provider.StatusUnhealthy:
		return 2
	default:
		return 3
	}
}
