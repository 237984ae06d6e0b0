// Package breaker implements the per-provider circuit breaker. A provider in
// sustained failure stops receiving calls immediately, which is what bounds
// failover latency for the executor.
package breaker

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"fieldops/services/coordination-api/internal/config"
	"fieldops/services/coordination-api/internal/domain/events"
	"fieldops/services/coordination-api/internal/infrastructure/metrics"
	"fieldops/services/coordination-api/internal/infrastructure/scheduler"
)

// State is the circuit state for one provider.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Snapshot is the status API view of one breaker record.
type Snapshot struct {
	ProviderID          string    `json:"providerId"`
	State               State     `json:"-"`
	StateName           string    `json:"circuitState"`
	ConsecutiveFailures int       `json:"consecutiveFailures"`
	OpenedAt            time.Time `json:"openedAt,omitempty"`
	ProbeInFlight       bool      `json:"probeInFlight"`
}

type cbRecord struct {
	mu            sync.Mutex
	state         State
	failures      int
	openedAt      time.Time
	probeInFlight bool
}

// Manager holds one breaker record per provider, created on first use.
type Manager struct {
	cfg   config.BreakerConfig
	bus   *events.Bus
	clock scheduler.Clock
	log   zerolog.Logger

	mu      sync.RWMutex
	records map[string]*cbRecord
}

func NewManager(cfg config.BreakerConfig, bus *events.Bus, clock scheduler.Clock, log zerolog.Logger) *Manager {
	return &Manager{
		cfg:     cfg,
		bus:     bus,
		clock:   clock,
		log:     log.With().Str("component", "breaker").Logger(),
		records: make(map[string]*cbRecord),
	}
}

func (m *Manager) record(providerID string) *cbRecord {
	m.mu.RLock()
	rec, ok := m.records[providerID]
	m.mu.RUnlock()
	if ok {
		return rec
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok = m.records[providerID]; ok {
		return rec
	}
	rec = &cbRecord{state: StateClosed}
	m.records[providerID] = rec
	return rec
}

// Allow reports whether a request to the provider may proceed. While open it
// returns false without any network activity; once the reset timeout has
// elapsed it transitions to half-open and admits exactly one probe.
func (m *Manager) Allow(providerID string) bool {
	rec := m.record(providerID)
	rec.mu.Lock()
	defer rec.mu.Unlock()

	switch rec.state {
	case StateClosed:
		return true
	case StateOpen:
		if m.clock.Now().Sub(rec.openedAt) < m.cfg.ResetTimeout {
			return false
		}
		m.transitionLocked(providerID, rec, StateHalfOpen)
		rec.probeInFlight = true
		return true
	case StateHalfOpen:
		if rec.probeInFlight {
			return false
		}
		rec.probeInFlight = true
		return true
	default:
		return false
	}
}

// ReleaseProbe returns a probe slot that Allow admitted but the caller
// never dispatched, such as a rate limit denial between the two. Without
// the release no outcome report would ever arrive and the record would
// hold the slot forever. No-op unless a probe is reserved.
func (m *Manager) ReleaseProbe(providerID string) {
	rec := m.record(providerID)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.state == StateHalfOpen && rec.probeInFlight {
		rec.probeInFlight = false
	}
}

// RecordSuccess reports a successful provider call.
func (m *Manager) RecordSuccess(providerID string) {
	rec := m.record(providerID)
	rec.mu.Lock()
	defer rec.mu.Unlock()

	switch rec.state {
	case StateHalfOpen:
		rec.probeInFlight = false
		rec.failures = 0
		m.transitionLocked(providerID, rec, StateClosed)
	case StateClosed:
		rec.failures = 0
	}
}

// RecordFailure reports a failed provider call.
func (m *Manager) RecordFailure(providerID string, err error) {
	rec := m.record(providerID)
	rec.mu.Lock()
	defer rec.mu.Unlock()

	switch rec.state {
	case StateHalfOpen:
		rec.probeInFlight = false
		rec.openedAt = m.clock.Now()
		m.transitionLocked(providerID, rec, StateOpen)
		m.log.Warn().Str("provider_id", providerID).Err(err).Msg("half-open probe failed, reopening circuit")
	case StateClosed:
		rec.failures++
		if rec.failures >= m.cfg.FailureThreshold {
			rec.openedAt = m.clock.Now()
			m.transitionLocked(providerID, rec, StateOpen)
			m.log.Warn().
				Str("provider_id", providerID).
				Int("failures", rec.failures).
				Err(err).
				Msg("failure threshold reached, opening circuit")
		}
	case StateOpen:
		// Late failure report while already open. Count it so the record
		// reflects reality, no transition.
		rec.failures++
	}
}

// transitionLocked updates state and emits the coordination event. Caller
// holds rec.mu.
func (m *Manager) transitionLocked(providerID string, rec *cbRecord, to State) {
	from := rec.state
	if from == to {
		return
	}
	rec.state = to
	metrics.CircuitTransitionsTotal.WithLabelValues(providerID, from.String(), to.String()).Inc()

	severity := events.SeverityInfo
	switch to {
	case StateOpen:
		severity = events.SeverityCritical
	case StateHalfOpen:
		severity = events.SeverityWarning
	}
	m.bus.Publish(events.New(events.TypeCircuitStateChanged, providerID, severity, m.clock.Now(), events.CircuitStateChanged{
		From:                from.String(),
		To:                  to.String(),
		ConsecutiveFailures: rec.failures,
	}))
}

// Snapshot returns the breaker view for one provider. Providers that have
// never been used report closed.
func (m *Manager) Snapshot(providerID string) Snapshot {
	m.mu.RLock()
	rec, ok := m.records[providerID]
	m.mu.RUnlock()
	if !ok {
		return Snapshot{ProviderID: providerID, State: StateClosed, StateName: StateClosed.String()}
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	return Snapshot{
		ProviderID:          providerID,
		State:               rec.state,
		StateName:           rec.state.String(),
		ConsecutiveFailures: rec.failures,
		OpenedAt:            rec.openedAt,
		ProbeInFlight:       rec.probeInFlight,
	}
}

// Reset closes the breaker for a provider, clearing its counters.
func (m *Manager) Reset(providerID string) {
	rec := m.record(providerID)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.failures = 0
	rec.probeInFlight = false
	m.transitionLocked(providerID, rec, StateClosed)
}
