package breaker

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"fieldops/services/coordination-api/internal/config"
	"fieldops/services/coordination-api/internal/domain/events"
	"fieldops/services/coordination-api/internal/infrastructure/scheduler"
)

var errCallFailed = errors.New("call failed")

func newTestManager(threshold int, reset time.Duration) (*Manager, *scheduler.FakeClock, *events.Bus) {
	clock := scheduler.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	bus := events.NewBus(zerolog.Nop())
	cfg := config.BreakerConfig{FailureThreshold: threshold, ResetTimeout: reset}
	return NewManager(cfg, bus, clock, zerolog.Nop()), clock, bus
}

func TestAllowClosedByDefault(t *testing.T) {
	m, _, _ := newTestManager(3, 30*time.Second)

	if !m.Allow("stripe") {
		t.Fatalf("expected closed breaker to allow requests")
	}
	if snap := m.Snapshot("stripe"); snap.State != StateClosed {
		t.Fatalf("expected closed state, got %s", snap.StateName)
	}
}

func TestOpensAtFailureThreshold(t *testing.T) {
	m, _, _ := newTestManager(3, 30*time.Second)

	m.RecordFailure("stripe", errCallFailed)
	m.RecordFailure("stripe", errCallFailed)
	if snap := m.Snapshot("stripe"); snap.State != StateClosed {
		t.Fatalf("expected closed below threshold, got %s", snap.StateName)
	}

	m.RecordFailure("stripe", errCallFailed)
	if snap := m.Snapshot("stripe"); snap.State != StateOpen {
		t.Fatalf("expected open at threshold, got %s", snap.StateName)
	}
	if m.Allow("stripe") {
		t.Fatalf("expected open breaker to reject requests")
	}
}

func TestSuccessResetsFailureCount(t *testing.T) {
	m, _, _ := newTestManager(3, 30*time.Second)

	m.RecordFailure("stripe", errCallFailed)
	m.RecordFailure("stripe", errCallFailed)
	m.RecordSuccess("stripe")
	m.RecordFailure("stripe", errCallFailed)
	m.RecordFailure("stripe", errCallFailed)

	if snap := m.Snapshot("stripe"); snap.State != StateClosed {
		t.Fatalf("expected closed after interleaved success, got %s", snap.StateName)
	}
}

func TestHalfOpenAdmitsSingleProbe(t *testing.T) {
	m, clock, _ := newTestManager(1, 30*time.Second)

	m.RecordFailure("stripe", errCallFailed)
	if m.Allow("stripe") {
		t.Fatalf("expected rejection while open")
	}

	clock.Advance(30 * time.Second)
	if !m.Allow("stripe") {
		t.Fatalf("expected probe admission after reset timeout")
	}
	if snap := m.Snapshot("stripe"); snap.State != StateHalfOpen || !snap.ProbeInFlight {
		t.Fatalf("expected half-open with probe in flight, got %+v", snap)
	}
	if m.Allow("stripe") {
		t.Fatalf("expected only one probe while half-open")
	}
}

func TestProbeSuccessCloses(t *testing.T) {
	m, clock, _ := newTestManager(1, 30*time.Second)

	m.RecordFailure("stripe", errCallFailed)
	clock.Advance(30 * time.Second)
	m.Allow("stripe")
	m.RecordSuccess("stripe")

	snap := m.Snapshot("stripe")
	if snap.State != StateClosed {
		t.Fatalf("expected closed after probe success, got %s", snap.StateName)
	}
	if snap.ConsecutiveFailures != 0 {
		t.Fatalf("expected failure count reset, got %d", snap.ConsecutiveFailures)
	}
	if !m.Allow("stripe") {
		t.Fatalf("expected requests after recovery")
	}
}

func TestProbeFailureReopens(t *testing.T) {
	m, clock, _ := newTestManager(1, 30*time.Second)

	m.RecordFailure("stripe", errCallFailed)
	clock.Advance(30 * time.Second)
	m.Allow("stripe")
	m.RecordFailure("stripe", errCallFailed)

	if snap := m.Snapshot("stripe"); snap.State != StateOpen {
		t.Fatalf("expected reopened circuit, got %s", snap.StateName)
	}
	if m.Allow("stripe") {
		t.Fatalf("expected rejection after probe failure")
	}

	// A fresh reset timeout applies from the probe failure.
	clock.Advance(30 * time.Second)
	if !m.Allow("stripe") {
		t.Fatalf("expected another probe after second reset timeout")
	}
}

func TestReleaseProbeFreesSlot(t *testing.T) {
	m, clock, _ := newTestManager(3, 30*time.Second)

	for i := 0; i < 3; i++ {
		m.RecordFailure("stripe", errCallFailed)
	}
	clock.Advance(31 * time.Second)

	if !m.Allow("stripe") {
		t.Fatalf("expected probe to be admitted after reset timeout")
	}

	// The admitted call was never dispatched, so no outcome report exists.
	m.ReleaseProbe("stripe")

	snap := m.Snapshot("stripe")
	if snap.State != StateHalfOpen || snap.ProbeInFlight {
		t.Fatalf("expected half-open with free slot, got %+v", snap)
	}
	if !m.Allow("stripe") {
		t.Fatalf("expected released slot to admit the next probe")
	}
	m.RecordSuccess("stripe")
	if snap := m.Snapshot("stripe"); snap.State != StateClosed {
		t.Fatalf("expected closed after probe success, got %s", snap.StateName)
	}
}

func TestReleaseProbeIsIdempotent(t *testing.T) {
	m, clock, _ := newTestManager(3, 30*time.Second)

	for i := 0; i < 3; i++ {
		m.RecordFailure("stripe", errCallFailed)
	}
	clock.Advance(31 * time.Second)
	if !m.Allow("stripe") {
		t.Fatalf("expected probe to be admitted")
	}

	m.ReleaseProbe("stripe")
	m.ReleaseProbe("stripe")

	if !m.Allow("stripe") {
		t.Fatalf("expected released slot to admit one probe")
	}
	if m.Allow("stripe") {
		t.Fatalf("expected single probe slot regardless of release calls")
	}
}

func TestOpenEmitsCriticalEvent(t *testing.T) {
	m, _, bus := newTestManager(1, 30*time.Second)
	ch, cancel := bus.Subscribe(events.Filter{Types: []events.Type{events.TypeCircuitStateChanged}})
	defer cancel()

	m.RecordFailure("stripe", errCallFailed)

	select {
	case e := <-ch:
		if e.Severity != events.SeverityCritical {
			t.Fatalf("expected critical severity, got %s", e.Severity)
		}
		payload, ok := e.Payload.(events.CircuitStateChanged)
		if !ok {
			t.Fatalf("unexpected payload type %T", e.Payload)
		}
		if payload.From != "closed" || payload.To != "open" {
			t.Fatalf("unexpected transition %s -> %s", payload.From, payload.To)
		}
	default:
		t.Fatalf("expected circuit_state_changed event")
	}
}

func TestResetCloses(t *testing.T) {
	m, _, _ := newTestManager(1, 30*time.Second)

	m.RecordFailure("stripe", errCallFailed)
	m.Reset("stripe")

	snap := m.Snapshot("stripe")
	if snap.State != StateClosed || snap.ConsecutiveFailures != 0 {
		t.Fatalf("expected clean closed record after reset, got %+v", snap)
	}
}

func TestRecordsAreIndependent(t *testing.T) {
	m, _, _ := newTestManager(1, 30*time.Second)

	m.RecordFailure("stripe", errCallFailed)
	if m.Allow("stripe") {
		t.Fatalf("expected stripe open")
	}
	if !m.Allow("twilio") {
		t.Fatalf("expected twilio unaffected")
	}
}
