package provider

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"fieldops/services/coordination-api/internal/config"
	"fieldops/services/coordination-api/internal/domain/events"
	"fieldops/services/coordination-api/internal/infrastructure/scheduler"
)

func testCatalogue() *config.Catalogue {
	return &config.Catalogue{
		Engine: config.DefaultEngineConfig(),
		Providers: []config.ProviderEntry{
			{
				ID:             "google-maps",
				Capability:     "routing",
				BaseURL:        "https://maps.test",
				Priority:       10,
				CostPerRequest: decimal.NewFromFloat(0.005),
				MonthlyBudget:  decimal.NewFromInt(100),
			},
			{
				ID:             "mapbox",
				Capability:     "routing",
				BaseURL:        "https://mapbox.test",
				Priority:       5,
				CostPerRequest: decimal.NewFromFloat(0.004),
			},
			{
				ID:             "osrm",
				Capability:     "routing",
				BaseURL:        "https://osrm.test",
				Priority:       5,
				CostPerRequest: decimal.Zero,
			},
		},
		Chains: map[string][]string{
			"routing": {"google-maps", "mapbox", "osrm"},
		},
	}
}

func newTestRegistry(t *testing.T) (*Registry, *scheduler.FakeClock, *events.Bus) {
	t.Helper()
	clock := scheduler.NewFakeClock(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	bus := events.NewBus(zerolog.Nop())
	r, err := NewRegistry(testCatalogue(), bus, clock, zerolog.Nop())
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	return r, clock, bus
}

func TestProvidersForPriorityOrder(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	providers := r.ProvidersFor("routing")
	if len(providers) != 3 {
		t.Fatalf("expected 3 routing providers, got %d", len(providers))
	}
	// Priority descending, id ascending on ties.
	want := []string{"google-maps", "mapbox", "osrm"}
	for i, p := range providers {
		if p.ID != want[i] {
			t.Fatalf("position %d: got %s, want %s", i, p.ID, want[i])
		}
	}
}

func TestChainReturnsCopy(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	chain, ok := r.Chain("routing")
	if !ok {
		t.Fatalf("expected routing chain")
	}
	chain[0] = "mutated"

	fresh, _ := r.Chain("routing")
	if fresh[0] != "google-maps" {
		t.Fatalf("chain mutated through returned slice")
	}
}

func TestRecordSpendAccumulates(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	for i := 0; i < 3; i++ {
		if err := r.RecordSpend("google-maps", decimal.NewFromFloat(0.005)); err != nil {
			t.Fatalf("record spend: %v", err)
		}
	}

	snap, ok := r.BudgetSnapshot("google-maps")
	if !ok {
		t.Fatalf("expected budget snapshot")
	}
	if !snap.MonthlySpend.Equal(decimal.NewFromFloat(0.015)) {
		t.Fatalf("monthly spend = %s, want 0.015", snap.MonthlySpend)
	}
	if !snap.DailyCost.Equal(decimal.NewFromFloat(0.015)) {
		t.Fatalf("daily cost = %s, want 0.015", snap.DailyCost)
	}
	if snap.Disabled {
		t.Fatalf("provider should not be disabled below budget")
	}
}

func TestRecordSpendUnknownProvider(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	if err := r.RecordSpend("nope", decimal.NewFromInt(1)); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}

func TestBudgetExhaustionDisables(t *testing.T) {
	r, _, bus := newTestRegistry(t)
	ch, cancel := bus.Subscribe(events.Filter{Types: []events.Type{events.TypeBudgetBreach}})
	defer cancel()

	if err := r.RecordSpend("google-maps", decimal.NewFromInt(100)); err != nil {
		t.Fatalf("record spend: %v", err)
	}

	if !r.IsDisabled("google-maps") {
		t.Fatalf("expected provider disabled at budget")
	}

	select {
	case e := <-ch:
		if e.Severity != events.SeverityCritical {
			t.Fatalf("expected critical severity, got %s", e.Severity)
		}
		payload := e.Payload.(events.BudgetBreach)
		if payload.Kind != events.BreachMonthlyBudget {
			t.Fatalf("expected monthly budget breach, got %s", payload.Kind)
		}
	default:
		t.Fatalf("expected budget breach event")
	}

	// Further spend must not re-emit the breach.
	_ = r.RecordSpend("google-maps", decimal.NewFromInt(1))
	select {
	case <-ch:
		t.Fatalf("breach event emitted twice")
	default:
	}
}

func TestUnlimitedBudgetNeverDisables(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	if err := r.RecordSpend("mapbox", decimal.NewFromInt(100000)); err != nil {
		t.Fatalf("record spend: %v", err)
	}
	if r.IsDisabled("mapbox") {
		t.Fatalf("provider without budget must never be disabled")
	}
}

func TestRolloverReenables(t *testing.T) {
	r, clock, _ := newTestRegistry(t)

	_ = r.RecordSpend("google-maps", decimal.NewFromInt(150))
	if !r.IsDisabled("google-maps") {
		t.Fatalf("expected disabled provider")
	}

	clock.Advance(32 * 24 * time.Hour)
	r.Rollover()

	if r.IsDisabled("google-maps") {
		t.Fatalf("expected provider re-enabled after month rollover")
	}
	snap, _ := r.BudgetSnapshot("google-maps")
	if !snap.MonthlySpend.IsZero() || !snap.DailyCost.IsZero() {
		t.Fatalf("expected spend counters cleared, got %+v", snap)
	}
}

func TestReloadPreservesSpend(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	_ = r.RecordSpend("google-maps", decimal.NewFromInt(10))

	cat := testCatalogue()
	cat.Providers = cat.Providers[:2] // drop osrm
	if err := r.Reload(cat); err != nil {
		t.Fatalf("reload: %v", err)
	}

	snap, ok := r.BudgetSnapshot("google-maps")
	if !ok || !snap.MonthlySpend.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected spend preserved across reload, got %+v", snap)
	}
	if _, ok := r.Get("osrm"); ok {
		t.Fatalf("expected osrm removed by reload")
	}
}

func TestReloadRejectsEmptyCatalogue(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	if err := r.Reload(&config.Catalogue{}); err == nil {
		t.Fatalf("expected error for empty catalogue")
	}
	// Previous catalogue must remain in effect.
	if _, ok := r.Get("google-maps"); !ok {
		t.Fatalf("expected previous catalogue to survive a failed reload")
	}
}
