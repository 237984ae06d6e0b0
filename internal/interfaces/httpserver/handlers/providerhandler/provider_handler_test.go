package providerhandler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"fieldops/services/coordination-api/internal/config"
	"fieldops/services/coordination-api/internal/domain/breaker"
	"fieldops/services/coordination-api/internal/domain/events"
	"fieldops/services/coordination-api/internal/domain/health"
	"fieldops/services/coordination-api/internal/domain/provider"
	"fieldops/services/coordination-api/internal/infrastructure/scheduler"
	coordinationresponses "fieldops/services/coordination-api/internal/interfaces/httpserver/responses/coordination"
)

func newTestHandler(t *testing.T) *ProviderHandler {
	t.Helper()
	clock := scheduler.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	bus := events.NewBus(zerolog.Nop())
	cat := &config.Catalogue{
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
				ID:             "osrm",
				Capability:     "routing",
				BaseURL:        "https://osrm.test",
				Priority:       1,
				CostPerRequest: decimal.Zero,
			},
		},
	}
	registry, err := provider.NewRegistry(cat, bus, clock, zerolog.Nop())
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	breakers := breaker.NewManager(cat.Engine.Breaker, bus, clock, zerolog.Nop())
	monitor := health.NewMonitor(cat.Engine.Health, registry, breakers, nil, bus, clock, scheduler.NewRunner(zerolog.Nop()), zerolog.Nop())
	return NewProviderHandler(registry, breakers, monitor)
}

func TestGetStatusListsProvidersSorted(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := newTestHandler(t)

	rec := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(rec)
	h.GetStatus(ctx)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body coordinationresponses.ProviderStatusList
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Object != "list" || len(body.Data) != 2 {
		t.Fatalf("unexpected body %+v", body)
	}
	if body.Data[0].ProviderID != "google-maps" || body.Data[1].ProviderID != "osrm" {
		t.Fatalf("providers not sorted by id: %+v", body.Data)
	}
	if body.Data[0].HealthStatus != string(provider.StatusHealthy) {
		t.Fatalf("expected healthy default, got %q", body.Data[0].HealthStatus)
	}
	if body.Data[0].CircuitState != "closed" {
		t.Fatalf("expected closed circuit default, got %q", body.Data[0].CircuitState)
	}
}

func TestGetStatusReflectsOpenCircuit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := newTestHandler(t)
	for i := 0; i < 5; i++ {
		h.breakers.RecordFailure("google-maps", health.ErrUnhealthyClassification)
	}

	rec := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(rec)
	h.GetStatus(ctx)

	var body coordinationresponses.ProviderStatusList
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Data[0].CircuitState != "open" {
		t.Fatalf("expected open circuit, got %q", body.Data[0].CircuitState)
	}
}

func TestGetCostsReportsSpend(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := newTestHandler(t)
	if err := h.registry.RecordSpend("google-maps", decimal.NewFromFloat(25)); err != nil {
		t.Fatalf("record spend: %v", err)
	}

	rec := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(rec)
	h.GetCosts(ctx)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body coordinationresponses.ProviderCostList
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Data) != 2 {
		t.Fatalf("unexpected body %+v", body)
	}
	maps := body.Data[0]
	if maps.ProviderID != "google-maps" {
		t.Fatalf("providers not sorted by id: %+v", body.Data)
	}
	if maps.MonthlySpend != "25.0000" || maps.MonthlyBudget != "100.00" {
		t.Fatalf("unexpected spend fields %+v", maps)
	}
	if maps.UtilizationPercentage != "25.00" {
		t.Fatalf("utilization = %q, want 25.00", maps.UtilizationPercentage)
	}
	if maps.Disabled {
		t.Fatalf("provider must not be disabled at 25%% utilization")
	}
}
