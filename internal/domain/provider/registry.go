package provider

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"fieldops/services/coordination-api/internal/config"
	"fieldops/services/coordination-api/internal/domain/events"
	"fieldops/services/coordination-api/internal/infrastructure/metrics"
	"fieldops/services/coordination-api/internal/infrastructure/scheduler"
)

// ErrUnknownProvider is returned for lookups of unconfigured ids.
var ErrUnknownProvider = fmt.Errorf("unknown provider")

type record struct {
	cfg Provider

	spendDay    decimal.Decimal
	spendMonth  decimal.Decimal
	dayAnchor   string // YYYY-MM-DD
	monthAnchor string // YYYY-MM
	disabled    bool
}

// Registry is the catalogue of providers and fallback chains. It is built
// from the validated configuration at startup and may be hot-reloaded; spend
// accounting survives reloads for provider ids that remain configured.
type Registry struct {
	mu           sync.RWMutex
	records      map[string]*record
	byCapability map[string][]string
	chains       map[string][]string

	bus   *events.Bus
	clock scheduler.Clock
	log   zerolog.Logger
}

// NewRegistry builds a registry from the catalogue.
func NewRegistry(cat *config.Catalogue, bus *events.Bus, clock scheduler.Clock, log zerolog.Logger) (*Registry, error) {
	r := &Registry{
		bus:   bus,
		clock: clock,
		log:   log.With().Str("component", "registry").Logger(),
	}
	if err := r.Reload(cat); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload swaps the catalogue atomically. Spend state carries over for ids
// present in both the old and new catalogue.
func (r *Registry) Reload(cat *config.Catalogue) error {
	if cat == nil || len(cat.Providers) == 0 {
		return fmt.Errorf("catalogue has no providers")
	}

	records := make(map[string]*record, len(cat.Providers))
	byCapability := make(map[string][]string)
	for _, entry := range cat.Providers {
		p := fromEntry(entry)
		records[p.ID] = &record{
			cfg:        p,
			spendDay:   decimal.Zero,
			spendMonth: decimal.Zero,
		}
		byCapability[p.Capability] = append(byCapability[p.Capability], p.ID)
	}

	// Stable ordering: priority descending, id ascending.
	for capability, ids := range byCapability {
		sort.Slice(ids, func(i, j int) bool {
			a, b := records[ids[i]].cfg, records[ids[j]].cfg
			if a.Priority != b.Priority {
				return a.Priority > b.Priority
			}
			return a.ID < b.ID
		})
		byCapability[capability] = ids
	}

	chains := make(map[string][]string, len(cat.Chains))
	for capability, chain := range cat.Chains {
		if len(chain) == 0 {
			return fmt.Errorf("chain for %q is empty", capability)
		}
		chains[capability] = append([]string(nil), chain...)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for id, old := range r.records {
		if fresh, ok := records[id]; ok {
			fresh.spendDay = old.spendDay
			fresh.spendMonth = old.spendMonth
			fresh.dayAnchor = old.dayAnchor
			fresh.monthAnchor = old.monthAnchor
			fresh.disabled = old.disabled
		}
	}
	r.records = records
	r.byCapability = byCapability
	r.chains = chains
	r.log.Info().Int("providers", len(records)).Int("chains", len(chains)).Msg("provider catalogue loaded")
	return nil
}

func fromEntry(e config.ProviderEntry) Provider {
	return Provider{
		ID:             e.ID,
		DisplayName:    e.DisplayName,
		Capability:     e.Capability,
		BaseURL:        e.BaseURL,
		HealthPath:     e.HealthPath,
		CredentialsRef: e.CredentialsRef,
		Priority:       e.Priority,
		CostPerRequest: e.CostPerRequest,
		MonthlyBudget:  e.MonthlyBudget,
		LatencyTarget:  e.LatencyTarget,
		InvokeTimeout:  e.InvokeTimeout,
		RateWindow:     e.RateWindow,
		RateMax:        e.RateMax,
	}
}

// Get returns the configuration for id.
func (r *Registry) Get(id string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return Provider{}, false
	}
	return rec.cfg, true
}

// All returns every configured provider, ordered by id.
func (r *Registry) All() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Provider, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec.cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ProvidersFor returns the providers offering a capability in priority order.
func (r *Registry) ProvidersFor(capability string) []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.byCapability[capability]
	out := make([]Provider, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.records[id].cfg)
	}
	return out
}

// Chain returns the configured fallback chain for a capability.
func (r *Registry) Chain(capability string) ([]string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	chain, ok := r.chains[capability]
	if !ok {
		return nil, false
	}
	return append([]string(nil), chain...), true
}

// IsDisabled reports whether spend accounting has disabled the provider.
func (r *Registry) IsDisabled(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	return ok && rec.disabled
}

// RecordSpend adds the cost of one successful request to the provider's
// daily and monthly totals, disabling the provider when its monthly budget
// is exhausted.
func (r *Registry) RecordSpend(id string, cost decimal.Decimal) error {
	now := r.clock.Now().UTC()
	day := now.Format("2006-01-02")
	month := now.Format("2006-01")

	r.mu.Lock()
	rec, ok := r.records[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownProvider, id)
	}
	if rec.dayAnchor != day {
		rec.dayAnchor = day
		rec.spendDay = decimal.Zero
	}
	if rec.monthAnchor != month {
		rec.monthAnchor = month
		rec.spendMonth = decimal.Zero
		rec.disabled = false
	}
	rec.spendDay = rec.spendDay.Add(cost)
	rec.spendMonth = rec.spendMonth.Add(cost)

	breached := false
	budget := rec.cfg.MonthlyBudget
	if !rec.disabled && budget.IsPositive() && rec.spendMonth.GreaterThanOrEqual(budget) {
		rec.disabled = true
		breached = true
	}
	spend := rec.spendMonth
	r.mu.Unlock()

	spendFloat, _ := spend.Float64()
	metrics.ProviderMonthlySpend.WithLabelValues(id).Set(spendFloat)

	if breached {
		r.log.Warn().
			Str("provider_id", id).
			Str("spend", spend.String()).
			Str("budget", budget.String()).
			Msg("monthly budget exhausted, disabling provider")
		r.bus.Publish(events.New(events.TypeBudgetBreach, id, events.SeverityCritical, now, events.BudgetBreach{
			Kind:  events.BreachMonthlyBudget,
			Limit: budget.String(),
			Used:  spend.String(),
		}))
	}
	return nil
}

// BudgetSnapshot returns the cost API view for one provider.
func (r *Registry) BudgetSnapshot(id string) (BudgetSnapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return BudgetSnapshot{}, false
	}
	return r.snapshotLocked(rec), true
}

// BudgetSnapshots returns the cost API view for every provider, ordered by id.
func (r *Registry) BudgetSnapshots() []BudgetSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]BudgetSnapshot, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, r.snapshotLocked(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProviderID < out[j].ProviderID })
	return out
}

func (r *Registry) snapshotLocked(rec *record) BudgetSnapshot {
	utilization := 0.0
	if rec.cfg.MonthlyBudget.IsPositive() {
		ratio, _ := rec.spendMonth.Div(rec.cfg.MonthlyBudget).Float64()
		utilization = ratio * 100
	}
	return BudgetSnapshot{
		ProviderID:     rec.cfg.ID,
		DailyCost:      rec.spendDay,
		MonthlySpend:   rec.spendMonth,
		MonthlyBudget:  rec.cfg.MonthlyBudget,
		UtilizationPct: utilization,
		Disabled:       rec.disabled,
	}
}

// Rollover re-enables providers and clears spend counters whose day or month
// anchors have passed. Invoked by the scheduled rollover job.
func (r *Registry) Rollover() {
	now := r.clock.Now().UTC()
	day := now.Format("2006-01-02")
	month := now.Format("2006-01")

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.dayAnchor != "" && rec.dayAnchor != day {
			rec.dayAnchor = day
			rec.spendDay = decimal.Zero
		}
		if rec.monthAnchor != "" && rec.monthAnchor != month {
			rec.monthAnchor = month
			rec.spendMonth = decimal.Zero
			if rec.disabled {
				rec.disabled = false
				r.log.Info().Str("provider_id", rec.cfg.ID).Msg("monthly budget window rolled over, re-enabling provider")
			}
		}
	}
}
