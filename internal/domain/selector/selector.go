// Package selector ranks healthy, non-open-circuit providers for a
// capability by a weighted cost/latency/reliability score. Selection is
// deterministic for identical inputs.
package selector

import (
	"errors"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"fieldops/services/coordination-api/internal/config"
	"fieldops/services/coordination-api/internal/domain/breaker"
	"fieldops/services/coordination-api/internal/domain/health"
	"fieldops/services/coordination-api/internal/domain/provider"
)

// ErrNoneAvailable is returned when no candidate passes the filters.
var ErrNoneAvailable = errors.New("no provider available")

// Constraints narrows the candidate set for one selection.
type Constraints struct {
	MaxCost        *decimal.Decimal
	MaxLatency     time.Duration
	MinReliability float64
}

type candidate struct {
	id          string
	priority    int
	cost        float64
	latency     float64
	reliability float64
	score       float64
}

// Selector scores providers using measured health statistics; weights come
// from configuration.
type Selector struct {
	weights  config.SelectorWeights
	registry *provider.Registry
	breakers *breaker.Manager
	monitor  *health.Monitor
	log      zerolog.Logger
}

func NewSelector(weights config.SelectorWeights, registry *provider.Registry, breakers *breaker.Manager, monitor *health.Monitor, log zerolog.Logger) *Selector {
	return &Selector{
		weights:  weights,
		registry: registry,
		breakers: breakers,
		monitor:  monitor,
		log:      log.With().Str("component", "selector").Logger(),
	}
}

// SelectOptimal returns the best provider id for the capability.
func (s *Selector) SelectOptimal(capability string, c Constraints) (string, error) {
	ranked, err := s.RankedChain(capability, c)
	if err != nil {
		return "", err
	}
	return ranked[0], nil
}

// RankedChain returns every admissible provider for the capability, best
// first, for use as the executor's fallback chain.
func (s *Selector) RankedChain(capability string, c Constraints) ([]string, error) {
	candidates := s.admissible(capability, c)
	if len(candidates) == 0 {
		return nil, ErrNoneAvailable
	}

	normalize(candidates)
	for i := range candidates {
		cand := &candidates[i]
		cand.score = s.weights.Cost*cand.cost +
			s.weights.Latency*cand.latency +
			s.weights.Reliability*cand.reliability
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.score != b.score {
			return a.score > b.score
		}
		// Tie-break order: lowest cost, lowest latency, highest
		// reliability, highest registry priority, then id for a total
		// order.
		pa, _ := s.registry.Get(a.id)
		pb, _ := s.registry.Get(b.id)
		ca, _ := pa.CostPerRequest.Float64()
		cb, _ := pb.CostPerRequest.Float64()
		if ca != cb {
			return ca < cb
		}
		if a.latency != b.latency {
			return a.latency > b.latency // normalized, higher is better (lower raw latency)
		}
		if a.reliability != b.reliability {
			return a.reliability > b.reliability
		}
		if a.priority != b.priority {
			return a.priority > b.priority
		}
		return a.id < b.id
	})

	out := make([]string, len(candidates))
	for i, cand := range candidates {
		out[i] = cand.id
	}
	return out, nil
}

// admissible filters out open circuits, unhealthy or disabled providers and
// candidates violating the caller's constraints.
func (s *Selector) admissible(capability string, c Constraints) []candidate {
	providers := s.registry.ProvidersFor(capability)
	candidates := make([]candidate, 0, len(providers))
	for _, p := range providers {
		if s.breakers.Snapshot(p.ID).State == breaker.StateOpen {
			continue
		}
		snap := s.monitor.SnapshotFor(p.ID)
		if snap.Status == provider.StatusUnhealthy || snap.Status == provider.StatusDisabled {
			continue
		}
		if c.MaxCost != nil && p.CostPerRequest.GreaterThan(*c.MaxCost) {
			continue
		}

		latency := snap.LatencyP95
		if latency <= 0 {
			// No measurements yet, fall back to the configured target.
			latency = p.LatencyTarget
		}
		if c.MaxLatency > 0 && latency > c.MaxLatency {
			continue
		}
		reliability := 1 - snap.ErrorRate
		if c.MinReliability > 0 && reliability < c.MinReliability {
			continue
		}

		cost, _ := p.CostPerRequest.Float64()
		candidates = append(candidates, candidate{
			id:          p.ID,
			priority:    p.Priority,
			cost:        cost,
			latency:     float64(latency),
			reliability: reliability,
		})
	}
	// Stable input order regardless of registry map iteration.
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].id < candidates[j].id })
	return candidates
}

// normalize rescales cost and latency to [0,1] where higher is better, and
// reliability to [0,1] where higher is better, over the candidate set's
// measured values.
func normalize(candidates []candidate) {
	minCost, maxCost := minMax(candidates, func(c candidate) float64 { return c.cost })
	minLat, maxLat := minMax(candidates, func(c candidate) float64 { return c.latency })
	minRel, maxRel := minMax(candidates, func(c candidate) float64 { return c.reliability })

	for i := range candidates {
		c := &candidates[i]
		c.cost = invertedScale(c.cost, minCost, maxCost)
		c.latency = invertedScale(c.latency, minLat, maxLat)
		c.reliability = scale(c.reliability, minRel, maxRel)
	}
}

func minMax(candidates []candidate, get func(candidate) float64) (float64, float64) {
	lo, hi := get(candidates[0]), get(candidates[0])
	for _, c := range candidates[1:] {
		v := get(c)
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

func scale(v, lo, hi float64) float64 {
	if hi == lo {
		return 1
	}
	return (v - lo) / (hi - lo)
}

func invertedScale(v, lo, hi float64) float64 {
	if hi == lo {
		return 1
	}
	return 1 - (v-lo)/(hi-lo)
}
