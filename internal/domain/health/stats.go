package health

import (
	"sort"
	"sync"
	"time"
)

type outcome struct {
	at     time.Time
	failed bool
}

// providerStats keeps the trailing error-rate window and the last N latency
// samples for one provider. Guarded by its own mutex so unrelated providers
// never contend.
type providerStats struct {
	mu          sync.Mutex
	window      time.Duration
	maxSamples  int
	outcomes    []outcome
	latencies   []time.Duration
	consecutive int
	lastChecked time.Time
}

func newProviderStats(window time.Duration, maxSamples int) *providerStats {
	return &providerStats{
		window:     window,
		maxSamples: maxSamples,
	}
}

func (s *providerStats) observe(now time.Time, latency time.Duration, failed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastChecked = now
	s.outcomes = append(s.outcomes, outcome{at: now, failed: failed})
	s.pruneLocked(now)

	if failed {
		s.consecutive++
	} else {
		s.consecutive = 0
	}

	if latency > 0 {
		s.latencies = append(s.latencies, latency)
		if len(s.latencies) > s.maxSamples {
			s.latencies = s.latencies[len(s.latencies)-s.maxSamples:]
		}
	}
}

func (s *providerStats) pruneLocked(now time.Time) {
	cutoff := now.Add(-s.window)
	idx := 0
	for idx < len(s.outcomes) && s.outcomes[idx].at.Before(cutoff) {
		idx++
	}
	if idx > 0 {
		s.outcomes = append([]outcome(nil), s.outcomes[idx:]...)
	}
}

func (s *providerStats) errorRate(now time.Time) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked(now)
	if len(s.outcomes) == 0 {
		return 0
	}
	failed := 0
	for _, o := range s.outcomes {
		if o.failed {
			failed++
		}
	}
	return float64(failed) / float64(len(s.outcomes))
}

func (s *providerStats) p95() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.latencies) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), s.latencies...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := (len(sorted)*95 + 99) / 100
	if idx > 0 {
		idx--
	}
	return sorted[idx]
}

func (s *providerStats) consecutiveFailures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.consecutive
}

func (s *providerStats) lastCheckedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastChecked
}
