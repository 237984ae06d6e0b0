// Package ratelimit enforces per-provider request budgets over fixed
// sliding windows and computes retry backoff delays. A denial here is a
// skip condition for the executor, never a hard failure.
package ratelimit

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"fieldops/services/coordination-api/internal/config"
	"fieldops/services/coordination-api/internal/domain/events"
	"fieldops/services/coordination-api/internal/domain/provider"
	"fieldops/services/coordination-api/internal/infrastructure/metrics"
	"fieldops/services/coordination-api/internal/infrastructure/scheduler"
)

// Decision is the outcome of a window check. RetryAfter is only set on
// denials: backoff grown by the window's consecutive denials, capped at the
// moment the window rolls over.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

type window struct {
	mu      sync.Mutex
	start   time.Time
	count   int
	denials int
}

// Limiter tracks one request window per provider, created on first use.
type Limiter struct {
	cfg      config.RateLimitConfig
	registry *provider.Registry
	bus      *events.Bus
	clock    scheduler.Clock
	log      zerolog.Logger
	rnd      func() float64

	mu      sync.RWMutex
	windows map[string]*window
}

func NewLimiter(cfg config.RateLimitConfig, registry *provider.Registry, bus *events.Bus, clock scheduler.Clock, log zerolog.Logger) *Limiter {
	return &Limiter{
		cfg:      cfg,
		registry: registry,
		bus:      bus,
		clock:    clock,
		log:      log.With().Str("component", "ratelimit").Logger(),
		rnd:      rand.Float64,
		windows:  make(map[string]*window),
	}
}

func (l *Limiter) windowFor(providerID string) *window {
	l.mu.RLock()
	w, ok := l.windows[providerID]
	l.mu.RUnlock()
	if ok {
		return w
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if w, ok = l.windows[providerID]; ok {
		return w
	}
	w = &window{}
	l.windows[providerID] = w
	return w
}

func (l *Limiter) limitsFor(providerID string) (time.Duration, int) {
	if p, ok := l.registry.Get(providerID); ok {
		return p.RateWindow, p.RateMax
	}
	return l.cfg.DefaultWindow, l.cfg.DefaultMax
}

// CheckAndConsume admits a request against the provider's window, resetting
// the window atomically when it has elapsed.
func (l *Limiter) CheckAndConsume(providerID string) Decision {
	length, max := l.limitsFor(providerID)
	now := l.clock.Now()

	w := l.windowFor(providerID)
	w.mu.Lock()
	if w.start.IsZero() || now.Sub(w.start) >= length {
		w.start = now
		w.count = 0
		w.denials = 0
	}
	if w.count >= max {
		firstDenial := w.denials == 0
		retryAfter := l.BackoffDelay(w.denials)
		if remainder := length - now.Sub(w.start); retryAfter > remainder {
			retryAfter = remainder
		}
		w.denials++
		w.mu.Unlock()

		metrics.RateLimitRejectionsTotal.WithLabelValues(providerID).Inc()
		if firstDenial {
			l.log.Warn().
				Str("provider_id", providerID).
				Int("max_requests", max).
				Dur("window", length).
				Msg("rate limit window exhausted")
			l.bus.Publish(events.New(events.TypeBudgetBreach, providerID, events.SeverityWarning, now, events.BudgetBreach{
				Kind:  events.BreachRateWindow,
				Limit: fmt.Sprintf("%d/%s", max, length),
				Used:  fmt.Sprintf("%d", max),
			}))
		}
		return Decision{Allowed: false, Remaining: 0, RetryAfter: retryAfter}
	}
	w.count++
	remaining := max - w.count
	w.mu.Unlock()

	return Decision{Allowed: true, Remaining: remaining}
}

// BackoffDelay returns the delay before retry attempt n (0-indexed):
// min(initial*multiplier^n, max), jittered into [0.5d, d) when enabled.
func (l *Limiter) BackoffDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := float64(l.cfg.BackoffInitial) * math.Pow(l.cfg.BackoffMultiplier, float64(attempt))
	if delay > float64(l.cfg.BackoffMax) {
		delay = float64(l.cfg.BackoffMax)
	}
	if l.cfg.BackoffJitter {
		delay = delay * (0.5 + l.rnd()*0.5)
	}
	return time.Duration(delay)
}
