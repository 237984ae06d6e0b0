package kvstore

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"fieldops/services/coordination-api/internal/domain/events"
)

const keyPrefix = "coordination"

// Mirror subscribes to the coordination event channel and writes the latest
// circuit and health state per provider into the shared store, so sibling
// instances and external dashboards can read it.
type Mirror struct {
	store Store
	ttl   time.Duration
	log   zerolog.Logger
}

func NewMirror(store Store, ttl time.Duration, log zerolog.Logger) *Mirror {
	return &Mirror{
		store: store,
		ttl:   ttl,
		log:   log.With().Str("component", "state-mirror").Logger(),
	}
}

// Run consumes events until ctx is done. Store failures are logged and
// swallowed; mirroring must never affect the request path.
func (m *Mirror) Run(ctx context.Context, bus *events.Bus) error {
	ch, cancel := bus.Subscribe(events.Filter{})
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-ch:
			if !ok {
				return nil
			}
			m.apply(ctx, e)
		}
	}
}

func (m *Mirror) apply(ctx context.Context, e events.Event) {
	var key, value string
	switch payload := e.Payload.(type) {
	case events.CircuitStateChanged:
		key = fmt.Sprintf("%s:circuit:%s", keyPrefix, e.ProviderID)
		value = payload.To
	case events.HealthChanged:
		key = fmt.Sprintf("%s:health:%s", keyPrefix, e.ProviderID)
		value = payload.To
	default:
		// Counters only for the remaining event types.
	}

	if key != "" {
		if err := m.store.Set(ctx, key, value, m.ttl); err != nil {
			m.log.Warn().Str("key", key).Err(err).Msg("state mirror write failed")
		}
	}

	counterKey := fmt.Sprintf("%s:events:%s", keyPrefix, e.Type)
	if _, err := m.store.Increment(ctx, counterKey); err != nil {
		m.log.Warn().Str("key", counterKey).Err(err).Msg("state mirror increment failed")
	}
}

// CircuitState reads a sibling instance's mirrored circuit state.
func (m *Mirror) CircuitState(ctx context.Context, providerID string) (string, error) {
	return m.store.Get(ctx, fmt.Sprintf("%s:circuit:%s", keyPrefix, providerID))
}

// HealthState reads a sibling instance's mirrored health state.
func (m *Mirror) HealthState(ctx context.Context, providerID string) (string, error) {
	return m.store.Get(ctx, fmt.Sprintf("%s:health:%s", keyPrefix, providerID))
}
