package kvstore

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldops/services/coordination-api/internal/domain/events"
)

func TestMemoryStoreSetGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Set(ctx, "circuit", "open", 0))

	got, err := store.Get(ctx, "circuit")
	require.NoError(t, err)
	assert.Equal(t, "open", got)
}

func TestMemoryStoreMissingKey(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreTTLExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Set(ctx, "circuit", "open", 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	_, err := store.Get(ctx, "circuit")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreIncrement(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	for want := int64(1); want <= 3; want++ {
		got, err := store.Increment(ctx, "counter")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	other, err := store.Increment(ctx, "other")
	require.NoError(t, err)
	assert.Equal(t, int64(1), other)
}

func TestMirrorAppliesStateEvents(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	mirror := NewMirror(store, time.Minute, zerolog.Nop())
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mirror.apply(ctx, events.New(events.TypeCircuitStateChanged, "twilio", events.SeverityCritical, now, events.CircuitStateChanged{
		From: "closed",
		To:   "open",
	}))
	mirror.apply(ctx, events.New(events.TypeHealthChanged, "twilio", events.SeverityWarning, now, events.HealthChanged{
		From: "healthy",
		To:   "degraded",
	}))

	circuit, err := mirror.CircuitState(ctx, "twilio")
	require.NoError(t, err)
	assert.Equal(t, "open", circuit)

	health, err := mirror.HealthState(ctx, "twilio")
	require.NoError(t, err)
	assert.Equal(t, "degraded", health)
}

func TestMirrorCountsEventTypes(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	mirror := NewMirror(store, time.Minute, zerolog.Nop())
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 2; i++ {
		mirror.apply(ctx, events.New(events.TypeFallbackUsed, "twilio", events.SeverityWarning, now, events.FallbackUsed{
			Primary:  "twilio",
			Selected: "vonage",
		}))
	}

	count, err := store.Get(ctx, "coordination:events:fallback_used")
	require.NoError(t, err)
	assert.Equal(t, "2", count)
}

func TestMirrorRunStopsOnContextCancel(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	mirror := NewMirror(NewMemoryStore(), time.Minute, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mirror.Run(ctx, bus) }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatalf("mirror did not stop on cancel")
	}
}
