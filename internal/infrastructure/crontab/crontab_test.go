package crontab

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"fieldops/services/coordination-api/internal/config"
	"fieldops/services/coordination-api/internal/domain/events"
	"fieldops/services/coordination-api/internal/domain/provider"
	"fieldops/services/coordination-api/internal/infrastructure/scheduler"
)

type recordingResetter struct {
	ids []string
}

func (r *recordingResetter) Reset(providerID string) {
	r.ids = append(r.ids, providerID)
}

const initialCatalogue = `
providers:
  - id: google-maps
    capability: routing
    base_url: https://maps.test
    cost_per_request: "0.005"
  - id: mapbox
    capability: routing
    base_url: https://mapbox.test
    cost_per_request: "0.004"
  - id: osrm
    capability: routing
    base_url: https://osrm.test
    cost_per_request: "0"
chains:
  routing: [google-maps, mapbox, osrm]
`

const updatedCatalogue = `
providers:
  - id: google-maps
    capability: routing
    base_url: https://maps-eu.test
    cost_per_request: "0.005"
  - id: mapbox
    capability: routing
    base_url: https://mapbox.test
    cost_per_request: "0.004"
chains:
  routing: [google-maps, mapbox]
`

func newReloadFixture(t *testing.T) (*Crontab, *provider.Registry, *recordingResetter, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "providers.yaml")
	if err := os.WriteFile(path, []byte(initialCatalogue), 0o600); err != nil {
		t.Fatalf("write catalogue: %v", err)
	}

	cat, err := config.LoadCatalogue(path)
	if err != nil {
		t.Fatalf("load catalogue: %v", err)
	}
	clock := scheduler.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	registry, err := provider.NewRegistry(cat, events.NewBus(zerolog.Nop()), clock, zerolog.Nop())
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}

	resetter := &recordingResetter{}
	cfg := &config.Config{CatalogueFile: path, CatalogueReloadEnabled: true}
	return NewCrontab(cfg, registry, resetter), registry, resetter, path
}

func TestReloadResetsChangedClients(t *testing.T) {
	c, registry, resetter, path := newReloadFixture(t)
	if err := os.WriteFile(path, []byte(updatedCatalogue), 0o600); err != nil {
		t.Fatalf("rewrite catalogue: %v", err)
	}

	c.reloadCatalogueIfChanged()

	p, ok := registry.Get("google-maps")
	if !ok || p.BaseURL != "https://maps-eu.test" {
		t.Fatalf("registry not reloaded: %+v", p)
	}

	want := map[string]bool{"google-maps": true, "osrm": true}
	if len(resetter.ids) != len(want) {
		t.Fatalf("reset ids = %v, want changed and removed providers only", resetter.ids)
	}
	for _, id := range resetter.ids {
		if !want[id] {
			t.Fatalf("unexpected client reset for %q (ids %v)", id, resetter.ids)
		}
	}
}

func TestReloadKeepsClientsOnBrokenFile(t *testing.T) {
	c, registry, resetter, path := newReloadFixture(t)
	if err := os.WriteFile(path, []byte("providers: []\n"), 0o600); err != nil {
		t.Fatalf("rewrite catalogue: %v", err)
	}

	c.reloadCatalogueIfChanged()

	if _, ok := registry.Get("osrm"); !ok {
		t.Fatalf("broken file must keep the previous catalogue")
	}
	if len(resetter.ids) != 0 {
		t.Fatalf("no clients should be reset on a failed reload, got %v", resetter.ids)
	}
}

func TestReloadSkipsUnchangedFile(t *testing.T) {
	c, _, resetter, path := newReloadFixture(t)

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat catalogue: %v", err)
	}
	c.catalogueModTime = info.ModTime()

	c.reloadCatalogueIfChanged()

	if len(resetter.ids) != 0 {
		t.Fatalf("unchanged file must not touch clients, got %v", resetter.ids)
	}
}
