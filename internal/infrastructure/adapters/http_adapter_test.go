package adapters

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"fieldops/services/coordination-api/internal/domain/provider"
)

func TestClientCachedPerProvider(t *testing.T) {
	a := NewHTTPAdapter(zerolog.Nop())
	p := provider.Provider{ID: "twilio", BaseURL: "https://sms.test", InvokeTimeout: time.Second}

	first := a.clientFor(p)
	p.BaseURL = "https://sms-eu.test"
	second := a.clientFor(p)

	if first != second {
		t.Fatalf("expected cached client for same provider id")
	}
	if second.BaseURL != "https://sms.test" {
		t.Fatalf("cached client must keep its settings until reset, got %q", second.BaseURL)
	}
}

func TestResetPicksUpNewSettings(t *testing.T) {
	a := NewHTTPAdapter(zerolog.Nop())
	p := provider.Provider{ID: "twilio", BaseURL: "https://sms.test", InvokeTimeout: time.Second}
	a.clientFor(p)

	a.Reset("twilio")

	p.BaseURL = "https://sms-eu.test"
	p.InvokeTimeout = 2 * time.Second
	client := a.clientFor(p)
	if client.BaseURL != "https://sms-eu.test" {
		t.Fatalf("expected rebuilt client after reset, got %q", client.BaseURL)
	}
}
