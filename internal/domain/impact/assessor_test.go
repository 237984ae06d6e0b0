package impact

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"fieldops/services/coordination-api/internal/config"
	"fieldops/services/coordination-api/internal/domain/events"
	"fieldops/services/coordination-api/internal/domain/provider"
	"fieldops/services/coordination-api/internal/infrastructure/scheduler"
)

func messagingCatalogue() *config.Catalogue {
	return &config.Catalogue{
		Engine: config.DefaultEngineConfig(),
		Providers: []config.ProviderEntry{
			{
				ID:             "twilio",
				Capability:     "sms",
				BaseURL:        "https://sms-a.test",
				Priority:       10,
				CostPerRequest: decimal.NewFromFloat(0.0075),
			},
			{
				ID:             "vonage",
				Capability:     "sms",
				BaseURL:        "https://sms-b.test",
				Priority:       5,
				CostPerRequest: decimal.NewFromFloat(0.005),
			},
			{
				ID:             "sns",
				Capability:     "sms",
				BaseURL:        "https://sms-c.test",
				Priority:       1,
				CostPerRequest: decimal.NewFromFloat(0.006),
			},
			{
				ID:             "sendgrid",
				Capability:     "email",
				BaseURL:        "https://mail.test",
				Priority:       10,
				CostPerRequest: decimal.NewFromFloat(0.001),
			},
		},
		Chains: map[string][]string{
			"sms":   {"twilio", "vonage", "sns"},
			"email": {"sendgrid"},
		},
	}
}

func newTestAssessor(t *testing.T) *Assessor {
	t.Helper()
	clock := scheduler.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	registry, err := provider.NewRegistry(messagingCatalogue(), events.NewBus(zerolog.Nop()), clock, zerolog.Nop())
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	return NewAssessor(registry)
}

func TestHighSeverityForEnterpriseRevenue(t *testing.T) {
	a := newTestAssessor(t)

	got := a.Assess([]string{"twilio"}, BusinessContext{
		RevenueImpact: decimal.NewFromInt(10000),
		CustomerTier:  TierEnterprise,
	})

	if got.Severity != SeverityHigh {
		t.Fatalf("severity = %s, want %s", got.Severity, SeverityHigh)
	}
	if !got.MitigationRequired {
		t.Fatalf("expected mitigation required")
	}
	want := []string{"vonage", "sns"}
	if len(got.RecommendedFallbacks) != len(want) {
		t.Fatalf("fallbacks = %v, want %v", got.RecommendedFallbacks, want)
	}
	for i, id := range got.RecommendedFallbacks {
		if id != want[i] {
			t.Fatalf("fallbacks = %v, want %v", got.RecommendedFallbacks, want)
		}
	}
}

func TestMediumSeverityForPremiumTier(t *testing.T) {
	a := newTestAssessor(t)

	got := a.Assess([]string{"twilio"}, BusinessContext{
		RevenueImpact: decimal.NewFromInt(1000),
		CustomerTier:  TierPremium,
	})

	if got.Severity != SeverityMedium {
		t.Fatalf("severity = %s, want %s", got.Severity, SeverityMedium)
	}
	if !got.MitigationRequired {
		t.Fatalf("medium severity must require mitigation")
	}
}

func TestLowSeverityForBasicTier(t *testing.T) {
	a := newTestAssessor(t)

	got := a.Assess([]string{"twilio"}, BusinessContext{CustomerTier: TierBasic})

	if got.Severity != SeverityLow {
		t.Fatalf("severity = %s, want %s", got.Severity, SeverityLow)
	}
	if got.MitigationRequired {
		t.Fatalf("low severity with fallbacks left must not require mitigation")
	}
	if len(got.RecommendedFallbacks) == 0 {
		t.Fatalf("expected fallback recommendations")
	}
}

func TestNoFallbackLeftForcesMitigation(t *testing.T) {
	a := newTestAssessor(t)

	// sendgrid is the only email provider, so its outage has no alternates.
	got := a.Assess([]string{"sendgrid"}, BusinessContext{CustomerTier: TierBasic})

	if got.Severity != SeverityLow {
		t.Fatalf("severity = %s, want %s", got.Severity, SeverityLow)
	}
	if !got.MitigationRequired {
		t.Fatalf("outage without alternates must require mitigation")
	}
	if len(got.RecommendedFallbacks) != 0 {
		t.Fatalf("unexpected fallbacks %v", got.RecommendedFallbacks)
	}
}

func TestRecommendationsExcludeFailedAndDuplicates(t *testing.T) {
	a := newTestAssessor(t)

	got := a.Assess([]string{"twilio", "vonage"}, BusinessContext{CustomerTier: TierBasic})

	if len(got.RecommendedFallbacks) != 1 || got.RecommendedFallbacks[0] != "sns" {
		t.Fatalf("fallbacks = %v, want [sns]", got.RecommendedFallbacks)
	}
	// The second failure sees every remaining alternate already taken.
	if !got.MitigationRequired {
		t.Fatalf("expected mitigation when a failure has no fresh alternate")
	}
}

func TestUnknownFailedProviderTolerated(t *testing.T) {
	a := newTestAssessor(t)

	got := a.Assess([]string{"ghost"}, BusinessContext{CustomerTier: TierBasic})

	if got.Severity != SeverityLow || got.MitigationRequired {
		t.Fatalf("unexpected assessment %+v", got)
	}
	if len(got.RecommendedFallbacks) != 0 {
		t.Fatalf("unexpected fallbacks %v", got.RecommendedFallbacks)
	}
}

func TestRevenueBandsDriveSeverity(t *testing.T) {
	a := newTestAssessor(t)

	cases := []struct {
		revenue int64
		want    Severity
	}{
		{0, SeverityLow},
		{250, SeverityMedium},
		{1000, SeverityMedium},
		{5000, SeverityHigh},
	}
	for _, tc := range cases {
		got := a.Assess([]string{"twilio"}, BusinessContext{
			RevenueImpact: decimal.NewFromInt(tc.revenue),
			CustomerTier:  TierEnterprise,
		})
		if got.Severity != tc.want {
			t.Fatalf("revenue %d: severity = %s, want %s", tc.revenue, got.Severity, tc.want)
		}
	}
}
