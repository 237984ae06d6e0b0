// Package impact scores the business severity of provider outages. The
// assessment is a pure function of the failed provider set, the operation's
// business context and the static catalogue.
package impact

import (
	"github.com/shopspring/decimal"

	"fieldops/services/coordination-api/internal/domain/provider"
)

// CustomerTier weights outage severity by who is affected.
type CustomerTier string

const (
	TierEnterprise CustomerTier = "enterprise"
	TierPremium    CustomerTier = "premium"
	TierStandard   CustomerTier = "standard"
	TierBasic      CustomerTier = "basic"
)

// BusinessContext travels with an operation request.
type BusinessContext struct {
	RevenueImpact decimal.Decimal `json:"revenueImpact"`
	CustomerTier  CustomerTier    `json:"customerTier"`
	Priority      int             `json:"priority"`
}

// Severity grades an outage.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Assessment is the escalation decision for one outage.
type Assessment struct {
	Severity             Severity `json:"severity"`
	MitigationRequired   bool     `json:"mitigationRequired"`
	RecommendedFallbacks []string `json:"recommendedFallbacks"`
}

var tierWeights = map[CustomerTier]float64{
	TierEnterprise: 1.0,
	TierPremium:    0.7,
	TierStandard:   0.4,
	TierBasic:      0.2,
}

// Assessor reads capability chains from the registry to judge criticality
// and recommend alternates.
type Assessor struct {
	registry *provider.Registry
}

func NewAssessor(registry *provider.Registry) *Assessor {
	return &Assessor{registry: registry}
}

// Assess combines revenue at risk, customer tier and the failed provider
// set into an escalation decision.
func (a *Assessor) Assess(failedProviders []string, bctx BusinessContext) Assessment {
	failed := make(map[string]bool, len(failedProviders))
	for _, id := range failedProviders {
		failed[id] = true
	}

	noFallbackFailed := false
	failureWeight := 0.0
	recommended := []string{}
	seen := map[string]bool{}
	for _, id := range failedProviders {
		failureWeight += 0.2

		p, ok := a.registry.Get(id)
		if !ok {
			continue
		}
		chain, hasChain := a.registry.Chain(p.Capability)
		alternates := 0
		if hasChain {
			for _, candidate := range chain {
				if candidate == id || failed[candidate] || seen[candidate] {
					continue
				}
				recommended = append(recommended, candidate)
				seen[candidate] = true
				alternates++
			}
		}
		if alternates == 0 {
			noFallbackFailed = true
			failureWeight += 0.4
		}
	}
	if failureWeight > 1 {
		failureWeight = 1
	}

	score := 0.5*revenueWeight(bctx.RevenueImpact) +
		0.3*tierWeights[bctx.CustomerTier] +
		0.2*failureWeight

	severity := SeverityLow
	switch {
	case score >= 0.7:
		severity = SeverityHigh
	case score >= 0.4:
		severity = SeverityMedium
	}

	return Assessment{
		Severity:             severity,
		MitigationRequired:   severity != SeverityLow || noFallbackFailed,
		RecommendedFallbacks: recommended,
	}
}

func revenueWeight(revenue decimal.Decimal) float64 {
	switch {
	case revenue.LessThanOrEqual(decimal.Zero):
		return 0
	case revenue.LessThan(decimal.NewFromInt(500)):
		return 0.3
	case revenue.LessThan(decimal.NewFromInt(5000)):
		return 0.6
	default:
		return 1
	}
}
