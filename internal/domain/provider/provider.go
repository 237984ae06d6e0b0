// Package provider owns the catalogue of configured external providers:
// identity, capability, priority, unit cost and budget accounting. Circuit
// and health state live with the components that mutate them and are only
// keyed by the provider ids defined here.
package provider

import (
	"time"

	"github.com/shopspring/decimal"
)

// HealthStatus is the coarse classification the health monitor assigns.
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusDegraded  HealthStatus = "degraded"
	StatusUnhealthy HealthStatus = "unhealthy"
	StatusDisabled  HealthStatus = "disabled"
)

// Provider is the immutable configuration of one external provider.
type Provider struct {
	ID             string
	DisplayName    string
	Capability     string
	BaseURL        string
	HealthPath     string
	CredentialsRef string
	Priority       int
	CostPerRequest decimal.Decimal
	MonthlyBudget  decimal.Decimal
	LatencyTarget  time.Duration
	InvokeTimeout  time.Duration
	RateWindow     time.Duration
	RateMax        int
}

// BudgetSnapshot is the cost API view of one provider's spend.
type BudgetSnapshot struct {
	ProviderID     string          `json:"providerId"`
	DailyCost      decimal.Decimal `json:"dailyCost"`
	MonthlySpend   decimal.Decimal `json:"monthlySpend"`
	MonthlyBudget  decimal.Decimal `json:"monthlyBudget"`
	UtilizationPct float64         `json:"utilizationPercentage"`
	Disabled       bool            `json:"disabled"`
}
