// Package events implements the in-process coordination event channel. It
// fans state-change notifications out to live subscribers (dashboards,
// alerting) on a best-effort basis; delivery never blocks the request path
// and events are not persisted.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Type enumerates the closed set of coordination events.
type Type string

const (
	TypeCircuitStateChanged Type = "circuit_state_changed"
	TypeHealthChanged       Type = "health_changed"
	TypeFallbackUsed        Type = "fallback_used"
	TypeBudgetBreach        Type = "budget_breach"
)

// Severity grades an event for alerting.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Event is the envelope delivered to subscribers. Payload is one of the
// typed variants below, selected by Type.
type Event struct {
	ID          string    `json:"id"`
	Type        Type      `json:"eventType"`
	ProviderID  string    `json:"providerId,omitempty"`
	OperationID string    `json:"operationId,omitempty"`
	Severity    Severity  `json:"severity"`
	Timestamp   time.Time `json:"timestamp"`
	Payload     Payload   `json:"payload"`
}

// Payload restricts event payloads to the closed variant set.
type Payload interface {
	eventPayload()
}

// CircuitStateChanged reports a circuit breaker transition.
type CircuitStateChanged struct {
	From                string `json:"from"`
	To                  string `json:"to"`
	ConsecutiveFailures int    `json:"consecutiveFailures"`
}

// HealthChanged reports a provider health classification change.
type HealthChanged struct {
	From       string        `json:"from"`
	To         string        `json:"to"`
	ErrorRate  float64       `json:"errorRate"`
	LatencyP95 time.Duration `json:"latencyP95"`
}

// FallbackUsed reports that an operation succeeded on a non-primary provider.
type FallbackUsed struct {
	Capability string   `json:"capability"`
	Primary    string   `json:"primary"`
	Selected   string   `json:"selected"`
	Attempted  []string `json:"attempted"`
}

// BudgetBreachKind distinguishes rate-window exhaustion from spend ceilings.
type BudgetBreachKind string

const (
	BreachRateWindow    BudgetBreachKind = "rate_window"
	BreachMonthlyBudget BudgetBreachKind = "monthly_budget"
)

// BudgetBreach reports a request-count or spend ceiling being hit.
type BudgetBreach struct {
	Kind  BudgetBreachKind `json:"kind"`
	Limit string           `json:"limit"`
	Used  string           `json:"used"`
}

func (CircuitStateChanged) eventPayload() {}
func (HealthChanged) eventPayload()       {}
func (FallbackUsed) eventPayload()        {}
func (BudgetBreach) eventPayload()        {}

// New assembles an event envelope with a fresh id and the given timestamp.
func New(eventType Type, providerID string, severity Severity, at time.Time, payload Payload) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		ProviderID: providerID,
		Severity:   severity,
		Timestamp:  at,
		Payload:    payload,
	}
}
