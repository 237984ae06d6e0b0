// Package executor runs an ordered fallback chain for one operation within a
// wall-clock budget. Attempts are strictly sequential; the circuit breaker
// and rate limiter are consulted before every attempt and outcomes are
// reported back to them so failure data is never lost.
package executor

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"fieldops/services/coordination-api/internal/config"
	"fieldops/services/coordination-api/internal/domain/events"
	"fieldops/services/coordination-api/internal/domain/health"
	"fieldops/services/coordination-api/internal/domain/impact"
	"fieldops/services/coordination-api/internal/domain/provider"
	"fieldops/services/coordination-api/internal/domain/ratelimit"
	"fieldops/services/coordination-api/internal/domain/selector"
	"fieldops/services/coordination-api/internal/infrastructure/metrics"
	"fieldops/services/coordination-api/internal/infrastructure/scheduler"
)

// Breakers is the circuit breaker surface the executor consumes.
type Breakers interface {
	Allow(providerID string) bool
	ReleaseProbe(providerID string)
	RecordSuccess(providerID string)
	RecordFailure(providerID string, err error)
}

// Invoker is the uniform provider SDK collaborator. Adapters are injected,
// not implemented here.
type Invoker interface {
	Invoke(ctx context.Context, p provider.Provider, payload json.RawMessage) (json.RawMessage, error)
}

// OperationRequest describes one operation to execute. Immutable once
// submitted.
type OperationRequest struct {
	OperationID string
	Capability  string
	Payload     json.RawMessage
	Constraints selector.Constraints
	Business    impact.BusinessContext
	Deadline    time.Duration
}

// AttemptOutcome classifies one entry in the attempted list.
type AttemptOutcome string

const (
	OutcomeSuccess       AttemptOutcome = "success"
	OutcomeFailure       AttemptOutcome = "failure"
	OutcomeSkipCircuit   AttemptOutcome = "skip_circuit"
	OutcomeSkipRateLimit AttemptOutcome = "skip_ratelimit"
	OutcomeSkipBudget    AttemptOutcome = "skip_budget"
)

// Attempt records one chain entry for diagnostics.
type Attempt struct {
	ProviderID string         `json:"providerId"`
	Outcome    AttemptOutcome `json:"outcome"`
	Error      string         `json:"error,omitempty"`
	Latency    time.Duration  `json:"latency,omitempty"`
}

// ErrorKind is the caller-visible failure classification.
type ErrorKind string

const (
	KindNone                  ErrorKind = ""
	KindTimeoutExceeded       ErrorKind = "TimeoutExceeded"
	KindAllProvidersExhausted ErrorKind = "AllProvidersExhausted"
	KindInvalidChain          ErrorKind = "ConfigurationError"
)

// ExecutionResult is the typed outcome returned to callers.
type ExecutionResult struct {
	OperationID  string          `json:"operationId"`
	Success      bool            `json:"success"`
	ProviderID   string          `json:"providerId,omitempty"`
	FallbackUsed bool            `json:"fallbackUsed"`
	Attempted    []Attempt       `json:"attempted"`
	Elapsed      time.Duration   `json:"elapsed"`
	ErrorKind    ErrorKind       `json:"errorKind,omitempty"`
	LastError    string          `json:"lastError,omitempty"`
	RetryAfter   time.Duration   `json:"-"`
	Output       json.RawMessage `json:"output,omitempty"`
}

// AttemptedIDs returns the provider ids in attempt order.
func (r ExecutionResult) AttemptedIDs() []string {
	out := make([]string, len(r.Attempted))
	for i, a := range r.Attempted {
		out[i] = a.ProviderID
	}
	return out
}

// Executor orchestrates fallback chains.
type Executor struct {
	cfg      config.ExecutorConfig
	registry *provider.Registry
	breakers Breakers
	limiter  *ratelimit.Limiter
	monitor  *health.Monitor
	invoker  Invoker
	bus      *events.Bus
	clock    scheduler.Clock
	log      zerolog.Logger
}

func NewExecutor(
	cfg config.ExecutorConfig,
	registry *provider.Registry,
	breakers Breakers,
	limiter *ratelimit.Limiter,
	monitor *health.Monitor,
	invoker Invoker,
	bus *events.Bus,
	clock scheduler.Clock,
	log zerolog.Logger,
) *Executor {
	return &Executor{
		cfg:      cfg,
		registry: registry,
		breakers: breakers,
		limiter:  limiter,
		monitor:  monitor,
		invoker:  invoker,
		bus:      bus,
		clock:    clock,
		log:      log.With().Str("component", "executor").Logger(),
	}
}

// Execute runs the chain in order under the operation's deadline. Skips due
// to an open circuit or an exhausted rate window do not count against the
// provider's own failure budget but are recorded for diagnostics.
func (e *Executor) Execute(ctx context.Context, op OperationRequest, chain []string) ExecutionResult {
	if op.OperationID == "" {
		op.OperationID = uuid.NewString()
	}
	start := e.clock.Now()

	result := ExecutionResult{OperationID: op.OperationID}
	if len(chain) == 0 {
		result.ErrorKind = KindInvalidChain
		result.LastError = ErrEmptyChain.Error()
		return result
	}

	budget := op.Deadline
	if budget <= 0 {
		budget = e.cfg.DefaultDeadline
	}
	deadline := start.Add(budget)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}

	var lastErr error
	deadlineHit := false

	for _, providerID := range chain {
		if !e.clock.Now().Before(deadline) {
			deadlineHit = true
			break
		}

		p, ok := e.registry.Get(providerID)
		if !ok {
			result.Attempted = append(result.Attempted, Attempt{
				ProviderID: providerID,
				Outcome:    OutcomeFailure,
				Error:      provider.ErrUnknownProvider.Error(),
			})
			lastErr = provider.ErrUnknownProvider
			continue
		}

		if e.registry.IsDisabled(providerID) {
			result.Attempted = append(result.Attempted, Attempt{
				ProviderID: providerID,
				Outcome:    OutcomeSkipBudget,
				Error:      ErrBudgetSpent.Error(),
			})
			continue
		}

		if !e.breakers.Allow(providerID) {
			metrics.AttemptsTotal.WithLabelValues(providerID, string(OutcomeSkipCircuit)).Inc()
			result.Attempted = append(result.Attempted, Attempt{
				ProviderID: providerID,
				Outcome:    OutcomeSkipCircuit,
				Error:      ErrCircuitOpen.Error(),
			})
			continue
		}

		if decision := e.limiter.CheckAndConsume(providerID); !decision.Allowed {
			// Allow may have reserved the half-open probe slot; no call is
			// going out, so hand it back.
			e.breakers.ReleaseProbe(providerID)
			if decision.RetryAfter > result.RetryAfter {
				result.RetryAfter = decision.RetryAfter
			}
			metrics.AttemptsTotal.WithLabelValues(providerID, string(OutcomeSkipRateLimit)).Inc()
			result.Attempted = append(result.Attempted, Attempt{
				ProviderID: providerID,
				Outcome:    OutcomeSkipRateLimit,
				Error:      ErrRateLimited.Error(),
			})
			continue
		}

		output, latency, err := e.invoke(ctx, p, op.Payload)

		// Outcomes are always reported, even when the deadline passed
		// while the call was in flight.
		e.monitor.Observe(providerID, latency, err)

		if err != nil {
			e.breakers.RecordFailure(providerID, err)
			metrics.AttemptsTotal.WithLabelValues(providerID, string(OutcomeFailure)).Inc()
			lastErr = &UnavailableError{ProviderID: providerID, Err: err}
			result.Attempted = append(result.Attempted, Attempt{
				ProviderID: providerID,
				Outcome:    OutcomeFailure,
				Error:      err.Error(),
				Latency:    latency,
			})
			e.log.Warn().
				Str("operation_id", op.OperationID).
				Str("provider_id", providerID).
				Dur("latency", latency).
				Err(err).
				Msg("provider attempt failed")
			continue
		}

		e.breakers.RecordSuccess(providerID)
		metrics.AttemptsTotal.WithLabelValues(providerID, string(OutcomeSuccess)).Inc()
		if spendErr := e.registry.RecordSpend(providerID, p.CostPerRequest); spendErr != nil {
			e.log.Error().Str("provider_id", providerID).Err(spendErr).Msg("spend accounting failed")
		}
		result.Attempted = append(result.Attempted, Attempt{
			ProviderID: providerID,
			Outcome:    OutcomeSuccess,
			Latency:    latency,
		})

		if !e.clock.Now().Before(deadline) {
			// Success arrived too late for the caller; the breaker and
			// health monitor already saw it, the result is discarded.
			deadlineHit = true
			break
		}

		result.Success = true
		result.ProviderID = providerID
		result.Output = output
		result.FallbackUsed = providerID != chain[0]
		result.Elapsed = e.clock.Now().Sub(start)

		label := "success"
		if result.FallbackUsed {
			label = "fallback_success"
			e.bus.Publish(events.New(events.TypeFallbackUsed, providerID, events.SeverityWarning, e.clock.Now(), events.FallbackUsed{
				Capability: op.Capability,
				Primary:    chain[0],
				Selected:   providerID,
				Attempted:  result.AttemptedIDs(),
			}))
		}
		metrics.ExecuteDuration.WithLabelValues(op.Capability, label).Observe(result.Elapsed.Seconds())
		return result
	}

	result.Elapsed = e.clock.Now().Sub(start)
	if deadlineHit {
		result.ErrorKind = KindTimeoutExceeded
		result.LastError = ErrTimeout.Error()
		metrics.ExecuteDuration.WithLabelValues(op.Capability, "timeout").Observe(result.Elapsed.Seconds())
	} else {
		exhausted := &ExhaustedError{Attempted: result.AttemptedIDs(), LastErr: lastErr}
		result.ErrorKind = KindAllProvidersExhausted
		result.LastError = exhausted.Error()
		metrics.ExecuteDuration.WithLabelValues(op.Capability, "exhausted").Observe(result.Elapsed.Seconds())
	}
	e.log.Error().
		Str("operation_id", op.OperationID).
		Str("capability", op.Capability).
		Str("error_kind", string(result.ErrorKind)).
		Strs("attempted", result.AttemptedIDs()).
		Msg("fallback chain failed")
	return result
}

// invoke runs the provider call under its own IO timeout. The caller's
// cancellation does not force-cancel a dispatched call; the per-provider
// timeout bounds it independently.
func (e *Executor) invoke(ctx context.Context, p provider.Provider, payload json.RawMessage) (json.RawMessage, time.Duration, error) {
	timeout := p.InvokeTimeout
	if timeout <= 0 {
		timeout = e.cfg.DefaultInvokeTimeout
	}
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	t0 := e.clock.Now()
	output, err := e.invoker.Invoke(callCtx, p, payload)
	return output, e.clock.Now().Sub(t0), err
}
