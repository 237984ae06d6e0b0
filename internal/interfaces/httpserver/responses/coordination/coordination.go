package coordinationresponses

import (
	"strconv"
	"time"

	"fieldops/services/coordination-api/internal/domain/breaker"
	"fieldops/services/coordination-api/internal/domain/executor"
	"fieldops/services/coordination-api/internal/domain/health"
	"fieldops/services/coordination-api/internal/domain/impact"
	"fieldops/services/coordination-api/internal/domain/provider"
)

// ProviderStatusResponse merges the health and circuit views of one provider.
type ProviderStatusResponse struct {
	ProviderID          string  `json:"providerId"`
	DisplayName         string  `json:"displayName"`
	Capability          string  `json:"capability"`
	Priority            int     `json:"priority"`
	HealthStatus        string  `json:"healthStatus"`
	CircuitState        string  `json:"circuitState"`
	LatencyP95Ms        int64   `json:"latencyP95Ms"`
	ErrorRate           float64 `json:"errorRate"`
	ConsecutiveFailures int     `json:"consecutiveFailures"`
	LastChecked         string  `json:"lastChecked,omitempty"`
}

type ProviderStatusList struct {
	Object string                   `json:"object"`
	Data   []ProviderStatusResponse `json:"data"`
}

// BuildProviderStatus assembles the status row for one provider.
func BuildProviderStatus(p provider.Provider, hs health.Snapshot, cs breaker.Snapshot) ProviderStatusResponse {
	resp := ProviderStatusResponse{
		ProviderID:          p.ID,
		DisplayName:         p.DisplayName,
		Capability:          p.Capability,
		Priority:            p.Priority,
		HealthStatus:        string(hs.Status),
		CircuitState:        cs.StateName,
		LatencyP95Ms:        hs.LatencyP95.Milliseconds(),
		ErrorRate:           hs.ErrorRate,
		ConsecutiveFailures: cs.ConsecutiveFailures,
	}
	if !hs.LastChecked.IsZero() {
		resp.LastChecked = hs.LastChecked.Format(time.RFC3339)
	}
	return resp
}

// ProviderCostResponse is the cost API view of one provider's budget.
type ProviderCostResponse struct {
	ProviderID            string `json:"providerId"`
	DailyCost             string `json:"dailyCost"`
	MonthlySpend          string `json:"monthlySpend"`
	MonthlyBudget         string `json:"monthlyBudget"`
	UtilizationPercentage string `json:"utilizationPercentage"`
	Disabled              bool   `json:"disabled"`
}

type ProviderCostList struct {
	Object string                 `json:"object"`
	Data   []ProviderCostResponse `json:"data"`
}

// BuildProviderCost converts a budget snapshot into its API view.
func BuildProviderCost(s provider.BudgetSnapshot) ProviderCostResponse {
	return ProviderCostResponse{
		ProviderID:            s.ProviderID,
		DailyCost:             s.DailyCost.StringFixed(4),
		MonthlySpend:          s.MonthlySpend.StringFixed(4),
		MonthlyBudget:         s.MonthlyBudget.StringFixed(2),
		UtilizationPercentage: formatPct(s.UtilizationPct),
		Disabled:              s.Disabled,
	}
}

// AttemptResponse is one attempted chain entry.
type AttemptResponse struct {
	ProviderID string `json:"providerId"`
	Outcome    string `json:"outcome"`
	Error      string `json:"error,omitempty"`
	LatencyMs  int64  `json:"latencyMs,omitempty"`
}

// ExecuteResponse is the outcome of one coordinated operation.
type ExecuteResponse struct {
	OperationID  string             `json:"operationId"`
	Success      bool               `json:"success"`
	ProviderID   string             `json:"providerId,omitempty"`
	FallbackUsed bool               `json:"fallbackUsed"`
	Attempted    []AttemptResponse  `json:"attempted"`
	ElapsedMs    int64              `json:"elapsedMs"`
	ErrorKind    string             `json:"errorKind,omitempty"`
	LastError    string             `json:"lastError,omitempty"`
	RetryAfterMs int64              `json:"retryAfterMs,omitempty"`
	Output       any                `json:"output,omitempty"`
	Impact       *impact.Assessment `json:"businessImpact,omitempty"`
}

// BuildExecuteResponse converts an execution result into its API view.
func BuildExecuteResponse(result executor.ExecutionResult, assessment *impact.Assessment) ExecuteResponse {
	attempts := make([]AttemptResponse, 0, len(result.Attempted))
	for _, a := range result.Attempted {
		attempts = append(attempts, AttemptResponse{
			ProviderID: a.ProviderID,
			Outcome:    string(a.Outcome),
			Error:      a.Error,
			LatencyMs:  a.Latency.Milliseconds(),
		})
	}

	resp := ExecuteResponse{
		OperationID:  result.OperationID,
		Success:      result.Success,
		ProviderID:   result.ProviderID,
		FallbackUsed: result.FallbackUsed,
		Attempted:    attempts,
		ElapsedMs:    result.Elapsed.Milliseconds(),
		ErrorKind:    string(result.ErrorKind),
		LastError:    result.LastError,
		Impact:       assessment,
	}
	if !result.Success && result.RetryAfter > 0 {
		resp.RetryAfterMs = result.RetryAfter.Milliseconds()
	}
	if len(result.Output) > 0 {
		resp.Output = result.Output
	}
	return resp
}

func formatPct(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
