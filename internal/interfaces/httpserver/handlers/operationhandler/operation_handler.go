package operationhandler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"fieldops/services/coordination-api/internal/domain/executor"
	"fieldops/services/coordination-api/internal/domain/impact"
	"fieldops/services/coordination-api/internal/domain/provider"
	"fieldops/services/coordination-api/internal/domain/selector"
	"fieldops/services/coordination-api/internal/interfaces/httpserver/responses"
	coordinationresponses "fieldops/services/coordination-api/internal/interfaces/httpserver/responses/coordination"
	"fieldops/services/coordination-api/internal/utils/platformerrors"
)

// RoutingMode selects how the fallback chain is built for a request.
type RoutingMode string

const (
	RoutingRanked RoutingMode = "ranked"
	RoutingStatic RoutingMode = "static"
)

// ExecuteRequest is the execute endpoint request body.
type ExecuteRequest struct {
	OperationID string          `json:"operationId"`
	Capability  string          `json:"capability" binding:"required"`
	Payload     json.RawMessage `json:"payload"`
	Routing     RoutingMode     `json:"routing"`
	DeadlineMs  int64           `json:"deadlineMs"`
	Constraints struct {
		MaxCostPerRequest string  `json:"maxCostPerRequest"`
		MaxLatencyMs      int64   `json:"maxLatencyMs"`
		MinReliability    float64 `json:"minReliability"`
	} `json:"constraints"`
	Business struct {
		RevenueImpact string `json:"revenueImpact"`
		CustomerTier  string `json:"customerTier"`
		Priority      int    `json:"priority"`
	} `json:"business"`
}

// OperationHandler executes operations against the fallback chain.
type OperationHandler struct {
	registry *provider.Registry
	selector *selector.Selector
	executor *executor.Executor
	assessor *impact.Assessor
}

func NewOperationHandler(
	registry *provider.Registry,
	sel *selector.Selector,
	exec *executor.Executor,
	assessor *impact.Assessor,
) *OperationHandler {
	return &OperationHandler{
		registry: registry,
		selector: sel,
		executor: exec,
		assessor: assessor,
	}
}

// Execute godoc
// @Summary Execute an operation with fallback
// @Description Executes an operation against the capability's provider chain, falling back on failure.
// @Tags Operations API
// @Accept json
// @Produce json
// @Param request body ExecuteRequest true "Operation request"
// @Success 200 {object} coordinationresponses.ExecuteResponse "Operation outcome"
// @Failure 400 {object} responses.ErrorResponse "Invalid request"
// @Failure 502 {object} responses.ErrorResponse "All providers exhausted"
// @Failure 504 {object} responses.ErrorResponse "Deadline exceeded"
// @Router /v1/operations/execute [post]
func (h *OperationHandler) Execute(c *gin.Context) {
	var req ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "invalid execute request: "+err.Error())
		return
	}

	constraints, err := parseConstraints(req)
	if err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, err.Error())
		return
	}

	chain, err := h.buildChain(c.Request.Context(), req, constraints)
	if err != nil {
		responses.HandleError(c, err, "failed to build provider chain")
		return
	}

	op := executor.OperationRequest{
		OperationID: req.OperationID,
		Capability:  req.Capability,
		Payload:     req.Payload,
		Constraints: constraints,
		Business:    parseBusiness(req),
		Deadline:    time.Duration(req.DeadlineMs) * time.Millisecond,
	}

	result := h.executor.Execute(c.Request.Context(), op, chain)

	var assessment *impact.Assessment
	if !result.Success {
		failed := failedProviders(result)
		a := h.assessor.Assess(failed, op.Business)
		assessment = &a
	}

	if !result.Success && result.RetryAfter > 0 {
		c.Header("Retry-After", strconv.FormatInt(retryAfterSeconds(result.RetryAfter), 10))
	}
	c.JSON(statusFor(result), coordinationresponses.BuildExecuteResponse(result, assessment))
}

// retryAfterSeconds rounds the advice up to whole seconds, the header's
// resolution; sub-second advice still reports 1.
func retryAfterSeconds(d time.Duration) int64 {
	secs := int64((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

// buildChain resolves the fallback chain for a request. Ranked routing
// falls back to the static chain when every candidate is filtered out, so
// the executor can still report per-provider skip reasons.
func (h *OperationHandler) buildChain(ctx context.Context, req ExecuteRequest, constraints selector.Constraints) ([]string, error) {
	static, ok := h.registry.Chain(req.Capability)
	if !ok {
		return nil, platformerrors.NewError(
			ctx, platformerrors.LayerHandler, platformerrors.ErrorTypeNotFound,
			"no fallback chain for capability "+req.Capability, nil)
	}

	if req.Routing == RoutingStatic {
		return static, nil
	}

	ranked, err := h.selector.RankedChain(req.Capability, constraints)
	if errors.Is(err, selector.ErrNoneAvailable) {
		return static, nil
	}
	if err != nil {
		return nil, err
	}
	return ranked, nil
}

func parseConstraints(req ExecuteRequest) (selector.Constraints, error) {
	c := selector.Constraints{
		MaxLatency:     time.Duration(req.Constraints.MaxLatencyMs) * time.Millisecond,
		MinReliability: req.Constraints.MinReliability,
	}
	if req.Constraints.MaxCostPerRequest != "" {
		maxCost, err := decimal.NewFromString(req.Constraints.MaxCostPerRequest)
		if err != nil {
			return c, errors.New("invalid maxCostPerRequest: " + req.Constraints.MaxCostPerRequest)
		}
		c.MaxCost = &maxCost
	}
	return c, nil
}

func parseBusiness(req ExecuteRequest) impact.BusinessContext {
	revenue := decimal.Zero
	if req.Business.RevenueImpact != "" {
		if parsed, err := decimal.NewFromString(req.Business.RevenueImpact); err == nil {
			revenue = parsed
		}
	}
	tier := impact.CustomerTier(req.Business.CustomerTier)
	if tier == "" {
		tier = impact.TierStandard
	}
	return impact.BusinessContext{
		RevenueImpact: revenue,
		CustomerTier:  tier,
		Priority:      req.Business.Priority,
	}
}

func failedProviders(result executor.ExecutionResult) []string {
	out := make([]string, 0, len(result.Attempted))
	for _, a := range result.Attempted {
		if a.Outcome == executor.OutcomeFailure {
			out = append(out, a.ProviderID)
		}
	}
	return out
}

func statusFor(result executor.ExecutionResult) int {
	if result.Success {
		return http.StatusOK
	}
	switch result.ErrorKind {
	case executor.KindTimeoutExceeded:
		return http.StatusGatewayTimeout
	case executor.KindInvalidChain:
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}
