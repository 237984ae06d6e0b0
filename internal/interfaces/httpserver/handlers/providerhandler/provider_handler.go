package providerhandler

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"fieldops/services/coordination-api/internal/domain/breaker"
	"fieldops/services/coordination-api/internal/domain/health"
	"fieldops/services/coordination-api/internal/domain/provider"
	coordinationresponses "fieldops/services/coordination-api/internal/interfaces/httpserver/responses/coordination"
)

// ProviderHandler serves the status and cost views over the registry.
type ProviderHandler struct {
	registry *provider.Registry
	breakers *breaker.Manager
	monitor  *health.Monitor
}

func NewProviderHandler(
	registry *provider.Registry,
	breakers *breaker.Manager,
	monitor *health.Monitor,
) *ProviderHandler {
	return &ProviderHandler{
		registry: registry,
		breakers: breakers,
		monitor:  monitor,
	}
}

// GetStatus godoc
// @Summary Provider status
// @Description Returns the health classification and circuit state of every configured provider.
// @Tags Providers API
// @Produce json
// @Success 200 {object} coordinationresponses.ProviderStatusList "Provider status list"
// @Router /v1/providers/status [get]
func (h *ProviderHandler) GetStatus(c *gin.Context) {
	providers := h.registry.All()
	sort.Slice(providers, func(i, j int) bool { return providers[i].ID < providers[j].ID })

	data := make([]coordinationresponses.ProviderStatusResponse, 0, len(providers))
	for _, p := range providers {
		data = append(data, coordinationresponses.BuildProviderStatus(
			p,
			h.monitor.SnapshotFor(p.ID),
			h.breakers.Snapshot(p.ID),
		))
	}

	c.JSON(http.StatusOK, coordinationresponses.ProviderStatusList{
		Object: "list",
		Data:   data,
	})
}

// GetCosts godoc
// @Summary Provider costs
// @Description Returns spend and budget utilization per provider.
// @Tags Providers API
// @Produce json
// @Success 200 {object} coordinationresponses.ProviderCostList "Provider cost list"
// @Router /v1/providers/costs [get]
func (h *ProviderHandler) GetCosts(c *gin.Context) {
	snapshots := h.registry.BudgetSnapshots()
	sort.Slice(snapshots, func(i, j int) bool { return snapshots[i].ProviderID < snapshots[j].ProviderID })

	data := make([]coordinationresponses.ProviderCostResponse, 0, len(snapshots))
	for _, s := range snapshots {
		data = append(data, coordinationresponses.BuildProviderCost(s))
	}

	c.JSON(http.StatusOK, coordinationresponses.ProviderCostList{
		Object: "list",
		Data:   data,
	})
}
