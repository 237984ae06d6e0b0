package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fieldops/services/coordination-api/internal/config"
	"fieldops/services/coordination-api/internal/interfaces/httpserver/handlers/eventhandler"
	"fieldops/services/coordination-api/internal/interfaces/httpserver/handlers/operationhandler"
	"fieldops/services/coordination-api/internal/interfaces/httpserver/handlers/providerhandler"
)

type V1Route struct {
	providerHandler  *providerhandler.ProviderHandler
	operationHandler *operationhandler.OperationHandler
	eventHandler     *eventhandler.EventHandler
}

func NewV1Route(
	providerHandler *providerhandler.ProviderHandler,
	operationHandler *operationhandler.OperationHandler,
	eventHandler *eventhandler.EventHandler,
) *V1Route {
	return &V1Route{
		providerHandler,
		operationHandler,
		eventHandler,
	}
}

func (v1Route *V1Route) RegisterRouter(router gin.IRouter) {
	v1Router := router.Group("/v1")
	v1Router.GET("/version", GetVersion)
	v1Router.GET("/healthz", GetHealthz)
	v1Router.GET("/readyz", GetReadyz)

	providers := v1Router.Group("/providers")
	providers.GET("/status", v1Route.providerHandler.GetStatus)
	providers.GET("/costs", v1Route.providerHandler.GetCosts)

	operations := v1Router.Group("/operations")
	operations.POST("/execute", v1Route.operationHandler.Execute)

	events := v1Router.Group("/events")
	events.GET("/stream", v1Route.eventHandler.Stream)
}

// GetVersion godoc
// @Summary Get API build version
// @Description Returns the current build version of the API server.
// @Tags Server API
// @Produce json
// @Success 200 {object} map[string]string "Version information"
// @Router /v1/version [get]
func GetVersion(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version": config.Version,
	})
}

// GetHealthz godoc
// @Summary Health check endpoint
// @Description Returns the health status of the API server.
// @Tags Server API
// @Produce json
// @Success 200 {object} map[string]string "Health status OK"
// @Router /v1/healthz [get]
func GetHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetReadyz godoc
// @Summary Readiness check endpoint
// @Description Returns the readiness status of the API server.
// @Tags Server API
// @Produce json
// @Success 200 {object} map[string]string "Readiness status ready"
// @Router /v1/readyz [get]
func GetReadyz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
