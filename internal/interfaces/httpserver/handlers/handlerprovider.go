package handlers

import (
	"github.com/google/wire"

	"fieldops/services/coordination-api/internal/interfaces/httpserver/handlers/eventhandler"
	"fieldops/services/coordination-api/internal/interfaces/httpserver/handlers/operationhandler"
	"fieldops/services/coordination-api/internal/interfaces/httpserver/handlers/providerhandler"
)

var HandlerProvider = wire.NewSet(
	providerhandler.NewProviderHandler,
	operationhandler.NewOperationHandler,
	eventhandler.NewEventHandler,
)
