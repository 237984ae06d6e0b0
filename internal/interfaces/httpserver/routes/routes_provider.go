package routes

import (
	"github.com/google/wire"

	"fieldops/services/coordination-api/internal/interfaces/httpserver/handlers"
	v1 "fieldops/services/coordination-api/internal/interfaces/httpserver/routes/v1"
)

var RouteProvider = wire.NewSet(
	handlers.HandlerProvider,
	v1.NewV1Route,
)
