package interfaces

import (
	"github.com/google/wire"

	"fieldops/services/coordination-api/internal/interfaces/httpserver"
	"fieldops/services/coordination-api/internal/interfaces/httpserver/routes"
)

var InterfacesProvider = wire.NewSet(
	routes.RouteProvider,
	httpserver.NewHttpServer,
)
