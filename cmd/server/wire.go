//go:build wireinject

package main

import (
	"github.com/google/wire"

	"fieldops/services/coordination-api/internal/domain"
	"fieldops/services/coordination-api/internal/infrastructure"
	"fieldops/services/coordination-api/internal/interfaces"
)

func CreateApplication() (*Application, error) {
	wire.Build(
		domain.ServiceProvider,
		infrastructure.InfrastructureProvider,
		interfaces.InterfacesProvider,
		wire.Struct(new(Application), "*"),
	)
	return nil, nil
}
