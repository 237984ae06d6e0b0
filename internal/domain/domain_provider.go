package domain

import (
	"github.com/google/wire"

	"fieldops/services/coordination-api/internal/config"
	"fieldops/services/coordination-api/internal/domain/breaker"
	"fieldops/services/coordination-api/internal/domain/events"
	"fieldops/services/coordination-api/internal/domain/executor"
	"fieldops/services/coordination-api/internal/domain/health"
	"fieldops/services/coordination-api/internal/domain/impact"
	"fieldops/services/coordination-api/internal/domain/provider"
	"fieldops/services/coordination-api/internal/domain/ratelimit"
	"fieldops/services/coordination-api/internal/domain/selector"
)

// ServiceProvider provides all engine components.
var ServiceProvider = wire.NewSet(
	events.NewBus,
	provider.NewRegistry,
	breaker.NewManager,
	health.NewMonitor,
	ratelimit.NewLimiter,
	selector.NewSelector,
	executor.NewExecutor,
	impact.NewAssessor,

	ProvideBreakerConfig,
	ProvideHealthConfig,
	ProvideRateLimitConfig,
	ProvideSelectorWeights,
	ProvideExecutorConfig,

	wire.Bind(new(executor.Breakers), new(*breaker.Manager)),
)

func ProvideBreakerConfig(cat *config.Catalogue) config.BreakerConfig {
	return cat.Engine.Breaker
}

func ProvideHealthConfig(cat *config.Catalogue) config.HealthConfig {
	return cat.Engine.Health
}

func ProvideRateLimitConfig(cat *config.Catalogue) config.RateLimitConfig {
	return cat.Engine.RateLimit
}

func ProvideSelectorWeights(cat *config.Catalogue) config.SelectorWeights {
	return cat.Engine.Selector
}

func ProvideExecutorConfig(cat *config.Catalogue) config.ExecutorConfig {
	return cat.Engine.Executor
}
