package infrastructure

import (
	"github.com/google/wire"
	"github.com/rs/zerolog"

	"fieldops/services/coordination-api/internal/config"
	"fieldops/services/coordination-api/internal/domain/executor"
	"fieldops/services/coordination-api/internal/domain/health"
	"fieldops/services/coordination-api/internal/infrastructure/adapters"
	"fieldops/services/coordination-api/internal/infrastructure/crontab"
	"fieldops/services/coordination-api/internal/infrastructure/kvstore"
	"fieldops/services/coordination-api/internal/infrastructure/logger"
	"fieldops/services/coordination-api/internal/infrastructure/scheduler"
)

// ProvideConfig loads and provides the application configuration
func ProvideConfig() (*config.Config, error) {
	return config.Load()
}

// ProvideCatalogue loads the provider catalogue from disk.
func ProvideCatalogue(cfg *config.Config) (*config.Catalogue, error) {
	return config.LoadCatalogue(cfg.CatalogueFile)
}

// ProvideClock supplies the wall clock. Tests substitute a fake.
func ProvideClock() scheduler.Clock {
	return scheduler.SystemClock()
}

// ProvideStore selects the shared state backend. Redis when configured,
// otherwise in-process memory.
func ProvideStore(cfg *config.Config, log zerolog.Logger) (kvstore.Store, error) {
	if cfg.RedisURL == "" {
		log.Info().Msg("REDIS_URL not set, using in-memory state mirror store")
		return kvstore.NewMemoryStore(), nil
	}
	return kvstore.NewRedisStore(cfg.RedisURL)
}

// ProvideMirror wires the event driven state mirror.
func ProvideMirror(store kvstore.Store, cfg *config.Config, log zerolog.Logger) *kvstore.Mirror {
	return kvstore.NewMirror(store, cfg.StateMirrorTTL, log)
}

// Infrastructure holds all infrastructure dependencies
type Infrastructure struct {
	Logger  zerolog.Logger
	Store   kvstore.Store
	Mirror  *kvstore.Mirror
	Crontab *crontab.Crontab
	Adapter *adapters.HTTPAdapter
}

// NewInfrastructure creates a new infrastructure instance
func NewInfrastructure(
	log zerolog.Logger,
	store kvstore.Store,
	mirror *kvstore.Mirror,
	ctab *crontab.Crontab,
	adapter *adapters.HTTPAdapter,
) *Infrastructure {
	return &Infrastructure{
		Logger:  log,
		Store:   store,
		Mirror:  mirror,
		Crontab: ctab,
		Adapter: adapter,
	}
}

// InfrastructureProvider provides all infrastructure dependencies
var InfrastructureProvider = wire.NewSet(
	// Config
	ProvideConfig,
	ProvideCatalogue,

	// Logger
	logger.GetLogger,

	// Clock and periodic runner
	ProvideClock,
	scheduler.NewRunner,

	// Provider SDK adapter
	adapters.NewHTTPAdapter,
	wire.Bind(new(executor.Invoker), new(*adapters.HTTPAdapter)),
	wire.Bind(new(health.Prober), new(*adapters.HTTPAdapter)),
	wire.Bind(new(crontab.ClientResetter), new(*adapters.HTTPAdapter)),

	// Shared state mirror
	ProvideStore,
	ProvideMirror,

	// Crontab for catalogue reload and budget rollover
	crontab.NewCrontab,

	// Infrastructure struct
	NewInfrastructure,
)
