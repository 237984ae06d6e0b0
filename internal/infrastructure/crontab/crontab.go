package crontab

import (
	"context"
	"os"
	"time"

	"github.com/mileusna/crontab"

	"fieldops/services/coordination-api/internal/config"
	"fieldops/services/coordination-api/internal/domain/provider"
	"fieldops/services/coordination-api/internal/infrastructure/logger"
	"fieldops/services/coordination-api/internal/utils/platformerrors"
)

// ClientResetter invalidates a cached provider client so the next call
// picks up fresh catalogue settings.
type ClientResetter interface {
	Reset(providerID string)
}

// Crontab schedules the coarse maintenance jobs: provider catalogue hot
// reload, budget window rollover and environment refresh. Fine-grained
// periodic work (health sweeps) runs on the scheduler instead.
type Crontab struct {
	ctab     *crontab.Crontab
	cfg      *config.Config
	registry *provider.Registry
	clients  ClientResetter

	catalogueModTime time.Time
}

func NewCrontab(cfg *config.Config, registry *provider.Registry, clients ClientResetter) *Crontab {
	return &Crontab{
		ctab:     crontab.New(),
		cfg:      cfg,
		registry: registry,
		clients:  clients,
	}
}

func (c *Crontab) Run(ctx context.Context) error {
	log := logger.GetLogger()

	if c.cfg.CatalogueReloadEnabled {
		if info, err := os.Stat(c.cfg.CatalogueFile); err == nil {
			c.catalogueModTime = info.ModTime()
		}
		if err := c.ctab.AddJob("* * * * *", c.reloadCatalogueIfChanged); err != nil {
			return platformerrors.AsError(ctx, platformerrors.LayerInfrastructure, err, "failed to add catalogue reload job")
		}
		log.Info().Str("file", c.cfg.CatalogueFile).Msg("catalogue hot reload scheduled")
	}

	// Budget windows roll on day and month boundaries; an hourly sweep is
	// plenty for re-enabling providers.
	if err := c.ctab.AddJob("0 * * * *", c.registry.Rollover); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerInfrastructure, err, "failed to add budget rollover job")
	}

	// Refresh environment-backed configuration.
	if err := c.ctab.AddJob("* * * * *", func() {
		config.Load()
	}); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerInfrastructure, err, "failed to add env reload job")
	}

	<-ctx.Done()
	c.ctab.Shutdown()
	return nil
}

func (c *Crontab) reloadCatalogueIfChanged() {
	log := logger.GetLogger()

	info, err := os.Stat(c.cfg.CatalogueFile)
	if err != nil {
		log.Warn().Str("file", c.cfg.CatalogueFile).Err(err).Msg("catalogue stat failed")
		return
	}
	if !info.ModTime().After(c.catalogueModTime) {
		return
	}

	cat, err := config.LoadCatalogue(c.cfg.CatalogueFile)
	if err != nil {
		// A broken file on disk must not take down the running engine;
		// keep serving the last good catalogue.
		log.Error().Str("file", c.cfg.CatalogueFile).Err(err).Msg("catalogue reload failed, keeping previous")
		return
	}

	previous := c.registry.All()
	if err := c.registry.Reload(cat); err != nil {
		log.Error().Err(err).Msg("registry reload failed")
		return
	}
	c.resetStaleClients(previous)

	c.catalogueModTime = info.ModTime()
	log.Info().Str("file", c.cfg.CatalogueFile).Msg("provider catalogue reloaded")
}

// resetStaleClients drops cached provider clients whose connection settings
// changed in the reload, or whose provider disappeared. The registry already
// serves the new catalogue when this runs.
func (c *Crontab) resetStaleClients(previous []provider.Provider) {
	for _, old := range previous {
		current, ok := c.registry.Get(old.ID)
		if !ok || clientSettingsChanged(old, current) {
			c.clients.Reset(old.ID)
		}
	}
}

// Only the fields baked into a resty client matter here; health paths and
// budgets are read per request.
func clientSettingsChanged(old, current provider.Provider) bool {
	return old.BaseURL != current.BaseURL ||
		old.InvokeTimeout != current.InvokeTimeout ||
		old.CredentialsRef != current.CredentialsRef
}
