package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, 9091, cfg.MetricsPort)
	assert.Equal(t, 6060, cfg.PprofPort)
	assert.Equal(t, "config/providers.yml", cfg.CatalogueFile)
	assert.True(t, cfg.CatalogueReloadEnabled)
	assert.False(t, cfg.EnvReloadedAt.IsZero())
	assert.Same(t, cfg, GetGlobal())
}

func TestLoadHonorsPortOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("PPROF_PORT", "7070")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.HTTPPort)
	assert.Equal(t, 7070, cfg.PprofPort)
}

func TestLoadRejectsBlankCatalogueFile(t *testing.T) {
	t.Setenv("PROVIDER_CATALOGUE_FILE", "   ")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PROVIDER_CATALOGUE_FILE")
}
