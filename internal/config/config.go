package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// Global singleton kept for the scheduled reload job.
var globalConfig *Config

// Config holds all environment backed configuration for coordination-api.
type Config struct {
	// HTTP Server
	HTTPPort    int `env:"HTTP_PORT" envDefault:"8080"`
	MetricsPort int `env:"METRICS_PORT" envDefault:"9091"`
	PprofPort   int `env:"PPROF_PORT" envDefault:"6060"`

	// Provider catalogue
	CatalogueFile          string `env:"PROVIDER_CATALOGUE_FILE" envDefault:"config/providers.yml"`
	CatalogueReloadEnabled bool   `env:"CATALOGUE_RELOAD_ENABLED" envDefault:"true"`

	// Cross-process state sharing
	RedisURL       string        `env:"REDIS_URL"`
	StateMirrorTTL time.Duration `env:"STATE_MIRROR_TTL" envDefault:"2m"`

	// Observability / Logging
	HTTPTimeout      time.Duration `env:"HTTP_TIMEOUT" envDefault:"30s"`
	OTLPEndpoint     string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPHeaders      string        `env:"OTEL_EXPORTER_OTLP_HEADERS"`
	ServiceName      string        `env:"SERVICE_NAME" envDefault:"coordination-api"`
	ServiceNamespace string        `env:"SERVICE_NAMESPACE" envDefault:"fieldops"`
	Environment      string        `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel         string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat        string        `env:"LOG_FORMAT" envDefault:"console"`

	// Internal
	EnvReloadedAt time.Time
}

// Load parses environment variables into Config and performs minimal validation.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.CatalogueFile = strings.TrimSpace(cfg.CatalogueFile)
	if cfg.CatalogueFile == "" {
		return nil, fmt.Errorf("PROVIDER_CATALOGUE_FILE must not be empty")
	}

	cfg.EnvReloadedAt = time.Now()
	globalConfig = cfg
	return cfg, nil
}

// GetGlobal returns the last loaded configuration, or nil before Load.
func GetGlobal() *Config {
	return globalConfig
}
