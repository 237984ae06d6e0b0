package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"fieldops/services/coordination-api/internal/infrastructure/logger"
)

// Catalogue is the validated provider configuration loaded from yaml. It is
// the only input the engine accepts at startup and on hot reload.
type Catalogue struct {
	Engine    EngineConfig
	Providers []ProviderEntry
	Chains    map[string][]string
}

// ProviderEntry describes one configured external provider.
type ProviderEntry struct {
	ID             string
	DisplayName    string
	Capability     string
	BaseURL        string
	HealthPath     string
	CredentialsRef string
	Priority       int
	CostPerRequest decimal.Decimal
	MonthlyBudget  decimal.Decimal
	LatencyTarget  time.Duration
	InvokeTimeout  time.Duration
	RateWindow     time.Duration
	RateMax        int
}

// EngineConfig groups the tunables for the resilience components.
type EngineConfig struct {
	Breaker   BreakerConfig
	Health    HealthConfig
	RateLimit RateLimitConfig
	Selector  SelectorWeights
	Executor  ExecutorConfig
}

type BreakerConfig struct {
	FailureThreshold int
	ResetTimeout     time.Duration
}

type HealthConfig struct {
	CheckInterval           time.Duration
	ErrorWindow             time.Duration
	LatencySamples          int
	ErrorRateCeiling        float64
	ConsecutiveFailureLimit int
	DegradedLatencyMultiple float64
}

type RateLimitConfig struct {
	DefaultWindow     time.Duration
	DefaultMax        int
	BackoffInitial    time.Duration
	BackoffMultiplier float64
	BackoffMax        time.Duration
	BackoffJitter     bool
}

type SelectorWeights struct {
	Cost        float64
	Latency     float64
	Reliability float64
}

type ExecutorConfig struct {
	DefaultDeadline      time.Duration
	DefaultInvokeTimeout time.Duration
}

// DefaultEngineConfig returns the documented defaults applied when the yaml
// omits an engine section or individual fields.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     30 * time.Second,
		},
		Health: HealthConfig{
			CheckInterval:           30 * time.Second,
			ErrorWindow:             5 * time.Minute,
			LatencySamples:          64,
			ErrorRateCeiling:        0.5,
			ConsecutiveFailureLimit: 3,
			DegradedLatencyMultiple: 2.0,
		},
		RateLimit: RateLimitConfig{
			DefaultWindow:     time.Minute,
			DefaultMax:        120,
			BackoffInitial:    250 * time.Millisecond,
			BackoffMultiplier: 2.0,
			BackoffMax:        5 * time.Second,
			BackoffJitter:     true,
		},
		Selector: SelectorWeights{
			Cost:        0.4,
			Latency:     0.3,
			Reliability: 0.3,
		},
		Executor: ExecutorConfig{
			DefaultDeadline:      10 * time.Second,
			DefaultInvokeTimeout: 3 * time.Second,
		},
	}
}

// raw yaml document shapes; durations and money amounts arrive as strings and
// are normalized after validation.

type catalogueDocument struct {
	Engine    *engineDocument     `yaml:"engine"`
	Providers []providerDocument  `yaml:"providers"`
	Chains    map[string][]string `yaml:"chains"`
}

type engineDocument struct {
	Breaker struct {
		FailureThreshold *int   `yaml:"failure_threshold"`
		ResetTimeout     string `yaml:"reset_timeout"`
	} `yaml:"breaker"`
	Health struct {
		CheckInterval           string   `yaml:"check_interval"`
		ErrorWindow             string   `yaml:"error_window"`
		LatencySamples          *int     `yaml:"latency_samples"`
		ErrorRateCeiling        *float64 `yaml:"error_rate_ceiling"`
		ConsecutiveFailureLimit *int     `yaml:"consecutive_failure_limit"`
		DegradedLatencyMultiple *float64 `yaml:"degraded_latency_multiple"`
	} `yaml:"health"`
	RateLimit struct {
		DefaultWindow     string   `yaml:"default_window"`
		DefaultMax        *int     `yaml:"default_max_requests"`
		BackoffInitial    string   `yaml:"backoff_initial"`
		BackoffMultiplier *float64 `yaml:"backoff_multiplier"`
		BackoffMax        string   `yaml:"backoff_max"`
		BackoffJitter     *bool    `yaml:"backoff_jitter"`
	} `yaml:"ratelimit"`
	Selector struct {
		CostWeight        *float64 `yaml:"cost_weight"`
		LatencyWeight     *float64 `yaml:"latency_weight"`
		ReliabilityWeight *float64 `yaml:"reliability_weight"`
	} `yaml:"selector"`
	Executor struct {
		DefaultDeadline      string `yaml:"default_deadline"`
		DefaultInvokeTimeout string `yaml:"default_invoke_timeout"`
	} `yaml:"executor"`
}

type providerDocument struct {
	ID             string `yaml:"id" validate:"required"`
	DisplayName    string `yaml:"display_name"`
	Capability     string `yaml:"capability" validate:"required"`
	BaseURL        string `yaml:"base_url" validate:"required,url"`
	HealthPath     string `yaml:"health_path"`
	CredentialsRef string `yaml:"credentials_ref"`
	Priority       int    `yaml:"priority" validate:"gte=0"`
	CostPerRequest string `yaml:"cost_per_request" validate:"required"`
	MonthlyBudget  string `yaml:"monthly_budget"`
	LatencyTarget  string `yaml:"latency_target"`
	InvokeTimeout  string `yaml:"invoke_timeout"`
	RateLimit      struct {
		Window      string `yaml:"window"`
		MaxRequests int    `yaml:"max_requests"`
	} `yaml:"rate_limit"`
}

// LoadCatalogue parses and validates the provider catalogue at path. Any
// problem here is a configuration error and must abort startup.
func LoadCatalogue(path string) (*Catalogue, error) {
	log := logger.GetLogger()
	cleanPath := filepath.Clean(path)
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("read provider catalogue %q: %w", cleanPath, err)
	}
	log.Info().Str("path", cleanPath).Msg("loading provider catalogue")

	var doc catalogueDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse provider catalogue %q: %w", cleanPath, err)
	}
	return buildCatalogue(&doc)
}

func buildCatalogue(doc *catalogueDocument) (*Catalogue, error) {
	if len(doc.Providers) == 0 {
		return nil, fmt.Errorf("provider catalogue has no providers defined")
	}

	engine := DefaultEngineConfig()
	if doc.Engine != nil {
		if err := applyEngineOverrides(&engine, doc.Engine); err != nil {
			return nil, err
		}
	}
	if err := validateWeights(engine.Selector); err != nil {
		return nil, err
	}

	validate := validator.New()
	seen := make(map[string]bool, len(doc.Providers))
	providers := make([]ProviderEntry, 0, len(doc.Providers))
	for idx, raw := range doc.Providers {
		if err := validate.Struct(raw); err != nil {
			return nil, fmt.Errorf("providers[%d]: %w", idx, err)
		}
		if seen[raw.ID] {
			return nil, fmt.Errorf("providers[%d]: duplicate provider id %q", idx, raw.ID)
		}
		seen[raw.ID] = true

		entry, err := normalizeProviderEntry(raw, engine)
		if err != nil {
			return nil, fmt.Errorf("providers[%d] (%s): %w", idx, raw.ID, err)
		}
		providers = append(providers, entry)
	}

	chains := make(map[string][]string, len(doc.Chains))
	for capability, chain := range doc.Chains {
		capability = strings.TrimSpace(capability)
		if capability == "" {
			return nil, fmt.Errorf("chains: empty capability name")
		}
		if len(chain) == 0 {
			return nil, fmt.Errorf("chains.%s: chain must list at least one provider", capability)
		}
		inChain := make(map[string]bool, len(chain))
		for _, id := range chain {
			if !seen[id] {
				return nil, fmt.Errorf("chains.%s: unknown provider %q", capability, id)
			}
			if inChain[id] {
				return nil, fmt.Errorf("chains.%s: provider %q repeats in chain", capability, id)
			}
			inChain[id] = true
		}
		chains[capability] = append([]string(nil), chain...)
	}

	return &Catalogue{
		Engine:    engine,
		Providers: providers,
		Chains:    chains,
	}, nil
}

func normalizeProviderEntry(raw providerDocument, engine EngineConfig) (ProviderEntry, error) {
	cost, err := decimal.NewFromString(strings.TrimSpace(raw.CostPerRequest))
	if err != nil {
		return ProviderEntry{}, fmt.Errorf("cost_per_request: %w", err)
	}
	if cost.IsNegative() {
		return ProviderEntry{}, fmt.Errorf("cost_per_request must not be negative")
	}

	budget := decimal.Zero
	if strings.TrimSpace(raw.MonthlyBudget) != "" {
		budget, err = decimal.NewFromString(strings.TrimSpace(raw.MonthlyBudget))
		if err != nil {
			return ProviderEntry{}, fmt.Errorf("monthly_budget: %w", err)
		}
	}

	latencyTarget, err := optionalDuration(raw.LatencyTarget, 500*time.Millisecond)
	if err != nil {
		return ProviderEntry{}, fmt.Errorf("latency_target: %w", err)
	}
	invokeTimeout, err := optionalDuration(raw.InvokeTimeout, engine.Executor.DefaultInvokeTimeout)
	if err != nil {
		return ProviderEntry{}, fmt.Errorf("invoke_timeout: %w", err)
	}
	rateWindow, err := optionalDuration(raw.RateLimit.Window, engine.RateLimit.DefaultWindow)
	if err != nil {
		return ProviderEntry{}, fmt.Errorf("rate_limit.window: %w", err)
	}
	rateMax := raw.RateLimit.MaxRequests
	if rateMax <= 0 {
		rateMax = engine.RateLimit.DefaultMax
	}

	display := strings.TrimSpace(raw.DisplayName)
	if display == "" {
		display = raw.ID
	}
	healthPath := strings.TrimSpace(raw.HealthPath)
	if healthPath == "" {
		healthPath = "/health"
	}

	return ProviderEntry{
		ID:             raw.ID,
		DisplayName:    display,
		Capability:     strings.TrimSpace(raw.Capability),
		BaseURL:        strings.TrimRight(raw.BaseURL, "/"),
		HealthPath:     healthPath,
		CredentialsRef: strings.TrimSpace(raw.CredentialsRef),
		Priority:       raw.Priority,
		CostPerRequest: cost,
		MonthlyBudget:  budget,
		LatencyTarget:  latencyTarget,
		InvokeTimeout:  invokeTimeout,
		RateWindow:     rateWindow,
		RateMax:        rateMax,
	}, nil
}

func applyEngineOverrides(engine *EngineConfig, doc *engineDocument) error {
	if doc.Breaker.FailureThreshold != nil {
		if *doc.Breaker.FailureThreshold < 1 {
			return fmt.Errorf("engine.breaker.failure_threshold must be >= 1")
		}
		engine.Breaker.FailureThreshold = *doc.Breaker.FailureThreshold
	}
	if err := overrideDuration(&engine.Breaker.ResetTimeout, doc.Breaker.ResetTimeout, "engine.breaker.reset_timeout"); err != nil {
		return err
	}

	if err := overrideDuration(&engine.Health.CheckInterval, doc.Health.CheckInterval, "engine.health.check_interval"); err != nil {
		return err
	}
	if err := overrideDuration(&engine.Health.ErrorWindow, doc.Health.ErrorWindow, "engine.health.error_window"); err != nil {
		return err
	}
	if doc.Health.LatencySamples != nil {
		engine.Health.LatencySamples = *doc.Health.LatencySamples
	}
	if doc.Health.ErrorRateCeiling != nil {
		engine.Health.ErrorRateCeiling = *doc.Health.ErrorRateCeiling
	}
	if doc.Health.ConsecutiveFailureLimit != nil {
		engine.Health.ConsecutiveFailureLimit = *doc.Health.ConsecutiveFailureLimit
	}
	if doc.Health.DegradedLatencyMultiple != nil {
		engine.Health.DegradedLatencyMultiple = *doc.Health.DegradedLatencyMultiple
	}

	if err := overrideDuration(&engine.RateLimit.DefaultWindow, doc.RateLimit.DefaultWindow, "engine.ratelimit.default_window"); err != nil {
		return err
	}
	if doc.RateLimit.DefaultMax != nil {
		engine.RateLimit.DefaultMax = *doc.RateLimit.DefaultMax
	}
	if err := overrideDuration(&engine.RateLimit.BackoffInitial, doc.RateLimit.BackoffInitial, "engine.ratelimit.backoff_initial"); err != nil {
		return err
	}
	if doc.RateLimit.BackoffMultiplier != nil {
		engine.RateLimit.BackoffMultiplier = *doc.RateLimit.BackoffMultiplier
	}
	if err := overrideDuration(&engine.RateLimit.BackoffMax, doc.RateLimit.BackoffMax, "engine.ratelimit.backoff_max"); err != nil {
		return err
	}
	if doc.RateLimit.BackoffJitter != nil {
		engine.RateLimit.BackoffJitter = *doc.RateLimit.BackoffJitter
	}

	if doc.Selector.CostWeight != nil {
		engine.Selector.Cost = *doc.Selector.CostWeight
	}
	if doc.Selector.LatencyWeight != nil {
		engine.Selector.Latency = *doc.Selector.LatencyWeight
	}
	if doc.Selector.ReliabilityWeight != nil {
		engine.Selector.Reliability = *doc.Selector.ReliabilityWeight
	}

	if err := overrideDuration(&engine.Executor.DefaultDeadline, doc.Executor.DefaultDeadline, "engine.executor.default_deadline"); err != nil {
		return err
	}
	if err := overrideDuration(&engine.Executor.DefaultInvokeTimeout, doc.Executor.DefaultInvokeTimeout, "engine.executor.default_invoke_timeout"); err != nil {
		return err
	}
	return nil
}

func validateWeights(w SelectorWeights) error {
	for name, v := range map[string]float64{
		"cost_weight":        w.Cost,
		"latency_weight":     w.Latency,
		"reliability_weight": w.Reliability,
	} {
		if v < 0 {
			return fmt.Errorf("engine.selector.%s must not be negative", name)
		}
	}
	if w.Cost+w.Latency+w.Reliability <= 0 {
		return fmt.Errorf("engine.selector weights must not all be zero")
	}
	return nil
}

func overrideDuration(dst *time.Duration, raw, field string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive", field)
	}
	*dst = d
	return nil
}

func optionalDuration(raw string, fallback time.Duration) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive")
	}
	return d, nil
}
