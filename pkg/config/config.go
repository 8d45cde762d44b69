package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/verdant-ai/verdant/pkg/models"
)

// Config holds all Verdant configuration.
type Config struct {
	Listen       string             `yaml:"listen"`
	DBPath       string             `yaml:"db_path"`
	LogLevel     string             `yaml:"log_level"`
	Providers    []ProviderConfig   `yaml:"providers"`
	Router       RouterConfig       `yaml:"router"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Cache        CacheConfig        `yaml:"cache"`
	Fingerprint  FingerprintConfig  `yaml:"fingerprint"`
	Usage        UsageConfig        `yaml:"usage"`
	Attempts     AttemptsConfig     `yaml:"attempts"`
}

// ProviderConfig defines an upstream inference endpoint.
type ProviderConfig struct {
	Name   string `yaml:"name"`
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// RouterConfig defines per-feature endpoint chains.
type RouterConfig struct {
	Routes []RouteConfig `yaml:"routes"`
}

// RouteConfig maps a feature to an ordered list of provider names.
type RouteConfig struct {
	Feature   models.Feature `yaml:"feature"`
	Providers []string       `yaml:"providers"`
}

// OrchestratorConfig bounds the provider attempt loop.
type OrchestratorConfig struct {
	MaxRetries     int           `yaml:"max_retries"`
	AttemptTimeout time.Duration `yaml:"attempt_timeout"`
	RetryBackoff   time.Duration `yaml:"retry_backoff"`
	MaxImageBytes  int           `yaml:"max_image_bytes"`
	MaxBodyBytes   int           `yaml:"max_body_bytes"`
}

// Cache backends.
const (
	CacheBackendSQLite = "sqlite"
	CacheBackendRedis  = "redis"
)

// CacheConfig controls the result cache.
type CacheConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Backend     string        `yaml:"backend"`
	TTL         time.Duration `yaml:"ttl"`
	FallbackTTL time.Duration `yaml:"fallback_ttl"`
	RedisURL    string        `yaml:"redis_url"`
}

// Fingerprint modes.
const (
	FingerprintReference = "reference"
	FingerprintContent   = "content"
)

// FingerprintConfig selects how cache keys are derived from images.
type FingerprintConfig struct {
	Mode string `yaml:"mode"`
}

// UsageConfig controls the usage ledger.
type UsageConfig struct {
	DefaultUser   string                            `yaml:"default_user"`
	Tiers         map[models.Tier]models.TierLimits `yaml:"tiers"`
	Windows       map[models.Window]time.Duration   `yaml:"windows"`
	CountFallback bool                              `yaml:"count_fallback"`
}

// AttemptsConfig controls the provider attempt log.
type AttemptsConfig struct {
	Enabled       bool `yaml:"enabled"`
	RetentionDays int  `yaml:"retention_days"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Listen:   ":8080",
		DBPath:   "verdant.db",
		LogLevel: "info",
		Orchestrator: OrchestratorConfig{
			MaxRetries:     2,
			AttemptTimeout: 20 * time.Second,
			MaxImageBytes:  4 << 20,
			MaxBodyBytes:   6 << 20,
		},
		Cache: CacheConfig{
			Enabled:     true,
			Backend:     CacheBackendSQLite,
			TTL:         24 * time.Hour,
			FallbackTTL: 15 * time.Minute,
		},
		Fingerprint: FingerprintConfig{Mode: FingerprintReference},
		Usage: UsageConfig{
			DefaultUser: "local",
			Tiers: map[models.Tier]models.TierLimits{
				models.TierFree: {
					models.FeatureIdentify: {models.WindowDaily: 5},
					models.FeatureDiagnose: {models.WindowDaily: 3},
					models.FeatureChat:     {models.WindowDaily: 10},
				},
				models.TierPremium: {},
			},
			Windows: map[models.Window]time.Duration{
				models.WindowDaily:   24 * time.Hour,
				models.WindowWeekly:  7 * 24 * time.Hour,
				models.WindowMonthly: 30 * 24 * time.Hour,
			},
		},
		Attempts: AttemptsConfig{
			Enabled:       true,
			RetentionDays: 30,
		},
	}
}

// Load reads a YAML config file and expands environment variables.
// A .env file next to the config (or in the working directory) is loaded first.
func Load(path string) (*Config, error) {
	loadDotEnv(filepath.Join(filepath.Dir(path), ".env"), ".env")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.fillWindows()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDotEnv loads the first existing file. Variables already set win.
func loadDotEnv(paths ...string) {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
			return
		}
	}
}

// fillWindows restores default window lengths a partial YAML map left out.
func (c *Config) fillWindows() {
	defaults := Default().Usage.Windows
	if c.Usage.Windows == nil {
		c.Usage.Windows = defaults
		return
	}
	for w, d := range defaults {
		if c.Usage.Windows[w] <= 0 {
			c.Usage.Windows[w] = d
		}
	}
}

// Validate rejects unknown enum values and impossible bounds.
func (c *Config) Validate() error {
	var errs []error
	if c.Orchestrator.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("orchestrator.max_retries must be >= 1, got %d", c.Orchestrator.MaxRetries))
	}
	if c.Orchestrator.AttemptTimeout <= 0 {
		errs = append(errs, errors.New("orchestrator.attempt_timeout must be positive"))
	}
	switch c.Cache.Backend {
	case CacheBackendSQLite, CacheBackendRedis:
	default:
		errs = append(errs, fmt.Errorf("cache.backend: unknown backend %q", c.Cache.Backend))
	}
	if c.Cache.Backend == CacheBackendRedis && c.Cache.Enabled && c.Cache.RedisURL == "" {
		errs = append(errs, errors.New("cache.redis_url is required for the redis backend"))
	}
	switch c.Fingerprint.Mode {
	case FingerprintReference, FingerprintContent:
	default:
		errs = append(errs, fmt.Errorf("fingerprint.mode: unknown mode %q", c.Fingerprint.Mode))
	}
	for tier, limits := range c.Usage.Tiers {
		if _, err := models.ParseTier(string(tier)); err != nil {
			errs = append(errs, fmt.Errorf("usage.tiers: %w", err))
		}
		for feature, windows := range limits {
			if _, err := models.ParseFeature(string(feature)); err != nil {
				errs = append(errs, fmt.Errorf("usage.tiers.%s: %w", tier, err))
			}
			for w, limit := range windows {
				if _, err := models.ParseWindow(string(w)); err != nil {
					errs = append(errs, fmt.Errorf("usage.tiers.%s.%s: %w", tier, feature, err))
				}
				if limit < 0 {
					errs = append(errs, fmt.Errorf("usage.tiers.%s.%s.%s: negative limit", tier, feature, w))
				}
			}
		}
	}
	for _, r := range c.Router.Routes {
		if _, err := models.ParseFeature(string(r.Feature)); err != nil {
			errs = append(errs, fmt.Errorf("router.routes: %w", err))
		}
	}
	return errors.Join(errs...)
}
