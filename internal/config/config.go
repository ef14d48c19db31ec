// Package config loads swapgraphd's YAML configuration. Grounded on
// gateway/config/config.go's defaults-then-decode-then-validate shape and
// its tri-state UnmarshalYAML pattern for auth.enabled (distinguishing
// "not set" from "explicitly false").
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// StorageConfig points at the durable backing for state and idempotency.
type StorageConfig struct {
	SnapshotPath    string `yaml:"snapshotPath"`    // bbolt file; empty = in-memory only
	IdempotencyPath string `yaml:"idempotencyPath"` // leveldb dir; empty = in-memory only
}

// SigningConfig names the active HMAC signing key.
type SigningConfig struct {
	KeyID  string `yaml:"keyId"`
	Secret string `yaml:"secret"`
}

// RateLimitConfig bounds one path group's request rate.
type RateLimitConfig struct {
	ID            string   `yaml:"id"`
	RatePerSecond float64  `yaml:"ratePerSecond"`
	Burst         int      `yaml:"burst"`
	Paths         []string `yaml:"paths"`
}

// ObservabilityConfig toggles metrics/tracing/log verbosity.
type ObservabilityConfig struct {
	ServiceName   string `yaml:"serviceName"`
	Metrics       bool   `yaml:"metrics"`
	Tracing       bool   `yaml:"tracing"`
	LogRequests   bool   `yaml:"logRequests"`
	MetricsPrefix string `yaml:"metricsPrefix"`
}

// LoggingConfig points structured logs at a rotating file; an empty Path
// keeps logging on stdout.
type LoggingConfig struct {
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
	Compress   bool   `yaml:"compress"`
}

// AuthConfig configures the optional reserved JWT bearer layer; the
// mandatory actor/scope header contract (§4.11) is always enforced and is
// not gated by this config.
type AuthConfig struct {
	Enabled        bool          `yaml:"enabled"`
	JWTIssuer      string        `yaml:"jwtIssuer"`
	JWTAudience    string        `yaml:"jwtAudience"`
	JWTSigningKey  string        `yaml:"jwtSigningKey"`
	ClockSkew      time.Duration `yaml:"clockSkew"`
	enabledSet     bool          `yaml:"-"`
}

// UnmarshalYAML distinguishes "enabled absent from YAML" (apply the
// not-set default) from "enabled: false" (explicit, respected).
func (a *AuthConfig) UnmarshalYAML(node *yaml.Node) error {
	type rawAuthConfig struct {
		Enabled       *bool         `yaml:"enabled"`
		JWTIssuer     string        `yaml:"jwtIssuer"`
		JWTAudience   string        `yaml:"jwtAudience"`
		JWTSigningKey string        `yaml:"jwtSigningKey"`
		ClockSkew     time.Duration `yaml:"clockSkew"`
	}
	var raw rawAuthConfig
	if err := node.Decode(&raw); err != nil {
		return err
	}
	if raw.Enabled != nil {
		a.Enabled = *raw.Enabled
		a.enabledSet = true
	} else {
		a.Enabled = false
		a.enabledSet = false
	}
	a.JWTIssuer = raw.JWTIssuer
	a.JWTAudience = raw.JWTAudience
	a.JWTSigningKey = raw.JWTSigningKey
	a.ClockSkew = raw.ClockSkew
	return nil
}

// Config is swapgraphd's full runtime configuration.
type Config struct {
	ListenAddress string              `yaml:"listen"`
	ReadTimeout   time.Duration       `yaml:"readTimeout"`
	WriteTimeout  time.Duration       `yaml:"writeTimeout"`
	IdleTimeout   time.Duration       `yaml:"idleTimeout"`
	Storage       StorageConfig       `yaml:"storage"`
	Signing       SigningConfig       `yaml:"signing"`
	RateLimits    []RateLimitConfig   `yaml:"rateLimits"`
	Observability ObservabilityConfig `yaml:"observability"`
	Auth          AuthConfig          `yaml:"auth"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// Load reads and validates config from path; an empty path validates the
// defaults alone, which fails because the defaults carry no signing key.
func Load(path string) (Config, error) {
	cfg := Config{
		ListenAddress: ":8080",
		ReadTimeout:   30 * time.Second,
		WriteTimeout:  30 * time.Second,
		IdleTimeout:   120 * time.Second,
		Observability: ObservabilityConfig{
			ServiceName:   "swapgraphd",
			Metrics:       true,
			Tracing:       true,
			LogRequests:   true,
			MetricsPrefix: "swapgraph",
		},
		Auth: AuthConfig{
			Enabled:    false,
			ClockSkew:  2 * time.Minute,
			enabledSet: true,
		},
	}
	if path == "" {
		if err := cfg.Validate(); err != nil {
			return Config{}, fmt.Errorf("validate config: %w", err)
		}
		return cfg, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Validate checks cross-field invariants Load's decode step cannot.
func (cfg *Config) Validate() error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if strings.TrimSpace(cfg.Signing.KeyID) == "" {
		return fmt.Errorf("signing.keyId is required")
	}
	if strings.TrimSpace(cfg.Signing.Secret) == "" {
		return fmt.Errorf("signing.secret is required")
	}
	if cfg.Auth.Enabled {
		if strings.TrimSpace(cfg.Auth.JWTSigningKey) == "" {
			return fmt.Errorf("auth.jwtSigningKey is required when auth.enabled is true")
		}
	}
	return nil
}
