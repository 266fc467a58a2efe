// Package config loads service configuration from a YAML file with
// environment variable overrides (HRCR_ prefix; the first underscore after
// the prefix separates the section from the key, so HRCR_SERVER_PORT=8086
// overrides server.port and HRCR_DATABASE_MAX_CONNS=20 overrides
// database.max_conns).
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the root service configuration.
type Config struct {
	Service  ServiceConfig  `koanf:"service"`
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	NATS     NATSConfig     `koanf:"nats"`
	Auth     AuthConfig     `koanf:"auth"`
	Workflow WorkflowConfig `koanf:"workflow"`
}

// ServiceConfig identifies the service in logs and events.
type ServiceConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	RequestTimeout  time.Duration `koanf:"request_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// DatabaseConfig holds Postgres connection settings.
type DatabaseConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	User            string        `koanf:"user"`
	Password        string        `koanf:"password"`
	Database        string        `koanf:"database"`
	SSLMode         string        `koanf:"ssl_mode"`
	MaxConns        int32         `koanf:"max_conns"`
	MinConns        int32         `koanf:"min_conns"`
	MaxConnLifetime time.Duration `koanf:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `koanf:"max_conn_idle_time"`
}

// NATSConfig holds the notification publisher settings.
// An empty URL disables publishing entirely.
type NATSConfig struct {
	URL string `koanf:"url"`
}

// AuthConfig maps bearer tokens to actor user IDs. Tokens are issued
// out-of-band (service-to-service credentials); an unknown or missing token
// yields 401 on every mutating route.
type AuthConfig struct {
	Tokens map[string]string `koanf:"tokens"`
}

// WorkflowConfig holds the approval gate policy knobs.
type WorkflowConfig struct {
	// Changes at or below these magnitudes skip the Audit gate.
	NegligibleAmountCents int64   `koanf:"negligible_amount_cents"`
	NegligiblePercent     float64 `koanf:"negligible_percent"`
	// Change kinds exempted from Audit by policy.
	AuditExemptKinds []string `koanf:"audit_exempt_kinds"`
}

// Default returns the baseline configuration before file/env overlays.
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:        "be-hr-change-reports",
			Version:     "dev",
			Environment: "development",
		},
		Server: ServerConfig{
			Port:            8086,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			RequestTimeout:  30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			User:            "postgres",
			Database:        "hr_change_reports",
			SSLMode:         "disable",
			MaxConns:        10,
			MinConns:        2,
			MaxConnLifetime: time.Hour,
			MaxConnIdleTime: 30 * time.Minute,
		},
		Workflow: WorkflowConfig{
			NegligibleAmountCents: 10_000, // 100.00 in minor units
			NegligiblePercent:     1.0,
		},
	}
}

// Load reads configuration from path (if it exists) and overlays HRCR_*
// environment variables onto the defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("accessing config %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("HRCR_", ".", func(s string) string {
		// Only the first underscore is a section separator; key names
		// themselves contain underscores (max_conns, read_timeout).
		key := strings.ToLower(strings.TrimPrefix(s, "HRCR_"))
		section, rest, found := strings.Cut(key, "_")
		if !found {
			return section
		}
		return section + "." + rest
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}
	if c.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if c.Database.Database == "" {
		return fmt.Errorf("database.database is required")
	}
	if c.Workflow.NegligibleAmountCents < 0 {
		return fmt.Errorf("workflow.negligible_amount_cents must be non-negative")
	}
	if c.Workflow.NegligiblePercent < 0 {
		return fmt.Errorf("workflow.negligible_percent must be non-negative")
	}
	return nil
}
