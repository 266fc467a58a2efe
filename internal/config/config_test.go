package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "be-hr-change-reports", cfg.Service.Name)
	assert.Equal(t, 8086, cfg.Server.Port)
	assert.Equal(t, int64(10_000), cfg.Workflow.NegligibleAmountCents)
	assert.Equal(t, 1.0, cfg.Workflow.NegligiblePercent)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "no-such-file.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8086, cfg.Server.Port)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfigFile(t, `
service:
  environment: production
server:
  port: 9090
  read_timeout: 5s
database:
  host: db.internal
  database: hr
auth:
  tokens:
    tok-1: user-1
workflow:
  negligible_amount_cents: 25000
  audit_exempt_kinds:
    - deduction_change
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Service.Environment)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, map[string]string{"tok-1": "user-1"}, cfg.Auth.Tokens)
	assert.Equal(t, int64(25_000), cfg.Workflow.NegligibleAmountCents)
	assert.Equal(t, []string{"deduction_change"}, cfg.Workflow.AuditExemptKinds)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 9090
`)
	t.Setenv("HRCR_SERVER_PORT", "7777")
	t.Setenv("HRCR_DATABASE_HOST", "env-host")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Server.Port)
	assert.Equal(t, "env-host", cfg.Database.Host)
}

func TestEnvOverridesMultiWordKeys(t *testing.T) {
	t.Setenv("HRCR_DATABASE_MAX_CONNS", "99")
	t.Setenv("HRCR_DATABASE_SSL_MODE", "require")
	t.Setenv("HRCR_SERVER_READ_TIMEOUT", "3s")
	t.Setenv("HRCR_WORKFLOW_NEGLIGIBLE_AMOUNT_CENTS", "555")
	t.Setenv("HRCR_WORKFLOW_NEGLIGIBLE_PERCENT", "2.5")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, int32(99), cfg.Database.MaxConns)
	assert.Equal(t, "require", cfg.Database.SSLMode)
	assert.Equal(t, 3*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, int64(555), cfg.Workflow.NegligibleAmountCents)
	assert.Equal(t, 2.5, cfg.Workflow.NegligiblePercent)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port out of range", func(c *Config) { c.Server.Port = 0 }},
		{"missing database host", func(c *Config) { c.Database.Host = "" }},
		{"missing database name", func(c *Config) { c.Database.Database = "" }},
		{"negative amount threshold", func(c *Config) { c.Workflow.NegligibleAmountCents = -1 }},
		{"negative percent threshold", func(c *Config) { c.Workflow.NegligiblePercent = -0.1 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, Default().Validate())
}
