package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
server:
  addr: ":8080"
db:
  dsn: "postgres://localhost/govhub"
ledger:
  gateway_endpoints:
    - "http://localhost:8545"
  hub_principal: "aaaaa-aa"
  treasury_principal: "aaaaa-aa"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.Ledger.Environment)
	assert.Equal(t, uint64(10_000), cfg.Payments.BaseFee)
	assert.Equal(t, 15*time.Minute, cfg.ConfirmTTL())
	assert.Equal(t, time.Minute, cfg.DistributionInterval())
	assert.Equal(t, time.Minute, cfg.EmissionSpacing())
}

func TestLoadRejectsIncompleteConfig(t *testing.T) {
	for _, content := range []string{
		`server: {addr: ":8080"}`,
		`{server: {addr: ":8080"}, db: {dsn: "x"}}`,
	} {
		_, err := Load(writeConfig(t, content))
		assert.Error(t, err)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LEDGER_GATEWAY_ENDPOINTS", "http://a:1, http://b:2")
	t.Setenv("CONFIRM_TTL_MINUTES", "30")
	t.Setenv("ADMIN_TOKEN", "hunter2")

	cfg, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, []string{"http://a:1", "http://b:2"}, cfg.Ledger.GatewayEndpoints)
	assert.Equal(t, 30*time.Minute, cfg.ConfirmTTL())
	assert.Equal(t, "hunter2", cfg.Admin.Token)
}
