package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := writeConfig(t, `
log_level = "debug"

[server]
port = 9000

[ledger]
starting_balance = 500.0
expiry_sweep = "10s"

[chain]
enabled = true
node_url = "http://node:8080"
chain_id = "e476187f"
application_id = "fab1"
timeout = "5s"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 500.0, cfg.Ledger.StartingBalance)
	assert.Equal(t, 10*time.Second, cfg.Ledger.ExpirySweep.Duration)
	assert.Equal(t, 5*time.Second, cfg.Chain.Timeout.Duration)

	// Untouched sections keep their defaults.
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 15*time.Second, cfg.Reconcile.Interval.Duration)

	require.NoError(t, cfg.Validate())
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("PREDICTUM_SERVER_PORT", "7777")
	t.Setenv("PREDICTUM_LEDGER_STARTING_BALANCE", "2500")
	t.Setenv("PREDICTUM_RECONCILE_INTERVAL", "45s")
	t.Setenv("PREDICTUM_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	path := writeConfig(t, `log_level = "info"`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Server.Port)
	assert.Equal(t, 2500.0, cfg.Ledger.StartingBalance)
	assert.Equal(t, 45*time.Second, cfg.Reconcile.Interval.Duration)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.LogLevel = "loud"
	cfg.Server.Port = -1
	cfg.Reconcile.Enabled = true // chain still disabled
	cfg.Reconcile.MaxRetries = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_level")
	assert.Contains(t, err.Error(), "port")
	assert.Contains(t, err.Error(), "requires chain")
	assert.Contains(t, err.Error(), "max_retries")
}

func TestValidateOracleRequirements(t *testing.T) {
	cfg := Defaults()
	cfg.Oracle.Enabled = true
	cfg.Oracle.Interval = duration{0}
	cfg.Oracle.TopCoins = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oracle: interval")
	assert.Contains(t, err.Error(), "top_coins")

	cfg.Oracle.Interval = duration{5 * time.Minute}
	cfg.Oracle.TopCoins = 15
	require.NoError(t, cfg.Validate())
}

func TestValidateChainRequirements(t *testing.T) {
	cfg := Defaults()
	cfg.Chain.Enabled = true

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chain_id")
	assert.Contains(t, err.Error(), "application_id")

	cfg.Chain.ChainID = "e476"
	cfg.Chain.ApplicationID = "fab1"
	require.NoError(t, cfg.Validate())
}
