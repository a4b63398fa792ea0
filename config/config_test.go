package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestReadConfig(t *testing.T) {
	path := writeConfigFile(t, `
prover-address = "0.0.0.0:3001"
metrics-address = "0.0.0.0:9998"
json-logging = true
circuit-dir = "/var/lib/prover/circuits"
keys = ["/var/lib/prover/circuits/membership_16.key", "/var/lib/prover/circuits/two-tier_16_10.key"]
`)

	cfg, err := ReadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:3001", cfg.ProverAddress)
	assert.Equal(t, "0.0.0.0:9998", cfg.MetricsAddress)
	assert.True(t, cfg.JSONLogging)
	assert.Equal(t, "/var/lib/prover/circuits", cfg.CircuitDir)
	require.NoError(t, cfg.Validate())

	assert.True(t, cfg.HasKey("/var/lib/prover/circuits/membership_16.key"))
	assert.False(t, cfg.HasKey("/var/lib/prover/circuits/membership_20.key"))
}

func TestReadConfigDefaults(t *testing.T) {
	path := writeConfigFile(t, `keys = ["circuits/membership_16.key"]`)

	cfg, err := ReadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "localhost:3001", cfg.ProverAddress)
	assert.Equal(t, "localhost:9998", cfg.MetricsAddress)
	assert.False(t, cfg.JSONLogging)
}

func TestValidateRequiresKeys(t *testing.T) {
	path := writeConfigFile(t, `prover-address = "localhost:3001"`)

	cfg, err := ReadConfig(path)
	require.NoError(t, err)
	assert.Error(t, cfg.Validate())
}

func TestReadConfigErrors(t *testing.T) {
	_, err := ReadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	path := writeConfigFile(t, `keys = not-toml`)
	_, err = ReadConfig(path)
	assert.Error(t, err)
}
