package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"codeberg.org/arvel/coherenced/internal/coherence"
	"codeberg.org/arvel/coherenced/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setArgs pins os.Args for the test so the test binary's own flags do
// not leak into config parsing.
func setArgs(t *testing.T, args ...string) {
	t.Helper()
	oldArgs := os.Args
	os.Args = append([]string{"coherenced"}, args...)
	t.Cleanup(func() { os.Args = oldArgs })
}

// chdir moves the test away from any coherenced.toml in the repo root.
func chdir(t *testing.T, dir string) {
	t.Helper()
	oldDir, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(oldDir) })
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "coherenced.toml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o600))
	return configPath
}

func TestLoad(t *testing.T) {
	setArgs(t)

	configPath := writeConfig(t, `
interval = 10
monitor = false
log_level = "debug"
telemetry = true
database = "/path/to/telemetry.db"
source = "/run/coherenced/updates"

[thresholds]
max_incoherence = 0.2
min_self_modeling = 0.75
min_memory_integrity = 0.8
min_domain_stabilization = 0.6
required_domains = ["time", "mind"]
`)
	t.Setenv("COHERENCED_CONFIG", configPath)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Interval, "Expected Interval 10")
	assert.False(t, cfg.Monitor, "Expected Monitor false")
	assert.Equal(t, "debug", cfg.LogLevel, "Expected LogLevel debug")
	assert.True(t, cfg.Telemetry, "Expected Telemetry true")
	assert.Equal(t, "/path/to/telemetry.db", cfg.TelemetryDB)
	assert.Equal(t, "/run/coherenced/updates", cfg.Source)

	policy := cfg.Policy()
	assert.InDelta(t, 0.2, policy.MaxIncoherence, 1e-9)
	assert.InDelta(t, 0.75, policy.MinSelfModeling, 1e-9)
	assert.InDelta(t, 0.8, policy.MinMemoryIntegrity, 1e-9)
	assert.InDelta(t, 0.6, policy.MinDomainStabilization, 1e-9)
	assert.Equal(t, []string{"time", "mind"}, policy.RequiredDomains)
}

func TestLoadDefaults(t *testing.T) {
	setArgs(t)

	// Ensure no config file is used
	t.Setenv("COHERENCED_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	chdir(t, t.TempDir())

	cfg, err := config.Load()
	require.NoError(t, err, "Failed to load config")

	assert.Equal(t, 5, cfg.Interval, "Expected default Interval 5")
	assert.False(t, cfg.Monitor, "Expected default Monitor false")
	assert.Equal(t, config.DefaultLogLevel, cfg.LogLevel, "Expected default LogLevel info")
	assert.False(t, cfg.Telemetry, "Expected default Telemetry false")
	assert.Empty(t, cfg.Source, "Expected default Source stdin")

	// Threshold defaults match the stock policy
	assert.Equal(t, coherence.DefaultPolicy(), cfg.Policy())
}

func TestLoadConfigFileInvalidFormat(t *testing.T) {
	setArgs(t)

	configPath := writeConfig(t, `
This is not a valid TOML file
`)
	t.Setenv("COHERENCED_CONFIG", configPath)

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Failed to read configuration")
}

func TestInvalidLogLevel(t *testing.T) {
	setArgs(t)

	configPath := writeConfig(t, `
log_level = "invalid"
`)
	t.Setenv("COHERENCED_CONFIG", configPath)

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid log level")
}

func TestInvalidInterval(t *testing.T) {
	setArgs(t)

	configPath := writeConfig(t, `
interval = 0
`)
	t.Setenv("COHERENCED_CONFIG", configPath)

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid interval")
}

func TestLogLevelFlag(t *testing.T) {
	setArgs(t, "--log-level", "debug")
	t.Setenv("COHERENCED_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	chdir(t, t.TempDir())

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel, "Expected LogLevel to be set by flag")
}

func TestConfigFileOverridesUnchangedFlagDefaults(t *testing.T) {
	setArgs(t, "--interval", "3")

	configPath := writeConfig(t, `
interval = 9
log_level = "warning"
`)
	t.Setenv("COHERENCED_CONFIG", configPath)

	cfg, err := config.Load()
	require.NoError(t, err)

	// Changed flag wins over the file; unchanged flag does not
	assert.Equal(t, 3, cfg.Interval)
	assert.Equal(t, "warning", cfg.LogLevel)
}
