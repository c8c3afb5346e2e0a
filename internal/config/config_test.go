package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Nil(t, cfg.Phase.Duration)
	assert.Nil(t, cfg.Telemetry.Source)

	_, err = LoadConfig("")
	assert.Error(t, err)
}

func TestLoadConfigValues(t *testing.T) {
	path := writeConfig(t, `
[phase]
duration = "2m"
arithmetic-period = "20s"
seed = 42

[telemetry]
source = "ws"
url = "ws://localhost:9000/t"
stale-after = "3s"

[history]
record = true
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.Phase.Duration)
	assert.Equal(t, 2*time.Minute, *cfg.Phase.Duration)
	assert.Equal(t, 20*time.Second, *cfg.Phase.ArithmeticPeriod)
	assert.Equal(t, int64(42), *cfg.Phase.Seed)
	assert.Equal(t, SourceWS, *cfg.Telemetry.Source)
	assert.Equal(t, "ws://localhost:9000/t", *cfg.Telemetry.URL)
	assert.Equal(t, 3*time.Second, *cfg.Telemetry.StaleAfter)
	assert.True(t, *cfg.History.Record)
}

func TestLoadConfigRejectsBadInput(t *testing.T) {
	for name, body := range map[string]string{
		"unknown key":    "[phase]\nlength = \"5m\"\n",
		"bad source":     "[telemetry]\nsource = \"udp\"\n",
		"malformed toml": "[phase\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestTemplateDecodes(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, Template))
	require.NoError(t, err)
	assert.Nil(t, cfg.History.Record)
}

func TestDefaultPathsFollowXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/cfg")
	t.Setenv("XDG_DATA_HOME", "/data")
	assert.Equal(t, filepath.Join("/cfg", "sepia", "config.toml"), DefaultConfigPath())
	assert.Equal(t, filepath.Join("/data", "sepia", "sepia.db"), DefaultDBPath())
	assert.Equal(t, filepath.Join("/data", "sepia", "debug.log"), DefaultLogPath())
}
