package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
app:
  env: prod
`))
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.App.Env)
	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, "incremental", cfg.Import.Mode)
	assert.Equal(t, "1d", cfg.Import.Frequency)
	assert.Equal(t, 8, cfg.Import.MaxConcurrency)
	assert.Equal(t, 3, cfg.Import.RetryCount)
	assert.Equal(t, 2000, cfg.Import.FlushThreshold)
	assert.Equal(t, "recent_window", cfg.Import.SmartFillStrategy)
	assert.Equal(t, "data/candles", cfg.Store.Root)
	assert.Equal(t, ":9992", cfg.Node.ListenAddr)
	assert.Equal(t, 120, cfg.Dispatch.RPCTimeoutSeconds)
	assert.Equal(t, 15, cfg.Dispatch.HeartbeatSeconds)
}

func TestLoadFullConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
app:
  log_level: debug
import:
  mode: smart_fill
  frequency: 1h
  max_concurrency: 16
  smart_fill_strategy: gap_threshold
  gap_threshold_days: 3
store:
  root: /tmp/candles
providers:
  - name: binance-main
    kind: binance
    priority: 1
    enabled: true
  - name: binance-backup
    kind: binance
    priority: 2
    enabled: false
dispatch:
  enabled: true
  nodes: ["10.0.0.1:9992", "10.0.0.2:9992"]
  rpc_timeout_seconds: 60
`))
	require.NoError(t, err)

	assert.Equal(t, "smart_fill", cfg.Import.Mode)
	assert.Equal(t, "1h", cfg.Import.Frequency)
	assert.Equal(t, 16, cfg.Import.MaxConcurrency)
	assert.Equal(t, 3, cfg.Import.GapThresholdDays)
	assert.Equal(t, "/tmp/candles", cfg.Store.Root)
	require.Len(t, cfg.Providers, 2)
	assert.Equal(t, "binance-main", cfg.Providers[0].Name)
	assert.True(t, cfg.Providers[0].Enabled)
	assert.True(t, cfg.Dispatch.Enabled)
	assert.Equal(t, 60, cfg.Dispatch.RPCTimeoutSeconds)
	assert.Equal(t, []string{"10.0.0.1:9992", "10.0.0.2:9992"}, cfg.Dispatch.Nodes)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	cases := map[string]string{
		"bad mode":       "import:\n  mode: turbo\n",
		"bad frequency":  "import:\n  frequency: 2d\n",
		"bad strategy":   "import:\n  smart_fill_strategy: clever\n",
		"unnamed provider": "providers:\n  - kind: binance\n",
		"duplicate provider": "providers:\n  - name: a\n  - name: a\n",
		"dispatch without nodes": "dispatch:\n  enabled: true\n",
	}
	for name, content := range cases {
		_, err := Load(writeConfig(t, content))
		assert.Error(t, err, name)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
	_, err = Load("")
	assert.Error(t, err)
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NotNil(t, cfg)
	assert.NoError(t, validate(cfg))
}
