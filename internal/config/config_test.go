package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultConfig(t *testing.T) {
	config, err := LoadDefaultConfig()
	require.NoError(t, err)
	require.NotNil(t, config)

	assert.Equal(t, "USDC", config.Asset)
	assert.Equal(t, "127.0.0.1:7425", config.RPC.Addr)
	assert.Equal(t, uint32(4000), config.Rates.BurnBps)
	assert.Equal(t, uint32(3000), config.Rates.RewardBps)
	assert.Equal(t, uint32(3000), config.Rates.RebateBps)
	assert.Equal(t, 24*time.Hour, config.Rates.TTL)
	assert.Equal(t, time.Hour, config.Burn.MinInterval)
	assert.Equal(t, uint32(1000), config.Burn.MaxDeviationBps)
	assert.True(t, config.Snapshot.Enabled)
	assert.Equal(t, "lz4", config.Snapshot.Compressor)
	assert.Equal(t, "sqlite", config.History.Driver)
	assert.Equal(t, "@every 5m", config.Schedule.RatesRefresh)
	assert.Equal(t, 1024, config.Recent.Size)
}

func TestLoadConfigFromFile(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "feesplitd_config_test")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir)

	content := `
asset = "USDT"

[rpc]
addr = "0.0.0.0:9000"
admin_token = "admin-secret"

[rates]
epoch = 3
burn_bps = 5000
reward_bps = 2500
rebate_bps = 2500
ttl = "1h"

[burn]
min_interval = "30m"
max_per_call = 500000
callers = ["scheduler", "ops"]

[history]
driver = "postgres"
host = "db.internal"
database = "feesplitd"
username = "fees"

[snapshot]
enabled = false
`
	path := filepath.Join(tempDir, "feesplitd.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "USDT", config.Asset)
	assert.Equal(t, "0.0.0.0:9000", config.RPC.Addr)
	assert.Equal(t, "admin-secret", config.RPC.AdminToken)
	assert.Equal(t, uint64(3), config.Rates.Epoch)
	assert.Equal(t, uint32(5000), config.Rates.BurnBps)
	assert.Equal(t, time.Hour, config.Rates.TTL)
	assert.Equal(t, 30*time.Minute, config.Burn.MinInterval)
	assert.Equal(t, uint64(500000), config.Burn.MaxPerCall)
	assert.Equal(t, []string{"scheduler", "ops"}, config.Burn.Callers)
	assert.Equal(t, "postgres", config.History.Driver)
	assert.Equal(t, "db.internal", config.History.Host)
	assert.False(t, config.Snapshot.Enabled)
	assert.Equal(t, path, config.GetConfigPath())
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig("/nonexistent/feesplitd.toml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestLoadConfigEnvironmentOverride(t *testing.T) {
	t.Setenv("FEESPLITD_ASSET", "DAI")
	t.Setenv("FEESPLITD_RPC_ADDR", "127.0.0.1:8111")

	config, err := LoadDefaultConfig()
	require.NoError(t, err)

	assert.Equal(t, "DAI", config.Asset)
	assert.Equal(t, "127.0.0.1:8111", config.RPC.Addr)
}

func TestValidateConfig(t *testing.T) {
	base := func() *Config {
		c, err := LoadDefaultConfig()
		require.NoError(t, err)
		return c
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "empty asset",
			mutate:  func(c *Config) { c.Asset = "" },
			wantErr: "asset",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Log.Level = "verbose" },
			wantErr: "log level",
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Log.Format = "xml" },
			wantErr: "log format",
		},
		{
			name:    "empty rpc addr",
			mutate:  func(c *Config) { c.RPC.Addr = "" },
			wantErr: "rpc.addr",
		},
		{
			name: "rates do not sum",
			mutate: func(c *Config) {
				c.Rates.BurnBps = 5000
			},
			wantErr: "sum to 10000",
		},
		{
			name:    "zero rates ttl",
			mutate:  func(c *Config) { c.Rates.TTL = 0 },
			wantErr: "rates.ttl",
		},
		{
			name:    "deviation above 100 percent",
			mutate:  func(c *Config) { c.Burn.MaxDeviationBps = 10_001 },
			wantErr: "max_deviation_bps",
		},
		{
			name:    "unknown compressor",
			mutate:  func(c *Config) { c.Snapshot.Compressor = "zstd" },
			wantErr: "compressor",
		},
		{
			name: "snapshot disabled skips compressor check",
			mutate: func(c *Config) {
				c.Snapshot.Enabled = false
				c.Snapshot.Compressor = "zstd"
			},
		},
		{
			name:    "bad history driver",
			mutate:  func(c *Config) { c.History.Driver = "oracle" },
			wantErr: "history",
		},
		{
			name:    "bad cron expression",
			mutate:  func(c *Config) { c.Schedule.ForfeitSweep = "every day" },
			wantErr: "cron expression",
		},
		{
			name:   "empty cron expression disables job",
			mutate: func(c *Config) { c.Schedule.BurnAttempt = "" },
		},
		{
			name:    "negative recent size",
			mutate:  func(c *Config) { c.Recent.Size = -1 },
			wantErr: "recent.size",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			err := ValidateConfig(c)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
