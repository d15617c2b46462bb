// Package config loads and validates the daemon configuration from
// defaults, an optional TOML file and FEESPLITD_-prefixed environment
// variables, in that priority order.
package config

import (
	"time"

	"github.com/dexfoundry/feesplitd/internal/core/amount"
	"github.com/dexfoundry/feesplitd/internal/core/burn"
	"github.com/dexfoundry/feesplitd/internal/core/rates"
	"github.com/dexfoundry/feesplitd/internal/schedule"
	"github.com/dexfoundry/feesplitd/internal/storage/history"
)

// Config is the complete daemon configuration.
type Config struct {
	// Asset names the fee token every ledger balance is denominated in.
	Asset string `toml:"asset" mapstructure:"asset"`

	Log      LogConfig       `toml:"log" mapstructure:"log"`
	RPC      RPCConfig       `toml:"rpc" mapstructure:"rpc"`
	Rates    RatesConfig     `toml:"rates" mapstructure:"rates"`
	Burn     BurnConfig      `toml:"burn" mapstructure:"burn"`
	Snapshot SnapshotConfig  `toml:"snapshot" mapstructure:"snapshot"`
	History  history.Config  `toml:"history" mapstructure:"history"`
	Schedule schedule.Config `toml:"schedule" mapstructure:"schedule"`
	Recent   RecentConfig    `toml:"recent" mapstructure:"recent"`

	configPath string
}

// LogConfig controls logrus output.
type LogConfig struct {
	Level  string `toml:"level" mapstructure:"level"`
	Format string `toml:"format" mapstructure:"format"` // "text" or "json"
}

// RPCConfig controls the HTTP surface: JSON-RPC, the websocket stream,
// health and metrics endpoints.
type RPCConfig struct {
	Addr string `toml:"addr" mapstructure:"addr"`

	// Bearer tokens gating the privileged method tiers. An empty token
	// disables that tier entirely.
	AdminToken   string `toml:"admin_token" mapstructure:"admin_token"`
	NetworkToken string `toml:"network_token" mapstructure:"network_token"`
}

// RatesConfig seeds the rate cache before any governance oracle is
// wired. The bootstrap set serves until its TTL passes, then every
// refresh goes to the oracle.
type RatesConfig struct {
	Epoch     uint64        `toml:"epoch" mapstructure:"epoch"`
	BurnBps   uint32        `toml:"burn_bps" mapstructure:"burn_bps"`
	RewardBps uint32        `toml:"reward_bps" mapstructure:"reward_bps"`
	RebateBps uint32        `toml:"rebate_bps" mapstructure:"rebate_bps"`
	TTL       time.Duration `toml:"ttl" mapstructure:"ttl"`
}

// Bootstrap converts the section into the rate set the cache is seeded
// with. The expiry is anchored to now.
func (r RatesConfig) Bootstrap(now time.Time) rates.RateSet {
	return rates.RateSet{
		Epoch:     r.Epoch,
		BurnBps:   r.BurnBps,
		RewardBps: r.RewardBps,
		RebateBps: r.RebateBps,
		Expiry:    now.Add(r.TTL),
	}
}

// BurnConfig carries the burn release gates.
type BurnConfig struct {
	MinInterval     time.Duration `toml:"min_interval" mapstructure:"min_interval"`
	MaxPerCall      uint64        `toml:"max_per_call" mapstructure:"max_per_call"`
	MaxSaneRate     uint64        `toml:"max_sane_rate" mapstructure:"max_sane_rate"`
	MaxDeviationBps uint32        `toml:"max_deviation_bps" mapstructure:"max_deviation_bps"`
	SrcAsset        string        `toml:"src_asset" mapstructure:"src_asset"`
	DstAsset        string        `toml:"dst_asset" mapstructure:"dst_asset"`
	Callers         []string      `toml:"callers" mapstructure:"callers"`
}

// Controller converts the section into the burn controller's config.
func (b BurnConfig) Controller() burn.Config {
	return burn.Config{
		MinInterval:     b.MinInterval,
		MaxPerCall:      amount.Amount(b.MaxPerCall),
		MaxSaneRate:     b.MaxSaneRate,
		MaxDeviationBps: b.MaxDeviationBps,
		SrcAsset:        b.SrcAsset,
		DstAsset:        b.DstAsset,
		Callers:         b.Callers,
	}
}

// SnapshotConfig controls ledger persistence.
type SnapshotConfig struct {
	// Enabled turns snapshot persistence on. Disabled, the daemon runs
	// purely in memory and restarts empty.
	Enabled bool `toml:"enabled" mapstructure:"enabled"`

	// Path is the pebble database directory.
	Path string `toml:"path" mapstructure:"path"`

	// Compressor selects the payload compression, "lz4" or "none".
	Compressor string `toml:"compressor" mapstructure:"compressor"`
}

// RecentConfig sizes the in-memory distribution cache.
type RecentConfig struct {
	Size int `toml:"size" mapstructure:"size"`
}

// GetConfigPath returns the file the configuration was loaded from,
// empty when only defaults and environment were used.
func (c *Config) GetConfigPath() string {
	return c.configPath
}
