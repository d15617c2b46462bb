package config

import "github.com/spf13/viper"

// setDefaults seeds every configuration key so a bare daemon starts
// with a working single-node setup.
func setDefaults(v *viper.Viper) {
	v.SetDefault("asset", "USDC")

	// Logging
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	// RPC surface. Empty tokens keep the network and admin tiers
	// closed until operators provision credentials.
	v.SetDefault("rpc.addr", "127.0.0.1:7425")
	v.SetDefault("rpc.admin_token", "")
	v.SetDefault("rpc.network_token", "")

	// Bootstrap rates for epoch 0, before any governance oracle is
	// deployed: 40% burn, 30% reward, 30% rebate.
	v.SetDefault("rates.epoch", 0)
	v.SetDefault("rates.burn_bps", 4000)
	v.SetDefault("rates.reward_bps", 3000)
	v.SetDefault("rates.rebate_bps", 3000)
	v.SetDefault("rates.ttl", "24h")

	// Burn gates
	v.SetDefault("burn.min_interval", "1h")
	v.SetDefault("burn.max_per_call", 0) // 0 means uncapped
	v.SetDefault("burn.max_sane_rate", 0)
	v.SetDefault("burn.max_deviation_bps", 1000)
	v.SetDefault("burn.src_asset", "USDC")
	v.SetDefault("burn.dst_asset", "")
	v.SetDefault("burn.callers", []string{})

	// Snapshot persistence
	v.SetDefault("snapshot.enabled", true)
	v.SetDefault("snapshot.path", "feesplitd-snapshots")
	v.SetDefault("snapshot.compressor", "lz4")

	// History archive
	v.SetDefault("history.driver", "sqlite")
	v.SetDefault("history.path", "feesplitd-history.db")
	v.SetDefault("history.port", 5432)
	v.SetDefault("history.ssl_mode", "prefer")

	// Scheduler
	v.SetDefault("schedule.rates_refresh", "@every 5m")
	v.SetDefault("schedule.burn_attempt", "@every 1h")
	v.SetDefault("schedule.snapshot", "@every 1m")
	v.SetDefault("schedule.forfeit_sweep", "@every 6h")
	v.SetDefault("schedule.burn_caller", "scheduler")

	// Recent-distribution cache
	v.SetDefault("recent.size", 1024)
}
