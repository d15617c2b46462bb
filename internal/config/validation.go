package config

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/dexfoundry/feesplitd/internal/core/bps"
	"github.com/dexfoundry/feesplitd/internal/schedule"
	snapstore "github.com/dexfoundry/feesplitd/internal/storage/snapshot"
)

// ValidateConfig performs validation on the complete configuration.
func ValidateConfig(config *Config) error {
	if config.Asset == "" {
		return fmt.Errorf("asset must not be empty")
	}

	if err := validateLog(&config.Log); err != nil {
		return fmt.Errorf("log config validation failed: %w", err)
	}
	if err := validateRPC(&config.RPC); err != nil {
		return fmt.Errorf("rpc config validation failed: %w", err)
	}
	if err := validateRates(&config.Rates); err != nil {
		return fmt.Errorf("rates config validation failed: %w", err)
	}
	if err := validateBurn(&config.Burn); err != nil {
		return fmt.Errorf("burn config validation failed: %w", err)
	}
	if err := validateSnapshot(&config.Snapshot); err != nil {
		return fmt.Errorf("snapshot config validation failed: %w", err)
	}
	if err := config.History.Validate(); err != nil {
		return fmt.Errorf("history config validation failed: %w", err)
	}
	if err := validateSchedule(&config.Schedule); err != nil {
		return fmt.Errorf("schedule config validation failed: %w", err)
	}
	if config.Recent.Size < 0 {
		return fmt.Errorf("recent.size must not be negative: %d", config.Recent.Size)
	}

	return nil
}

func validateLog(c *LogConfig) error {
	if _, err := logrus.ParseLevel(c.Level); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.Level, err)
	}
	switch c.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q (supported: text, json)", c.Format)
	}
	return nil
}

func validateRPC(c *RPCConfig) error {
	if c.Addr == "" {
		return fmt.Errorf("rpc.addr must not be empty")
	}
	return nil
}

func validateRates(c *RatesConfig) error {
	sum := c.BurnBps + c.RewardBps + c.RebateBps
	if sum != bps.MaxBps {
		return fmt.Errorf("bootstrap rates must sum to %d bps, got %d", bps.MaxBps, sum)
	}
	if c.TTL <= 0 {
		return fmt.Errorf("rates.ttl must be positive: %s", c.TTL)
	}
	return nil
}

func validateBurn(c *BurnConfig) error {
	if c.MinInterval < 0 {
		return fmt.Errorf("burn.min_interval must not be negative: %s", c.MinInterval)
	}
	if c.MaxDeviationBps > bps.MaxBps {
		return fmt.Errorf("burn.max_deviation_bps must not exceed %d: %d", bps.MaxBps, c.MaxDeviationBps)
	}
	return nil
}

func validateSnapshot(c *SnapshotConfig) error {
	if !c.Enabled {
		return nil
	}
	if c.Path == "" {
		return fmt.Errorf("snapshot.path must not be empty when snapshots are enabled")
	}
	if _, err := snapstore.ForName(c.Compressor); err != nil {
		return fmt.Errorf("invalid snapshot compressor %q: %w", c.Compressor, err)
	}
	return nil
}

func validateSchedule(c *schedule.Config) error {
	exprs := map[string]string{
		"schedule.rates_refresh": c.RatesRefresh,
		"schedule.burn_attempt":  c.BurnAttempt,
		"schedule.snapshot":      c.Snapshot,
		"schedule.forfeit_sweep": c.ForfeitSweep,
	}
	for key, expr := range exprs {
		if expr == "" {
			continue
		}
		if _, err := cron.ParseStandard(expr); err != nil {
			return fmt.Errorf("invalid cron expression for %s: %w", key, err)
		}
	}
	return nil
}
