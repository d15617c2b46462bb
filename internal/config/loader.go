package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig loads configuration from multiple sources in priority
// order:
// 1. Default values
// 2. Configuration file (feesplitd.toml), when a path is given
// 3. Environment variables (FEESPLITD_ prefix)
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// 1. Defaults first
	setDefaults(v)

	// 2. Optional configuration file
	if path != "" {
		if err := loadConfigFile(v, path); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// 3. Environment variable support
	v.SetEnvPrefix("FEESPLITD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. Unmarshal into the struct
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.configPath = path

	// 5. Validate the complete configuration
	if err := ValidateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// loadConfigFile reads one configuration file into viper.
func loadConfigFile(v *viper.Viper, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("config file does not exist: %s", path)
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return nil
}

// LoadDefaultConfig loads configuration from defaults and environment
// only, with no file.
func LoadDefaultConfig() (*Config, error) {
	return LoadConfig("")
}
