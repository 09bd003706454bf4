package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// LoadApp loads the CLI configuration file. An explicit configPath must
// exist; when configPath is empty the standard locations are searched and a
// missing file yields the defaults.
func LoadApp(configPath string) (*AppConfig, error) {
	v := viper.New()

	setAppDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		v.AddConfigPath(".")

		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "ptpapi"))
		}

		v.AddConfigPath("/etc/ptpapi/")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configPath != "" {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validateApp(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setAppDefaults sets default configuration values
func setAppDefaults(v *viper.Viper) {
	// Request limits
	v.SetDefault("limits.capacity", 5)
	v.SetDefault("limits.rate", 2.0)
	v.SetDefault("limits.timeout", "30s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.color", true)

	v.SetDefault("qbittorrent.category", "ptp")
}

// validateApp checks if the configuration is valid
func validateApp(cfg *AppConfig) error {
	if cfg.Limits.Capacity < 1 {
		return fmt.Errorf("limits.capacity must be at least 1, got %d", cfg.Limits.Capacity)
	}
	if cfg.Limits.Rate <= 0 {
		return fmt.Errorf("limits.rate must be positive, got %v", cfg.Limits.Rate)
	}
	if _, err := cfg.Limits.TimeoutDuration(); err != nil {
		return err
	}

	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s", cfg.Logging.Level)
	}

	validFormats := map[string]bool{
		"console": true,
		"json":    true,
	}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("invalid logging format: %s", cfg.Logging.Format)
	}

	if cfg.Radarr.Enabled() && (cfg.Radarr.APIKey == "" || cfg.Radarr.APIKey == "your-api-key-here") {
		return fmt.Errorf("radarr.api_key must be set when radarr.url is configured")
	}

	return nil
}

// TimeoutDuration parses Timeout. Empty means no timeout.
func (l LimitsConfig) TimeoutDuration() (time.Duration, error) {
	if l.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(l.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid limits.timeout %q: %w", l.Timeout, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("limits.timeout must not be negative: %s", l.Timeout)
	}
	return d, nil
}
