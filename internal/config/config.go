// Package config loads backend configuration from file, environment and
// defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/walidbouh09/tradesense/pkg/types"
)

// Load reads configuration from the optional YAML file at path, with
// TRADESENSE_* environment variables overriding file values and
// defaults filling the rest.
func Load(path string) (*types.AppConfig, error) {
	v := viper.New()

	v.SetDefault("log_level", "info")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.websocket_path", "/ws")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.max_connections", 100)
	v.SetDefault("server.enable_metrics", true)

	v.SetDefault("database.dsn", "tradesense.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.log_queries", false)

	v.SetDefault("worker.interval", 60*time.Second)
	v.SetDefault("worker.max_runtime", 24*time.Hour)
	v.SetDefault("worker.max_concurrent", 8)
	v.SetDefault("worker.assessment_version", "v1")

	v.SetDefault("alerts.warning_threshold", 60.0)
	v.SetDefault("alerts.critical_threshold", 80.0)

	v.SetEnvPrefix("TRADESENSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var cfg types.AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validate(cfg *types.AppConfig) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", cfg.Server.Port)
	}
	if cfg.Database.DSN == "" {
		return fmt.Errorf("database dsn is required")
	}
	if cfg.Worker.Interval <= 0 {
		return fmt.Errorf("worker interval must be positive, got %s", cfg.Worker.Interval)
	}
	if cfg.Alerts.WarningThreshold < 0 || cfg.Alerts.CriticalThreshold > 100 {
		return fmt.Errorf("alert thresholds must lie in [0,100]")
	}
	if cfg.Alerts.CriticalThreshold < cfg.Alerts.WarningThreshold {
		return fmt.Errorf("critical alert threshold %v below warning threshold %v",
			cfg.Alerts.CriticalThreshold, cfg.Alerts.WarningThreshold)
	}
	return nil
}
