// Package types provides configuration types for the challenge
// evaluation backend.
package types

import "time"

// ServerConfig represents HTTP/WebSocket server configuration
type ServerConfig struct {
	Host           string        `json:"host" mapstructure:"host"`
	Port           int           `json:"port" mapstructure:"port"`
	WebSocketPath  string        `json:"websocketPath" mapstructure:"websocket_path"`
	ReadTimeout    time.Duration `json:"readTimeout" mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `json:"writeTimeout" mapstructure:"write_timeout"`
	MaxConnections int           `json:"maxConnections" mapstructure:"max_connections"`
	EnableMetrics  bool          `json:"enableMetrics" mapstructure:"enable_metrics"`
}

// DatabaseConfig represents persistence configuration. DSN accepts a
// postgres:// URL or a sqlite file path.
type DatabaseConfig struct {
	DSN          string `json:"dsn" mapstructure:"dsn"`
	MaxOpenConns int    `json:"maxOpenConns" mapstructure:"max_open_conns"`
	LogQueries   bool   `json:"logQueries" mapstructure:"log_queries"`
}

// WorkerConfig represents cold-path worker configuration
type WorkerConfig struct {
	Interval          time.Duration `json:"interval" mapstructure:"interval"`
	MaxRuntime        time.Duration `json:"maxRuntime" mapstructure:"max_runtime"`
	MaxConcurrent     int           `json:"maxConcurrent" mapstructure:"max_concurrent"`
	AssessmentVersion string        `json:"assessmentVersion" mapstructure:"assessment_version"`
}

// AlertConfig represents cold-path alert thresholds
type AlertConfig struct {
	WarningThreshold  float64 `json:"warningThreshold" mapstructure:"warning_threshold"`
	CriticalThreshold float64 `json:"criticalThreshold" mapstructure:"critical_threshold"`
}

// AppConfig is the root configuration for the backend
type AppConfig struct {
	LogLevel string         `json:"logLevel" mapstructure:"log_level"`
	Server   ServerConfig   `json:"server" mapstructure:"server"`
	Database DatabaseConfig `json:"database" mapstructure:"database"`
	Worker   WorkerConfig   `json:"worker" mapstructure:"worker"`
	Alerts   AlertConfig    `json:"alerts" mapstructure:"alerts"`
}
