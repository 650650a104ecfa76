package config

import (
	"time"

	"github.com/vietddude/opswatch/internal/infra/backend"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server  ServerConfig   `yaml:"server"`
	Backend backend.Config `yaml:"backend"`
	Polling PollingConfig  `yaml:"polling"`
	Pacing  PacingConfig   `yaml:"pacing"`
	Alerts  AlertsConfig   `yaml:"alerts"`
	Logging LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds HTTP and gRPC server settings.
type ServerConfig struct {
	Port     int `yaml:"port"`
	GRPCPort int `yaml:"grpc_port"` // 0 = disabled
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// PollingConfig holds the shared poll schedule.
type PollingConfig struct {
	Interval   time.Duration `yaml:"interval"`
	MaxRetries int           `yaml:"max_retries"`
	StaleAfter time.Duration `yaml:"stale_after"`
	BaseDelay  time.Duration `yaml:"base_delay"`
	MaxDelay   time.Duration `yaml:"max_delay"`

	// Per-endpoint interval overrides keyed by endpoint name.
	Intervals map[string]time.Duration `yaml:"intervals"`
}

// IntervalFor returns the poll interval for one endpoint.
func (p PollingConfig) IntervalFor(endpoint string) time.Duration {
	if d, ok := p.Intervals[endpoint]; ok && d > 0 {
		return d
	}
	return p.Interval
}

// PacingConfig holds pacing window settings.
type PacingConfig struct {
	Window        int `yaml:"window"`
	SaturationRun int `yaml:"saturation_run"`
}

// AlertsConfig holds alert thresholds.
type AlertsConfig struct {
	FailureDelta int           `yaml:"failure_delta"`
	DropPercent  float64       `yaml:"drop_percent"`
	LatencyMs    float64       `yaml:"latency_ms"`
	Cooldown     time.Duration `yaml:"cooldown"`
	StreamBuffer int           `yaml:"stream_buffer"`
}
