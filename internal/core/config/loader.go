package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/vietddude/opswatch/internal/core/domain"
	"gopkg.in/yaml.v2"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML content, applies defaults and validates the result.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Backend location can also come from the environment alone.
	if cfg.Backend.BaseURL == "" {
		cfg.Backend.BaseURL = os.Getenv("OPSWATCH_BACKEND_URL")
	}
	if cfg.Backend.Token == "" {
		cfg.Backend.Token = os.Getenv("OPSWATCH_BACKEND_TOKEN")
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Backend.Timeout == 0 {
		cfg.Backend.Timeout = 10 * time.Second
	}

	if cfg.Polling.Interval == 0 {
		cfg.Polling.Interval = 10 * time.Second
	}
	if cfg.Polling.MaxRetries == 0 {
		cfg.Polling.MaxRetries = 5
	}
	if cfg.Polling.StaleAfter == 0 {
		cfg.Polling.StaleAfter = 60 * time.Second
	}
	if cfg.Polling.BaseDelay == 0 {
		cfg.Polling.BaseDelay = time.Second
	}
	if cfg.Polling.MaxDelay == 0 {
		cfg.Polling.MaxDelay = 30 * time.Second
	}

	if cfg.Pacing.Window == 0 {
		cfg.Pacing.Window = 20
	}
	if cfg.Pacing.SaturationRun == 0 {
		cfg.Pacing.SaturationRun = 5
	}

	if cfg.Alerts.FailureDelta == 0 {
		cfg.Alerts.FailureDelta = 5
	}
	if cfg.Alerts.DropPercent == 0 {
		cfg.Alerts.DropPercent = 50
	}
	if cfg.Alerts.LatencyMs == 0 {
		cfg.Alerts.LatencyMs = 2000
	}
	if cfg.Alerts.Cooldown == 0 {
		cfg.Alerts.Cooldown = 5 * time.Minute
	}
	if cfg.Alerts.StreamBuffer == 0 {
		cfg.Alerts.StreamBuffer = 16
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

// Validate checks values that have no sensible default.
func (c *AppConfig) Validate() error {
	var errs []error

	if c.Backend.BaseURL == "" {
		errs = append(errs, errors.New("backend.base_url is required"))
	} else if u, err := url.Parse(c.Backend.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("backend.base_url %q must be an http(s) url", c.Backend.BaseURL))
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.GRPCPort < 0 || c.Server.GRPCPort > 65535 {
		errs = append(errs, fmt.Errorf("server.grpc_port %d out of range", c.Server.GRPCPort))
	}
	if c.Server.GRPCPort != 0 && c.Server.GRPCPort == c.Server.Port {
		errs = append(errs, errors.New("server.grpc_port must differ from server.port"))
	}

	if c.Polling.Interval < 0 || c.Polling.StaleAfter < 0 {
		errs = append(errs, errors.New("polling durations must be positive"))
	}
	if c.Polling.MaxRetries < 0 {
		errs = append(errs, errors.New("polling.max_retries must be >= 0"))
	}
	if c.Polling.BaseDelay > c.Polling.MaxDelay {
		errs = append(errs, errors.New("polling.base_delay must not exceed polling.max_delay"))
	}
	for name, d := range c.Polling.Intervals {
		if !knownEndpoint(name) {
			errs = append(errs, fmt.Errorf("polling.intervals: unknown endpoint %q", name))
		}
		if d < 0 {
			errs = append(errs, fmt.Errorf("polling.intervals.%s must be positive", name))
		}
	}

	if c.Pacing.Window < 0 || c.Pacing.SaturationRun < 0 {
		errs = append(errs, errors.New("pacing values must be positive"))
	}
	if c.Alerts.DropPercent < 0 || c.Alerts.DropPercent > 100 {
		errs = append(errs, fmt.Errorf("alerts.drop_percent %.1f out of range", c.Alerts.DropPercent))
	}
	if c.Alerts.FailureDelta < 0 || c.Alerts.LatencyMs < 0 || c.Alerts.Cooldown < 0 {
		errs = append(errs, errors.New("alert thresholds must be positive"))
	}

	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q must be json or text", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

func knownEndpoint(name string) bool {
	switch domain.EndpointName(name) {
	case domain.EndpointReachability, domain.EndpointAPIStatus, domain.EndpointChannel,
		domain.EndpointMetrics, domain.EndpointPacing:
		return true
	}
	return false
}
