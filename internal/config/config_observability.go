package config

import "fmt"

// ObservabilityConfig holds logging and metrics knobs.
type ObservabilityConfig struct {
	// LogLevel: debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// LogFormat: json (production) or text (development).
	LogFormat string `yaml:"log_format"`

	// LogAddSource includes file:line in log records.
	LogAddSource bool `yaml:"log_add_source"`

	// MetricsEnabled serves /metrics when true.
	MetricsEnabled bool `yaml:"metrics_enabled"`
}

func defaultObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       "info",
		LogFormat:      "json",
		MetricsEnabled: true,
	}
}

func (c *ObservabilityConfig) validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be one of debug, info, warn, error")
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("log_format must be json or text")
	}
	return nil
}
