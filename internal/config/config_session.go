package config

import (
	"fmt"
	"time"
)

// SessionConfig holds TTL, queue, and compaction knobs.
type SessionConfig struct {
	// TTLMinutes drops idle sessions after this long without access.
	TTLMinutes int `yaml:"ttl_minutes"`

	// SweepSchedule is the cron expression for the durable expiry sweep.
	SweepSchedule string `yaml:"sweep_schedule"`

	// SQLiteDSN is the path/DSN of the session database. Empty disables
	// persistence (memory-only sessions).
	SQLiteDSN string `yaml:"sqlite_dsn"`

	// MaxIterations caps model/tool rounds per generation.
	MaxIterations int `yaml:"max_iterations"`

	// SoftLimitIterations is where the tool-budget prompt kicks in.
	SoftLimitIterations int `yaml:"soft_limit_iterations"`

	// ToolTimeoutSeconds bounds one tool execution.
	ToolTimeoutSeconds int `yaml:"tool_timeout_seconds"`

	// ToolConcurrency bounds tool fan-out within one iteration.
	ToolConcurrency int `yaml:"tool_concurrency"`
}

func defaultSessionConfig() SessionConfig {
	return SessionConfig{
		TTLMinutes:          30,
		MaxIterations:       8,
		SoftLimitIterations: 6,
		ToolTimeoutSeconds:  30,
		ToolConcurrency:     4,
	}
}

func (c *SessionConfig) validate() error {
	if c.TTLMinutes <= 0 {
		return fmt.Errorf("ttl_minutes must be positive")
	}
	if c.MaxIterations <= 0 {
		return fmt.Errorf("max_iterations must be positive")
	}
	if c.SoftLimitIterations > c.MaxIterations {
		return fmt.Errorf("soft_limit_iterations must not exceed max_iterations")
	}
	if c.ToolTimeoutSeconds <= 0 {
		return fmt.Errorf("tool_timeout_seconds must be positive")
	}
	return nil
}

// TTL returns TTLMinutes as a duration.
func (c *SessionConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// ToolTimeout returns ToolTimeoutSeconds as a duration.
func (c *SessionConfig) ToolTimeout() time.Duration {
	return time.Duration(c.ToolTimeoutSeconds) * time.Second
}
