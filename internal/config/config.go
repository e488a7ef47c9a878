// Package config defines the typed runtime configuration, loaded from YAML
// with environment overrides for secrets. One file per concern; loader.go
// reads, defaults, and validates.
package config

import "fmt"

// Config is the top-level runtime configuration.
type Config struct {
	LLM           LLMConfig           `yaml:"llm"`
	Session       SessionConfig       `yaml:"session"`
	Gateway       GatewayConfig       `yaml:"gateway"`
	Observability ObservabilityConfig `yaml:"observability"`
	Agent         AgentConfig         `yaml:"agent"`
}

// AgentConfig is the prompt-facing agent policy.
type AgentConfig struct {
	// Name is the agent's display name in the identity preamble.
	Name string `yaml:"name"`

	// CustomIdentity replaces the default identity paragraph when set.
	CustomIdentity string `yaml:"custom_identity"`

	// ResponseStyle overrides the default response-style guidance.
	ResponseStyle string `yaml:"response_style"`

	// ExtraSystemPrompt is appended near the end of the assembled prompt.
	ExtraSystemPrompt string `yaml:"extra_system_prompt"`

	// WorkspaceDir is reported in the workspace prompt block.
	WorkspaceDir string `yaml:"workspace_dir"`

	// Timezone names the agent's reporting timezone (IANA name).
	Timezone string `yaml:"timezone"`
}

// Default returns a fully-populated configuration with every knob at its
// default.
func Default() *Config {
	return &Config{
		LLM:           defaultLLMConfig(),
		Session:       defaultSessionConfig(),
		Gateway:       defaultGatewayConfig(),
		Observability: defaultObservabilityConfig(),
		Agent: AgentConfig{
			Name:     "Agent",
			Timezone: "UTC",
		},
	}
}

// Validate checks cross-field invariants after defaults are applied.
func (c *Config) Validate() error {
	if err := c.LLM.validate(); err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	if err := c.Session.validate(); err != nil {
		return fmt.Errorf("session: %w", err)
	}
	if err := c.Gateway.validate(); err != nil {
		return fmt.Errorf("gateway: %w", err)
	}
	if err := c.Observability.validate(); err != nil {
		return fmt.Errorf("observability: %w", err)
	}
	return nil
}
