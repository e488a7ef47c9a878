package config

import "fmt"

// LLMConfig holds provider and model defaults.
type LLMConfig struct {
	// APIKey authenticates against the provider. Usually supplied via the
	// AGENTRT_API_KEY environment variable rather than the file.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider API root (tests, proxies).
	BaseURL string `yaml:"base_url"`

	// Model is the default generation model.
	Model string `yaml:"model"`

	// ContextLimit is the model's context window in tokens.
	ContextLimit int `yaml:"context_limit"`

	// RequestTimeoutSeconds bounds one provider request, streaming or not.
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds"`

	// MaxAttempts bounds retries for transient provider errors.
	MaxAttempts int `yaml:"max_attempts"`

	// ThinkingBudget, when positive, is passed through to the provider's
	// thinking config.
	ThinkingBudget int `yaml:"thinking_budget"`
}

func defaultLLMConfig() LLMConfig {
	return LLMConfig{
		Model:                 "gemini-2.0-flash",
		ContextLimit:          128_000,
		RequestTimeoutSeconds: 120,
		MaxAttempts:           3,
	}
}

func (c *LLMConfig) validate() error {
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.ContextLimit <= 0 {
		return fmt.Errorf("context_limit must be positive")
	}
	if c.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("request_timeout_seconds must be positive")
	}
	return nil
}
