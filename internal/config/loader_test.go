package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agentd.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error: %v", err)
	}
	if cfg.LLM.Model == "" {
		t.Error("default model missing")
	}
	if cfg.LLM.ContextLimit != 128_000 {
		t.Errorf("ContextLimit = %d, want 128000", cfg.LLM.ContextLimit)
	}
	if cfg.Session.TTL() != 30*time.Minute {
		t.Errorf("TTL = %v, want 30m", cfg.Session.TTL())
	}
	if cfg.Session.ToolTimeout() != 30*time.Second {
		t.Errorf("ToolTimeout = %v, want 30s", cfg.Session.ToolTimeout())
	}
	if cfg.Gateway.EventBuffer != 64 {
		t.Errorf("EventBuffer = %d, want 64", cfg.Gateway.EventBuffer)
	}
}

func TestLoadFileOverrides(t *testing.T) {
	path := writeConfig(t, `
llm:
  model: gemini-custom
  context_limit: 64000
session:
  ttl_minutes: 10
  max_iterations: 4
  soft_limit_iterations: 3
gateway:
  bind_addr: ":9999"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.LLM.Model != "gemini-custom" {
		t.Errorf("Model = %q", cfg.LLM.Model)
	}
	if cfg.LLM.ContextLimit != 64000 {
		t.Errorf("ContextLimit = %d", cfg.LLM.ContextLimit)
	}
	if cfg.Session.MaxIterations != 4 {
		t.Errorf("MaxIterations = %d", cfg.Session.MaxIterations)
	}
	if cfg.Gateway.BindAddr != ":9999" {
		t.Errorf("BindAddr = %q", cfg.Gateway.BindAddr)
	}
	// Unset fields keep defaults.
	if cfg.Session.ToolTimeoutSeconds != 30 {
		t.Errorf("ToolTimeoutSeconds = %d, want default 30", cfg.Session.ToolTimeoutSeconds)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, "llm:\n  modle: typo\n")
	if _, err := Load(path); err == nil {
		t.Fatal("unknown field should fail loudly")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantSub string
	}{
		{
			name:    "soft limit above max",
			content: "session:\n  max_iterations: 2\n  soft_limit_iterations: 5\n",
			wantSub: "soft_limit_iterations",
		},
		{
			name:    "bad log level",
			content: "observability:\n  log_level: verbose\n",
			wantSub: "log_level",
		},
		{
			name:    "negative context limit",
			content: "llm:\n  context_limit: -1\n",
			wantSub: "context_limit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			_, err := Load(path)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error = %v, want mention of %q", err, tt.wantSub)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvAPIKey, "secret-from-env")
	t.Setenv(EnvModel, "gemini-env")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.LLM.APIKey != "secret-from-env" {
		t.Errorf("APIKey = %q", cfg.LLM.APIKey)
	}
	if cfg.LLM.Model != "gemini-env" {
		t.Errorf("Model = %q", cfg.LLM.Model)
	}
}
