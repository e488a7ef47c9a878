package config

import "fmt"

// GatewayConfig holds transport and backpressure knobs.
type GatewayConfig struct {
	// BindAddr is the host:port the WebSocket gateway listens on.
	BindAddr string `yaml:"bind_addr"`

	// MetricsAddr is the host:port the Prometheus endpoint listens on.
	MetricsAddr string `yaml:"metrics_addr"`

	// EventBuffer is the bounded per-connection event channel capacity.
	EventBuffer int `yaml:"event_buffer"`

	// MaxPayloadBytes caps one inbound WebSocket frame.
	MaxPayloadBytes int64 `yaml:"max_payload_bytes"`
}

func defaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		BindAddr:        ":8080",
		MetricsAddr:     ":9090",
		EventBuffer:     64,
		MaxPayloadBytes: 1 << 20,
	}
}

func (c *GatewayConfig) validate() error {
	if c.BindAddr == "" {
		return fmt.Errorf("bind_addr is required")
	}
	if c.EventBuffer <= 0 {
		return fmt.Errorf("event_buffer must be positive")
	}
	return nil
}
