package config

import (
	"fmt"
	"strings"
)

// Config is the top-level toolbridge configuration.
type Config struct {
	// Providers lists the external tool-server processes.
	Providers []ProviderConfig `json:"providers" mapstructure:"providers"`

	// Routes maps logical tool names to provider tools (priority tier).
	Routes map[string]RouteConfig `json:"routes" mapstructure:"routes"`

	// Timeouts for provider connect/execute.
	Timeouts TimeoutsConfig `json:"timeouts" mapstructure:"timeouts"`

	// CatalogRefresh is an optional cron expression for periodic
	// provider catalog re-fetch (empty disables it).
	CatalogRefresh string `json:"catalog_refresh" mapstructure:"catalog_refresh"`

	// Recorder configures the optional automation-event recorder.
	Recorder RecorderConfig `json:"recorder" mapstructure:"recorder"`

	// Logging configuration
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
}

// ProviderConfig describes how to launch one tool-server process.
type ProviderConfig struct {
	Name    string            `json:"name" mapstructure:"name"`
	Command string            `json:"command" mapstructure:"command"`
	Args    []string          `json:"args" mapstructure:"args"`
	Env     map[string]string `json:"env" mapstructure:"env"`
}

// RouteConfig maps a logical tool name to a provider tool.
type RouteConfig struct {
	Provider string `json:"provider" mapstructure:"provider"`
	Tool     string `json:"tool" mapstructure:"tool"`

	// FollowUpTool, when set, is called best-effort after a successful
	// routed call (e.g. a key press after typing into a field).
	FollowUpTool string                 `json:"follow_up_tool" mapstructure:"follow_up_tool"`
	FollowUpArgs map[string]interface{} `json:"follow_up_args" mapstructure:"follow_up_args"`
}

// TimeoutsConfig holds provider call bounds in seconds.
type TimeoutsConfig struct {
	ConnectSeconds int `json:"connect_seconds" mapstructure:"connect_seconds"`
	ExecuteSeconds int `json:"execute_seconds" mapstructure:"execute_seconds"`
}

// RecorderConfig configures the automation-event recorder sink.
type RecorderConfig struct {
	// Mode is one of: off, websocket, sqlite.
	Mode string `json:"mode" mapstructure:"mode"`
	// URL is the websocket endpoint (websocket mode).
	URL string `json:"url" mapstructure:"url"`
	// Path is the sqlite database path (sqlite mode).
	Path string `json:"path" mapstructure:"path"`
	// MaxEventBytes caps the serialized size of recorded args/results.
	MaxEventBytes int `json:"max_event_bytes" mapstructure:"max_event_bytes"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Console   bool   `json:"console" mapstructure:"console"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// DefaultConfig returns a configuration with sane defaults.
func DefaultConfig() *Config {
	return &Config{
		Providers: []ProviderConfig{},
		Routes:    map[string]RouteConfig{},
		Timeouts: TimeoutsConfig{
			ConnectSeconds: 30,
			ExecuteSeconds: 60,
		},
		Recorder: RecorderConfig{
			Mode:          "off",
			MaxEventBytes: 4096,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Console:   true,
			Pretty:    false,
			Redaction: true,
		},
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Providers))
	for i, p := range c.Providers {
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("provider %d: name is required", i)
		}
		if strings.Contains(p.Name, ".") {
			return fmt.Errorf("provider %s: name must not contain '.'", p.Name)
		}
		if seen[p.Name] {
			return fmt.Errorf("provider %s: duplicate name", p.Name)
		}
		seen[p.Name] = true
		if strings.TrimSpace(p.Command) == "" {
			return fmt.Errorf("provider %s: command is required", p.Name)
		}
	}

	for logical, r := range c.Routes {
		if r.Provider == "" || r.Tool == "" {
			return fmt.Errorf("route %s: provider and tool are required", logical)
		}
		if !seen[r.Provider] {
			return fmt.Errorf("route %s: unknown provider %s", logical, r.Provider)
		}
	}

	if c.Timeouts.ConnectSeconds <= 0 {
		return fmt.Errorf("timeouts: connect_seconds must be positive")
	}
	if c.Timeouts.ExecuteSeconds <= 0 {
		return fmt.Errorf("timeouts: execute_seconds must be positive")
	}

	switch c.Recorder.Mode {
	case "", "off", "websocket", "sqlite":
	default:
		return fmt.Errorf("recorder: unknown mode %q", c.Recorder.Mode)
	}
	if c.Recorder.Mode == "websocket" && c.Recorder.URL == "" {
		return fmt.Errorf("recorder: url is required in websocket mode")
	}
	if c.Recorder.Mode == "sqlite" && c.Recorder.Path == "" {
		return fmt.Errorf("recorder: path is required in sqlite mode")
	}

	return nil
}
