// Package config provides unified configuration for the Alpha AI
// server.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (ALPHA_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import "time"

// Config holds all configuration for the Alpha AI server.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Engine        EngineConfig        `yaml:"engine"`
	Session       SessionConfig       `yaml:"session"`
	Providers     []ProviderConfig    `yaml:"providers"`
	Storage       StorageConfig       `yaml:"storage"`
	MCP           MCPConfig           `yaml:"mcp"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int           `yaml:"port"`          // default: 8080
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"` // default: 0 (streaming)
}

// EngineConfig holds turn loop settings.
type EngineConfig struct {
	// DefaultModel is the "provider:model" reference used for new
	// conversations without an explicit model.
	DefaultModel string `yaml:"default_model"`

	// MaxToolRounds bounds tool execution rounds per turn.
	MaxToolRounds int `yaml:"max_tool_rounds"` // default: 8
}

// SessionConfig holds system prompt settings.
type SessionConfig struct {
	// PromptsDir is the directory system prompt files are loaded from.
	PromptsDir string `yaml:"prompts_dir"` // default: "prompts"

	// SystemPrompt is the default prompt reference for new
	// conversations (a file name under PromptsDir).
	SystemPrompt string `yaml:"system_prompt"`
}

// ProviderConfig describes one model backend.
type ProviderConfig struct {
	// Tag is the provider tag used in "tag:model" references.
	Tag string `yaml:"tag"`

	// BaseURL is the OpenAI-compatible backend base URL.
	BaseURL string `yaml:"base_url"`

	APIKey     string `yaml:"api_key"`
	APIKeyFile string `yaml:"api_key_file"` // _file variant for api_key

	Timeout time.Duration `yaml:"timeout"` // default: 120s
}

// StorageConfig holds conversation store settings.
type StorageConfig struct {
	Type     string         `yaml:"type"` // "memory" or "postgres", default: "memory"
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"` // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns"`        // default: 25
	MigrateOnStart bool   `yaml:"migrate_on_start"` // default: false
}

// MCPConfig holds MCP (Model Context Protocol) server settings.
type MCPConfig struct {
	Servers []MCPServerConfig `yaml:"servers"`
}

// MCPServerConfig describes a single MCP server connection.
type MCPServerConfig struct {
	Name      string            `yaml:"name"`
	Transport string            `yaml:"transport"` // "sse" or "streamable-http"
	URL       string            `yaml:"url"`
	Headers   map[string]string `yaml:"headers"`
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:        8080,
			ReadTimeout: 30 * time.Second,
		},
		Engine: EngineConfig{
			MaxToolRounds: 8,
		},
		Session: SessionConfig{
			PromptsDir: "prompts",
		},
		Storage: StorageConfig{
			Type: "memory",
			Postgres: PostgresConfig{
				MaxConns: 25,
			},
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}
