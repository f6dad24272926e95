package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, ALPHA_CONFIG env, ./config.yaml,
//     /etc/alpha-ai/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery
// order: explicit path, ALPHA_CONFIG, ./config.yaml,
// /etc/alpha-ai/config.yaml. Returns empty string if none is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}

	if envPath := os.Getenv("ALPHA_CONFIG"); envPath != "" {
		return envPath
	}

	candidates := []string{
		"config.yaml",
		"/etc/alpha-ai/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps ALPHA_* environment variables to config
// fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ALPHA_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("ALPHA_MODEL"); v != "" {
		cfg.Engine.DefaultModel = v
	}
	if v := os.Getenv("ALPHA_MAX_TOOL_ROUNDS"); v != "" {
		if rounds, err := strconv.Atoi(v); err == nil {
			cfg.Engine.MaxToolRounds = rounds
		}
	}
	if v := os.Getenv("ALPHA_PROMPTS_DIR"); v != "" {
		cfg.Session.PromptsDir = v
	}
	if v := os.Getenv("ALPHA_SYSTEM_PROMPT"); v != "" {
		cfg.Session.SystemPrompt = v
	}
	if v := os.Getenv("ALPHA_STORAGE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("ALPHA_POSTGRES_DSN"); v != "" {
		cfg.Storage.Postgres.DSN = v
	}

	// ALPHA_PROVIDERS: JSON array of provider configs.
	if v := os.Getenv("ALPHA_PROVIDERS"); v != "" {
		var providers []ProviderConfig
		if err := json.Unmarshal([]byte(v), &providers); err == nil && len(providers) > 0 {
			cfg.Providers = providers
		}
	}

	// ALPHA_MCP_SERVERS: JSON array of MCP server configs.
	if v := os.Getenv("ALPHA_MCP_SERVERS"); v != "" {
		var servers []MCPServerConfig
		if err := json.Unmarshal([]byte(v), &servers); err == nil && len(servers) > 0 {
			cfg.MCP.Servers = servers
		}
	}
}

// resolveFileReferences reads _file fields and populates the
// corresponding value fields. The file content is read with
// surrounding whitespace trimmed; an already-set value field wins.
func resolveFileReferences(cfg *Config) error {
	for i := range cfg.Providers {
		if cfg.Providers[i].APIKeyFile != "" && cfg.Providers[i].APIKey == "" {
			val, err := readSecretFile(cfg.Providers[i].APIKeyFile)
			if err != nil {
				return fmt.Errorf("providers[%d].api_key_file: %w", i, err)
			}
			cfg.Providers[i].APIKey = val
		}
	}

	if cfg.Storage.Postgres.DSNFile != "" && cfg.Storage.Postgres.DSN == "" {
		val, err := readSecretFile(cfg.Storage.Postgres.DSNFile)
		if err != nil {
			return fmt.Errorf("storage.postgres.dsn_file: %w", err)
		}
		cfg.Storage.Postgres.DSN = val
	}

	return nil
}

// readSecretFile reads a file and returns its content with
// surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
