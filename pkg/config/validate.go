package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks the configuration for internal consistency. All
// problems are reported at once so a misconfigured deployment fails
// with the full picture.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be > 0, got %d", c.Server.Port))
	}

	if len(c.Providers) == 0 {
		errs = append(errs, fmt.Errorf("at least one provider is required"))
	}
	tags := make(map[string]bool)
	for i, p := range c.Providers {
		if p.Tag == "" {
			errs = append(errs, fmt.Errorf("providers[%d].tag is required", i))
			continue
		}
		if strings.Contains(p.Tag, ":") {
			errs = append(errs, fmt.Errorf("providers[%d].tag %q must not contain ':'", i, p.Tag))
		}
		if tags[p.Tag] {
			errs = append(errs, fmt.Errorf("duplicate provider tag %q", p.Tag))
		}
		tags[p.Tag] = true
		if p.BaseURL == "" {
			errs = append(errs, fmt.Errorf("providers[%d].base_url is required", i))
		}
	}

	// engine.default_model must name a configured provider.
	if c.Engine.DefaultModel == "" {
		errs = append(errs, fmt.Errorf("engine.default_model is required"))
	} else {
		tag, model, ok := strings.Cut(c.Engine.DefaultModel, ":")
		switch {
		case !ok || tag == "" || model == "":
			errs = append(errs, fmt.Errorf("engine.default_model %q must have the form \"provider:model\"", c.Engine.DefaultModel))
		case len(c.Providers) > 0 && !tags[tag]:
			errs = append(errs, fmt.Errorf("engine.default_model references unknown provider %q", tag))
		}
	}

	if c.Engine.MaxToolRounds <= 0 {
		errs = append(errs, fmt.Errorf("engine.max_tool_rounds must be > 0, got %d", c.Engine.MaxToolRounds))
	}

	switch c.Storage.Type {
	case "memory", "postgres":
		// valid
	default:
		errs = append(errs, fmt.Errorf("storage.type must be \"memory\" or \"postgres\", got %q", c.Storage.Type))
	}
	if c.Storage.Type == "postgres" {
		if c.Storage.Postgres.DSN == "" && c.Storage.Postgres.DSNFile == "" {
			errs = append(errs, fmt.Errorf("storage.postgres.dsn or storage.postgres.dsn_file is required when storage.type is \"postgres\""))
		}
	}

	for i, s := range c.MCP.Servers {
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("mcp.servers[%d].name is required", i))
		}
		if s.URL == "" {
			errs = append(errs, fmt.Errorf("mcp.servers[%d].url is required", i))
		}
		switch s.Transport {
		case "", "sse", "streamable-http":
			// valid
		default:
			errs = append(errs, fmt.Errorf("mcp.servers[%d].transport must be \"sse\" or \"streamable-http\", got %q", i, s.Transport))
		}
	}

	return errors.Join(errs...)
}
