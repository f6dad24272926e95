package mcp

// ServerConfig describes one MCP server connection.
type ServerConfig struct {
	// Name identifies the server in logs and routing.
	Name string `yaml:"name"`

	// URL is the server endpoint.
	URL string `yaml:"url"`

	// Transport selects the MCP transport: "streamable-http" (default)
	// or "sse".
	Transport string `yaml:"transport"`

	// Headers are static HTTP headers added to every request.
	Headers map[string]string `yaml:"headers"`
}
