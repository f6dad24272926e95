// Package mcp connects the engine to Model Context Protocol tool
// servers: one client per configured server, tool discovery at
// startup, and name-based routing of tool calls.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Embedding-Space/Alpha-AI/pkg/debug"
	"github.com/Embedding-Space/Alpha-AI/pkg/tools"
)

// Client wraps an MCP SDK client and session for a single server
// connection. It handles connection lifecycle, tool discovery, and
// tool execution.
type Client struct {
	cfg     ServerConfig
	client  *mcp.Client
	session *mcp.ClientSession

	mu          sync.Mutex
	cachedTools []tools.Definition
	resolved    bool
}

// NewClient creates a Client for the given server configuration.
// Call Connect to establish the connection.
func NewClient(cfg ServerConfig) *Client {
	return &Client{cfg: cfg}
}

// Connect establishes the MCP connection, performing the protocol
// handshake. A failure is reported as a connect-kind TransportError;
// callers at startup treat it as fatal.
func (c *Client) Connect(ctx context.Context) error {
	return c.ConnectWithTransport(ctx, nil)
}

// ConnectWithTransport establishes the MCP connection using the given
// transport. If transport is nil, one is created from the server
// configuration. Tests inject in-memory transports here.
func (c *Client) ConnectWithTransport(ctx context.Context, transport mcp.Transport) error {
	c.client = mcp.NewClient(
		&mcp.Implementation{
			Name:    "alpha-ai",
			Version: "1.0.0",
		},
		&mcp.ClientOptions{
			Capabilities: &mcp.ClientCapabilities{},
		},
	)

	if transport == nil {
		t, err := c.createTransport()
		if err != nil {
			return &tools.TransportError{Kind: tools.KindConnect, Server: c.cfg.Name, Err: err}
		}
		transport = t
	}

	session, err := c.client.Connect(ctx, transport, nil)
	if err != nil {
		return &tools.TransportError{Kind: tools.KindConnect, Server: c.cfg.Name, Err: err}
	}
	c.session = session
	return nil
}

// createTransport creates an MCP transport from the configuration.
func (c *Client) createTransport() (mcp.Transport, error) {
	httpClient := c.buildHTTPClient()

	switch c.cfg.Transport {
	case "sse":
		transport := &mcp.SSEClientTransport{
			Endpoint: c.cfg.URL,
		}
		if httpClient != nil {
			transport.HTTPClient = httpClient
		}
		return transport, nil

	case "streamable-http", "":
		transport := &mcp.StreamableClientTransport{
			Endpoint: c.cfg.URL,
		}
		if httpClient != nil {
			transport.HTTPClient = httpClient
		}
		return transport, nil

	default:
		return nil, fmt.Errorf("unsupported transport type %q", c.cfg.Transport)
	}
}

// buildHTTPClient returns an HTTP client that applies configured
// static headers, or nil when none are configured.
func (c *Client) buildHTTPClient() *http.Client {
	if len(c.cfg.Headers) == 0 {
		return nil
	}
	return &http.Client{
		Transport: &headerTransport{
			base:    http.DefaultTransport,
			headers: c.cfg.Headers,
		},
	}
}

// headerTransport is an http.RoundTripper that adds custom headers to
// every request.
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.base.RoundTrip(req)
}

// DiscoverTools queries the server for its tools and caches the
// result. Subsequent calls return the cache.
func (c *Client) DiscoverTools(ctx context.Context) ([]tools.Definition, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.resolved {
		return c.cachedTools, nil
	}

	if c.session == nil {
		return nil, fmt.Errorf("MCP client %q not connected", c.cfg.Name)
	}

	var defs []tools.Definition
	for tool, err := range c.session.Tools(ctx, nil) {
		if err != nil {
			return nil, &tools.TransportError{
				Kind:   tools.KindConnect,
				Server: c.cfg.Name,
				Err:    fmt.Errorf("listing tools: %w", err),
			}
		}
		def, convErr := convertTool(tool)
		if convErr != nil {
			return nil, fmt.Errorf("converting tool %q from %q: %w", tool.Name, c.cfg.Name, convErr)
		}
		defs = append(defs, def)
	}

	c.cachedTools = defs
	c.resolved = true
	return defs, nil
}

// CallTool executes a tool call on the server. A transport-level
// failure is a call-kind TransportError; a tool that runs but fails
// returns a Result with IsError set.
func (c *Client) CallTool(ctx context.Context, call tools.Call) (*tools.Result, error) {
	if c.session == nil {
		return nil, &tools.TransportError{
			Kind:   tools.KindCall,
			Server: c.cfg.Name,
			Err:    fmt.Errorf("not connected"),
		}
	}

	params := &mcp.CallToolParams{
		Name:      call.Name,
		Arguments: call.Args,
	}

	if debug.Enabled("mcp") {
		args, _ := json.Marshal(call.Args)
		debug.Log("mcp", "calling tool",
			"server", c.cfg.Name,
			"tool", call.Name,
			"args", debug.Truncate(string(args), 200),
		)
	}

	result, err := c.session.CallTool(ctx, params)
	if err != nil {
		return nil, &tools.TransportError{Kind: tools.KindCall, Server: c.cfg.Name, Err: err}
	}

	return convertResult(call.ID, result), nil
}

// Close closes the MCP session.
func (c *Client) Close() error {
	if c.session != nil {
		return c.session.Close()
	}
	return nil
}

// convertTool converts an MCP tool to a Definition.
func convertTool(t *mcp.Tool) (tools.Definition, error) {
	var schema json.RawMessage
	if t.InputSchema != nil {
		data, err := json.Marshal(t.InputSchema)
		if err != nil {
			return tools.Definition{}, fmt.Errorf("marshaling input schema: %w", err)
		}
		schema = data
	}

	return tools.Definition{
		Name:        t.Name,
		Description: t.Description,
		InputSchema: schema,
	}, nil
}

// convertResult converts an MCP CallToolResult to a Result,
// concatenating all text content blocks.
func convertResult(callID string, result *mcp.CallToolResult) *tools.Result {
	var output string
	for _, content := range result.Content {
		if tc, ok := content.(*mcp.TextContent); ok {
			if output != "" {
				output += "\n"
			}
			output += tc.Text
		}
	}

	return &tools.Result{
		CallID:  callID,
		Output:  output,
		IsError: result.IsError,
	}
}
