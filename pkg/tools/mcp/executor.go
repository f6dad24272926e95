package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Embedding-Space/Alpha-AI/pkg/tools"
)

// Executor implements tools.Executor over one or more MCP servers,
// routing each tool call to the server that provides the tool.
type Executor struct {
	mu sync.RWMutex

	// clients maps server name to Client.
	clients map[string]*Client

	// toolToServer maps tool name to the providing server.
	toolToServer map[string]string
}

var _ tools.Executor = (*Executor)(nil)

// NewExecutor creates an Executor over the given connected clients.
// Call Discover before first use.
func NewExecutor(clients map[string]*Client) *Executor {
	return &Executor{
		clients:      clients,
		toolToServer: make(map[string]string),
	}
}

// Discover queries all servers for their tools and builds the routing
// table. Run at startup, after connecting; a discovery failure is
// reported like a connect failure.
func (e *Executor) Discover(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for name, client := range e.clients {
		defs, err := client.DiscoverTools(ctx)
		if err != nil {
			return fmt.Errorf("discovering tools on %q: %w", name, err)
		}

		for _, def := range defs {
			if existing, ok := e.toolToServer[def.Name]; ok {
				slog.Warn("duplicate MCP tool name, using first provider",
					"tool", def.Name,
					"server", existing,
					"ignored_server", name,
				)
				continue
			}
			e.toolToServer[def.Name] = name
		}

		slog.Info("discovered MCP tools",
			"server", name,
			"count", len(defs),
		)
	}
	return nil
}

// CanExecute returns true if any connected server provides the tool.
func (e *Executor) CanExecute(toolName string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.toolToServer[toolName]
	return ok
}

// Invoke routes the tool call to the providing server.
func (e *Executor) Invoke(ctx context.Context, call tools.Call) (*tools.Result, error) {
	e.mu.RLock()
	serverName, ok := e.toolToServer[call.Name]
	if !ok {
		e.mu.RUnlock()
		return &tools.Result{
			CallID:  call.ID,
			Output:  fmt.Sprintf("no MCP server provides tool %q", call.Name),
			IsError: true,
		}, nil
	}
	client := e.clients[serverName]
	e.mu.RUnlock()

	return client.CallTool(ctx, call)
}

// Tools returns the definitions of all discovered tools.
func (e *Executor) Tools(ctx context.Context) ([]tools.Definition, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var all []tools.Definition
	for _, client := range e.clients {
		defs, err := client.DiscoverTools(ctx)
		if err != nil {
			return nil, err
		}
		all = append(all, defs...)
	}
	return all, nil
}

// Close closes all client connections, returning the last error.
func (e *Executor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var lastErr error
	for name, client := range e.clients {
		if err := client.Close(); err != nil {
			slog.Warn("failed to close MCP client", "server", name, "error", err)
			lastErr = err
		}
	}
	return lastErr
}
