package mcp

import (
	"context"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Embedding-Space/Alpha-AI/pkg/tools"
)

// setupTestServer creates a test MCP server with the given tools and
// connects it to a client via in-memory transports.
func setupTestServer(t *testing.T, serverTools map[string]mcp.ToolHandler) *Client {
	t.Helper()

	server := mcp.NewServer(
		&mcp.Implementation{Name: "test-server", Version: "1.0.0"},
		nil,
	)

	for name, handler := range serverTools {
		server.AddTool(
			&mcp.Tool{
				Name:        name,
				Description: "Test tool: " + name,
				InputSchema: map[string]any{"type": "object"},
			},
			handler,
		)
	}

	serverTransport, clientTransport := mcp.NewInMemoryTransports()

	ctx := context.Background()
	go func() {
		_ = server.Run(ctx, serverTransport)
	}()

	client := NewClient(ServerConfig{Name: "test-server"})
	if err := client.ConnectWithTransport(ctx, clientTransport); err != nil {
		t.Fatalf("ConnectWithTransport failed: %v", err)
	}

	t.Cleanup(func() {
		_ = client.Close()
	})

	return client
}

func echoHandler(text string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: text}},
		}, nil
	}
}

func TestExecutorDiscoverAndRoute(t *testing.T) {
	client := setupTestServer(t, map[string]mcp.ToolHandler{
		"get_weather": echoHandler("sunny"),
		"get_time":    echoHandler("12:00"),
	})

	executor := NewExecutor(map[string]*Client{"test-server": client})
	defer executor.Close()

	if err := executor.Discover(context.Background()); err != nil {
		t.Fatalf("Discover: %v", err)
	}

	if !executor.CanExecute("get_weather") || !executor.CanExecute("get_time") {
		t.Error("discovered tools not executable")
	}
	if executor.CanExecute("launch_rockets") {
		t.Error("unknown tool reported as executable")
	}

	result, err := executor.Invoke(context.Background(), tools.Call{
		ID:   "call_1",
		Name: "get_weather",
		Args: map[string]any{"city": "Paris"},
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if result.IsError || result.Output != "sunny" {
		t.Errorf("result = %+v", result)
	}
	if result.CallID != "call_1" {
		t.Errorf("call id = %q", result.CallID)
	}
}

func TestExecutorUnknownToolIsModelVisibleError(t *testing.T) {
	client := setupTestServer(t, map[string]mcp.ToolHandler{
		"get_time": echoHandler("12:00"),
	})

	executor := NewExecutor(map[string]*Client{"test-server": client})
	defer executor.Close()

	if err := executor.Discover(context.Background()); err != nil {
		t.Fatalf("Discover: %v", err)
	}

	result, err := executor.Invoke(context.Background(), tools.Call{
		ID:   "call_2",
		Name: "nonexistent",
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !result.IsError {
		t.Error("expected IsError result for unknown tool")
	}
}

func TestExecutorToolsReturnsDefinitions(t *testing.T) {
	client := setupTestServer(t, map[string]mcp.ToolHandler{
		"get_weather": echoHandler("sunny"),
	})

	executor := NewExecutor(map[string]*Client{"test-server": client})
	defer executor.Close()

	defs, err := executor.Tools(context.Background())
	if err != nil {
		t.Fatalf("Tools: %v", err)
	}
	if len(defs) != 1 || defs[0].Name != "get_weather" {
		t.Fatalf("defs = %+v", defs)
	}
	if len(defs[0].InputSchema) == 0 {
		t.Error("input schema not carried through discovery")
	}
}
