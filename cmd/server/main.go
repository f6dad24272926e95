// Command server runs the Alpha AI chat server.
//
// Configuration is loaded from a YAML file (-config flag, ALPHA_CONFIG
// environment variable, ./config.yaml, or /etc/alpha-ai/config.yaml)
// with ALPHA_* environment overrides. See pkg/config for the full
// schema.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Embedding-Space/Alpha-AI/pkg/bus"
	"github.com/Embedding-Space/Alpha-AI/pkg/config"
	"github.com/Embedding-Space/Alpha-AI/pkg/debug"
	"github.com/Embedding-Space/Alpha-AI/pkg/engine"
	"github.com/Embedding-Space/Alpha-AI/pkg/provider"
	"github.com/Embedding-Space/Alpha-AI/pkg/provider/openaicompat"
	"github.com/Embedding-Space/Alpha-AI/pkg/session"
	"github.com/Embedding-Space/Alpha-AI/pkg/storage"
	"github.com/Embedding-Space/Alpha-AI/pkg/storage/memory"
	"github.com/Embedding-Space/Alpha-AI/pkg/storage/postgres"
	"github.com/Embedding-Space/Alpha-AI/pkg/tools"
	"github.com/Embedding-Space/Alpha-AI/pkg/tools/mcp"
	transporthttp "github.com/Embedding-Space/Alpha-AI/pkg/transport/http"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	debug.Init("", "")

	ctx := context.Background()

	// Conversation store.
	store, err := buildStore(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("creating store: %w", err)
	}
	defer store.Close()

	// Provider registry.
	registry, err := buildRegistry(cfg.Providers)
	if err != nil {
		return fmt.Errorf("creating provider registry: %w", err)
	}
	defer registry.Close()

	// MCP tool executor. Connection failures at startup are fatal;
	// per-turn call failures later are not.
	executor, err := buildExecutor(ctx, cfg.MCP)
	if err != nil {
		return fmt.Errorf("connecting tool servers: %w", err)
	}
	if executor != nil {
		defer executor.Close()
	}

	// Event bus.
	events := bus.New()
	defer events.Close()

	// Session manager with the resumed or fresh active conversation.
	prompts := session.DirLoader{Dir: cfg.Session.PromptsDir}
	sessions := session.NewManager(store, events, prompts, cfg.Engine.DefaultModel)

	if _, err := sessions.LoadMostRecent(ctx); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("resuming conversation: %w", err)
		}
		if _, err := sessions.Create(ctx, "", cfg.Session.SystemPrompt); err != nil {
			return fmt.Errorf("creating initial conversation: %w", err)
		}
	}

	// Engine and HTTP transport.
	eng := engine.New(sessions, registry, executorOrNil(executor), engine.Config{
		MaxToolRounds: cfg.Engine.MaxToolRounds,
	})

	adapter := transporthttp.NewAdapter(eng, sessions, registry, store, transporthttp.DefaultConfig())
	srv := transporthttp.NewServer(adapter, transporthttp.ServerConfig{
		Addr:           ":" + strconv.Itoa(cfg.Server.Port),
		ReadTimeout:    cfg.Server.ReadTimeout,
		Metrics:        cfg.Observability.Metrics.Enabled,
		MetricsPath:    cfg.Observability.Metrics.Path,
		MetricsHandler: promhttp.Handler(),
	})

	slog.Info("alpha-ai starting",
		"port", cfg.Server.Port,
		"default_model", cfg.Engine.DefaultModel,
		"storage", cfg.Storage.Type,
		"providers", len(cfg.Providers),
		"mcp_servers", len(cfg.MCP.Servers),
	)

	return srv.ListenAndServe()
}

// buildStore creates the configured conversation store.
func buildStore(ctx context.Context, cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Type {
	case "postgres":
		return postgres.New(ctx, postgres.Config{
			DSN:            cfg.Postgres.DSN,
			MaxConns:       cfg.Postgres.MaxConns,
			MigrateOnStart: cfg.Postgres.MigrateOnStart,
		})
	default:
		return memory.New(), nil
	}
}

// buildRegistry creates one OpenAI-compatible provider per configured
// backend, keyed by tag.
func buildRegistry(providers []config.ProviderConfig) (*provider.Registry, error) {
	factories := make(map[string]provider.Factory, len(providers))
	for _, pc := range providers {
		pc := pc
		factories[pc.Tag] = func() (provider.Provider, error) {
			return openaicompat.New(openaicompat.Config{
				Tag:     pc.Tag,
				BaseURL: pc.BaseURL,
				APIKey:  pc.APIKey,
				Timeout: pc.Timeout,
			})
		}
	}
	return provider.NewRegistry(factories)
}

// buildExecutor connects to every configured MCP server and discovers
// its tools. Returns nil when no servers are configured.
func buildExecutor(ctx context.Context, cfg config.MCPConfig) (*mcp.Executor, error) {
	if len(cfg.Servers) == 0 {
		return nil, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	clients := make(map[string]*mcp.Client, len(cfg.Servers))
	for _, sc := range cfg.Servers {
		client := mcp.NewClient(mcp.ServerConfig{
			Name:      sc.Name,
			URL:       sc.URL,
			Transport: sc.Transport,
			Headers:   sc.Headers,
		})
		if err := client.Connect(connectCtx); err != nil {
			for _, c := range clients {
				c.Close()
			}
			return nil, err
		}
		clients[sc.Name] = client
		slog.Info("connected to tool server", "server", sc.Name, "url", sc.URL)
	}

	executor := mcp.NewExecutor(clients)
	if err := executor.Discover(connectCtx); err != nil {
		executor.Close()
		return nil, err
	}
	return executor, nil
}

// executorOrNil avoids handing the engine a typed nil.
func executorOrNil(e *mcp.Executor) tools.Executor {
	if e == nil {
		return nil
	}
	return e
}
