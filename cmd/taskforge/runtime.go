// Package main provides runtime wiring for the engine.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vinayprograms/agentkit/credentials"
	"github.com/vinayprograms/agentkit/llm"
	"github.com/vinayprograms/agentkit/mcp"
	"github.com/vinayprograms/agentkit/policy"
	"github.com/vinayprograms/agentkit/telemetry"
	aktools "github.com/vinayprograms/agentkit/tools"

	"github.com/vinayprograms/taskforge/internal/agent"
	"github.com/vinayprograms/taskforge/internal/config"
	"github.com/vinayprograms/taskforge/internal/events"
	"github.com/vinayprograms/taskforge/internal/loop"
	"github.com/vinayprograms/taskforge/internal/planner"
	"github.com/vinayprograms/taskforge/internal/store"
	"github.com/vinayprograms/taskforge/internal/timeline"
	"github.com/vinayprograms/taskforge/internal/tools"
)

// runtime holds the wired engine components for one command.
type runtime struct {
	cfg   *config.Config
	creds *credentials.Credentials

	provider   llm.Provider
	registry   *aktools.Registry
	mcpManager *mcp.Manager
	telem      telemetry.Exporter
	bus        *events.Bus
	store      store.Store
	recorder   timeline.Recorder
	agent      *agent.Agent

	storagePath string
	closers     []func()
}

// newRuntime creates a runtime from loaded configuration.
func newRuntime(cfg *config.Config, creds *credentials.Credentials) *runtime {
	return &runtime{
		cfg:         cfg,
		creds:       creds,
		storagePath: cfg.StoragePath(),
	}
}

// setup initializes the full engine stack. Returns error on failure.
func (rt *runtime) setup(ctx context.Context) error {
	if err := os.MkdirAll(rt.storagePath, 0755); err != nil {
		return fmt.Errorf("creating storage directory: %w", err)
	}
	if err := rt.createProvider(); err != nil {
		return err
	}
	rt.setupRegistry()
	if err := rt.setupTelemetry(); err != nil {
		return err
	}
	rt.setupMCP()
	if err := rt.setupStore(ctx); err != nil {
		return err
	}
	if err := rt.setupRecorder(); err != nil {
		return err
	}
	rt.createAgent()
	return nil
}

// setupStoreOnly wires just the persistence layer, for commands that
// never touch the LLM or tools.
func (rt *runtime) setupStoreOnly(ctx context.Context) error {
	if err := os.MkdirAll(rt.storagePath, 0755); err != nil {
		return fmt.Errorf("creating storage directory: %w", err)
	}
	return rt.setupStore(ctx)
}

// createProvider creates the LLM provider.
func (rt *runtime) createProvider() error {
	providerName := rt.cfg.LLM.Provider
	if providerName == "" {
		providerName = llm.InferProviderFromModel(rt.cfg.LLM.Model)
	}
	if providerName == "" && rt.cfg.LLM.Model == "" {
		return fmt.Errorf("LLM model not configured")
	}

	apiKey := rt.cfg.GetAPIKey()
	if rt.creds != nil {
		if k := rt.creds.GetAPIKey(providerName); k != "" {
			apiKey = k
		}
	}

	var err error
	rt.provider, err = llm.NewProvider(llm.ProviderConfig{
		Provider:  providerName,
		Model:     rt.cfg.LLM.Model,
		APIKey:    apiKey,
		MaxTokens: rt.cfg.LLM.MaxTokens,
		BaseURL:   rt.cfg.LLM.BaseURL,
	})
	if err != nil {
		return fmt.Errorf("creating LLM provider: %w", err)
	}
	return nil
}

// setupRegistry creates the builtin tool registry.
func (rt *runtime) setupRegistry() {
	rt.registry = aktools.NewRegistry(policy.New())
	if rt.creds != nil {
		rt.registry.SetCredentials(rt.creds)
	}
}

// setupTelemetry creates the telemetry exporter.
func (rt *runtime) setupTelemetry() error {
	var err error
	if rt.cfg.Telemetry.Enabled {
		rt.telem, err = telemetry.NewExporter(rt.cfg.Telemetry.Protocol, rt.cfg.Telemetry.Endpoint)
		if err != nil {
			return fmt.Errorf("creating telemetry exporter: %w", err)
		}
	} else {
		rt.telem = telemetry.NewNoopExporter()
	}
	rt.addCloser(func() { rt.telem.Close() })
	return nil
}

// setupMCP connects configured MCP servers.
func (rt *runtime) setupMCP() {
	if len(rt.cfg.MCP.Servers) == 0 {
		return
	}

	rt.mcpManager = mcp.NewManager()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for name, serverCfg := range rt.cfg.MCP.Servers {
		err := rt.mcpManager.Connect(ctx, name, mcp.ServerConfig{
			Command: serverCfg.Command,
			Args:    serverCfg.Args,
			Env:     serverCfg.Env,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to connect MCP server %q: %v\n", name, err)
			continue
		}
		if len(serverCfg.DeniedTools) > 0 {
			rt.mcpManager.SetDeniedTools(name, serverCfg.DeniedTools)
		}
	}
	rt.addCloser(func() { rt.mcpManager.Close() })
}

// setupStore opens the work-item database and its event bus.
func (rt *runtime) setupStore(ctx context.Context) error {
	rt.bus = events.NewBus()
	rt.addCloser(func() { rt.bus.Close() })

	var err error
	if rt.cfg.Storage.Persist {
		dbPath := filepath.Join(rt.storagePath, "items.db")
		rt.store, err = store.NewSQLiteStore(ctx, dbPath, rt.bus)
	} else {
		rt.store, err = store.NewMemoryStore(ctx, rt.bus)
	}
	if err != nil {
		return fmt.Errorf("opening work item store: %w", err)
	}
	rt.addCloser(func() { rt.store.Close() })
	return nil
}

// setupRecorder opens the action timeline.
func (rt *runtime) setupRecorder() error {
	if !rt.cfg.Storage.Persist {
		rt.recorder = timeline.NopRecorder{}
		return nil
	}
	rec, err := timeline.NewFileRecorder(filepath.Join(rt.storagePath, "timeline.jsonl"))
	if err != nil {
		return fmt.Errorf("opening timeline: %w", err)
	}
	rt.recorder = rec
	rt.addCloser(func() { rec.Close() })
	return nil
}

// createAgent wires the planner, loop and agent.
func (rt *runtime) createAgent() {
	toolProvider := tools.NewRegistryProvider(rt.registry, rt.mcpManager)
	pl := planner.New(rt.provider, rt.cfg.Engine.MaxDepth)
	lp := loop.New(loop.Config{
		Provider: rt.provider,
		Tools:    toolProvider,
		Recorder: rt.recorder,
		MaxSteps: rt.cfg.Engine.MaxSteps,
	})
	rt.agent = agent.New(rt.store, pl, lp)
}

// cleanup runs all registered cleanup functions.
func (rt *runtime) cleanup() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
}

// addCloser registers a cleanup function.
func (rt *runtime) addCloser(fn func()) {
	rt.closers = append(rt.closers, fn)
}
