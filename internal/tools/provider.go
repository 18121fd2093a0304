// Package tools defines the capability boundary the execution loop
// calls through, and an implementation backed by the agentkit tool
// registry plus MCP servers.
package tools

import (
	"context"
	"strings"
	"sync"

	"github.com/vinayprograms/agentkit/logging"
	"github.com/vinayprograms/agentkit/mcp"
	aktools "github.com/vinayprograms/agentkit/tools"

	"github.com/vinayprograms/taskforge/internal/work"
)

// Spec describes one callable tool.
type Spec struct {
	Name        string
	Description string
	InputSchema interface{}
}

// Provider exposes named, schema-described callable actions.
type Provider interface {
	// Catalog lists the available tools. Names are already sanitized
	// for use as provider-facing identifiers.
	Catalog() []Spec

	// Invoke calls a tool by its catalog name. Returns
	// work.ToolNotFoundError for unknown names and work.ToolError when
	// the tool itself fails.
	Invoke(ctx context.Context, name string, params map[string]interface{}) (interface{}, error)
}

// SanitizeName rewrites a tool name into identifier syntax accepted by
// LLM providers: dot-separated names become underscore-separated.
func SanitizeName(name string) string {
	return strings.ReplaceAll(name, ".", "_")
}

// target records where a sanitized catalog name routes to.
type target struct {
	builtin string // registry tool name, or
	server  string // MCP server plus
	mcpTool string // MCP tool name
}

// RegistryProvider implements Provider over a built-in tool registry
// and an optional set of MCP servers. MCP tools are exposed under
// mcp_<server>_<tool> names the way the agentkit executor surfaces
// them.
type RegistryProvider struct {
	registry *aktools.Registry
	manager  *mcp.Manager
	logger   *logging.Logger

	mu      sync.Mutex
	targets map[string]target
}

// NewRegistryProvider wraps the given registry and MCP manager. Either
// may be nil.
func NewRegistryProvider(registry *aktools.Registry, manager *mcp.Manager) *RegistryProvider {
	return &RegistryProvider{
		registry: registry,
		manager:  manager,
		logger:   logging.New().WithComponent("tools"),
		targets:  make(map[string]target),
	}
}

// Catalog lists built-in and MCP tools, refreshing the routing table.
func (p *RegistryProvider) Catalog() []Spec {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.targets = make(map[string]target)
	var specs []Spec

	if p.registry != nil {
		for _, def := range p.registry.Definitions() {
			name := SanitizeName(def.Name)
			p.targets[name] = target{builtin: def.Name}
			specs = append(specs, Spec{
				Name:        name,
				Description: def.Description,
				InputSchema: def.Parameters,
			})
		}
	}

	if p.manager != nil {
		for _, t := range p.manager.AllTools() {
			name := SanitizeName("mcp_" + t.Server + "_" + t.Tool.Name)
			p.targets[name] = target{server: t.Server, mcpTool: t.Tool.Name}
			specs = append(specs, Spec{
				Name:        name,
				Description: "[MCP:" + t.Server + "] " + t.Tool.Description,
				InputSchema: t.Tool.InputSchema,
			})
		}
	}

	return specs
}

// Invoke routes a catalog name to the registry or an MCP server.
func (p *RegistryProvider) Invoke(ctx context.Context, name string, params map[string]interface{}) (interface{}, error) {
	p.mu.Lock()
	tgt, ok := p.targets[name]
	p.mu.Unlock()

	if !ok {
		// The catalog may not have been listed yet on this provider.
		p.Catalog()
		p.mu.Lock()
		tgt, ok = p.targets[name]
		p.mu.Unlock()
	}
	if !ok {
		return nil, &work.ToolNotFoundError{Name: name}
	}

	if tgt.builtin != "" {
		tool := p.registry.Get(tgt.builtin)
		if tool == nil {
			return nil, &work.ToolNotFoundError{Name: name}
		}
		result, err := tool.Execute(ctx, params)
		if err != nil {
			return nil, &work.ToolError{Name: name, Err: err}
		}
		return result, nil
	}

	result, err := p.manager.CallTool(ctx, tgt.server, tgt.mcpTool, params)
	if err != nil {
		return nil, &work.ToolError{Name: name, Err: err}
	}
	return result, nil
}
