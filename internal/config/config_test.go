package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := New()
	if cfg.Engine.MaxDepth != 3 {
		t.Errorf("max_depth default = %d", cfg.Engine.MaxDepth)
	}
	if cfg.Engine.MaxSteps != 100 {
		t.Errorf("max_steps default = %d", cfg.Engine.MaxSteps)
	}
	if !cfg.Storage.Persist {
		t.Error("storage should persist by default")
	}
	if cfg.Telemetry.Protocol != "noop" {
		t.Errorf("telemetry protocol default = %q", cfg.Telemetry.Protocol)
	}
}

func TestLoadFileOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taskforge.toml")
	content := `
[llm]
provider = "anthropic"
model = "claude-sonnet-4-5"

[engine]
max_depth = 2

[mcp.servers.web]
command = "mcp-web"
args = ["--headless"]
denied_tools = ["screenshot"]
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.LLM.Provider != "anthropic" || cfg.LLM.Model != "claude-sonnet-4-5" {
		t.Errorf("llm = %+v", cfg.LLM)
	}
	if cfg.Engine.MaxDepth != 2 {
		t.Errorf("max_depth = %d", cfg.Engine.MaxDepth)
	}
	// Untouched fields keep their defaults.
	if cfg.Engine.MaxSteps != 100 {
		t.Errorf("max_steps = %d, want default", cfg.Engine.MaxSteps)
	}
	web, ok := cfg.MCP.Servers["web"]
	if !ok {
		t.Fatal("mcp server not parsed")
	}
	if web.Command != "mcp-web" || len(web.DeniedTools) != 1 {
		t.Errorf("mcp server = %+v", web)
	}
}

func TestLoadFileRejectsBadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("[llm\nprovider ="), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestGetAPIKeyFallsBackToProviderDefault(t *testing.T) {
	cfg := New()
	cfg.LLM.Provider = "anthropic"
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	if got := cfg.GetAPIKey(); got != "sk-test" {
		t.Errorf("api key = %q", got)
	}

	cfg.LLM.APIKeyEnv = "CUSTOM_KEY"
	t.Setenv("CUSTOM_KEY", "sk-custom")
	if got := cfg.GetAPIKey(); got != "sk-custom" {
		t.Errorf("api key = %q", got)
	}
}
