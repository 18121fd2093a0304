package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/vinayprograms/taskforge/internal/work"
)

func TestSanitizeName(t *testing.T) {
	cases := map[string]string{
		"write_file":          "write_file",
		"fs.write":            "fs_write",
		"mcp_search.web.query": "mcp_search_web_query",
	}
	for in, want := range cases {
		if got := SanitizeName(in); got != want {
			t.Errorf("SanitizeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestInvokeUnknownTool(t *testing.T) {
	p := NewRegistryProvider(nil, nil)

	_, err := p.Invoke(context.Background(), "nonexistent", nil)
	var notFound *work.ToolNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ToolNotFoundError, got %v", err)
	}
	if notFound.Name != "nonexistent" {
		t.Errorf("expected tool name preserved, got %q", notFound.Name)
	}
}

func TestCatalogEmptyProviders(t *testing.T) {
	p := NewRegistryProvider(nil, nil)
	if specs := p.Catalog(); len(specs) != 0 {
		t.Errorf("expected empty catalog, got %d specs", len(specs))
	}
}
