package main

import (
	"strings"
	"testing"

	"github.com/vinayprograms/taskforge/internal/work"
)

func TestRenderTree(t *testing.T) {
	root := &work.TreeNode{
		Item:  &work.Item{ID: "r1", Title: "Launch a product", Status: work.StatusInProgress},
		Depth: 0,
		Children: []*work.TreeNode{
			{
				Item:  &work.Item{ID: "c1", Title: "Market research", Status: work.StatusCompleted},
				Depth: 1,
			},
			{
				Item: &work.Item{
					ID:           "c2",
					Title:        "Build MVP",
					Status:       work.StatusFailed,
					ErrorMessage: "tool deploy: permission denied",
				},
				Depth: 1,
			},
		},
	}

	out := renderTree(root)
	for _, want := range []string{"Launch a product", "Market research", "Build MVP", "permission denied", "r1", "c2"} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered tree missing %q:\n%s", want, out)
		}
	}

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if !strings.HasPrefix(lines[1], "  ") {
		t.Errorf("children not indented:\n%s", out)
	}
}

func TestStatusGlyphsDistinct(t *testing.T) {
	seen := map[string]work.Status{}
	for _, s := range []work.Status{
		work.StatusOpen, work.StatusInProgress, work.StatusCompleted,
		work.StatusFailed, work.StatusBlocked,
	} {
		g := statusGlyph(s)
		if prev, dup := seen[g]; dup {
			t.Errorf("glyph %q shared by %s and %s", g, prev, s)
		}
		seen[g] = s
	}
}
