// Tree rendering for the terminal.
package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/vinayprograms/taskforge/internal/work"
)

const treeWrapWidth = 100

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")) // White bold - item titles

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")) // Gray - ids, descriptions

	openStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("15")) // White

	inProgressStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11")) // Yellow

	completedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")) // Green

	failedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")) // Red

	blockedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("13")) // Magenta
)

func statusStyle(s work.Status) lipgloss.Style {
	switch s {
	case work.StatusInProgress:
		return inProgressStyle
	case work.StatusCompleted:
		return completedStyle
	case work.StatusFailed:
		return failedStyle
	case work.StatusBlocked:
		return blockedStyle
	default:
		return openStyle
	}
}

func statusGlyph(s work.Status) string {
	switch s {
	case work.StatusInProgress:
		return "…"
	case work.StatusCompleted:
		return "✓"
	case work.StatusFailed:
		return "✗"
	case work.StatusBlocked:
		return "⊘"
	default:
		return "○"
	}
}

// renderTree renders a materialized subtree as an indented listing.
func renderTree(root *work.TreeNode) string {
	var sb strings.Builder
	root.Walk(func(n *work.TreeNode) {
		indent := strings.Repeat("  ", n.Depth)
		item := n.Item

		glyph := statusStyle(item.Status).Render(statusGlyph(item.Status))
		fmt.Fprintf(&sb, "%s%s %s %s\n",
			indent,
			glyph,
			titleStyle.Render(item.Title),
			dimStyle.Render(fmt.Sprintf("[%s] %s", item.Status, item.ID)),
		)

		if item.ErrorMessage != "" {
			wrapped := wordwrap.String(item.ErrorMessage, treeWrapWidth-len(indent))
			for _, line := range strings.Split(wrapped, "\n") {
				fmt.Fprintf(&sb, "%s    %s\n", indent, failedStyle.Render(line))
			}
		}
	})
	return sb.String()
}
