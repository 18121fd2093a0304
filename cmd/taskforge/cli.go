// Package main defines the CLI structure using kong.
package main

import "github.com/alecthomas/kong"

// CLI defines the command-line interface.
type CLI struct {
	Run     RunCmd     `cmd:"" help:"Create a root work item and drive it to completion"`
	Resume  ResumeCmd  `cmd:"" help:"Resume an interrupted work item"`
	Stop    StopCmd    `cmd:"" help:"Move an in-progress work item back to open"`
	Tree    TreeCmd    `cmd:"" help:"Show a work-item tree"`
	List    ListCmd    `cmd:"" help:"List work items"`
	Version VersionCmd `cmd:"" help:"Show version information"`
}

// RunCmd creates a root work item and works on it.
type RunCmd struct {
	Title       string   `arg:"" help:"Work item title"`
	Description string   `short:"d" help:"Longer description of the objective"`
	Priority    string   `short:"p" default:"medium" help:"Priority (critical|high|medium|low)"`
	Tags        []string `short:"t" help:"Tags attached to the item (repeatable)"`
	Config      string   `help:"Config file path"`
	MaxDepth    int      `help:"Decomposition depth bound (overrides config)"`
	MaxSteps    int      `help:"Execution step budget (overrides config)"`
}

// ResumeCmd re-enters an existing work item.
type ResumeCmd struct {
	ID       string `arg:"" help:"Work item id"`
	Config   string `help:"Config file path"`
	MaxDepth int    `help:"Decomposition depth bound (overrides config)"`
	MaxSteps int    `help:"Execution step budget (overrides config)"`
}

// StopCmd moves an in-progress item back to open for later resumption.
type StopCmd struct {
	ID     string `arg:"" help:"Work item id"`
	Config string `help:"Config file path"`
}

// TreeCmd renders a work-item subtree.
type TreeCmd struct {
	ID     string `arg:"" help:"Root work item id"`
	Config string `help:"Config file path"`
}

// ListCmd lists work items.
type ListCmd struct {
	Status string `short:"s" help:"Filter by status (open|in_progress|completed|failed|blocked)"`
	Tag    string `help:"Filter by tag"`
	Roots  bool   `help:"Only show root items"`
	Config string `help:"Config file path"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

// kongVars returns variables for kong (version info).
func kongVars() kong.Vars {
	return kong.Vars{
		"version": version,
	}
}
