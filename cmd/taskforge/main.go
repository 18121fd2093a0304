// Package main is the entry point for the taskforge CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/vinayprograms/agentkit/credentials"

	"github.com/vinayprograms/taskforge/internal/config"
	"github.com/vinayprograms/taskforge/internal/work"
)

// Build-time variables (set via ldflags)
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

// globalCreds holds loaded credentials (file > env fallback happens in
// config.GetAPIKey).
var globalCreds *credentials.Credentials

func init() {
	if creds, _, err := credentials.Load(); err == nil && creds != nil {
		globalCreds = creds
	}
	_ = godotenv.Load()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("taskforge"),
		kong.Description("Hierarchical work-item decomposition and execution engine"),
		kong.UsageOnError(),
		kong.BindTo(ctx, (*context.Context)(nil)),
		kongVars(),
	)

	if err := kctx.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads the config at path, or the default config when path
// is empty.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.LoadDefault()
}

// Run implements the run command: create a root work item and drive it.
func (c *RunCmd) Run(ctx context.Context) error {
	cfg, err := loadConfig(c.Config)
	if err != nil {
		return err
	}
	if c.MaxDepth > 0 {
		cfg.Engine.MaxDepth = c.MaxDepth
	}
	if c.MaxSteps > 0 {
		cfg.Engine.MaxSteps = c.MaxSteps
	}

	rt := newRuntime(cfg, globalCreds)
	if err := rt.setup(ctx); err != nil {
		return err
	}
	defer rt.cleanup()

	item, err := rt.store.Create(ctx, work.Spec{
		Title:       c.Title,
		Description: c.Description,
		Priority:    work.ParsePriority(c.Priority),
		Tags:        c.Tags,
		CreatedBy:   cfg.Engine.Assignee,
		AssignedTo:  cfg.Engine.Assignee,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Created work item %s\n\n", item.ID)

	return c.drive(ctx, rt, item.ID)
}

func (c *RunCmd) drive(ctx context.Context, rt *runtime, id string) error {
	workErr := rt.agent.WorkOn(ctx, id)
	printOutcome(ctx, rt, id)
	return workErr
}

// Run implements the resume command.
func (c *ResumeCmd) Run(ctx context.Context) error {
	cfg, err := loadConfig(c.Config)
	if err != nil {
		return err
	}
	if c.MaxDepth > 0 {
		cfg.Engine.MaxDepth = c.MaxDepth
	}
	if c.MaxSteps > 0 {
		cfg.Engine.MaxSteps = c.MaxSteps
	}

	rt := newRuntime(cfg, globalCreds)
	if err := rt.setup(ctx); err != nil {
		return err
	}
	defer rt.cleanup()

	workErr := rt.agent.WorkOn(ctx, c.ID)
	printOutcome(ctx, rt, c.ID)
	return workErr
}

// Run implements the stop command.
func (c *StopCmd) Run(ctx context.Context) error {
	cfg, err := loadConfig(c.Config)
	if err != nil {
		return err
	}
	rt := newRuntime(cfg, globalCreds)
	if err := rt.setupStoreOnly(ctx); err != nil {
		return err
	}
	defer rt.cleanup()

	item, err := rt.store.Get(ctx, c.ID)
	if err != nil {
		return err
	}
	if item.Status != work.StatusInProgress {
		fmt.Fprintf(os.Stderr, "item %s is %s, nothing to stop\n", c.ID, item.Status)
		return nil
	}
	status := work.StatusOpen
	if _, err := rt.store.Update(ctx, c.ID, work.Update{Status: &status}); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Stopped %s; resume with: taskforge resume %s\n", c.ID, c.ID)
	return nil
}

// Run implements the tree command.
func (c *TreeCmd) Run(ctx context.Context) error {
	cfg, err := loadConfig(c.Config)
	if err != nil {
		return err
	}
	rt := newRuntime(cfg, globalCreds)
	if err := rt.setupStoreOnly(ctx); err != nil {
		return err
	}
	defer rt.cleanup()

	root, err := rt.store.Tree(ctx, c.ID)
	if err != nil {
		return err
	}
	fmt.Print(renderTree(root))
	return nil
}

// Run implements the list command.
func (c *ListCmd) Run(ctx context.Context) error {
	cfg, err := loadConfig(c.Config)
	if err != nil {
		return err
	}
	rt := newRuntime(cfg, globalCreds)
	if err := rt.setupStoreOnly(ctx); err != nil {
		return err
	}
	defer rt.cleanup()

	f := work.Filter{Tag: c.Tag}
	if c.Status != "" {
		status := work.Status(c.Status)
		if !status.Valid() {
			return fmt.Errorf("unknown status %q", c.Status)
		}
		f.Statuses = []work.Status{status}
	}
	if c.Roots {
		root := ""
		f.ParentID = &root
	}

	items, err := rt.store.Query(ctx, f)
	if err != nil {
		return err
	}
	for _, item := range items {
		glyph := statusStyle(item.Status).Render(statusGlyph(item.Status))
		fmt.Printf("%s %s %s\n", glyph, titleStyle.Render(item.Title),
			dimStyle.Render(fmt.Sprintf("[%s] %s", item.Status, item.ID)))
	}
	return nil
}

// Run implements the version command.
func (c *VersionCmd) Run(ctx context.Context) error {
	fmt.Printf("taskforge version %s (commit: %s, built: %s)\n", version, commit, buildTime)
	return nil
}

// printOutcome renders the final tree after a run or resume.
func printOutcome(ctx context.Context, rt *runtime, id string) {
	root, err := rt.store.Tree(ctx, id)
	if err != nil {
		return
	}
	fmt.Fprintln(os.Stderr)
	fmt.Fprint(os.Stderr, renderTree(root))
}
