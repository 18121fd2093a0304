package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/vinayprograms/agentkit/logging"

	"github.com/vinayprograms/taskforge/internal/store"
	"github.com/vinayprograms/taskforge/internal/work"
)

// Propagator recomputes a parent's status from its children and
// cascades the change up the tree. It assumes a single agent drives all
// children of one parent sequentially; no compare-and-swap is done on
// the parent row. A multi-agent deployment sharing a parent would need
// an optimistic version check here.
type Propagator struct {
	store  store.Store
	logger *logging.Logger
}

// NewPropagator creates a Propagator over the given store.
func NewPropagator(st store.Store) *Propagator {
	return &Propagator{
		store:  st,
		logger: logging.New().WithComponent("cascade"),
	}
}

// OnChildStatusChanged re-derives the status of parentID from its
// children and, when the parent actually changed, continues upward.
// All children completed makes the parent completed with an ordered
// result summary; any failed child makes the parent failed. Anything
// else leaves the parent untouched.
func (p *Propagator) OnChildStatusChanged(ctx context.Context, parentID string) error {
	if parentID == "" {
		return nil
	}

	parent, err := p.store.Get(ctx, parentID)
	if err != nil {
		return err
	}
	children, err := p.store.Children(ctx, parentID)
	if err != nil {
		return err
	}
	if len(children) == 0 {
		return nil
	}

	completed := 0
	anyFailed := false
	for _, c := range children {
		switch c.Status {
		case work.StatusCompleted:
			completed++
		case work.StatusFailed:
			anyFailed = true
		}
	}

	var upd work.Update
	switch {
	case completed == len(children):
		status := work.StatusCompleted
		result := aggregateResults(children)
		upd = work.Update{Status: &status, Result: &result}
	case anyFailed:
		status := work.StatusFailed
		errMsg := "one or more sub-items failed"
		upd = work.Update{Status: &status, ErrorMessage: &errMsg}
	default:
		return nil
	}

	if *upd.Status == parent.Status {
		// Idempotent recursion guard: nothing changed, stop cascading.
		return nil
	}

	if _, err := p.store.Update(ctx, parentID, upd); err != nil {
		return err
	}
	p.logger.Info("status cascaded", map[string]interface{}{
		"item":   parentID,
		"status": string(*upd.Status),
	})
	return p.OnChildStatusChanged(ctx, parent.ParentID)
}

// aggregateResults joins child results in creation order into one
// summary payload for the parent.
func aggregateResults(children []*work.Item) string {
	var sb strings.Builder
	sb.WriteString("All sub-items completed:\n")
	for i, c := range children {
		fmt.Fprintf(&sb, "%d. %s", i+1, c.Title)
		if c.Result != "" {
			fmt.Fprintf(&sb, ": %s", c.Result)
		}
		sb.WriteByte('\n')
	}
	return strings.TrimRight(sb.String(), "\n")
}
