// Package agent ties the engine together: it drives one depth-first
// traversal of a work-item subtree, deciding per item whether to
// decompose, execute, or resume, and cascading status changes upward.
package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/vinayprograms/agentkit/logging"

	"github.com/vinayprograms/taskforge/internal/loop"
	"github.com/vinayprograms/taskforge/internal/planner"
	"github.com/vinayprograms/taskforge/internal/store"
	"github.com/vinayprograms/taskforge/internal/work"
)

// Agent drives work items to completion. One Agent instance owns one
// subtree traversal at a time; children execute strictly sequentially.
// Two agents must not be pointed at the same item concurrently.
type Agent struct {
	store      store.Store
	planner    *planner.Planner
	loop       *loop.Loop
	propagator *Propagator
	logger     *logging.Logger
}

// New creates an Agent over its collaborators.
func New(st store.Store, pl *planner.Planner, lp *loop.Loop) *Agent {
	return &Agent{
		store:      st,
		planner:    pl,
		loop:       lp,
		propagator: NewPropagator(st),
		logger:     logging.New().WithComponent("agent"),
	}
}

// WorkOn drives the item with the given id to completion, recursing
// depth-first through any decomposition. Errors are recorded on the
// failing item before being returned, so the caller and the status
// tree agree on the outcome.
func (a *Agent) WorkOn(ctx context.Context, id string) error {
	return a.workOn(ctx, id, 0)
}

// Stop moves an in-progress item back to open so a later resume can
// pick it up. Items in any other status are left untouched.
func (a *Agent) Stop(ctx context.Context, id string) error {
	item, err := a.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if item.Status != work.StatusInProgress {
		return nil
	}
	status := work.StatusOpen
	_, err = a.store.Update(ctx, id, work.Update{Status: &status})
	return err
}

func (a *Agent) workOn(ctx context.Context, id string, depth int) error {
	item, err := a.store.Get(ctx, id)
	if err != nil {
		return err
	}

	if item.Status == work.StatusCompleted {
		a.logger.Debug("item already completed", map[string]interface{}{"item": id})
		return nil
	}

	ctx, span := a.startItemSpan(ctx, item, depth)
	path, err := a.dispatch(ctx, item, depth)
	a.endItemSpan(span, path, err)
	return err
}

// dispatch picks the path for an item: resume a decomposed one, or
// decide decompose-vs-execute for a fresh one.
func (a *Agent) dispatch(ctx context.Context, item *work.Item, depth int) (string, error) {
	log := map[string]interface{}{"item": item.ID, "title": item.Title, "depth": depth}

	// Re-entry: a decomposed item is never executed or re-planned, only
	// resumed over its incomplete children.
	if item.Decomposed() || len(item.ChildIDs) > 0 {
		a.logger.Info("resuming decomposed item", log)
		return "resume", a.resume(ctx, item, depth)
	}

	item, err := a.markInProgress(ctx, item.ID)
	if err != nil {
		return "start", err
	}

	siblings, err := a.siblings(ctx, item)
	if err != nil {
		return "start", a.fail(ctx, item, err)
	}

	decompose, err := a.planner.ShouldDecompose(ctx, item, depth, siblings)
	if err != nil {
		return "classify", a.fail(ctx, item, err)
	}

	if decompose {
		a.logger.Info("decomposing item", log)
		return "decompose", a.decompose(ctx, item, depth)
	}

	a.logger.Info("executing item", log)
	return "execute", a.execute(ctx, item)
}

// decompose plans sub-items, persists them in plan order and recurses
// into each sequentially. The first child failure stops the traversal;
// the cascade has already marked this item failed by then.
func (a *Agent) decompose(ctx context.Context, item *work.Item, depth int) error {
	plan, err := a.planner.Plan(ctx, item)
	if err != nil {
		return a.fail(ctx, item, err)
	}

	childIDs := make([]string, 0, len(plan.SubItems))
	for _, sub := range plan.SubItems {
		meta := map[string]interface{}{}
		if sub.EstimatedSteps > 0 {
			meta[work.MetaEstimatedSteps] = sub.EstimatedSteps
		}
		if len(sub.Dependencies) > 0 {
			meta[work.MetaDependencies] = sub.Dependencies
		}
		child, err := a.store.Create(ctx, work.Spec{
			Kind:        item.Kind,
			Title:       sub.Title,
			Description: sub.Description,
			Priority:    sub.Priority,
			ParentID:    item.ID,
			CreatedBy:   item.AssignedTo,
			AssignedTo:  item.AssignedTo,
			Tags:        item.Tags,
			Metadata:    meta,
		})
		if err != nil {
			return a.fail(ctx, item, err)
		}
		childIDs = append(childIDs, child.ID)
	}

	strategy := plan.Reasoning
	if _, err := a.store.Update(ctx, item.ID, work.Update{
		Strategy: &strategy,
		Metadata: map[string]interface{}{work.MetaDecomposed: true},
	}); err != nil {
		return a.fail(ctx, item, err)
	}

	a.logger.Info("sub-items created", map[string]interface{}{
		"item":  item.ID,
		"count": len(childIDs),
	})

	for _, childID := range childIDs {
		if err := a.workOn(ctx, childID, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// execute hands a leaf item to the conversation loop and records the
// outcome. A cancellation leaves the item in progress for resumption.
func (a *Agent) execute(ctx context.Context, item *work.Item) error {
	res, err := a.loop.Run(ctx, item)
	if err != nil {
		return a.fail(ctx, item, err)
	}

	status := work.StatusCompleted
	if _, err := a.store.Update(ctx, item.ID, work.Update{
		Status: &status,
		Result: &res.Summary,
	}); err != nil {
		return err
	}
	return a.propagator.OnChildStatusChanged(ctx, item.ParentID)
}

// fail records the error on the item, cascades, and returns the
// original error so callers up the recursion see it too. Cancellation
// is not a failure: the item stays in progress so a later resume can
// pick it up.
func (a *Agent) fail(ctx context.Context, item *work.Item, cause error) error {
	if errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
		return cause
	}
	status := work.StatusFailed
	errMsg := cause.Error()
	if _, err := a.store.Update(ctx, item.ID, work.Update{
		Status:       &status,
		ErrorMessage: &errMsg,
	}); err != nil {
		a.logger.Error("recording failure", map[string]interface{}{
			"item":  item.ID,
			"error": err.Error(),
		})
	}
	if err := a.propagator.OnChildStatusChanged(ctx, item.ParentID); err != nil {
		a.logger.Error("cascading failure", map[string]interface{}{
			"item":  item.ID,
			"error": err.Error(),
		})
	}
	return fmt.Errorf("working on %s: %w", item.ID, cause)
}

func (a *Agent) markInProgress(ctx context.Context, id string) (*work.Item, error) {
	status := work.StatusInProgress
	return a.store.Update(ctx, id, work.Update{Status: &status})
}

// siblings loads the item's siblings for decomposition context. Roots
// have none.
func (a *Agent) siblings(ctx context.Context, item *work.Item) ([]*work.Item, error) {
	if item.ParentID == "" {
		return nil, nil
	}
	return a.store.Children(ctx, item.ParentID)
}
