package agent

import (
	"context"

	"github.com/vinayprograms/taskforge/internal/work"
)

// resume re-enters a decomposed item: drive every child that is not yet
// completed, including previously failed or blocked ones. A failed
// child simply gets a fresh attempt; there is no permanent-dead state,
// retries happen whenever the operator resumes again.
func (a *Agent) resume(ctx context.Context, item *work.Item, depth int) error {
	children, err := a.store.Children(ctx, item.ID)
	if err != nil {
		return err
	}

	var pending []*work.Item
	for _, c := range children {
		if c.Status != work.StatusCompleted {
			pending = append(pending, c)
		}
	}

	if len(pending) == 0 {
		// Defensive re-check: the cascade already fired when the last
		// child completed.
		a.logger.Debug("all children already completed", map[string]interface{}{"item": item.ID})
		return nil
	}

	if item.Status != work.StatusInProgress {
		if _, err := a.markInProgress(ctx, item.ID); err != nil {
			return err
		}
	}

	a.logger.Info("resuming incomplete children", map[string]interface{}{
		"item":    item.ID,
		"pending": len(pending),
		"total":   len(children),
	})

	for _, child := range pending {
		if err := a.workOn(ctx, child.ID, depth+1); err != nil {
			return err
		}
	}
	return nil
}
