// Package store owns the work-item tree: creation, partial updates,
// queries, tree materialization and deletion. The parent_id foreign key
// is the source of truth for the tree shape; child id lists are derived
// on read, ordered by creation time.
package store

import (
	"context"

	"github.com/vinayprograms/taskforge/internal/work"
)

// Store is the persistence contract the engine consumes.
type Store interface {
	// Create assigns an id, defaults status to open and links the item
	// under its parent. The new-item insert and the parent link are
	// atomic from the caller's perspective.
	Create(ctx context.Context, spec work.Spec) (*work.Item, error)

	// Get returns the item or work.ErrNotFound.
	Get(ctx context.Context, id string) (*work.Item, error)

	// Update applies a partial merge. A transition into in_progress
	// stamps StartedAt once; a transition into completed or failed
	// stamps CompletedAt once. Repeated identical transitions are
	// timestamp no-ops. Transitions out of completed are rejected with
	// work.ErrInvalidState.
	Update(ctx context.Context, id string, upd work.Update) (*work.Item, error)

	// Query returns items matching the filter in creation order.
	Query(ctx context.Context, f work.Filter) ([]*work.Item, error)

	// Children returns the direct children of an item in creation order.
	Children(ctx context.Context, parentID string) ([]*work.Item, error)

	// Tree materializes the subtree rooted at rootID with per-node
	// depth annotations. It terminates even on a (corrupt) cyclic
	// parent graph.
	Tree(ctx context.Context, rootID string) (*work.TreeNode, error)

	// Delete removes an item and its subtree. It fails with
	// work.ErrInvalidState if the item or any item in its subtree is
	// in_progress or blocked.
	Delete(ctx context.Context, id string) error

	Close() error
}
