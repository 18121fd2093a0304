// Package work defines the work-item data model shared by the engine.
package work

import (
	"strings"
	"time"
)

// Status is the lifecycle state of a work item.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusBlocked    Status = "blocked"
)

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusCompleted, StatusFailed, StatusBlocked:
		return true
	}
	return false
}

// Terminal reports whether s marks the end of an item's lifecycle.
// Failed is not terminal in the strict sense - a resume gives failed
// items a fresh attempt - but it ends the current run.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Priority orders sibling items for human readers. Execution order is
// creation order, not priority order.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// ParsePriority maps a free-form string (typically model output) to a
// Priority, defaulting to medium for anything unrecognized.
func ParsePriority(s string) Priority {
	switch Priority(strings.ToLower(strings.TrimSpace(s))) {
	case PriorityCritical:
		return PriorityCritical
	case PriorityHigh:
		return PriorityHigh
	case PriorityLow:
		return PriorityLow
	default:
		return PriorityMedium
	}
}

// Metadata keys used by the engine.
const (
	MetaDecomposed     = "decomposed"
	MetaEstimatedSteps = "estimatedSteps"
	MetaDependencies   = "dependencies"
)

// Item is a node in the work hierarchy. Roots are created by callers;
// sub-items are created from decomposition plans. The parent link is the
// source of truth for the tree shape; ChildIDs is populated on reads,
// ordered by child creation time.
type Item struct {
	ID          string
	Kind        string
	Title       string
	Description string

	Status   Status
	Priority Priority

	ParentID string
	ChildIDs []string

	CreatedBy  string
	AssignedTo string

	// Strategy records the decomposition reasoning. Only set on items
	// that were decomposed.
	Strategy string

	Result       string
	ErrorMessage string

	Tags     []string
	Metadata map[string]interface{}

	CreatedAt     time.Time
	StartedAt     *time.Time
	CompletedAt   *time.Time
	LastUpdatedAt time.Time
}

// Decomposed reports whether the item has been split into sub-items.
// A decomposed item is never handed to the execution loop again; it is
// only re-entered through resumption.
func (it *Item) Decomposed() bool {
	v, ok := it.Metadata[MetaDecomposed]
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

// HasTag reports whether the item carries the given tag.
func (it *Item) HasTag(tag string) bool {
	for _, t := range it.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Spec describes a work item to create. IDs are always store-generated;
// a Spec carries none.
type Spec struct {
	Kind        string
	Title       string
	Description string
	Priority    Priority
	ParentID    string
	CreatedBy   string
	AssignedTo  string
	Tags        []string
	Metadata    map[string]interface{}
}

// Update is a partial merge applied to an existing item. Nil fields are
// left untouched. Metadata entries are merged key-by-key into the
// existing map.
type Update struct {
	Title        *string
	Description  *string
	Status       *Status
	Priority     *Priority
	AssignedTo   *string
	Strategy     *string
	Result       *string
	ErrorMessage *string
	Tags         []string
	Metadata     map[string]interface{}
}

// Filter selects items in a query. Zero values match everything.
type Filter struct {
	Statuses   []Status
	ParentID   *string // non-nil selects children of that parent ("" selects roots)
	AssignedTo string
	Kind       string
	Tag        string
}

// TreeNode is one node of a materialized tree view, annotated with its
// depth below the requested root.
type TreeNode struct {
	Item     *Item
	Depth    int
	Children []*TreeNode
}

// Walk visits the node and all descendants depth-first.
func (n *TreeNode) Walk(fn func(*TreeNode)) {
	fn(n)
	for _, c := range n.Children {
		c.Walk(fn)
	}
}
