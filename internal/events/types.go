package events

import (
	"time"

	"github.com/vinayprograms/taskforge/internal/work"
)

// Event is the base interface for all events.
type Event interface {
	EventType() string
	ItemID() string
}

// Topic constants.
const (
	TopicItem = "item"
)

// Event type constants.
const (
	EventTypeItemCreated = "item.created"
	EventTypeItemUpdated = "item.updated"
	EventTypeItemDeleted = "item.deleted"
)

// ItemCreatedEvent is published when a work item is created.
type ItemCreatedEvent struct {
	ID        string
	ParentID  string
	Title     string
	Timestamp time.Time
}

func (e ItemCreatedEvent) EventType() string { return EventTypeItemCreated }
func (e ItemCreatedEvent) ItemID() string    { return e.ID }

// ItemUpdatedEvent is published after any item update. OldStatus and
// NewStatus are equal when a non-status field changed.
type ItemUpdatedEvent struct {
	ID        string
	OldStatus work.Status
	NewStatus work.Status
	Timestamp time.Time
}

func (e ItemUpdatedEvent) EventType() string { return EventTypeItemUpdated }
func (e ItemUpdatedEvent) ItemID() string    { return e.ID }

// ItemDeletedEvent is published when an item (and its subtree) is
// removed.
type ItemDeletedEvent struct {
	ID        string
	Timestamp time.Time
}

func (e ItemDeletedEvent) EventType() string { return EventTypeItemDeleted }
func (e ItemDeletedEvent) ItemID() string    { return e.ID }
