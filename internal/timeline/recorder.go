// Package timeline records the engine's action history: every planning
// decision and tool invocation is mirrored here before and after it
// runs. Recording is best-effort - the engine logs recorder failures
// and keeps going.
package timeline

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Action status values.
const (
	StatusStarted   = "started"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Action kinds.
const (
	KindPlanning = "planning"
	KindToolCall = "tool_call"
)

// Action is one entry in the timeline.
type Action struct {
	ID        string                 `json:"id"`
	SeqID     uint64                 `json:"seq"`
	ItemID    string                 `json:"item_id"`
	Kind      string                 `json:"kind"`
	Tool      string                 `json:"tool,omitempty"`
	Params    map[string]interface{} `json:"params,omitempty"`
	Reasoning string                 `json:"reasoning,omitempty"`
	Status    string                 `json:"status"`
	Result    string                 `json:"result,omitempty"`
	Error     string                 `json:"error,omitempty"`
	StartedAt time.Time              `json:"started_at"`
	EndedAt   *time.Time             `json:"ended_at,omitempty"`
}

// Recorder mirrors actions to a timeline. Implementations must be safe
// for use from a single agent goroutine; they are not required to be
// durable - callers treat every method as best-effort.
type Recorder interface {
	// RecordAction appends a started action and returns its id.
	RecordAction(ctx context.Context, a Action) (string, error)

	// CompleteAction marks a previously recorded action finished.
	CompleteAction(ctx context.Context, id, status, result, errMsg string) error
}

// NopRecorder discards everything. Used when no timeline is configured
// and in tests that don't care about the record.
type NopRecorder struct{}

func (NopRecorder) RecordAction(ctx context.Context, a Action) (string, error) {
	return uuid.NewString(), nil
}

func (NopRecorder) CompleteAction(ctx context.Context, id, status, result, errMsg string) error {
	return nil
}
