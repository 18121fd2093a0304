package work

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced at the store boundary.
var (
	// ErrNotFound is returned when an item id does not resolve.
	ErrNotFound = errors.New("work item not found")

	// ErrInvalidState is returned for illegal deletes and illegal
	// status transitions. The item is left untouched.
	ErrInvalidState = errors.New("invalid work item state")
)

// PlanningError means a decomposition plan could not be parsed. An
// unparsable plan cannot safely be executed, so this is fatal to the
// decompose attempt.
type PlanningError struct {
	Raw string // raw model output, for diagnostics
	Err error
}

func (e *PlanningError) Error() string {
	return fmt.Sprintf("planning failed: %v", e.Err)
}

func (e *PlanningError) Unwrap() error { return e.Err }

// StepBudgetError means the execution loop ran out of iterations
// without the model declaring completion.
type StepBudgetError struct {
	Steps int
}

func (e *StepBudgetError) Error() string {
	return fmt.Sprintf("step budget exceeded after %d iterations", e.Steps)
}

// ToolNotFoundError means the model requested a tool the provider does
// not expose.
type ToolNotFoundError struct {
	Name string
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("tool not found: %s", e.Name)
}

// ToolError wraps a failure from a tool invocation.
type ToolError struct {
	Name string
	Err  error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %s: %v", e.Name, e.Err)
}

func (e *ToolError) Unwrap() error { return e.Err }

// ProviderError wraps an LLM transport or auth failure. The engine
// never retries these automatically.
type ProviderError struct {
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("llm provider: %v", e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }
