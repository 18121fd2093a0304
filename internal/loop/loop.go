// Package loop drives a single leaf work item to completion through a
// bounded, conversation-accumulating tool-call loop.
package loop

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/vinayprograms/agentkit/llm"
	"github.com/vinayprograms/agentkit/logging"

	"github.com/vinayprograms/taskforge/internal/timeline"
	"github.com/vinayprograms/taskforge/internal/tools"
	"github.com/vinayprograms/taskforge/internal/work"
)

// DefaultMaxSteps is the default iteration budget for one run.
const DefaultMaxSteps = 100

const systemPromptTemplate = `You are an autonomous agent completing a single work item.

Work item: %s
%s
On every turn respond with strict JSON only:
{"action": "what you are doing", "reasoning": "why", "complete": false, "tool": "tool_name", "params": {...}}

Set "complete": true (and omit "tool") once the work item is done.
Omit "tool" to think without acting.
%s`

// Config wires a Loop's collaborators.
type Config struct {
	Provider llm.Provider
	Tools    tools.Provider
	Recorder timeline.Recorder
	MaxSteps int
}

// RunResult is the outcome of a completed run.
type RunResult struct {
	Summary string
	Steps   int
}

// Loop executes leaf items. The accumulated conversation is the loop's
// entire memory; no external state is consulted mid-run.
type Loop struct {
	provider llm.Provider
	tools    tools.Provider
	recorder timeline.Recorder
	maxSteps int
	logger   *logging.Logger
}

// New creates a Loop. A nil Recorder defaults to the no-op recorder;
// MaxSteps <= 0 selects DefaultMaxSteps.
func New(cfg Config) *Loop {
	rec := cfg.Recorder
	if rec == nil {
		rec = timeline.NopRecorder{}
	}
	maxSteps := cfg.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	return &Loop{
		provider: cfg.Provider,
		tools:    cfg.Tools,
		recorder: rec,
		maxSteps: maxSteps,
		logger:   logging.New().WithComponent("loop"),
	}
}

// Run drives the item until the model declares completion, a tool or
// provider failure surfaces, the context is cancelled, or the step
// budget runs out (a hard *work.StepBudgetError - callers must see why
// progress halted).
func (l *Loop) Run(ctx context.Context, item *work.Item) (*RunResult, error) {
	ctx, span := l.startRunSpan(ctx, item)

	catalog := l.tools.Catalog()
	messages := []llm.Message{
		{Role: "system", Content: l.buildSystemPrompt(item, catalog)},
		{Role: "user", Content: "Begin working on this item. Respond with your first action."},
	}

	l.logger.Info("execution started", map[string]interface{}{
		"item":      item.ID,
		"tools":     len(catalog),
		"max_steps": l.maxSteps,
	})

	for step := 1; step <= l.maxSteps; step++ {
		// Cancellation is checked between iterations, not only at
		// start, so a stop request lands within one turn.
		if err := ctx.Err(); err != nil {
			l.endRunSpan(span, step, err)
			return nil, err
		}

		actionID := l.recordPlanning(ctx, item, step)

		resp, err := l.provider.Chat(ctx, llm.ChatRequest{Messages: messages})
		if err != nil {
			provErr := &work.ProviderError{Err: err}
			l.completeAction(ctx, actionID, timeline.StatusFailed, "", provErr.Error())
			l.endRunSpan(span, step, provErr)
			return nil, provErr
		}

		messages = append(messages, llm.Message{Role: "assistant", Content: resp.Content})

		t, ok := parseTurn(resp.Content)
		if !ok {
			// Downgraded to a synthetic no-op turn: a single malformed
			// response must not abort otherwise-good progress.
			l.logger.Warn("malformed planning turn, substituting no-op", map[string]interface{}{
				"item": item.ID,
				"step": step,
			})
			l.completeAction(ctx, actionID, timeline.StatusFailed, "", "malformed planning turn")
			messages = append(messages, llm.Message{
				Role:    "user",
				Content: "That response was not valid JSON. Respond with the JSON action format.",
			})
			continue
		}

		l.completeAction(ctx, actionID, timeline.StatusCompleted, t.Action, "")

		if t.Complete {
			summary := t.Reasoning
			if summary == "" {
				summary = t.Action
			}
			messages = append(messages, llm.Message{
				Role:    "assistant",
				Content: fmt.Sprintf("Work item complete: %s", summary),
			})
			l.logger.Info("execution complete", map[string]interface{}{
				"item":  item.ID,
				"steps": step,
			})
			l.endRunSpan(span, step, nil)
			return &RunResult{Summary: summary, Steps: step}, nil
		}

		if t.Tool != "" {
			resultMsg, err := l.invokeTool(ctx, item, t)
			if err != nil {
				l.endRunSpan(span, step, err)
				return nil, err
			}
			messages = append(messages, llm.Message{Role: "user", Content: resultMsg})
			continue
		}

		messages = append(messages, llm.Message{Role: "user", Content: "Continue with your next action."})
	}

	budgetErr := &work.StepBudgetError{Steps: l.maxSteps}
	l.logger.Warn("step budget exhausted", map[string]interface{}{
		"item":  item.ID,
		"steps": l.maxSteps,
	})
	l.endRunSpan(span, l.maxSteps, budgetErr)
	return nil, budgetErr
}

// invokeTool runs one tool call, mirrors it to the timeline and formats
// the result as the next conversation turn. Invocation failures abort
// the run; their message is preserved verbatim on the item.
func (l *Loop) invokeTool(ctx context.Context, item *work.Item, t turn) (string, error) {
	callID := uuid.NewString()
	name := tools.SanitizeName(t.Tool)

	actionID, recErr := l.recorder.RecordAction(ctx, timeline.Action{
		ID:        callID,
		ItemID:    item.ID,
		Kind:      timeline.KindToolCall,
		Tool:      name,
		Params:    t.Params,
		Reasoning: t.Reasoning,
	})
	if recErr != nil {
		l.logger.Warn("action recorder failed", map[string]interface{}{"error": recErr.Error()})
	}

	ctx, span := l.startToolSpan(ctx, name)
	result, err := l.tools.Invoke(ctx, name, t.Params)
	l.endToolSpan(span, err)

	if err != nil {
		l.completeAction(ctx, actionID, timeline.StatusFailed, "", err.Error())
		return "", err
	}

	l.completeAction(ctx, actionID, timeline.StatusCompleted, truncate(fmt.Sprintf("%v", result), 500), "")
	return formatToolResult(name, result), nil
}

// recordPlanning mirrors a planning iteration to the timeline,
// best-effort.
func (l *Loop) recordPlanning(ctx context.Context, item *work.Item, step int) string {
	id, err := l.recorder.RecordAction(ctx, timeline.Action{
		ItemID:    item.ID,
		Kind:      timeline.KindPlanning,
		Reasoning: fmt.Sprintf("planning iteration %d", step),
	})
	if err != nil {
		l.logger.Warn("action recorder failed", map[string]interface{}{"error": err.Error()})
	}
	return id
}

// completeAction closes a timeline entry, best-effort.
func (l *Loop) completeAction(ctx context.Context, id, status, result, errMsg string) {
	if id == "" {
		return
	}
	if err := l.recorder.CompleteAction(ctx, id, status, result, errMsg); err != nil {
		l.logger.Warn("action recorder failed", map[string]interface{}{"error": err.Error()})
	}
}

func (l *Loop) buildSystemPrompt(item *work.Item, catalog []tools.Spec) string {
	desc := ""
	if item.Description != "" {
		desc = "Details: " + item.Description + "\n"
	}

	var toolSection string
	if len(catalog) > 0 {
		var sb strings.Builder
		sb.WriteString("\nAvailable tools:\n")
		for _, spec := range catalog {
			fmt.Fprintf(&sb, "- %s: %s\n", spec.Name, spec.Description)
		}
		toolSection = sb.String()
	} else {
		toolSection = "\nNo tools are available; complete the item through reasoning alone."
	}

	return fmt.Sprintf(systemPromptTemplate, item.Title, desc, toolSection)
}
