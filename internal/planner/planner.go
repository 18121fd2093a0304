// Package planner decides whether a work item should be decomposed or
// executed directly, and produces sanitized sub-item plans.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vinayprograms/agentkit/llm"
	"github.com/vinayprograms/agentkit/logging"

	"github.com/vinayprograms/taskforge/internal/llmjson"
	"github.com/vinayprograms/taskforge/internal/work"
)

// DefaultMaxDepth bounds the decomposition hierarchy. At the bound an
// item is always executed directly, regardless of what the model says.
const DefaultMaxDepth = 3

// The classification prompt is biased toward execution on purpose: a
// wrongly executed item wastes one run, a wrongly decomposed item
// multiplies the hierarchy.
const classifySystemPrompt = `You decide whether a work item should be DECOMPOSED into sub-items or EXECUTED directly.

Default to EXECUTE. Research, analysis and data-gathering tasks are executed directly.
Only answer "decompose" for work with independent multi-day phases or fundamentally
different skill domains. Answer with the single word "decompose" or "execute".`

const planSystemPrompt = `You break a work item into concrete sub-items.

Respond with strict JSON only:
{"reasoning": "...", "subItems": [{"title": "...", "description": "...", "priority": "critical|high|medium|low", "estimatedSteps": 3, "dependencies": []}]}

Produce between 3 and 7 sub-items, each independently executable, ordered by execution order.`

// SubItemSpec is one sanitized sub-item from a plan. Any id the model
// invented has already been discarded - ids are store-generated only.
type SubItemSpec struct {
	Title          string
	Description    string
	Priority       work.Priority
	EstimatedSteps int
	Dependencies   []string
}

// Plan is a sanitized decomposition plan.
type Plan struct {
	Reasoning string
	SubItems  []SubItemSpec
}

// Planner asks an LLM for decompose-vs-execute decisions and sub-item
// plans.
type Planner struct {
	provider llm.Provider
	maxDepth int
	logger   *logging.Logger
}

// New creates a planner. maxDepth <= 0 selects DefaultMaxDepth.
func New(provider llm.Provider, maxDepth int) *Planner {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Planner{
		provider: provider,
		maxDepth: maxDepth,
		logger:   logging.New().WithComponent("planner"),
	}
}

// MaxDepth returns the configured decomposition bound.
func (p *Planner) MaxDepth() int { return p.maxDepth }

// ShouldDecompose asks the model to classify the item. At or beyond the
// depth bound it returns false without consulting the model. Anything
// the model says that is not recognizably "decompose" means execute -
// ambiguous output must never block progress.
func (p *Planner) ShouldDecompose(ctx context.Context, item *work.Item, depth int, siblings []*work.Item) (bool, error) {
	if depth >= p.maxDepth {
		p.logger.Debug("depth bound reached, forcing direct execution", map[string]interface{}{
			"item":  item.ID,
			"depth": depth,
		})
		return false, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Work item: %s\n", item.Title)
	if item.Description != "" {
		fmt.Fprintf(&sb, "Description: %s\n", item.Description)
	}
	fmt.Fprintf(&sb, "Depth in hierarchy: %d of %d\n", depth, p.maxDepth)

	// A sub-item's siblings are listed so the model sees the plan it is
	// already part of, discouraging a second round of decomposition.
	if item.ParentID != "" && len(siblings) > 0 {
		sb.WriteString("\nThis is already a sub-item. Its sibling sub-items:\n")
		for _, s := range siblings {
			if s.ID == item.ID {
				continue
			}
			fmt.Fprintf(&sb, "- %s [%s]\n", s.Title, s.Status)
		}
	}

	resp, err := p.provider.Chat(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: "system", Content: classifySystemPrompt},
			{Role: "user", Content: sb.String()},
		},
	})
	if err != nil {
		return false, &work.ProviderError{Err: err}
	}

	decompose := strings.Contains(strings.ToLower(resp.Content), "decompose")
	p.logger.Info("classification decision", map[string]interface{}{
		"item":      item.ID,
		"depth":     depth,
		"decompose": decompose,
	})
	return decompose, nil
}

// rawPlan mirrors the JSON shape requested from the model. The id field
// exists only so a model-invented id is consumed and dropped instead of
// failing decode.
type rawPlan struct {
	Reasoning string       `json:"reasoning"`
	SubItems  []rawSubItem `json:"subItems"`
}

type rawSubItem struct {
	ID             string   `json:"id"` // discarded
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Priority       string   `json:"priority"`
	EstimatedSteps int      `json:"estimatedSteps"`
	Dependencies   []string `json:"dependencies"`
}

// Plan requests a decomposition plan for the item. An unparsable plan
// is a hard *work.PlanningError - it cannot safely be executed.
func (p *Planner) Plan(ctx context.Context, item *work.Item) (*Plan, error) {
	prompt := fmt.Sprintf("Break this work item into sub-items.\n\nTitle: %s\nDescription: %s", item.Title, item.Description)

	resp, err := p.provider.Chat(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: "system", Content: planSystemPrompt},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return nil, &work.ProviderError{Err: err}
	}

	payload := llmjson.ExtractObject(resp.Content)
	if payload == "" {
		return nil, &work.PlanningError{Raw: resp.Content, Err: fmt.Errorf("no JSON object in plan response")}
	}

	var raw rawPlan
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, &work.PlanningError{Raw: resp.Content, Err: fmt.Errorf("decoding plan: %w", err)}
	}
	if len(raw.SubItems) == 0 {
		return nil, &work.PlanningError{Raw: resp.Content, Err: fmt.Errorf("plan contains no sub-items")}
	}

	plan := &Plan{Reasoning: raw.Reasoning}
	for _, ri := range raw.SubItems {
		if strings.TrimSpace(ri.Title) == "" {
			return nil, &work.PlanningError{Raw: resp.Content, Err: fmt.Errorf("sub-item without title")}
		}
		plan.SubItems = append(plan.SubItems, SubItemSpec{
			Title:          ri.Title,
			Description:    ri.Description,
			Priority:       work.ParsePriority(ri.Priority),
			EstimatedSteps: ri.EstimatedSteps,
			Dependencies:   ri.Dependencies,
		})
	}

	p.logger.Info("plan produced", map[string]interface{}{
		"item":      item.ID,
		"sub_items": len(plan.SubItems),
	})
	return plan, nil
}
