package work

import (
	"errors"
	"testing"
)

func TestStatusValid(t *testing.T) {
	valid := []Status{StatusOpen, StatusInProgress, StatusCompleted, StatusFailed, StatusBlocked}
	for _, s := range valid {
		if !s.Valid() {
			t.Errorf("expected %q to be valid", s)
		}
	}
	if Status("done").Valid() {
		t.Error("expected unknown status to be invalid")
	}
}

func TestStatusTerminal(t *testing.T) {
	if !StatusCompleted.Terminal() || !StatusFailed.Terminal() {
		t.Error("completed and failed should be terminal")
	}
	if StatusOpen.Terminal() || StatusInProgress.Terminal() || StatusBlocked.Terminal() {
		t.Error("open, in_progress and blocked should not be terminal")
	}
}

func TestParsePriority(t *testing.T) {
	cases := map[string]Priority{
		"critical": PriorityCritical,
		"HIGH":     PriorityHigh,
		" low ":    PriorityLow,
		"medium":   PriorityMedium,
		"":         PriorityMedium,
		"urgent":   PriorityMedium, // unknown defaults to medium
	}
	for in, want := range cases {
		if got := ParsePriority(in); got != want {
			t.Errorf("ParsePriority(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestItemDecomposed(t *testing.T) {
	it := &Item{Metadata: map[string]interface{}{}}
	if it.Decomposed() {
		t.Error("item without flag should not be decomposed")
	}

	it.Metadata[MetaDecomposed] = true
	if !it.Decomposed() {
		t.Error("item with flag should be decomposed")
	}

	// Non-bool values must not count as decomposed.
	it.Metadata[MetaDecomposed] = "true"
	if it.Decomposed() {
		t.Error("string flag should not count as decomposed")
	}
}

func TestErrorUnwrapping(t *testing.T) {
	cause := errors.New("boom")

	var err error = &PlanningError{Raw: "not json", Err: cause}
	if !errors.Is(err, cause) {
		t.Error("PlanningError should unwrap to cause")
	}

	err = &ToolError{Name: "web_search", Err: cause}
	if !errors.Is(err, cause) {
		t.Error("ToolError should unwrap to cause")
	}

	err = &ProviderError{Err: cause}
	if !errors.Is(err, cause) {
		t.Error("ProviderError should unwrap to cause")
	}

	var budget *StepBudgetError
	err = &StepBudgetError{Steps: 100}
	if !errors.As(err, &budget) || budget.Steps != 100 {
		t.Error("StepBudgetError should carry step count")
	}
}
