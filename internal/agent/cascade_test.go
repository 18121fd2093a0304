package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/vinayprograms/taskforge/internal/store"
	"github.com/vinayprograms/taskforge/internal/work"
)

func newCascadeFixture(t *testing.T, childStatuses []work.Status) (*Propagator, store.Store, *work.Item, []*work.Item) {
	t.Helper()
	ctx := context.Background()
	st, err := store.NewMemoryStore(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	parent := mustCreate(t, st, work.Spec{Title: "parent"})
	inProgress := work.StatusInProgress
	if _, err := st.Update(ctx, parent.ID, work.Update{Status: &inProgress}); err != nil {
		t.Fatal(err)
	}

	var children []*work.Item
	for i, status := range childStatuses {
		c := mustCreate(t, st, work.Spec{Title: "child " + string(rune('a'+i)), ParentID: parent.ID})
		if status != work.StatusOpen {
			s := status
			if _, err := st.Update(ctx, c.ID, work.Update{Status: &s}); err != nil {
				t.Fatal(err)
			}
		}
		children = append(children, c)
	}
	return NewPropagator(st), st, parent, children
}

func TestCascadeAllCompleted(t *testing.T) {
	p, st, parent, _ := newCascadeFixture(t, []work.Status{
		work.StatusCompleted, work.StatusCompleted, work.StatusCompleted,
	})
	if err := p.OnChildStatusChanged(context.Background(), parent.ID); err != nil {
		t.Fatal(err)
	}
	got := mustStatus(t, st, parent.ID, work.StatusCompleted)
	if !strings.Contains(got.Result, "child a") || !strings.Contains(got.Result, "child c") {
		t.Errorf("aggregated result = %q", got.Result)
	}
}

func TestCascadeAnyFailed(t *testing.T) {
	p, st, parent, _ := newCascadeFixture(t, []work.Status{
		work.StatusCompleted, work.StatusFailed, work.StatusOpen,
	})
	if err := p.OnChildStatusChanged(context.Background(), parent.ID); err != nil {
		t.Fatal(err)
	}
	got := mustStatus(t, st, parent.ID, work.StatusFailed)
	if got.ErrorMessage != "one or more sub-items failed" {
		t.Errorf("error message = %q", got.ErrorMessage)
	}
}

func TestCascadeIncompleteMakesNoChange(t *testing.T) {
	p, st, parent, _ := newCascadeFixture(t, []work.Status{
		work.StatusCompleted, work.StatusInProgress,
	})
	if err := p.OnChildStatusChanged(context.Background(), parent.ID); err != nil {
		t.Fatal(err)
	}
	mustStatus(t, st, parent.ID, work.StatusInProgress)
}

func TestCascadePropagatesUpward(t *testing.T) {
	ctx := context.Background()
	st, err := store.NewMemoryStore(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	// grandparent -> parent -> leaf, all in progress.
	grand := mustCreate(t, st, work.Spec{Title: "grand"})
	parent := mustCreate(t, st, work.Spec{Title: "parent", ParentID: grand.ID})
	leaf := mustCreate(t, st, work.Spec{Title: "leaf", ParentID: parent.ID})

	inProgress := work.StatusInProgress
	for _, id := range []string{grand.ID, parent.ID} {
		if _, err := st.Update(ctx, id, work.Update{Status: &inProgress}); err != nil {
			t.Fatal(err)
		}
	}
	completed := work.StatusCompleted
	if _, err := st.Update(ctx, leaf.ID, work.Update{Status: &completed}); err != nil {
		t.Fatal(err)
	}

	p := NewPropagator(st)
	if err := p.OnChildStatusChanged(ctx, parent.ID); err != nil {
		t.Fatal(err)
	}

	mustStatus(t, st, parent.ID, work.StatusCompleted)
	mustStatus(t, st, grand.ID, work.StatusCompleted)
}

func TestCascadeNoChildrenIsNoOp(t *testing.T) {
	ctx := context.Background()
	st, err := store.NewMemoryStore(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	item := mustCreate(t, st, work.Spec{Title: "childless"})
	p := NewPropagator(st)
	if err := p.OnChildStatusChanged(ctx, item.ID); err != nil {
		t.Fatal(err)
	}
	mustStatus(t, st, item.ID, work.StatusOpen)
}
