package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vinayprograms/taskforge/internal/events"
	"github.com/vinayprograms/taskforge/internal/work"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewMemoryStore(context.Background(), nil)
	if err != nil {
		t.Fatalf("creating memory store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func statusPtr(s work.Status) *work.Status { return &s }
func strPtr(s string) *string              { return &s }

func TestCreateDefaults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	it, err := s.Create(ctx, work.Spec{Title: "Write and save a haiku"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if it.ID == "" {
		t.Error("expected store-generated id")
	}
	if it.Status != work.StatusOpen {
		t.Errorf("expected status open, got %s", it.Status)
	}
	if it.Priority != work.PriorityMedium {
		t.Errorf("expected default priority medium, got %s", it.Priority)
	}
	if it.StartedAt != nil || it.CompletedAt != nil {
		t.Error("new item should have no started/completed timestamps")
	}
}

func TestCreateRequiresTitle(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Create(context.Background(), work.Spec{}); !errors.Is(err, work.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState, got %v", err)
	}
}

func TestCreateUnknownParent(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Create(context.Background(), work.Spec{Title: "child", ParentID: "missing"})
	if !errors.Is(err, work.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown parent, got %v", err)
	}
}

// Tree consistency: parent's child id list and the children's parent
// links agree after creates and deletes.
func TestTreeConsistency(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	parent, err := s.Create(ctx, work.Spec{Title: "Launch a product"})
	if err != nil {
		t.Fatalf("create parent: %v", err)
	}

	var childIDs []string
	for _, title := range []string{"research", "build", "ship"} {
		c, err := s.Create(ctx, work.Spec{Title: title, ParentID: parent.ID})
		if err != nil {
			t.Fatalf("create child: %v", err)
		}
		childIDs = append(childIDs, c.ID)
	}

	got, err := s.Get(ctx, parent.ID)
	if err != nil {
		t.Fatalf("get parent: %v", err)
	}
	if len(got.ChildIDs) != 3 {
		t.Fatalf("expected 3 children, got %d", len(got.ChildIDs))
	}
	for i, id := range childIDs {
		if got.ChildIDs[i] != id {
			t.Errorf("child order mismatch at %d: got %s want %s", i, got.ChildIDs[i], id)
		}
	}

	if err := s.Delete(ctx, childIDs[1]); err != nil {
		t.Fatalf("delete child: %v", err)
	}
	got, _ = s.Get(ctx, parent.ID)
	if len(got.ChildIDs) != 2 {
		t.Fatalf("expected 2 children after delete, got %d", len(got.ChildIDs))
	}
	if got.ChildIDs[0] != childIDs[0] || got.ChildIDs[1] != childIDs[2] {
		t.Error("remaining children out of order after delete")
	}
}

func TestUpdateStampsTimestampsOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	it, _ := s.Create(ctx, work.Spec{Title: "task"})

	it, err := s.Update(ctx, it.ID, work.Update{Status: statusPtr(work.StatusInProgress)})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if it.StartedAt == nil {
		t.Fatal("expected StartedAt stamped on in_progress")
	}
	started := *it.StartedAt

	time.Sleep(5 * time.Millisecond)

	// Repeating the same transition must not move the timestamp.
	it, err = s.Update(ctx, it.ID, work.Update{Status: statusPtr(work.StatusInProgress)})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !it.StartedAt.Equal(started) {
		t.Error("StartedAt must be stamped exactly once")
	}

	it, _ = s.Update(ctx, it.ID, work.Update{Status: statusPtr(work.StatusCompleted), Result: strPtr("done")})
	if it.CompletedAt == nil {
		t.Fatal("expected CompletedAt stamped on completed")
	}
	if it.Result != "done" {
		t.Errorf("expected result merged, got %q", it.Result)
	}
}

func TestUpdateCompletedIsTerminal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	it, _ := s.Create(ctx, work.Spec{Title: "task"})
	s.Update(ctx, it.ID, work.Update{Status: statusPtr(work.StatusCompleted)})

	_, err := s.Update(ctx, it.ID, work.Update{Status: statusPtr(work.StatusInProgress)})
	if !errors.Is(err, work.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState leaving completed, got %v", err)
	}
}

func TestUpdateFailedAllowsRetry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	it, _ := s.Create(ctx, work.Spec{Title: "task"})
	s.Update(ctx, it.ID, work.Update{Status: statusPtr(work.StatusFailed), ErrorMessage: strPtr("boom")})

	// A resume re-enters failed children, so failed -> in_progress is legal.
	it, err := s.Update(ctx, it.ID, work.Update{Status: statusPtr(work.StatusInProgress)})
	if err != nil {
		t.Fatalf("expected failed item to accept a fresh attempt: %v", err)
	}
	if it.Status != work.StatusInProgress {
		t.Errorf("expected in_progress, got %s", it.Status)
	}
}

func TestUpdateMergesMetadata(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	it, _ := s.Create(ctx, work.Spec{Title: "task", Metadata: map[string]interface{}{work.MetaEstimatedSteps: 3.0}})
	it, err := s.Update(ctx, it.ID, work.Update{Metadata: map[string]interface{}{work.MetaDecomposed: true}})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !it.Decomposed() {
		t.Error("expected decomposed flag merged in")
	}
	if v, ok := it.Metadata[work.MetaEstimatedSteps].(float64); !ok || v != 3.0 {
		t.Error("expected existing metadata preserved")
	}
}

func TestDeleteRefusedWhileBusy(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	parent, _ := s.Create(ctx, work.Spec{Title: "parent"})
	child, _ := s.Create(ctx, work.Spec{Title: "child", ParentID: parent.ID})
	s.Update(ctx, child.ID, work.Update{Status: statusPtr(work.StatusInProgress)})

	// Neither the busy child nor its parent may be deleted.
	if err := s.Delete(ctx, child.ID); !errors.Is(err, work.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState deleting in_progress item, got %v", err)
	}
	if err := s.Delete(ctx, parent.ID); !errors.Is(err, work.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState deleting parent of busy child, got %v", err)
	}

	s.Update(ctx, child.ID, work.Update{Status: statusPtr(work.StatusCompleted)})
	if err := s.Delete(ctx, parent.ID); err != nil {
		t.Fatalf("delete after completion: %v", err)
	}
	if _, err := s.Get(ctx, child.ID); !errors.Is(err, work.ErrNotFound) {
		t.Error("expected subtree removed with parent")
	}
}

func TestTreeDepthAnnotations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	root, _ := s.Create(ctx, work.Spec{Title: "root"})
	mid, _ := s.Create(ctx, work.Spec{Title: "mid", ParentID: root.ID})
	leaf, _ := s.Create(ctx, work.Spec{Title: "leaf", ParentID: mid.ID})

	tree, err := s.Tree(ctx, root.ID)
	if err != nil {
		t.Fatalf("tree: %v", err)
	}

	depths := map[string]int{}
	tree.Walk(func(n *work.TreeNode) { depths[n.Item.ID] = n.Depth })

	if depths[root.ID] != 0 || depths[mid.ID] != 1 || depths[leaf.ID] != 2 {
		t.Errorf("unexpected depth annotations: %v", depths)
	}
}

func TestQueryFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, _ := s.Create(ctx, work.Spec{Title: "a", AssignedTo: "agent-1", Tags: []string{"research"}})
	s.Create(ctx, work.Spec{Title: "b", AssignedTo: "agent-2"})
	s.Update(ctx, a.ID, work.Update{Status: statusPtr(work.StatusInProgress)})

	byStatus, err := s.Query(ctx, work.Filter{Statuses: []work.Status{work.StatusInProgress}})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(byStatus) != 1 || byStatus[0].ID != a.ID {
		t.Errorf("status filter returned wrong items: %+v", byStatus)
	}

	byTag, _ := s.Query(ctx, work.Filter{Tag: "research"})
	if len(byTag) != 1 || byTag[0].ID != a.ID {
		t.Error("tag filter returned wrong items")
	}

	roots, _ := s.Query(ctx, work.Filter{ParentID: strPtr("")})
	if len(roots) != 2 {
		t.Errorf("expected 2 roots, got %d", len(roots))
	}
}

func TestStorePublishesEvents(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	ch := bus.Subscribe(events.TopicItem, 16)

	s, err := NewMemoryStore(context.Background(), bus)
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	it, _ := s.Create(ctx, work.Spec{Title: "observable"})
	s.Update(ctx, it.ID, work.Update{Status: statusPtr(work.StatusInProgress)})

	want := []string{events.EventTypeItemCreated, events.EventTypeItemUpdated}
	for _, w := range want {
		select {
		case ev := <-ch:
			if ev.EventType() != w {
				t.Errorf("expected %s, got %s", w, ev.EventType())
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("timeout waiting for %s", w)
		}
	}
}
