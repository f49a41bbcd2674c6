package core

import (
	"strings"
	"testing"
)

func TestGraph_Emplace(t *testing.T) {
	g := New()

	a := g.Emplace(func() error { return nil }).Named("A")
	b := g.Emplace(nil)

	if g.Len() != 2 {
		t.Fatalf("expected 2 nodes, got %d", g.Len())
	}
	if a.Name() != "A" {
		t.Errorf("expected name 'A', got %q", a.Name())
	}
	if b.Name() != "" {
		t.Errorf("expected empty name, got %q", b.Name())
	}
}

func TestGraph_Precede(t *testing.T) {
	g := New()
	a := g.Emplace(nil).Named("A")
	b := g.Emplace(nil).Named("B")
	c := g.Emplace(nil).Named("C")

	a.Precede(b, c)

	if a.NumSuccessors() != 2 {
		t.Errorf("expected A to have 2 successors, got %d", a.NumSuccessors())
	}
	if a.NumPredecessors() != 0 {
		t.Errorf("expected A to have 0 predecessors, got %d", a.NumPredecessors())
	}
	if b.NumPredecessors() != 1 || c.NumPredecessors() != 1 {
		t.Error("expected B and C to each have 1 predecessor")
	}

	// Edge order follows declaration order.
	succs := a.Node().Successors()
	if succs[0] != b.Node() || succs[1] != c.Node() {
		t.Error("successor order does not follow declaration order")
	}
}

func TestGraph_Succeed(t *testing.T) {
	g := New()
	a := g.Emplace(nil)
	b := g.Emplace(nil)
	c := g.Emplace(nil)

	c.Succeed(a, b)

	if c.NumPredecessors() != 2 {
		t.Errorf("expected C to have 2 predecessors, got %d", c.NumPredecessors())
	}
	if a.NumSuccessors() != 1 || b.NumSuccessors() != 1 {
		t.Error("expected A and B to each have 1 successor")
	}
}

func TestNode_JoinCounter(t *testing.T) {
	g := New()
	a := g.Emplace(nil)
	b := g.Emplace(nil)
	c := g.Emplace(nil)
	c.Succeed(a, b)

	n := c.Node()
	n.ResetJoin()

	if got := n.DecrementJoin(); got != 1 {
		t.Fatalf("expected 1 after first decrement, got %d", got)
	}
	if got := n.DecrementJoin(); got != 0 {
		t.Fatalf("expected 0 after second decrement, got %d", got)
	}

	// A second run starts from the static predecessor count again.
	n.ResetJoin()
	if got := n.DecrementJoin(); got != 1 {
		t.Fatalf("expected reset counter, got %d after one decrement", got)
	}
}

func TestNode_InvokeNilWork(t *testing.T) {
	g := New()
	s := g.Emplace(nil)
	if err := s.Node().Invoke(); err != nil {
		t.Fatalf("sync node must complete immediately, got %v", err)
	}
}

func TestGraph_Clear(t *testing.T) {
	g := New()
	g.Emplace(nil)
	g.Emplace(nil)
	g.Clear()
	if g.Len() != 0 {
		t.Fatalf("expected empty graph after Clear, got %d nodes", g.Len())
	}
}

func TestGraph_Dot(t *testing.T) {
	g := New()
	a := g.Emplace(nil).Named("A")
	b := g.Emplace(nil).Named("B")
	c := g.Emplace(nil)
	a.Precede(b)
	b.Precede(c)

	var sb strings.Builder
	if err := g.Dot(&sb); err != nil {
		t.Fatalf("dot dump failed: %v", err)
	}
	out := sb.String()

	for _, want := range []string{
		"digraph G {",
		`n0 [label="A"]`,
		`n1 [label="B"]`,
		`n2 [label="task_2"]`,
		"n0 -> n1;",
		"n1 -> n2;",
		"}",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("dot output missing %q:\n%s", want, out)
		}
	}
}
