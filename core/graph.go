package core

import (
	"fmt"
	"io"
	"sync/atomic"
)

// Node is a single schedulable unit of work plus its dependency-counting
// state. Nodes are owned by the Graph that created them; everything else
// (executors, observers) holds non-owning references that must not outlive
// the Graph.
type Node struct {
	work func() error
	name string

	// Edge lists in declaration order. Read-only during a run.
	successors   []*Node
	predecessors []*Node

	// join counts the not-yet-completed predecessors of this node during a
	// run. It is reset to len(predecessors) at the start of every run and
	// reaches zero exactly once per run, when the last predecessor finishes.
	join atomic.Int32
}

// Name returns the cosmetic label of the node. It may be empty.
func (n *Node) Name() string {
	return n.name
}

// Successors returns the node's successor list in edge-declaration order.
// Callers must treat the returned slice as read-only.
func (n *Node) Successors() []*Node {
	return n.successors
}

// Predecessors returns the node's predecessor list in edge-declaration order.
// Callers must treat the returned slice as read-only.
func (n *Node) Predecessors() []*Node {
	return n.predecessors
}

// NumPredecessors returns the static predecessor count.
func (n *Node) NumPredecessors() int {
	return len(n.predecessors)
}

// NumSuccessors returns the static successor count.
func (n *Node) NumSuccessors() int {
	return len(n.successors)
}

// ResetJoin re-initializes the join counter to the static predecessor count.
// Called once per node at the start of every run, before any node is seeded.
func (n *Node) ResetJoin() {
	n.join.Store(int32(len(n.predecessors)))
}

// DecrementJoin atomically records the completion of one predecessor and
// returns the remaining count. The caller that observes zero owns the
// transition of this node to ready; no other caller can observe zero for the
// same run.
func (n *Node) DecrementJoin() int32 {
	return n.join.Add(-1)
}

// Invoke runs the node's unit of work. A node without work (a pass-through
// synchronization node) completes immediately.
func (n *Node) Invoke() error {
	if n.work == nil {
		return nil
	}
	return n.work()
}

// Handle returns a Task handle referring to this node.
func (n *Node) Handle() Task {
	return Task{node: n}
}

// Task is a lightweight, copyable reference to a Node. Client code uses it
// to name nodes and declare precedence edges; it never owns the node.
type Task struct {
	node *Node
}

// Precede adds an edge from t to every task in succs: t must complete before
// any of them starts. Adding an edge that closes a cycle is a precondition
// violation; a run of such a graph never completes.
func (t Task) Precede(succs ...Task) Task {
	for _, s := range succs {
		t.node.successors = append(t.node.successors, s.node)
		s.node.predecessors = append(s.node.predecessors, t.node)
	}
	return t
}

// Succeed adds an edge from every task in preds to t. It is the mirror of
// Precede, for call sites where the dependent reads more naturally first.
func (t Task) Succeed(preds ...Task) Task {
	for _, p := range preds {
		p.Precede(t)
	}
	return t
}

// Named sets the cosmetic label of the task's node and returns the task for
// chaining. The label is used by diagnostics and dumps only; it never affects
// scheduling.
func (t Task) Named(name string) Task {
	t.node.name = name
	return t
}

// Name returns the task's label.
func (t Task) Name() string {
	return t.node.name
}

// NumSuccessors returns the number of declared successors.
func (t Task) NumSuccessors() int {
	return t.node.NumSuccessors()
}

// NumPredecessors returns the number of declared predecessors.
func (t Task) NumPredecessors() int {
	return t.node.NumPredecessors()
}

// Node returns the underlying node.
func (t Task) Node() *Node {
	return t.node
}

// Graph is an owned collection of nodes and their precedence edges,
// representing one computation as a DAG.
//
// Construction is single-threaded: Emplace, Precede and ParallelFor must not
// be called while another goroutine mutates or runs the same Graph. The edge
// relation must be acyclic; this is a documented precondition, not a checked
// error. An unmutated Graph may be run any number of times, and independent
// Graphs may be run concurrently on the same executor.
type Graph struct {
	nodes []*Node
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{}
}

// Emplace creates a node wrapping the given unit of work and returns its
// handle. A nil work function creates a pass-through synchronization node.
func (g *Graph) Emplace(work func() error) Task {
	n := &Node{work: work}
	g.nodes = append(g.nodes, n)
	return Task{node: n}
}

// Len returns the number of nodes in the graph.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Nodes returns all nodes in creation order. Callers must treat the returned
// slice as read-only.
func (g *Graph) Nodes() []*Node {
	return g.nodes
}

// Clear removes all nodes from the graph. Handles obtained before Clear are
// invalidated.
func (g *Graph) Clear() {
	g.nodes = nil
}

// Dot writes the graph in Graphviz digraph syntax, enumerating every node
// and precedence edge. Unnamed nodes are labeled by their creation index.
func (g *Graph) Dot(w io.Writer) error {
	ids := make(map[*Node]int, len(g.nodes))
	for i, n := range g.nodes {
		ids[n] = i
	}

	if _, err := fmt.Fprintln(w, "digraph G {"); err != nil {
		return err
	}
	for i, n := range g.nodes {
		label := n.name
		if label == "" {
			label = fmt.Sprintf("task_%d", i)
		}
		if _, err := fmt.Fprintf(w, "  n%d [label=%q];\n", i, label); err != nil {
			return err
		}
	}
	for i, n := range g.nodes {
		for _, s := range n.successors {
			if _, err := fmt.Fprintf(w, "  n%d -> n%d;\n", i, ids[s]); err != nil {
				return err
			}
		}
	}
	_, err := fmt.Fprintln(w, "}")
	return err
}
