// Package taskgraph provides a parallel task-graph execution engine for Go.
//
// Callers describe work as a directed acyclic graph of tasks connected by
// precedence edges; an Executor runs the graph across a pool of workers,
// respecting dependency order while balancing load with work stealing.
//
// # Quick Start
//
// Build a graph, run it, wait for completion:
//
//	g := core.New()
//	a := g.Emplace(func() error { return loadInput() }).Named("load")
//	b := g.Emplace(func() error { return transform() }).Named("transform")
//	c := g.Emplace(func() error { return store() }).Named("store")
//	a.Precede(b)
//	b.Precede(c)
//
//	exec := taskgraph.New(4)
//	defer exec.Stop()
//	if err := exec.RunWait(g); err != nil {
//		log.Fatal(err)
//	}
//
// # Key Concepts
//
// Graph: the owned collection of nodes and edges built for one computation.
// Graphs are constructed on a single goroutine and may be re-run any number
// of times as long as they are not mutated between runs.
//
// Task: a lightweight handle to a node, used to declare edges (Precede,
// Succeed) and labels (Named). Handles never own the node.
//
// Executor: a fixed pool of workers, each with its own double-ended run
// queue. Workers pop their own queue LIFO and steal FIFO from others when
// idle. An Executor with zero workers runs every graph inline on the
// submitting goroutine through the same dependency-resolution path.
//
// Run: the completion handle returned by Executor.Run. It supports blocking
// (Wait), selection (Done) and post-completion error inspection (Err). All
// node failures of a run — returned errors and recovered panics alike — are
// aggregated on the handle; a failing node never cancels the rest of the
// graph.
//
// Observer: a pluggable hook invoked on the executing worker around every
// node. The default TraceObserver records per-worker timelines and dumps
// them in the Chrome tracing JSON format; the observability/prometheus
// subpackage exports the same events as Prometheus metrics.
//
// # Parallel Loops
//
// Graph.ParallelFor and core.ForEach expand a loop into partitioned worker
// nodes bracketed by two synchronization nodes, so a loop can be spliced
// into a larger graph:
//
//	src, snk, err := g.ParallelFor(0, len(items), 1, process, 0)
//	before.Precede(src)
//	snk.Precede(after)
//
// # Thread Safety
//
// Executor.Run may be called concurrently for independent graphs; every
// other Executor method, and all Graph construction, is single-goroutine.
// Supplying a cyclic graph is a precondition violation: the run never
// completes.
package taskgraph
