package taskgraph

import (
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"

	"github.com/tasklab/go-task-graph/core"
)

// Run is the completion handle of one graph submission. Callers may block on
// Wait, select on Done, or poll Err after completion.
//
// All per-submission state lives here, not in the Graph: the remaining node
// count, the collected failures and the done signal. That is what makes an
// unmutated Graph re-runnable and lets independent Graphs share an executor.
type Run struct {
	graph *core.Graph

	// remaining counts nodes that have not finished executing. The worker
	// whose decrement reaches zero completes the run.
	remaining atomic.Int64

	done   chan struct{}
	onDone func()

	mu   sync.Mutex
	errs []error
}

func newRun(g *core.Graph, total int, onDone func()) *Run {
	r := &Run{
		graph:  g,
		done:   make(chan struct{}),
		onDone: onDone,
	}
	r.remaining.Store(int64(total))
	return r
}

// Graph returns the graph this run executes.
func (r *Run) Graph() *core.Graph {
	return r.graph
}

// Done returns a channel closed when every node of the run has executed.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the run completes and returns its aggregated failure.
// Every failing node contributes to the returned error; none is dropped.
// A run with no failures returns nil.
func (r *Run) Wait() error {
	<-r.done
	return r.Err()
}

// Err returns the aggregated failure of a completed run. Before completion
// it returns nil; use Wait or Done to synchronize first.
func (r *Run) Err() error {
	select {
	case <-r.done:
	default:
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return multierr.Combine(r.errs...)
}

// record appends one node failure. Safe for concurrent workers.
func (r *Run) record(err error) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
}

// complete accounts one executed node and finishes the run when it was the
// last one.
func (r *Run) complete() {
	if r.remaining.Add(-1) == 0 {
		r.finish()
	}
}

// finish marks the run done. Called exactly once per run.
func (r *Run) finish() {
	close(r.done)
	if r.onDone != nil {
		r.onDone()
	}
}
