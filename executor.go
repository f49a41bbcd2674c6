package taskgraph

import (
	"fmt"
	"math/rand/v2"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/tasklab/go-task-graph/core"
)

// defaultStealRounds bounds how many full passes over the victim set an idle
// worker makes before parking. Parking too eagerly loses throughput under
// bursty ready-node arrival; spinning forever burns CPU.
const defaultStealRounds = 4

// Option configures an Executor at construction time.
type Option func(*Executor)

// WithLogger attaches a logger. The default is silent.
func WithLogger(l core.Logger) Option {
	return func(e *Executor) {
		e.logger = l
	}
}

// WithPanicHandler replaces the panic handler invoked when a unit of work
// panics. Regardless of the handler, the panic is recorded as the node's
// failure and surfaced through the run's completion handle.
func WithPanicHandler(h core.PanicHandler) Option {
	return func(e *Executor) {
		e.panicHandler = h
	}
}

// WithStealRounds sets how many passes over the other workers' queues an
// idle worker makes before it parks. Values below one are ignored.
func WithStealRounds(n int) Option {
	return func(e *Executor) {
		if n >= 1 {
			e.stealRounds = n
		}
	}
}

// invocation is one ready node of one run submission. Queue entries are
// run-scoped: they never outlive the run they belong to, so the executor
// holds no reference to a graph once its run completes.
type invocation struct {
	node *core.Node
	run  *Run
}

// worker is one executing member of the pool: an id plus an owned run queue.
type worker struct {
	id    int
	queue *core.Deque[invocation]
}

// Executor drives Graphs to completion over a fixed pool of workers.
//
// Each worker owns a double-ended run queue. The owner pushes and pops the
// bottom; idle workers steal from the top of round-robin victims and park on
// the executor's signal channel when everything is empty. Newly ready nodes
// go to the queue of the worker that completed their last predecessor.
//
// Run may be called concurrently from multiple goroutines for independent
// Graphs; all other methods are not safe for concurrent use.
type Executor struct {
	workers []*worker
	signal  chan struct{}
	stop    chan struct{}
	wg      sync.WaitGroup
	runs    sync.WaitGroup

	obsMu    sync.RWMutex
	observer core.Observer

	logger       core.Logger
	panicHandler core.PanicHandler
	stealRounds  int

	seedCursor atomic.Uint32

	running   bool
	runningMu sync.Mutex
}

// New creates an Executor and spawns workerCount workers immediately.
//
// workerCount == 0 creates no background workers: every Run executes the
// whole graph inline on the calling goroutine, through the same
// dependency-resolution path as the pooled mode. A negative count is
// normalized to runtime.NumCPU().
func New(workerCount int, opts ...Option) *Executor {
	if workerCount < 0 {
		workerCount = runtime.NumCPU()
	}

	e := &Executor{
		signal:       make(chan struct{}, max(2*workerCount, 1)),
		stop:         make(chan struct{}),
		logger:       core.NopLogger{},
		panicHandler: &core.DefaultPanicHandler{},
		stealRounds:  defaultStealRounds,
		running:      true,
	}
	for _, opt := range opts {
		opt(e)
	}

	for i := 0; i < workerCount; i++ {
		w := &worker{id: i, queue: core.NewDeque[invocation]()}
		e.workers = append(e.workers, w)
		e.wg.Add(1)
		go e.workerLoop(w)
	}

	e.logger.Debug("executor started", core.F("workers", workerCount))
	return e
}

// NewDefault creates an Executor with one worker per CPU.
func NewDefault(opts ...Option) *Executor {
	return New(runtime.NumCPU(), opts...)
}

// WorkerCount returns the number of pool workers.
func (e *Executor) WorkerCount() int {
	return len(e.workers)
}

// IsRunning reports whether the executor has not been stopped.
func (e *Executor) IsRunning() bool {
	e.runningMu.Lock()
	defer e.runningMu.Unlock()
	return e.running
}

// Observe attaches an observer, replacing any previous one. Attaching while
// a run is in flight may record unmatched enter/leave pairs for nodes
// already executing; attach before submitting for exact accounting.
func (e *Executor) Observe(obs core.Observer) {
	e.obsMu.Lock()
	defer e.obsMu.Unlock()
	e.observer = obs
}

// ObserveTrace constructs a default trace observer, attaches it and returns
// it, replacing any previous observer.
func (e *Executor) ObserveTrace() *core.TraceObserver {
	t := core.NewTraceObserver()
	e.Observe(t)
	return t
}

func (e *Executor) loadObserver() core.Observer {
	e.obsMu.RLock()
	defer e.obsMu.RUnlock()
	return e.observer
}

// Run submits a graph for execution and returns its completion handle.
//
// The graph must be acyclic and must not be mutated until the run completes;
// both are preconditions, not checked errors. Independent graphs may be
// submitted concurrently; submitting the same Graph again before its previous
// run completed is undefined.
func (e *Executor) Run(g *core.Graph) *Run {
	nodes := g.Nodes()
	run := newRun(g, len(nodes), e.runs.Done)
	e.runs.Add(1)

	if len(nodes) == 0 {
		run.finish()
		return run
	}

	// All counters must be reset before the first node is seeded: a seeded
	// source can finish and decrement a successor at any point after the
	// push, and that successor's counter has to be current by then.
	for _, n := range nodes {
		n.ResetJoin()
	}

	if len(e.workers) == 0 {
		e.runInline(run, nodes)
		return run
	}

	for _, n := range nodes {
		if n.NumPredecessors() == 0 {
			e.seed(invocation{node: n, run: run})
		}
	}
	return run
}

// RunWait submits the graph and blocks until it completes, returning the
// aggregated failure of the run, if any.
func (e *Executor) RunWait(g *core.Graph) error {
	return e.Run(g).Wait()
}

// Stop drains all outstanding runs, then shuts the workers down and joins
// them. Submitting new runs during or after Stop is undefined. Stop is
// idempotent.
func (e *Executor) Stop() {
	e.runningMu.Lock()
	defer e.runningMu.Unlock()
	if !e.running {
		return
	}

	e.runs.Wait()
	close(e.stop)
	e.wg.Wait()
	e.running = false
	e.logger.Debug("executor stopped")
}

// runInline executes a whole run on the calling goroutine. The master acts
// as worker 0 with a private queue; the invocation path is identical to the
// pooled one.
func (e *Executor) runInline(run *Run, nodes []*core.Node) {
	w := &worker{id: 0, queue: core.NewDeque[invocation]()}
	for _, n := range nodes {
		if n.NumPredecessors() == 0 {
			w.queue.PushBottom(invocation{node: n, run: run})
		}
	}
	for {
		inv, ok := w.queue.PopBottom()
		if !ok {
			return
		}
		e.invoke(w, inv)
	}
}

// seed places a source node on a worker's queue, round-robin across the
// pool, and wakes a parked worker.
func (e *Executor) seed(inv invocation) {
	idx := int(e.seedCursor.Add(1)-1) % len(e.workers)
	e.workers[idx].queue.PushBottom(inv)
	e.notify()
}

// notify wakes at most one parked worker. The channel is buffered so a
// signal sent between a worker's empty scan and its park is not lost; when
// the buffer is full enough wake-ups are already pending.
func (e *Executor) notify() {
	select {
	case e.signal <- struct{}{}:
	default:
	}
}

// workerLoop pops ready nodes from the worker's own queue, steals when it is
// empty, and parks when a bounded number of steal passes found nothing.
func (e *Executor) workerLoop(w *worker) {
	defer e.wg.Done()

	for {
		inv, ok := e.findWork(w)
		if !ok {
			select {
			case <-e.signal:
				continue
			case <-e.stop:
				return
			}
		}
		e.invoke(w, inv)
	}
}

// findWork takes from the worker's own bottom first (LIFO, cache-warm), then
// makes stealRounds passes over the other workers' tops (FIFO, oldest and
// typically largest-grain work) starting from a random victim.
func (e *Executor) findWork(w *worker) (invocation, bool) {
	if inv, ok := w.queue.PopBottom(); ok {
		return inv, true
	}

	n := len(e.workers)
	if n <= 1 {
		return invocation{}, false
	}

	for round := 0; round < e.stealRounds; round++ {
		start := rand.IntN(n)
		for i := 0; i < n; i++ {
			victim := e.workers[(start+i)%n]
			if victim == w {
				continue
			}
			if inv, ok := victim.queue.StealTop(); ok {
				return inv, true
			}
		}
	}
	return invocation{}, false
}

// invoke executes one node on the given worker: observer enter, the unit of
// work, observer leave, then the dependency-satisfaction protocol. A failed
// node still satisfies its successors; failures accumulate on the run handle
// and never cancel the remainder of the graph.
func (e *Executor) invoke(w *worker, inv invocation) {
	n := inv.node
	task := n.Handle()
	obs := e.loadObserver()

	if obs != nil {
		obs.OnEnter(w.id, task)
	}
	err := e.execute(w.id, n)
	if obs != nil {
		obs.OnLeave(w.id, task)
	}

	if err != nil {
		inv.run.record(fmt.Errorf("task %q: %w", n.Name(), err))
		e.logger.Error("task failed",
			core.F("task", n.Name()),
			core.F("worker", w.id),
			core.F("error", err))
	}

	// Each predecessor completion contributes exactly one decrement to each
	// successor. The worker whose decrement lands on zero owns the push; the
	// successor goes to this worker's own queue and is visible to stealers.
	for _, s := range n.Successors() {
		if s.DecrementJoin() == 0 {
			w.queue.PushBottom(invocation{node: s, run: inv.run})
			e.notify()
		}
	}

	inv.run.complete()
}

// execute runs the node's work with panic containment.
func (e *Executor) execute(workerID int, n *core.Node) (err error) {
	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			e.panicHandler.HandlePanic(workerID, n.Handle(), r, stack)
			err = fmt.Errorf("panicked: %v", r)
		}
	}()
	return n.Invoke()
}
