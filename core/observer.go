package core

import (
	"encoding/json"
	"io"
	"sort"
	"strconv"
	"sync"
	"time"
)

// Observer is the execution-observation hook. An executor invokes OnEnter
// and OnLeave synchronously on the executing worker, immediately around each
// node's unit of work, so implementations must not block significantly.
//
// At most one observer is attached to an executor at a time; attaching a new
// one replaces the previous.
type Observer interface {
	// OnEnter is called on worker workerID just before task's work runs.
	OnEnter(workerID int, task Task)

	// OnLeave is called on the same worker right after the work returns,
	// whether or not it failed.
	OnLeave(workerID int, task Task)
}

// Segment is one recorded task execution on one worker. Timestamps are
// offsets from the observer's creation time.
type Segment struct {
	Name  string
	Seq   int
	Enter time.Duration
	Leave time.Duration
}

// TraceObserver is the default Observer. It records one timestamped Segment
// per executed task, grouped per worker, and serializes the log in the
// Chrome tracing event-list format so any generic trace viewer can render
// the schedule.
type TraceObserver struct {
	mu        sync.Mutex
	origin    time.Time
	nextSeq   int
	open      map[int]Segment   // at most one in-flight segment per worker
	timelines map[int][]Segment // closed segments per worker, in order
}

var _ Observer = (*TraceObserver)(nil)

// NewTraceObserver creates an empty trace observer. All recorded timestamps
// are relative to this call.
func NewTraceObserver() *TraceObserver {
	return &TraceObserver{
		origin:    time.Now(),
		open:      make(map[int]Segment),
		timelines: make(map[int][]Segment),
	}
}

// OnEnter opens a segment for the task on the given worker.
func (o *TraceObserver) OnEnter(workerID int, task Task) {
	now := time.Since(o.origin)
	o.mu.Lock()
	defer o.mu.Unlock()
	o.open[workerID] = Segment{
		Name:  task.Name(),
		Seq:   o.nextSeq,
		Enter: now,
	}
	o.nextSeq++
}

// OnLeave closes the worker's in-flight segment and appends it to the
// worker's timeline.
func (o *TraceObserver) OnLeave(workerID int, task Task) {
	now := time.Since(o.origin)
	o.mu.Lock()
	defer o.mu.Unlock()
	seg, ok := o.open[workerID]
	if !ok {
		return // OnLeave without matching OnEnter; drop
	}
	delete(o.open, workerID)
	seg.Leave = now
	o.timelines[workerID] = append(o.timelines[workerID], seg)
}

// NumTasks returns the number of completed task records.
func (o *TraceObserver) NumTasks() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, tl := range o.timelines {
		n += len(tl)
	}
	return n
}

// Clear discards all recorded segments.
func (o *TraceObserver) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.open = make(map[int]Segment)
	o.timelines = make(map[int][]Segment)
	o.nextSeq = 0
}

// Timelines returns a copy of the per-worker segment log.
func (o *TraceObserver) Timelines() map[int][]Segment {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[int][]Segment, len(o.timelines))
	for id, tl := range o.timelines {
		cp := make([]Segment, len(tl))
		copy(cp, tl)
		out[id] = cp
	}
	return out
}

// traceEvent is one Chrome tracing "complete" event. Timestamps and
// durations are in microseconds, the unit the format specifies.
type traceEvent struct {
	Name string `json:"name"`
	Cat  string `json:"cat"`
	Ph   string `json:"ph"`
	Pid  int    `json:"pid"`
	Tid  int    `json:"tid"`
	Ts   int64  `json:"ts"`
	Dur  int64  `json:"dur"`
}

type traceDocument struct {
	TraceEvents []traceEvent `json:"traceEvents"`
}

// Dump serializes the recorded log as a JSON trace document: per worker
// (tid), an ordered list of complete events with enter timestamp and
// duration. Unnamed tasks are labeled by their sequence number.
func (o *TraceObserver) Dump(w io.Writer) error {
	timelines := o.Timelines()

	workerIDs := make([]int, 0, len(timelines))
	for id := range timelines {
		workerIDs = append(workerIDs, id)
	}
	sort.Ints(workerIDs)

	doc := traceDocument{TraceEvents: []traceEvent{}}
	for _, id := range workerIDs {
		for _, seg := range timelines[id] {
			name := seg.Name
			if name == "" {
				name = "task_" + strconv.Itoa(seg.Seq)
			}
			doc.TraceEvents = append(doc.TraceEvents, traceEvent{
				Name: name,
				Cat:  "task",
				Ph:   "X",
				Pid:  1,
				Tid:  id,
				Ts:   seg.Enter.Microseconds(),
				Dur:  (seg.Leave - seg.Enter).Microseconds(),
			})
		}
	}

	enc := json.NewEncoder(w)
	return enc.Encode(doc)
}
