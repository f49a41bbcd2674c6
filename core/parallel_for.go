package core

import (
	"errors"
	"runtime"
)

// ErrZeroStep is returned by ParallelFor when the step is zero; a zero step
// can never advance the range and would partition into infinitely many items.
var ErrZeroStep = errors.New("parallel-for: step must not be zero")

// ParallelFor expands an index-based loop into a sub-graph of partition
// nodes bracketed by two synchronization nodes, and returns the bracket
// handles so callers can splice the loop into a larger graph with Precede.
//
// The loop visits beg, beg+step, beg+2*step, ... while the index is before
// end (above end when step is negative). A zero step is rejected with
// ErrZeroStep before any node is created.
//
// partitions selects how many worker nodes share the items. Zero means auto:
// max(1, runtime.GOMAXPROCS(0)). Items divide as evenly as possible — the
// first n%p partitions take one extra item — and a partition left with no
// items contributes no node at all.
func (g *Graph) ParallelFor(beg, end, step int, body func(int), partitions int) (Task, Task, error) {
	if step == 0 {
		return Task{}, Task{}, ErrZeroStep
	}

	var n int
	switch {
	case step > 0 && end > beg:
		n = (end - beg + step - 1) / step
	case step < 0 && beg > end:
		n = (beg - end - step - 1) / -step
	}

	src := g.Emplace(nil)
	snk := g.Emplace(nil)

	for _, b := range partitionBounds(n, normalizePartitions(partitions)) {
		lo, hi := b[0], b[1]
		w := g.Emplace(func() error {
			for k := lo; k < hi; k++ {
				body(beg + k*step)
			}
			return nil
		})
		src.Precede(w)
		w.Precede(snk)
	}

	// An empty range degrades to src -> snk so the brackets still order
	// surrounding work.
	if n == 0 {
		src.Precede(snk)
	}

	return src, snk, nil
}

// ForEach expands a loop over a slice into a partitioned sub-graph, invoking
// body once per element. It follows the same partitioning policy as
// ParallelFor and returns the source and sink bracket handles.
func ForEach[T any](g *Graph, items []T, body func(T), partitions int) (Task, Task) {
	src := g.Emplace(nil)
	snk := g.Emplace(nil)

	n := len(items)
	for _, b := range partitionBounds(n, normalizePartitions(partitions)) {
		part := items[b[0]:b[1]]
		w := g.Emplace(func() error {
			for _, it := range part {
				body(it)
			}
			return nil
		})
		src.Precede(w)
		w.Precede(snk)
	}

	if n == 0 {
		src.Precede(snk)
	}

	return src, snk
}

// normalizePartitions applies the auto policy: non-positive counts become
// max(1, GOMAXPROCS). The Graph is built independently of any executor, so
// the process's effective parallelism stands in for the worker count.
func normalizePartitions(p int) int {
	if p > 0 {
		return p
	}
	if np := runtime.GOMAXPROCS(0); np > 1 {
		return np
	}
	return 1
}

// partitionBounds splits n items across up to p partitions and returns the
// half-open [lo, hi) bounds of every non-empty partition. The first n%p
// partitions receive one extra item, so sizes differ by at most one.
func partitionBounds(n, p int) [][2]int {
	if n == 0 {
		return nil
	}
	if p > n {
		p = n
	}
	base, rem := n/p, n%p

	bounds := make([][2]int, 0, p)
	lo := 0
	for i := 0; i < p; i++ {
		size := base
		if i < rem {
			size++
		}
		bounds = append(bounds, [2]int{lo, lo + size})
		lo += size
	}
	return bounds
}
