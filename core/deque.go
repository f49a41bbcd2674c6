package core

import "sync"

const (
	defaultDequeCap    = 16
	compactMinCap      = 64 // don't bother compacting below this capacity
	compactShrinkRatio = 4  // compact when len < cap/4
)

// Deque is a double-ended work queue with the two access disciplines a
// work-stealing scheduler needs: the owning worker pushes and pops the
// bottom (LIFO, hot end), idle workers steal from the top (FIFO, cold end)
// so they take the oldest — typically largest-grain — work without fighting
// over the owner's end.
//
// All operations are safe for concurrent use. A single mutex serializes both
// ends; the owner/thief split is a contention discipline, not a correctness
// requirement.
type Deque[T any] struct {
	mu    sync.Mutex
	items []T
}

// NewDeque creates an empty deque.
func NewDeque[T any]() *Deque[T] {
	return &Deque[T]{
		items: make([]T, 0, defaultDequeCap),
	}
}

// PushBottom appends an item at the owner's end.
func (d *Deque[T]) PushBottom(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.items = append(d.items, v)
}

// PopBottom removes and returns the most recently pushed item. It reports
// false when the deque is empty.
func (d *Deque[T]) PopBottom() (T, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := len(d.items)
	if n == 0 {
		var zero T
		return zero, false
	}

	v := d.items[n-1]
	var zero T
	d.items[n-1] = zero // release the reference
	d.items = d.items[:n-1]
	return v, true
}

// StealTop removes and returns the oldest item. It reports false when the
// deque is empty.
func (d *Deque[T]) StealTop() (T, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.items) == 0 {
		var zero T
		return zero, false
	}

	v := d.items[0]
	var zero T
	d.items[0] = zero // release the reference
	d.items = d.items[1:]
	d.maybeCompactLocked()
	return v, true
}

// Len returns the current item count.
func (d *Deque[T]) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.items)
}

// Empty reports whether the deque has no items.
func (d *Deque[T]) Empty() bool {
	return d.Len() == 0
}

// maybeCompactLocked reallocates the backing slice when stealing from the
// front has left most of the capacity unreachable behind the slice header.
func (d *Deque[T]) maybeCompactLocked() {
	n := len(d.items)
	c := cap(d.items)

	if c < compactMinCap {
		return
	}
	if n == 0 {
		d.items = make([]T, 0, defaultDequeCap)
		return
	}
	if n*compactShrinkRatio >= c {
		return
	}

	newCap := max(max(c/2, defaultDequeCap), n)
	compacted := make([]T, n, newCap)
	copy(compacted, d.items)
	d.items = compacted
}
