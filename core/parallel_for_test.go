package core

import (
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// runSequential drains a graph on the calling goroutine in dependency order.
// Construction tests only need the visit semantics, not an executor.
func runSequential(t *testing.T, g *Graph) {
	t.Helper()

	for _, n := range g.Nodes() {
		n.ResetJoin()
	}
	var ready []*Node
	for _, n := range g.Nodes() {
		if n.NumPredecessors() == 0 {
			ready = append(ready, n)
		}
	}

	executed := 0
	for len(ready) > 0 {
		n := ready[len(ready)-1]
		ready = ready[:len(ready)-1]
		if err := n.Invoke(); err != nil {
			t.Fatalf("node %q failed: %v", n.Name(), err)
		}
		executed++
		for _, s := range n.Successors() {
			if s.DecrementJoin() == 0 {
				ready = append(ready, s)
			}
		}
	}
	if executed != g.Len() {
		t.Fatalf("executed %d of %d nodes", executed, g.Len())
	}
}

func TestParallelFor_ZeroStep(t *testing.T) {
	g := New()
	_, _, err := g.ParallelFor(0, 10, 0, func(int) {}, 0)
	if !errors.Is(err, ErrZeroStep) {
		t.Fatalf("expected ErrZeroStep, got %v", err)
	}
	if g.Len() != 0 {
		t.Fatalf("zero step must not create nodes, got %d", g.Len())
	}
}

func TestParallelFor_VisitsEveryItemOnce(t *testing.T) {
	g := New()

	var mu sync.Mutex
	var visited []int
	_, _, err := g.ParallelFor(0, 10, 2, func(i int) {
		mu.Lock()
		visited = append(visited, i)
		mu.Unlock()
	}, 0)
	if err != nil {
		t.Fatal(err)
	}

	runSequential(t, g)

	sort.Ints(visited)
	want := []int{0, 2, 4, 6, 8}
	if diff := cmp.Diff(want, visited); diff != "" {
		t.Errorf("visited items mismatch (-want +got):\n%s", diff)
	}
}

func TestParallelFor_ExplicitPartitionGrouping(t *testing.T) {
	g := New()

	var mu sync.Mutex

	// The grouping itself is partitionBounds' contract; the public behavior
	// is the per-partition node count and the visited set.
	bounds := partitionBounds(5, 3)
	want := [][2]int{{0, 2}, {2, 4}, {4, 5}}
	if diff := cmp.Diff(want, bounds); diff != "" {
		t.Fatalf("partition bounds mismatch (-want +got):\n%s", diff)
	}

	var visited []int
	_, _, err := g.ParallelFor(0, 10, 2, func(i int) {
		mu.Lock()
		visited = append(visited, i)
		mu.Unlock()
	}, 3)
	if err != nil {
		t.Fatal(err)
	}

	// src + snk + 3 non-empty partitions
	if g.Len() != 5 {
		t.Fatalf("expected 5 nodes, got %d", g.Len())
	}

	runSequential(t, g)
	sort.Ints(visited)
	if diff := cmp.Diff([]int{0, 2, 4, 6, 8}, visited); diff != "" {
		t.Errorf("visited items mismatch (-want +got):\n%s", diff)
	}
}

func TestParallelFor_ExcessPartitionsProduceNoNodes(t *testing.T) {
	g := New()
	_, _, err := g.ParallelFor(0, 3, 1, func(int) {}, 10)
	if err != nil {
		t.Fatal(err)
	}
	// src + snk + one node per item; the 7 empty partitions contribute none.
	if g.Len() != 5 {
		t.Fatalf("expected 5 nodes, got %d", g.Len())
	}
}

func TestParallelFor_NegativeStep(t *testing.T) {
	g := New()

	var mu sync.Mutex
	var visited []int
	_, _, err := g.ParallelFor(10, 0, -3, func(i int) {
		mu.Lock()
		visited = append(visited, i)
		mu.Unlock()
	}, 2)
	if err != nil {
		t.Fatal(err)
	}

	runSequential(t, g)
	sort.Sort(sort.Reverse(sort.IntSlice(visited)))
	if diff := cmp.Diff([]int{10, 7, 4, 1}, visited); diff != "" {
		t.Errorf("descending range mismatch (-want +got):\n%s", diff)
	}
}

func TestParallelFor_EmptyRange(t *testing.T) {
	g := New()
	src, snk, err := g.ParallelFor(5, 5, 1, func(int) {
		t.Error("empty range must not invoke the body")
	}, 4)
	if err != nil {
		t.Fatal(err)
	}
	if g.Len() != 2 {
		t.Fatalf("expected only the two sync nodes, got %d", g.Len())
	}
	if src.NumSuccessors() != 1 || snk.NumPredecessors() != 1 {
		t.Error("expected src -> snk bracket edge for the empty range")
	}
	runSequential(t, g)
}

func TestParallelFor_BracketsOrderSurroundingWork(t *testing.T) {
	g := New()

	var order []string
	before := g.Emplace(func() error {
		order = append(order, "before")
		return nil
	})
	after := g.Emplace(func() error {
		order = append(order, "after")
		return nil
	})

	src, snk, err := g.ParallelFor(0, 4, 1, func(int) {
		order = append(order, "item")
	}, 2)
	if err != nil {
		t.Fatal(err)
	}
	before.Precede(src)
	snk.Precede(after)

	runSequential(t, g)

	if len(order) != 6 {
		t.Fatalf("expected 6 entries, got %v", order)
	}
	if order[0] != "before" || order[len(order)-1] != "after" {
		t.Errorf("bracket ordering violated: %v", order)
	}
}

func TestForEach_CoversSlice(t *testing.T) {
	g := New()

	items := []string{"a", "b", "c", "d", "e", "f", "g"}
	var mu sync.Mutex
	seen := map[string]int{}
	ForEach(g, items, func(s string) {
		mu.Lock()
		seen[s]++
		mu.Unlock()
	}, 3)

	runSequential(t, g)

	if len(seen) != len(items) {
		t.Fatalf("expected %d distinct items, got %d", len(items), len(seen))
	}
	for s, n := range seen {
		if n != 1 {
			t.Errorf("item %q processed %d times", s, n)
		}
	}
}

func TestPartitionBounds_EvenWithinOne(t *testing.T) {
	for _, tc := range []struct{ n, p int }{
		{10, 3}, {7, 7}, {100, 8}, {5, 16}, {1, 1}, {9, 4},
	} {
		bounds := partitionBounds(tc.n, tc.p)

		total, minSize, maxSize := 0, tc.n, 0
		prevHi := 0
		for _, b := range bounds {
			size := b[1] - b[0]
			if size == 0 {
				t.Errorf("n=%d p=%d: empty partition emitted", tc.n, tc.p)
			}
			if b[0] != prevHi {
				t.Errorf("n=%d p=%d: partitions not contiguous", tc.n, tc.p)
			}
			prevHi = b[1]
			total += size
			minSize = min(minSize, size)
			maxSize = max(maxSize, size)
		}
		if total != tc.n {
			t.Errorf("n=%d p=%d: covered %d items", tc.n, tc.p, total)
		}
		if maxSize-minSize > 1 {
			t.Errorf("n=%d p=%d: size spread %d-%d exceeds 1", tc.n, tc.p, minSize, maxSize)
		}
	}
}
