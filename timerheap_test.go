package evloop

import (
	"fmt"
	"math/rand"
	"testing"
)

func TestKindString(t *testing.T) {
	cases := map[Kind]string{
		KindDefer:    "defer",
		KindDelay:    "delay",
		KindRepeat:   "repeat",
		KindReadable: "readable",
		KindWritable: "writable",
		KindSignal:   "signal",
		Kind(99):     "unknown",
	}
	for k, want := range cases {
		if got := k.String(); got != want {
			t.Fatalf("Kind(%d).String() = %q, want %q", k, got, want)
		}
	}
}

func TestIDGeneratorSequence(t *testing.T) {
	var g idGenerator
	want := []CallbackID{"a", "b", "c"}
	for _, w := range want {
		if got := g.next(); got != w {
			t.Fatalf("next() = %q, want %q", got, w)
		}
	}
	// advance to the rollover at z -> aa
	var g2 idGenerator
	g2.n = 25 // next() will be the 26th call
	if got := g2.next(); got != "z" {
		t.Fatalf("26th id = %q, want z", got)
	}
	if got := g2.next(); got != "aa" {
		t.Fatalf("27th id = %q, want aa", got)
	}
}

func TestIDGeneratorNeverRepeats(t *testing.T) {
	var g idGenerator
	seen := make(map[CallbackID]bool)
	for i := 0; i < 10000; i++ {
		id := g.next()
		if seen[id] {
			t.Fatalf("id %q repeated at iteration %d", id, i)
		}
		seen[id] = true
	}
}

func newTimerCallback(id CallbackID, expiration float64) *callback {
	return &callback{id: id, kind: KindDelay, expiration: expiration, heapIndex: -1}
}

// TestTimerHeapExtractDueOrder is the "heap correctness" property from
// spec.md §8: after any sequence of insert/remove, repeated
// extract_due(+inf) returns timers in non-decreasing expiration order.
func TestTimerHeapExtractDueOrder(t *testing.T) {
	h := newTimerHeap()
	rng := rand.New(rand.NewSource(1))
	const n = 200
	for i := 0; i < n; i++ {
		exp := rng.Float64() * 1000
		h.Insert(newTimerCallback(CallbackID(fmt.Sprintf("t%d", i)), exp))
	}

	var out []float64
	for {
		c := h.ExtractDue(1e18)
		if c == nil {
			break
		}
		out = append(out, c.expiration)
	}
	if len(out) != n {
		t.Fatalf("extracted %d timers, want %d", len(out), n)
	}
	for i := 1; i < len(out); i++ {
		if out[i] < out[i-1] {
			t.Fatalf("extract order not sorted at index %d: %v before %v", i, out[i-1], out[i])
		}
	}
}

// TestTimerHeapRemoveByID inserts 28 timers and removes every other one
// (14) by id, a variant of the concrete scenario from spec.md §8 #6,
// checking the index invariant (heap[index[id]].id == id) before and after
// the removals and that the rest still extract in order.
func TestTimerHeapRemoveByID(t *testing.T) {
	h := newTimerHeap()
	ids := make([]CallbackID, 0, 28)
	for i := 0; i < 28; i++ {
		id := CallbackID(rune('A' + i))
		ids = append(ids, id)
		h.Insert(newTimerCallback(id, float64(28-i)))
	}
	for i := range h.items {
		if h.index[h.items[i].id] != i {
			t.Fatalf("index invariant broken before removal at position %d", i)
		}
	}

	// remove every other one
	for i := 0; i < len(ids); i += 2 {
		h.Remove(ids[i])
	}
	if h.Len() != 14 {
		t.Fatalf("Len() = %d after removing 14, want 14", h.Len())
	}
	for i := range h.items {
		if h.index[h.items[i].id] != i {
			t.Fatalf("index invariant broken after removal at position %d", i)
		}
	}

	// remaining should still extract in sorted order
	var last float64 = -1
	for {
		c := h.ExtractDue(1e18)
		if c == nil {
			break
		}
		if c.expiration < last {
			t.Fatalf("order violated after partial removal")
		}
		last = c.expiration
	}
}

func TestTimerHeapRemoveUnknownIsNoop(t *testing.T) {
	h := newTimerHeap()
	h.Insert(newTimerCallback("x", 1))
	h.Remove("does-not-exist")
	if h.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 after removing an unknown id", h.Len())
	}
}

func TestTimerHeapPeekEmpty(t *testing.T) {
	h := newTimerHeap()
	if _, ok := h.Peek(); ok {
		t.Fatalf("Peek() on empty heap returned ok=true")
	}
	if c := h.ExtractDue(1e18); c != nil {
		t.Fatalf("ExtractDue() on empty heap returned non-nil")
	}
}
